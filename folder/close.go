package folder

// CloseWith implements the shared close protocol described by the folder
// contract: decide whether policy requires a write, refuse to write a
// read-only folder, invoke writeFn/unlock, then mark the folder closed and
// notify OnClose. Concrete backends call this from their Close method,
// passing their own Write and lock-release implementations.
func (b *Base) CloseWith(policy ClosePolicy, self Folder, writeFn func(WritePolicy) error, unlock func() error) error {
	if b.IsClosed() {
		return nil
	}

	shouldWrite := policy == CloseAlways || (policy == CloseModified && b.Modified())
	if policy == "" {
		shouldWrite = b.Modified()
	}

	if shouldWrite {
		if b.ReadOnly() {
			return ErrReadOnly
		}
		if err := writeFn(WriteDefault); err != nil {
			return err
		}
		b.clearModified()
	}

	if unlock != nil {
		if err := unlock(); err != nil {
			return err
		}
	}

	b.markClosed()
	if b.OnClose != nil {
		b.OnClose(self)
	}
	return nil
}
