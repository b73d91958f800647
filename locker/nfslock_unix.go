//go:build unix

package locker

import (
	"os"
	"syscall"
)

// linkCountAtLeastTwo reports whether info's underlying inode has at least
// two hard links, confirming the Link call in NFSLock.Lock actually landed
// rather than silently no-op'ing (the failure mode the "stat the temp file"
// step exists to catch).
func linkCountAtLeastTwo(info os.FileInfo) bool {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return true
	}
	return uint64(stat.Nlink) >= 2
}
