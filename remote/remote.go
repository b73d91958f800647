// Package remote parses remote folder-name URIs
// ("scheme://[user[:pass]@]host[:port]/folder") and defines the Backend
// boundary the Manager type-dispatches on by scheme. No protocol client is
// implemented here; IMAP/POP3/etc. transport is out of scope per spec.md.
package remote

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/eslider/mailbox/folder"
)

// Address is a parsed remote folder-name URI.
type Address struct {
	Scheme   string
	User     string
	Password string
	Host     string
	Port     int
	Folder   string
}

// ParseAddress parses a URI of the form
// "scheme://[user[:pass]@]host[:port]/folder".
func ParseAddress(raw string) (Address, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Address{}, eris.Wrapf(err, "remote: parse %q", raw)
	}
	if u.Scheme == "" {
		return Address{}, eris.Errorf("remote: %q has no scheme", raw)
	}
	if u.Host == "" {
		return Address{}, eris.Errorf("remote: %q has no host", raw)
	}

	addr := Address{
		Scheme: u.Scheme,
		Host:   u.Hostname(),
		Folder: strings.TrimPrefix(u.Path, "/"),
	}
	if u.User != nil {
		addr.User = u.User.Username()
		addr.Password, _ = u.User.Password()
	}
	if portStr := u.Port(); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Address{}, eris.Wrapf(err, "remote: invalid port in %q", raw)
		}
		addr.Port = port
	}
	return addr, nil
}

// String renders addr back into "scheme://[user[:pass]@]host[:port]/folder"
// form.
func (a Address) String() string {
	var sb strings.Builder
	sb.WriteString(a.Scheme)
	sb.WriteString("://")
	if a.User != "" {
		sb.WriteString(a.User)
		if a.Password != "" {
			sb.WriteString(":")
			sb.WriteString(a.Password)
		}
		sb.WriteString("@")
	}
	sb.WriteString(a.Host)
	if a.Port != 0 {
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(a.Port))
	}
	sb.WriteString("/")
	sb.WriteString(a.Folder)
	return sb.String()
}

// Backend is the boundary a remote protocol client (IMAP, POP3, ...) would
// implement to be dispatched on by scheme. No concrete implementation
// ships in this module; protocol transport is explicitly out of scope.
type Backend interface {
	// Scheme returns the URI scheme this backend handles, e.g. "imap".
	Scheme() string
	// Dial opens addr and returns a folder.Folder backed by the remote
	// server.
	Dial(addr Address, opts folder.OpenOptions) (folder.Folder, error)
}

// Registry dispatches an Address to a registered Backend by scheme.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry returns an empty remote backend registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds b under its own Scheme().
func (r *Registry) Register(b Backend) {
	r.backends[b.Scheme()] = b
}

// Dial looks up addr.Scheme in the registry and dials it.
func (r *Registry) Dial(addr Address, opts folder.OpenOptions) (folder.Folder, error) {
	b, ok := r.backends[addr.Scheme]
	if !ok {
		return nil, eris.Errorf("remote: no backend registered for scheme %q", addr.Scheme)
	}
	return b.Dial(addr, opts)
}
