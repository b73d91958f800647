package body

import (
	"bytes"
	"io"
	"strings"

	charsets "github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// DecodeCharset transforms data from the named charset to UTF-8. An empty,
// "utf-8", or "us-ascii" name is a no-op. Unknown charsets return data
// unchanged rather than erroring, matching the teacher's
// internal/search/eml/parser.go charsetReader fallback behavior.
func DecodeCharset(name string, data []byte) []byte {
	cs := strings.ToLower(strings.TrimSpace(name))
	if cs == "" || cs == "utf-8" || cs == "us-ascii" || cs == "ascii" {
		return data
	}
	if enc, err := htmlindex.Get(cs); err == nil && enc != nil {
		if out, _, err := transform.Bytes(enc.NewDecoder(), data); err == nil {
			return out
		}
	}
	// Fall back to go-message's broader charset table, which knows vendor
	// aliases htmlindex doesn't (the same table pst.go extends via
	// pst.ExtendCharsets/charsets.RegisterEncoding).
	if r, err := charsets.Reader(cs, bytes.NewReader(data)); err == nil {
		if out, err := io.ReadAll(r); err == nil {
			return out
		}
	}
	return data
}

// EncodeCharset transforms data from UTF-8 to the named charset, the
// inverse of DecodeCharset. An empty, "utf-8", or "us-ascii" name and any
// charset unknown to htmlindex are no-ops — a folder write should never
// fail outright just because the original charset can't be regenerated.
func EncodeCharset(name string, data []byte) []byte {
	cs := strings.ToLower(strings.TrimSpace(name))
	if cs == "" || cs == "utf-8" || cs == "us-ascii" || cs == "ascii" {
		return data
	}
	if enc, err := htmlindex.Get(cs); err == nil && enc != nil {
		if out, _, err := transform.Bytes(enc.NewEncoder(), data); err == nil {
			return out
		}
	}
	return data
}

// DecodeCharsetReader wraps r with a charset-decoding transform.Reader, for
// streaming decode of large bodies.
func DecodeCharsetReader(name string, r io.Reader) io.Reader {
	cs := strings.ToLower(strings.TrimSpace(name))
	if cs == "" || cs == "utf-8" || cs == "us-ascii" || cs == "ascii" {
		return r
	}
	if enc, err := htmlindex.Get(cs); err == nil && enc != nil {
		return transform.NewReader(r, enc.NewDecoder())
	}
	if out, err := charsets.Reader(cs, r); err == nil {
		return out
	}
	return r
}
