package body

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime/quotedprintable"
	"strings"

	"github.com/rotisserie/eris"
)

// Codec encodes/decodes between a transfer-encoding's wire form and the
// underlying byte-clean payload. Decode(Encode(b)) == b for byte-clean b.
type Codec interface {
	Name() string
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

var registry = map[string]Codec{}

func register(c Codec) { registry[c.Name()] = c }

func init() {
	register(sevenBitCodec{})
	register(eightBitCodec{})
	register(binaryCodec{})
	register(base64Codec{})
	register(quotedPrintableCodec{})
}

// Lookup returns the registered codec for name (case-insensitive), or
// binaryCodec (identity) if name is empty/unknown — matching the spec's
// treatment of Content-Length/Status as informational, not authoritative:
// an unrecognized transfer-encoding is never fatal.
func Lookup(name string) Codec {
	if c, ok := registry[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c
	}
	return binaryCodec{}
}

// --- 7bit ---

type sevenBitCodec struct{}

func (sevenBitCodec) Name() string { return "7bit" }

// Encode rejects bytes >= 128 by stripping the high bit, which is the
// conservative "make it 7bit" transform; well-formed 7bit input round-trips
// unchanged.
func (sevenBitCodec) Encode(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	for i, c := range data {
		out[i] = c & 0x7f
	}
	return out, nil
}

func (sevenBitCodec) Decode(data []byte) ([]byte, error) {
	return data, nil
}

// --- 8bit ---

type eightBitCodec struct{}

func (eightBitCodec) Name() string { return "8bit" }

// Encode strips NUL and bare CR (not part of a CRLF pair), keeping 8-bit
// bytes otherwise untouched.
func (eightBitCodec) Encode(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c == 0 {
			continue
		}
		if c == '\r' && (i+1 >= len(data) || data[i+1] != '\n') {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (eightBitCodec) Decode(data []byte) ([]byte, error) { return data, nil }

// --- binary ---

type binaryCodec struct{}

func (binaryCodec) Name() string                      { return "binary" }
func (binaryCodec) Encode(data []byte) ([]byte, error) { return data, nil }
func (binaryCodec) Decode(data []byte) ([]byte, error) { return data, nil }

// --- base64 ---

type base64Codec struct{}

func (base64Codec) Name() string { return "base64" }

const base64WrapColumn = 76

func (base64Codec) Encode(data []byte) ([]byte, error) {
	enc := base64.StdEncoding.EncodeToString(data)
	var buf bytes.Buffer
	for i := 0; i < len(enc); i += base64WrapColumn {
		end := i + base64WrapColumn
		if end > len(enc) {
			end = len(enc)
		}
		if i > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(enc[i:end])
	}
	return buf.Bytes(), nil
}

func (base64Codec) Decode(data []byte) ([]byte, error) {
	clean := make([]byte, 0, len(data))
	for _, c := range data {
		if c == '\n' || c == '\r' {
			continue
		}
		clean = append(clean, c)
	}
	out, err := base64.StdEncoding.DecodeString(string(clean))
	if err != nil {
		return nil, eris.Wrap(err, "base64 decode")
	}
	return out, nil
}

// --- quoted-printable ---

type quotedPrintableCodec struct{}

func (quotedPrintableCodec) Name() string { return "quoted-printable" }

func (quotedPrintableCodec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := quotedprintable.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, eris.Wrap(err, "quoted-printable encode")
	}
	if err := w.Close(); err != nil {
		return nil, eris.Wrap(err, "quoted-printable encode")
	}
	// The stdlib writer emits CRLF for every line break; keep LF-only input
	// LF-only so that Decode returns the original bytes.
	out := buf.Bytes()
	if !bytes.Contains(data, []byte("\r")) {
		out = bytes.ReplaceAll(out, []byte("\r\n"), []byte("\n"))
	}
	return out, nil
}

func (quotedPrintableCodec) Decode(data []byte) ([]byte, error) {
	r := quotedprintable.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "quoted-printable decode")
	}
	return out, nil
}
