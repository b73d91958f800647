package body

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/rotisserie/eris"
)

// Render serializes b back into wire bytes honoring its MIMEType/Charset/
// TransferEncoding, the inverse of the decode step every backend's
// bodyFromHeaderAndLines performs on read. A folder write path must call
// this rather than writing b.Lines directly, or a body whose
// Content-Transfer-Encoding claims base64/quoted-printable gets written as
// raw decoded text while the header keeps claiming the old encoding.
func Render(b *Body) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	switch b.Kind {
	case KindLines:
		plain := []byte(strings.Join(b.Lines, ""))
		if b.Charset != "" {
			plain = EncodeCharset(b.Charset, plain)
		}
		encoded, err := Lookup(b.TransferEncoding).Encode(plain)
		if err != nil {
			return nil, eris.Wrap(err, "body: render lines")
		}
		return encoded, nil
	case KindMultipart:
		return renderMultipart(b.MultiPart)
	case KindFile, KindBlob, KindDelayed, KindNested:
		// Not rewritten in place: a folder write must materialize these
		// into KindLines first if it intends to persist new bytes.
		return []byte(b.AsText()), nil
	default:
		return []byte(b.AsText()), nil
	}
}

func renderMultipart(mp *Multipart) ([]byte, error) {
	if mp == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if mp.Preamble != nil {
		pre, err := Render(mp.Preamble)
		if err != nil {
			return nil, err
		}
		buf.Write(pre)
	}

	w := multipart.NewWriter(&buf)
	if mp.Boundary != "" {
		if err := w.SetBoundary(mp.Boundary); err != nil {
			return nil, eris.Wrap(err, "body: set multipart boundary")
		}
	}
	for _, part := range mp.Parts {
		header := make(textproto.MIMEHeader)
		if part.Head != nil {
			for _, name := range part.Head.Names() {
				for _, f := range part.Head.GetAll(name) {
					header.Add(f.DisplayName(), f.Body())
				}
			}
		}
		pw, err := w.CreatePart(header)
		if err != nil {
			return nil, eris.Wrap(err, "body: create multipart part")
		}
		rendered, err := Render(part.Body)
		if err != nil {
			return nil, err
		}
		if _, err := pw.Write(rendered); err != nil {
			return nil, eris.Wrap(err, "body: write multipart part")
		}
	}
	if err := w.Close(); err != nil {
		return nil, eris.Wrap(err, "body: close multipart writer")
	}

	if mp.Epilogue != nil {
		epi, err := Render(mp.Epilogue)
		if err != nil {
			return nil, err
		}
		buf.Write(epi)
	}
	return buf.Bytes(), nil
}
