package body_test

import (
	"bytes"
	"testing"

	"github.com/eslider/mailbox/body"
)

func TestCodecRoundTrip(t *testing.T) {
	samples := [][]byte{
		[]byte("hello world\n"),
		[]byte(""),
		bytes.Repeat([]byte{0x41, 0x00, 0x7f}, 20),
	}
	for _, name := range []string{"7bit", "8bit", "binary", "base64", "quoted-printable"} {
		c := body.Lookup(name)
		for _, sample := range samples {
			// 7bit/8bit are lossy filters, not guaranteed round-trip for
			// arbitrary bytes; restrict their round-trip check to clean input.
			in := sample
			if name == "7bit" {
				in = clean7Bit(sample)
			}
			if name == "8bit" {
				in = clean8Bit(sample)
			}
			encoded, err := c.Encode(in)
			if err != nil {
				t.Fatalf("%s: Encode: %v", name, err)
			}
			decoded, err := c.Decode(encoded)
			if err != nil {
				t.Fatalf("%s: Decode: %v", name, err)
			}
			if !bytes.Equal(decoded, in) {
				t.Errorf("%s: round trip mismatch: got %q, want %q", name, decoded, in)
			}
		}
	}
}

func clean7Bit(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = c & 0x7f
	}
	return out
}

func clean8Bit(b []byte) []byte {
	var out []byte
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c == 0 {
			continue
		}
		if c == '\r' && (i+1 >= len(b) || b[i+1] != '\n') {
			continue
		}
		out = append(out, c)
	}
	return out
}

func TestBase64ExampleFromSpec(t *testing.T) {
	const encoded = "VGhpcyB0ZXh0IGlzIHVzZWQgdG8gdGVzdCBiYXNlNjQgZW5jb2RpbmcgYW5kIGRlY29kaW5nLiAg\nTGV0CnNlZSB3aGV0aGVyIGl0IHdvcmtzLgo="
	const want = "This text is used to test base64 encoding and decoding.  Let\nsee whether it works.\n"

	c := body.Lookup("base64")
	decoded, err := c.Decode([]byte(encoded))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(decoded) != want {
		t.Fatalf("Decode = %q, want %q", decoded, want)
	}

	reencoded, err := c.Encode(decoded)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(reencoded) != encoded {
		t.Fatalf("Encode = %q, want %q", reencoded, encoded)
	}
}

func TestQuotedPrintableRoundTrip(t *testing.T) {
	c := body.Lookup("quoted-printable")
	in := []byte("café\n=equals=\ttab\n")
	encoded, err := c.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := c.Decode(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded, in) {
		t.Errorf("round trip = %q, want %q", decoded, in)
	}
}

func TestLookupUnknownFallsBackToBinary(t *testing.T) {
	c := body.Lookup("x-unknown-encoding")
	if c.Name() != "binary" {
		t.Errorf("Lookup(unknown).Name() = %q, want binary", c.Name())
	}
}

func TestMultipartPartsCountInvariant(t *testing.T) {
	preamble := body.NewLines([]string{"preamble\n"})
	epilogue := body.NewLines([]string{"epilogue\n"})
	part1 := body.Part{Body: body.NewLines([]string{"part one\n"})}
	part2 := body.Part{Body: body.NewLines([]string{"part two\n"})}

	mp := body.Multipart{
		Preamble: preamble,
		Parts:    []body.Part{part1, part2},
		Epilogue: epilogue,
		Boundary: "xyz",
	}
	b := body.NewMultipart(mp)
	if got, want := b.PartsCount(), 4; got != want {
		t.Errorf("PartsCount() = %d, want %d", got, want)
	}

	mpNoWrap := body.Multipart{Parts: []body.Part{part1, part2}, Boundary: "xyz"}
	bNoWrap := body.NewMultipart(mpNoWrap)
	if got, want := bNoWrap.PartsCount(), 2; got != want {
		t.Errorf("PartsCount() without preamble/epilogue = %d, want %d", got, want)
	}
}

func TestParseMultipartSplitsPreamblePartsEpilogue(t *testing.T) {
	raw := []byte("This is the preamble.\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"first part\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"second part\r\n" +
		"--BOUNDARY--\r\n" +
		"This is the epilogue.\n")

	mp, err := body.ParseMultipart(`multipart/mixed; boundary="BOUNDARY"`, raw)
	if err != nil {
		t.Fatalf("ParseMultipart: %v", err)
	}
	if len(mp.Parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(mp.Parts))
	}
	if mp.Preamble == nil {
		t.Error("expected non-nil preamble")
	}
	if mp.Epilogue == nil {
		t.Error("expected non-nil epilogue")
	}
	if got := mp.Parts[0].Body.AsText(); got != "first part" {
		t.Errorf("part 0 body = %q", got)
	}
}

func TestDecodeCharsetNoopForUTF8(t *testing.T) {
	in := []byte("hello")
	if got := body.DecodeCharset("utf-8", in); string(got) != "hello" {
		t.Errorf("DecodeCharset(utf-8) = %q, want unchanged", got)
	}
	if got := body.DecodeCharset("", in); string(got) != "hello" {
		t.Errorf("DecodeCharset(\"\") = %q, want unchanged", got)
	}
}

func TestDecodeCharsetUnknownReturnsInputUnchanged(t *testing.T) {
	in := []byte("abc")
	got := body.DecodeCharset("x-totally-made-up", in)
	if !bytes.Equal(got, in) {
		t.Errorf("DecodeCharset(unknown) = %q, want unchanged input", got)
	}
}
