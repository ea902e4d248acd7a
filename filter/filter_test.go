package filter

import (
	"bytes"
	"testing"

	"github.com/aescarias/pdfnaut-go/cos"
)

func TestASCIIHexRoundTrip(t *testing.T) {
	c := asciiHexCodec{}
	encoded, err := c.Encode([]byte("Hello"), nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := c.Decode(encoded, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded, []byte("Hello")) {
		t.Fatalf("round trip = %q", decoded)
	}
}

func TestASCIIHexOddDigitPad(t *testing.T) {
	c := asciiHexCodec{}
	decoded, err := c.Decode([]byte("48656C6C6F2>"), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != 6 {
		t.Fatalf("odd trailing digit should pad to a full byte, got %d bytes: %q", len(decoded), decoded)
	}
}

func TestASCII85RoundTrip(t *testing.T) {
	c := asciiDecoder85{}
	input := []byte("Man is distinguished, not only by his reason...")
	encoded, err := c.Encode(input, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := c.Decode(encoded, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded, input) {
		t.Fatalf("round trip mismatch:\n got %q\nwant %q", decoded, input)
	}
}

func TestASCII85ZeroGroup(t *testing.T) {
	c := asciiDecoder85{}
	decoded, err := c.Decode([]byte("z~>"), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded, []byte{0, 0, 0, 0}) {
		t.Fatalf("'z' should expand to four zero bytes, got %v", decoded)
	}
}

func TestRunLengthDecode(t *testing.T) {
	c := runLengthCodec{}
	// literal run "abc" (length byte 2), repeat run 'X' x5 (length byte 252), EOD.
	input := []byte{2, 'a', 'b', 'c', 252, 'X', 0x80}
	decoded, err := c.Decode(input, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := "abcXXXXX"
	if string(decoded) != want {
		t.Fatalf("decoded = %q, want %q", decoded, want)
	}
}

func TestRunLengthMissingEOD(t *testing.T) {
	c := runLengthCodec{}
	if _, err := c.Decode([]byte{0, 'a'}, nil); err == nil {
		t.Fatalf("expected an error for a stream missing its EOD marker")
	}
}

func TestFlateRoundTrip(t *testing.T) {
	c := flateCodec{}
	input := bytes.Repeat([]byte("the quick brown fox "), 10)
	encoded, err := c.Encode(input, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := c.Decode(encoded, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded, input) {
		t.Fatalf("round trip mismatch")
	}
}

func TestFlatePNGPredictorRoundTrip(t *testing.T) {
	c := flateCodec{}
	params := Params{"Predictor": cos.Integer(12), "Columns": cos.Integer(4), "Colors": cos.Integer(1), "BitsPerComponent": cos.Integer(8)}
	input := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	encoded, err := c.Encode(input, params)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := c.Decode(encoded, params)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded, input) {
		t.Fatalf("predictor round trip mismatch: got %v want %v", decoded, input)
	}
}

func TestFlateTIFFPredictorUnsupported(t *testing.T) {
	c := flateCodec{}
	params := Params{"Predictor": cos.Integer(2)}
	if _, err := c.Decode(mustEncode(t, []byte("x")), params); err == nil {
		t.Fatalf("TIFF predictor (2) must be rejected as unsupported")
	}
}

func mustEncode(t *testing.T, data []byte) []byte {
	t.Helper()
	c := flateCodec{}
	enc, err := c.Encode(data, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return enc
}
