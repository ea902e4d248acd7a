// Package serializer implements the byte-exact PDF writer (C6): header,
// object, cross-reference, and trailer emission with recorded offsets.
package serializer

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"

	"github.com/aescarias/pdfnaut-go/cos"
)

var utf16Enc = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)

// EncodeTextString renders s as a UTF-16BE-with-BOM PDF text string, never
// plain PDFDocEncoding, so it round-trips through any reader. The writer
// does not apply it by itself: string objects are written with the bytes
// they already hold.
func EncodeTextString(s string) (cos.LiteralString, error) {
	encoded, err := utf16Enc.NewEncoder().String(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid text string: %v", cos.ErrSerialization, err)
	}
	return cos.LiteralString(encoded), nil
}

// DecodeTextString decodes a text string object's raw bytes back into a Go
// string. A leading \xFE\xFF marks UTF-16BE; absent that, the bytes are
// PDFDocEncoding, which for the 7-bit range this module ever produces is
// byte-identical to the Go string, so they're passed through unchanged.
// This is the resolution recorded in SPEC_FULL.md for the BOM-handling open
// question: BOM is always written, and its absence on read means
// PDFDocEncoding rather than an error.
func DecodeTextString(data []byte) (string, error) {
	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		s, err := utf16Enc.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("%w: invalid UTF-16BE text string: %v", cos.ErrSerialization, err)
		}
		return string(s), nil
	}
	return string(data), nil
}
