package serializer

import (
	"bytes"
	"fmt"

	"github.com/aescarias/pdfnaut-go/cos"
)

// CryptHandler supplies string/stream encryption to the serializer,
// decoupling C6 from C4 the same way xref.CryptHandler decouples C5 from
// C4. *crypt.Handler satisfies this structurally.
type CryptHandler interface {
	EncryptString(ref cos.Reference, data []byte) ([]byte, error)
	EncryptStream(ref cos.Reference, data []byte) ([]byte, error)
}

// serializeValue renders obj as it appears in the body of the object
// identified by ref, encrypting literal/hex strings through crypt when
// crypt is non-nil. Per spec, the Encrypt dictionary and the trailer ID
// are never themselves encrypted; callers arrange for crypt to be nil in
// that case (see Writer.WriteObject).
func serializeValue(obj cos.Object, ref cos.Reference, crypt CryptHandler) (string, error) {
	switch v := obj.(type) {
	case nil, cos.Null:
		return "null", nil
	case cos.LiteralString:
		data, err := encryptStringBytes([]byte(v), ref, crypt)
		if err != nil {
			return "", err
		}
		return cos.LiteralString(data).PDFString(), nil
	case cos.HexString:
		data, err := encryptStringBytes([]byte(v), ref, crypt)
		if err != nil {
			return "", err
		}
		return cos.HexString(data).PDFString(), nil
	case cos.Array:
		var b bytes.Buffer
		b.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				b.WriteByte(' ')
			}
			s, err := serializeValue(item, ref, crypt)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		}
		b.WriteByte(']')
		return b.String(), nil
	case *cos.Dict:
		var b bytes.Buffer
		b.WriteString("<<")
		for i, k := range v.Keys() {
			if i > 0 {
				b.WriteByte(' ')
			}
			val, _ := v.Get(k)
			b.WriteString(cos.Name(k).PDFString())
			b.WriteByte(' ')
			s, err := serializeValue(val, ref, crypt)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		}
		b.WriteString(">>")
		return b.String(), nil
	case *cos.Stream:
		// A Stream only ever appears as the top-level object body;
		// Writer.writeObject handles that case directly. Nested streams
		// aren't valid PDF, so fall back to the summary string.
		return v.PDFString(), nil
	default:
		return obj.PDFString(), nil
	}
}

func encryptStringBytes(data []byte, ref cos.Reference, crypt CryptHandler) ([]byte, error) {
	if crypt == nil {
		return data, nil
	}
	enc, err := crypt.EncryptString(ref, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cos.ErrSerialization, err)
	}
	return enc, nil
}
