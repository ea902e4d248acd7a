package serializer

import (
	"bytes"
	"fmt"
	"io"

	"github.com/aescarias/pdfnaut-go/cos"
)

// Writer is the stateful byte buffer C6 describes: it emits PDF bytes to
// dst, tracking the running byte offset so callers can record where each
// object, and the cross-reference section itself, begins.
type Writer struct {
	dst     io.Writer
	err     error
	written int64

	// Crypt, when non-nil, encrypts every literal/hex string and every
	// stream payload written via WriteObject. EncryptRef, if set, names
	// the Encrypt dictionary's own object: writes to that object bypass
	// Crypt, since the Encrypt dictionary is never itself encrypted.
	Crypt      CryptHandler
	EncryptRef *cos.Reference
}

// New returns a Writer emitting to dst.
func New(dst io.Writer) *Writer {
	return &Writer{dst: dst}
}

// Written returns the number of bytes emitted so far; it is also the byte
// offset the next write will start at.
func (w *Writer) Written() uint64 { return uint64(w.written) }

// Err returns the first write error encountered, if any. Once set, further
// writes on this Writer are no-ops.
func (w *Writer) Err() error { return w.err }

func (w *Writer) bytes(b []byte) {
	if w.err != nil {
		return
	}
	n, err := w.dst.Write(b)
	w.written += int64(n)
	if err != nil {
		w.err = err
	}
}

// CopyBytes appends raw bytes verbatim. Used for incremental-update mode,
// where the original file's bytes are preserved byte-for-byte and only a
// new section is appended after them.
func (w *Writer) CopyBytes(raw []byte) {
	w.bytes(raw)
}

// WriteHeader emits the PDF header line plus the binary-content marker
// comment (ISO 32000-2 §7.5.2): %PDF-<version>\n followed by a comment
// line of four bytes above 0x7F, so byte-oriented tools treat the file as
// binary.
func (w *Writer) WriteHeader(version string) {
	w.bytes([]byte(fmt.Sprintf("%%PDF-%s\n", version)))
	w.bytes([]byte{'%', 0xE2, 0xE3, 0xCF, 0xD3, '\n'})
}

// WriteObject emits "N G obj\n<body>\nendobj\n" at the current offset and
// returns that offset. For a *cos.Stream, the dictionary is followed by
// "stream\n<payload>\nendstream". Strings and stream payloads are
// encrypted through w.Crypt unless ref is w.EncryptRef.
func (w *Writer) WriteObject(ref cos.Reference, obj cos.Object) (uint64, error) {
	crypt := w.Crypt
	if w.EncryptRef != nil && *w.EncryptRef == ref {
		crypt = nil
	}
	return w.writeObject(ref, obj, crypt)
}

// writeObjectRaw writes obj with no encryption applied regardless of
// w.Crypt/w.EncryptRef. Used for cross-reference streams, which per ISO
// 32000-2 §7.5.8.2 are never encrypted.
func (w *Writer) writeObjectRaw(ref cos.Reference, obj cos.Object) (uint64, error) {
	return w.writeObject(ref, obj, nil)
}

func (w *Writer) writeObject(ref cos.Reference, obj cos.Object, crypt CryptHandler) (uint64, error) {
	offset := uint64(w.written)
	w.bytes([]byte(fmt.Sprintf("%d %d obj\n", ref.ObjectNumber, ref.GenerationNumber)))

	switch v := obj.(type) {
	case *cos.Stream:
		dictStr, err := serializeValue(v.Dict, ref, crypt)
		if err != nil {
			return 0, err
		}
		w.bytes([]byte(dictStr))

		payload := v.Content
		if crypt != nil {
			enc, err := crypt.EncryptStream(ref, payload)
			if err != nil {
				return 0, fmt.Errorf("%w: %v", cos.ErrSerialization, err)
			}
			payload = enc
		}
		w.bytes([]byte("\nstream\n"))
		w.bytes(payload)
		w.bytes([]byte("\nendstream"))
	default:
		s, err := serializeValue(obj, ref, crypt)
		if err != nil {
			return 0, err
		}
		w.bytes([]byte(s))
	}

	w.bytes([]byte("\nendobj\n"))
	if w.err != nil {
		return 0, w.err
	}
	return offset, nil
}

// WriteTrailer emits the classical "trailer\n<<dict>>\nstartxref\n<offset>\n%%EOF\n"
// footer. Used only in classical xref mode; stream xref mode embeds the
// trailer fields inside the xref stream's own dictionary instead (see
// WriteXRefStream) and calls WriteStartXRefFooter directly.
func (w *Writer) WriteTrailer(dict *cos.Dict, startxref uint64) error {
	s, err := serializeValue(dict, cos.Reference{}, nil)
	if err != nil {
		return err
	}
	var b bytes.Buffer
	b.WriteString("trailer\n")
	b.WriteString(s)
	b.WriteByte('\n')
	w.bytes(b.Bytes())
	w.WriteStartXRefFooter(startxref)
	return w.err
}

// WriteStartXRefFooter emits "startxref\n<offset>\n%%EOF\n".
func (w *Writer) WriteStartXRefFooter(startxref uint64) {
	w.bytes([]byte(fmt.Sprintf("startxref\n%d\n%%%%EOF\n", startxref)))
}
