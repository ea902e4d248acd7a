package filter

import (
	"fmt"

	"github.com/aescarias/pdfnaut-go/cos"
)

type runLengthCodec struct{}

// Decode implements RunLengthDecode: a length byte L in 0..127 copies the
// next L+1 bytes literally; L in 129..255 repeats the next single byte
// 257-L times; L == 128 (0x80) ends the stream.
func (runLengthCodec) Decode(data []byte, _ Params) ([]byte, error) {
	var out []byte
	i := 0
	for i < len(data) {
		l := data[i]
		i++
		switch {
		case l == 0x80:
			return out, nil
		case l < 0x80:
			count := int(l) + 1
			if i+count > len(data) {
				return nil, fmt.Errorf("truncated literal run")
			}
			out = append(out, data[i:i+count]...)
			i += count
		default:
			if i >= len(data) {
				return nil, fmt.Errorf("truncated repeat run")
			}
			count := 257 - int(l)
			b := data[i]
			i++
			for j := 0; j < count; j++ {
				out = append(out, b)
			}
		}
	}
	return out, fmt.Errorf("missing EOD marker in encoded stream")
}

// Encode is unsupported: RunLengthDecode is decode-only from upstream
// content, per spec.
func (runLengthCodec) Encode([]byte, Params) ([]byte, error) {
	return nil, fmt.Errorf("%w: RunLengthDecode has no encoder", cos.ErrUnsupportedFilter)
}
