package filter

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/aescarias/pdfnaut-go/cos"
)

type flateCodec struct{}

func (flateCodec) Decode(data []byte, params Params) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return applyPredictorDecode(raw, params)
}

func (flateCodec) Encode(data []byte, params Params) ([]byte, error) {
	encoded, err := applyPredictorEncode(data, params)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(encoded); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type predictorParams struct {
	predictor int
	colors    int
	bpc       int
	columns   int
}

func readPredictorParams(params Params) (predictorParams, error) {
	predictor := params.IntParam("Predictor", 1)
	switch predictor {
	case 1, 2, 10, 11, 12, 13, 14, 15:
	default:
		return predictorParams{}, fmt.Errorf("unexpected Predictor: %d", predictor)
	}
	colors := params.IntParam("Colors", 1)
	if colors <= 0 {
		return predictorParams{}, fmt.Errorf("Colors must be > 0, got %d", colors)
	}
	bpc := params.IntParam("BitsPerComponent", 8)
	switch bpc {
	case 1, 2, 4, 8, 16:
	default:
		return predictorParams{}, fmt.Errorf("unexpected BitsPerComponent: %d", bpc)
	}
	columns := params.IntParam("Columns", 1)
	return predictorParams{predictor: predictor, colors: colors, bpc: bpc, columns: columns}, nil
}

func (p predictorParams) rowSize() int {
	return (p.bpc*p.colors*p.columns + 7) / 8
}

// applyPredictorDecode reverses the PNG (predictor>=10) row filters applied
// before Flate compression. Predictor 2 (TIFF) is explicitly unsupported,
// per spec.
func applyPredictorDecode(raw []byte, rawParams Params) ([]byte, error) {
	if rawParams == nil {
		return raw, nil
	}
	p, err := readPredictorParams(rawParams)
	if err != nil {
		return nil, err
	}
	if p.predictor == 1 {
		return raw, nil
	}
	if p.predictor == 2 {
		return nil, fmt.Errorf("%w: TIFF predictor (2) is not supported", cos.ErrUnsupportedFilter)
	}

	bytesPerPixel := (p.bpc*p.colors + 7) / 8
	rowSize := p.rowSize() + 1 // +1 for the PNG filter-type byte

	cr := make([]byte, rowSize)
	pr := make([]byte, rowSize)
	var out []byte

	r := bytes.NewReader(raw)
	for {
		_, err := io.ReadFull(r, cr)
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, err
		}
		d, err := unfilterRow(pr, cr, bytesPerPixel)
		if err != nil {
			return nil, err
		}
		out = append(out, d...)
		pr, cr = cr, pr
	}
	return out, nil
}

func unfilterRow(pr, cr []byte, bytesPerPixel int) ([]byte, error) {
	cdat := cr[1:]
	pdat := pr[1:]
	switch cr[0] {
	case 0:
	case 1:
		for i := bytesPerPixel; i < len(cdat); i++ {
			cdat[i] += cdat[i-bytesPerPixel]
		}
	case 2:
		for i := range cdat {
			cdat[i] += pdat[i]
		}
	case 3:
		for i := 0; i < bytesPerPixel && i < len(cdat); i++ {
			cdat[i] += pdat[i] / 2
		}
		for i := bytesPerPixel; i < len(cdat); i++ {
			cdat[i] += byte((int(cdat[i-bytesPerPixel]) + int(pdat[i])) / 2)
		}
	case 4:
		filterPaeth(cdat, pdat, bytesPerPixel)
	default:
		return nil, fmt.Errorf("unknown PNG row filter type %d", cr[0])
	}
	return cdat, nil
}

func absInt32(x int32) int32 {
	m := x >> 31
	return (x ^ m) - m
}

func filterPaeth(cdat, pdat []byte, bytesPerPixel int) {
	var a, b, c, pa, pb, pc int32
	for i := 0; i < bytesPerPixel; i++ {
		a, c = 0, 0
		for j := i; j < len(cdat); j += bytesPerPixel {
			b = int32(pdat[j])
			pa = absInt32(b - c)
			pb = absInt32(a - c)
			pc = absInt32((a - c) + (b - c))
			switch {
			case pa <= pb && pa <= pc:
				// a is predictor
			case pb <= pc:
				a = b
			default:
				a = c
			}
			a = (a + int32(cdat[j])) & 0xff
			cdat[j] = byte(a)
			c = b
		}
	}
}

// applyPredictorEncode applies the PNG "None" row filter (type 0) before
// compression: a conservative, always-correct encoder that the decoder
// above can always reverse, at the cost of extra size versus Sub/Up/
// Average/Paeth. Matching the teacher, predictor-aware encoding is a
// decode-side concern here; producers that want tighter output should
// apply their own row filter before calling Encode.
func applyPredictorEncode(raw []byte, rawParams Params) ([]byte, error) {
	if rawParams == nil {
		return raw, nil
	}
	p, err := readPredictorParams(rawParams)
	if err != nil {
		return nil, err
	}
	if p.predictor == 1 {
		return raw, nil
	}
	if p.predictor == 2 {
		return nil, fmt.Errorf("%w: TIFF predictor (2) is not supported", cos.ErrUnsupportedFilter)
	}
	rowSize := p.rowSize()
	if rowSize == 0 {
		return raw, nil
	}
	var out []byte
	for off := 0; off < len(raw); off += rowSize {
		end := off + rowSize
		if end > len(raw) {
			end = len(raw)
		}
		out = append(out, 0) // filter type: None
		out = append(out, raw[off:end]...)
	}
	return out, nil
}
