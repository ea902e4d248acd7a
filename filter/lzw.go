package filter

import (
	"bytes"
	"io"

	"github.com/hhrutter/lzw"
)

// lzwCodec wires the registry to github.com/hhrutter/lzw, the teacher's
// own dependency for this filter (the standard compress/lzw doesn't
// support PDF's EarlyChange variant).
type lzwCodec struct{}

func (lzwCodec) Decode(data []byte, params Params) ([]byte, error) {
	earlyChange := params.IntParam("EarlyChange", 1) != 0
	r := lzw.NewReader(bytes.NewReader(data), earlyChange)
	defer r.Close()
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return applyPredictorDecode(decoded, params)
}

func (lzwCodec) Encode(data []byte, params Params) ([]byte, error) {
	earlyChange := params.IntParam("EarlyChange", 1) != 0
	encoded, err := applyPredictorEncode(data, params)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, earlyChange)
	if _, err := w.Write(encoded); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
