package xref

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/aescarias/pdfnaut-go/cos"
	"github.com/aescarias/pdfnaut-go/parser"
)

// decodeObjectStream parses a decoded object stream's prolog (N pairs of
// object-number/offset, relative to First) and splits the remaining body
// into one cos.Object per compressed member, in stream order.
func decodeObjectStream(decoded []byte, first int64, n int) ([]cos.Object, error) {
	if first < 0 || first > int64(len(decoded)) {
		return nil, fmt.Errorf("%w: object stream /First out of range", cos.ErrMalformedStream)
	}
	prolog := decoded[:first]
	// Some writers separate prolog fields with NUL instead of whitespace.
	prolog = bytes.ReplaceAll(prolog, []byte{0x00}, []byte{0x20})
	fields := bytes.Fields(prolog)
	if len(fields) < 2*n {
		return nil, fmt.Errorf("%w: object stream prolog too short for /N=%d", cos.ErrMalformedStream, n)
	}

	offsets := make([]int64, n)
	for i := 0; i < n; i++ {
		off, err := strconv.ParseInt(string(fields[2*i+1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad offset in object stream prolog: %v", cos.ErrMalformedStream, err)
		}
		offsets[i] = first + off
		if offsets[i] > int64(len(decoded)) {
			return nil, fmt.Errorf("%w: object stream member offset out of range", cos.ErrMalformedStream)
		}
	}

	out := make([]cos.Object, n)
	for i := range out {
		start, end := offsets[i], int64(len(decoded))
		if i+1 < n {
			end = offsets[i+1]
		}
		obj, err := parser.ParseObject(decoded[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: object stream member %d: %v", cos.ErrMalformedStream, i, err)
		}
		out[i] = obj
	}
	return out, nil
}
