package xref

import (
	"fmt"

	"github.com/aescarias/pdfnaut-go/cos"
	"github.com/aescarias/pdfnaut-go/filter"
)

// streamFields holds an xref stream dictionary's Table 17 fields.
type streamFields struct {
	w     [3]int
	index [][2]int64
	size  int64
}

func (s streamFields) entrySize() int { return s.w[0] + s.w[1] + s.w[2] }

func (s streamFields) count() int64 {
	var total int64
	for _, sub := range s.index {
		total += sub[1]
	}
	return total
}

func parseStreamFields(d *cos.Dict) (streamFields, error) {
	var out streamFields

	sizeObj, ok := d.Get("Size")
	if !ok {
		return out, fmt.Errorf("%w: xref stream missing /Size", cos.ErrMalformedXRef)
	}
	size, ok := sizeObj.(cos.Integer)
	if !ok {
		return out, fmt.Errorf("%w: xref stream /Size is not an integer", cos.ErrMalformedXRef)
	}
	out.size = int64(size)

	wObj, ok := d.Get("W")
	if !ok {
		return out, fmt.Errorf("%w: xref stream missing /W", cos.ErrMalformedXRef)
	}
	wArr, ok := wObj.(cos.Array)
	if !ok || len(wArr) < 3 {
		return out, fmt.Errorf("%w: xref stream /W must be an array of 3 integers", cos.ErrMalformedXRef)
	}
	for i := 0; i < 3; i++ {
		wi, ok := wArr[i].(cos.Integer)
		if !ok || wi < 0 {
			return out, fmt.Errorf("%w: xref stream /W entry %d is invalid", cos.ErrMalformedXRef, i)
		}
		out.w[i] = int(wi)
	}

	if idxObj, ok := d.Get("Index"); ok {
		idxArr, ok := idxObj.(cos.Array)
		if !ok || len(idxArr)%2 != 0 {
			return out, fmt.Errorf("%w: xref stream /Index is malformed", cos.ErrMalformedXRef)
		}
		for i := 0; i < len(idxArr); i += 2 {
			first, ok1 := idxArr[i].(cos.Integer)
			n, ok2 := idxArr[i+1].(cos.Integer)
			if !ok1 || !ok2 {
				return out, fmt.Errorf("%w: xref stream /Index entries must be integers", cos.ErrMalformedXRef)
			}
			out.index = append(out.index, [2]int64{int64(first), int64(n)})
		}
	} else {
		out.index = [][2]int64{{0, out.size}}
	}

	return out, nil
}

func bufToUint(buf []byte) uint64 {
	var v uint64
	for _, b := range buf {
		v = v<<8 | uint64(b)
	}
	return v
}

// decodeStreamEntries parses the (already filter-decoded) body of an xref
// stream into a Table, per fields.
func decodeStreamEntries(decoded []byte, fields streamFields) (*Table, error) {
	table := newTable()

	entrySize := fields.entrySize()
	count := fields.count()
	need := int64(entrySize) * count
	if int64(len(decoded)) < need {
		return nil, fmt.Errorf("%w: xref stream shorter than declared entries (%d < %d)", cos.ErrMalformedXRef, len(decoded), need)
	}
	decoded = decoded[:need]

	w0, w1, w2 := fields.w[0], fields.w[1], fields.w[2]

	j := int64(0)
	for _, sub := range fields.index {
		first, n := sub[0], sub[1]
		for i := int64(0); i < n; i++ {
			objectNumber := uint32(first + i)
			base := j * int64(entrySize)
			row := decoded[base : base+int64(entrySize)]

			fieldType := int64(1)
			if w0 > 0 {
				fieldType = int64(bufToUint(row[:w0]))
			}
			f2 := bufToUint(row[w0 : w0+w1])
			f3 := bufToUint(row[w0+w1 : w0+w1+w2])

			var entry cos.Entry
			switch fieldType {
			case 0:
				entry = cos.Entry{Kind: cos.EntryFree, NextFree: uint32(f2), NextGeneration: uint16(f3)}
			case 1:
				entry = cos.Entry{Kind: cos.EntryInUse, Offset: f2, Generation: uint16(f3)}
			case 2:
				entry = cos.Entry{Kind: cos.EntryCompressed, ContainingStream: uint32(f2), IndexInStream: uint32(f3)}
			default:
				j++
				continue
			}

			if _, has := table.Entries[objectNumber]; !has {
				table.Entries[objectNumber] = entry
			}
			j++
		}
	}

	return table, nil
}

// decodeXRefStreamPayload applies the stream's own filter chain. Per ISO
// 32000-2 7.5.8.2, a cross-reference stream shall not itself be encrypted,
// so no CryptResolver is consulted here regardless of the document's
// security handler.
func decodeXRefStreamPayload(registry *filter.Registry, content []byte, d *cos.Dict) ([]byte, error) {
	filterObj, _ := getDirect(d, "Filter")
	paramsObj, _ := getDirect(d, "DecodeParms")
	chain, err := filter.ChainFromStreamDict(filterObj, paramsObj)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return content, nil
	}
	return registry.Decode(content, chain)
}

func getDirect(d *cos.Dict, key cos.Name) (cos.Object, bool) {
	return d.Get(key)
}
