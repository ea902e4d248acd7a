package serializer

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/aescarias/pdfnaut-go/cos"
	"github.com/aescarias/pdfnaut-go/filter"
)

// Row is one (object_number, entry) pair destined for a cross-reference
// section.
type Row struct {
	ObjectNumber uint32
	Entry        cos.Entry
}

// BuildSection sorts entries by object number; WriteClassicalXRef and
// WriteXRefStream each further group the sorted rows into contiguous
// subsections.
func BuildSection(entries map[uint32]cos.Entry) []Row {
	rows := make([]Row, 0, len(entries))
	for num, e := range entries {
		rows = append(rows, Row{ObjectNumber: num, Entry: e})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ObjectNumber < rows[j].ObjectNumber })
	return rows
}

type subsection struct {
	start uint32
	rows  []Row
}

func subsections(rows []Row) []subsection {
	var out []subsection
	for _, r := range rows {
		if len(out) > 0 {
			last := &out[len(out)-1]
			prevNum := last.rows[len(last.rows)-1].ObjectNumber
			if r.ObjectNumber == prevNum+1 {
				last.rows = append(last.rows, r)
				continue
			}
		}
		out = append(out, subsection{start: r.ObjectNumber, rows: []Row{r}})
	}
	return out
}

// WriteClassicalXRef emits "xref\n" followed by subsection headers and
// 20-byte-style entry lines, and returns the offset the section itself
// started at (the value write_trailer's startxref should carry). A
// Compressed row has no classical representation (ISO 32000-2 §7.5.4); its
// presence is the caller's signal to use WriteXRefStream instead.
func (w *Writer) WriteClassicalXRef(rows []Row) (uint64, error) {
	for _, r := range rows {
		if r.Entry.Kind == cos.EntryCompressed {
			return 0, fmt.Errorf("%w: classical xref cannot represent a compressed entry (object %d)", cos.ErrSerialization, r.ObjectNumber)
		}
	}

	offset := uint64(w.written)
	var b bytes.Buffer
	b.WriteString("xref\n")
	for _, sub := range subsections(rows) {
		fmt.Fprintf(&b, "%d %d\n", sub.start, len(sub.rows))
		for _, r := range sub.rows {
			switch r.Entry.Kind {
			case cos.EntryFree:
				fmt.Fprintf(&b, "%010d %05d f \n", r.Entry.NextFree, r.Entry.NextGeneration)
			case cos.EntryInUse:
				fmt.Fprintf(&b, "%010d %05d n \n", r.Entry.Offset, r.Entry.Generation)
			}
		}
	}
	w.bytes(b.Bytes())
	if w.err != nil {
		return 0, w.err
	}
	return offset, nil
}

// widthsFor picks the narrowest per-field byte widths (Table 17 /W) that
// accommodate the largest value each field will hold, including an
// optional extra offset hint (the xref stream's own not-yet-known offset,
// since it's part of the very table it describes).
func widthsFor(rows []Row, extraOffsetHint uint64) [3]int {
	var maxOffset, maxStream uint64
	var maxGen, maxIndex uint64
	maxOffset = extraOffsetHint

	for _, r := range rows {
		switch r.Entry.Kind {
		case cos.EntryInUse:
			if r.Entry.Offset > maxOffset {
				maxOffset = r.Entry.Offset
			}
			if uint64(r.Entry.Generation) > maxGen {
				maxGen = uint64(r.Entry.Generation)
			}
		case cos.EntryCompressed:
			if uint64(r.Entry.ContainingStream) > maxStream {
				maxStream = uint64(r.Entry.ContainingStream)
			}
			if uint64(r.Entry.IndexInStream) > maxIndex {
				maxIndex = uint64(r.Entry.IndexInStream)
			}
		case cos.EntryFree:
			if uint64(r.Entry.NextFree) > maxOffset {
				maxOffset = uint64(r.Entry.NextFree)
			}
			if uint64(r.Entry.NextGeneration) > maxGen {
				maxGen = uint64(r.Entry.NextGeneration)
			}
		}
	}

	f2 := byteWidth(maxOffset)
	if sw := byteWidth(maxStream); sw > f2 {
		f2 = sw
	}
	f3 := byteWidth(maxGen)
	if iw := byteWidth(maxIndex); iw > f3 {
		f3 = iw
	}
	return [3]int{1, f2, f3}
}

func byteWidth(v uint64) int {
	n := 1
	for v >= uint64(1)<<(8*uint(n)) {
		n++
	}
	return n
}

func putUint(v uint64, width int) []byte {
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

// WriteXRefStream builds and writes the cross-reference stream object
// identified by ref, embedding the trailer's Size/Root/Info/Prev/ID fields
// (carried in trailerDict, which must not already set Type/W/Index/Length/
// Filter) directly in its dictionary, FlateDecode-compressed. It returns
// the offset the stream object itself starts at, which is the startxref
// value for this section. The stream is written with no encryption and no
// Crypt filter, per ISO 32000-2 §7.5.8.2.
func (w *Writer) WriteXRefStream(ref cos.Reference, rows []Row, trailerDict *cos.Dict, registry *filter.Registry) (uint64, error) {
	widths := widthsFor(rows, uint64(w.written))

	var body bytes.Buffer
	indexArr := make(cos.Array, 0, 2)
	for _, sub := range subsections(rows) {
		indexArr = append(indexArr, cos.Integer(sub.start), cos.Integer(len(sub.rows)))
		for _, r := range sub.rows {
			var kind byte
			var f2, f3 uint64
			switch r.Entry.Kind {
			case cos.EntryFree:
				kind, f2, f3 = 0, uint64(r.Entry.NextFree), uint64(r.Entry.NextGeneration)
			case cos.EntryInUse:
				kind, f2, f3 = 1, r.Entry.Offset, uint64(r.Entry.Generation)
			case cos.EntryCompressed:
				kind, f2, f3 = 2, uint64(r.Entry.ContainingStream), uint64(r.Entry.IndexInStream)
			}
			body.Write([]byte{kind})
			body.Write(putUint(f2, widths[1]))
			body.Write(putUint(f3, widths[2]))
		}
	}

	encoded, err := registry.Encode(body.Bytes(), filter.Chain{{Name: filter.FlateDecode, Params: filter.Params{}}})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", cos.ErrSerialization, err)
	}

	d := trailerDict.Clone().(*cos.Dict)
	d.Set("Type", cos.Name("XRef"))
	d.Set("W", cos.Array{cos.Integer(widths[0]), cos.Integer(widths[1]), cos.Integer(widths[2])})
	d.Set("Index", indexArr)
	d.Set("Filter", cos.Name(filter.FlateDecode))
	d.Set("Length", cos.Integer(len(encoded)))

	return w.writeObjectRaw(ref, &cos.Stream{Dict: d, Content: encoded})
}
