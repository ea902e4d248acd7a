package document

import (
	"fmt"
	"io"
	"sort"

	"github.com/aescarias/pdfnaut-go/cos"
	"github.com/aescarias/pdfnaut-go/serializer"
)

// Write renders the document to dst: either a full rewrite of every live
// object (ignoring IncrementalUpdate when the original chain couldn't be
// followed, since there's no valid Prev offset to chain to) or an
// incremental update that preserves the original bytes verbatim and
// appends only the staged Add/Replace/Free edits.
//
// Adding or replacing a stream while a crypt handler is active sizes
// /Length correctly for objects carried over from Resolve, since
// decrypt-then-reencrypt preserves payload length (RC4 is length
// invariant; AES-CBC's padding is a deterministic function of plaintext
// length). A freshly constructed *cos.Stream passed to Add/Replace must
// set its own /Length to match its own Content before encryption; this
// Writer does not re-measure it after encrypting.
func (d *Document) Write(dst io.Writer) error {
	if d.IsEncrypted() && d.Crypt == nil {
		return fmt.Errorf("%w: ApplyPassword must succeed before writing an encrypted document", cos.ErrBadPassword)
	}

	style := d.cfg.XRefStyle
	if style == XRefAuto {
		if d.Engine.UsedXRefStream {
			style = XRefStream
		} else {
			style = XRefClassical
		}
	}

	if d.cfg.IncrementalUpdate && d.Engine.StartXRefOffset >= 0 {
		return d.writeIncremental(dst, style)
	}
	return d.writeFull(dst, style)
}

func (d *Document) newWriter(dst io.Writer) *serializer.Writer {
	w := serializer.New(dst)
	if d.Crypt != nil {
		w.Crypt = d.Crypt
		if ref, ok := d.Engine.Trailer.Encrypt.(cos.Reference); ok {
			w.EncryptRef = &ref
		}
	}
	return w
}

func (d *Document) baseTrailerDict() *cos.Dict {
	t := cos.NewDict()
	if d.Engine.Trailer.Root != nil {
		t.Set("Root", *d.Engine.Trailer.Root)
	}
	if d.Engine.Trailer.Info != nil {
		t.Set("Info", *d.Engine.Trailer.Info)
	}
	if d.Engine.Trailer.ID != nil {
		t.Set("ID", d.Engine.Trailer.ID)
	}
	if d.Engine.Trailer.Encrypt != nil {
		t.Set("Encrypt", d.Engine.Trailer.Encrypt)
	}
	return t
}

func (d *Document) writeFull(dst io.Writer, style XRefStyle) error {
	w := d.newWriter(dst)
	w.WriteHeader(d.version)

	entries := d.Entries()
	nums := make([]uint32, 0, len(entries))
	for num := range entries {
		if num == 0 {
			continue
		}
		nums = append(nums, num)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	rows := []serializer.Row{{ObjectNumber: 0, Entry: cos.Entry{Kind: cos.EntryFree, NextGeneration: 65535}}}
	for _, num := range nums {
		entry := entries[num]
		if entry.Kind == cos.EntryFree {
			rows = append(rows, serializer.Row{ObjectNumber: num, Entry: entry})
			continue
		}

		gen := entry.Generation
		var obj cos.Object
		if op, ok := d.pending[num]; ok && op.kind != pendingFree {
			gen = op.generation
			obj = op.obj
		} else {
			resolved, err := d.Engine.Resolve(cos.Reference{ObjectNumber: num, GenerationNumber: gen})
			if err != nil {
				return err
			}
			obj = resolved
		}

		offset, err := w.WriteObject(cos.Reference{ObjectNumber: num, GenerationNumber: gen}, obj)
		if err != nil {
			return err
		}
		rows = append(rows, serializer.Row{ObjectNumber: num, Entry: cos.Entry{Kind: cos.EntryInUse, Offset: offset, Generation: gen}})
	}

	trailerDict := d.baseTrailerDict()

	if style == XRefClassical {
		trailerDict.Set("Size", cos.Integer(d.nextObjectNumber))
		startxref, err := w.WriteClassicalXRef(rows)
		if err != nil {
			return err
		}
		return w.WriteTrailer(trailerDict, startxref)
	}

	xrefObjNum := d.nextObjectNumber
	rows = append(rows, serializer.Row{ObjectNumber: xrefObjNum, Entry: cos.Entry{Kind: cos.EntryInUse, Offset: w.Written()}})
	trailerDict.Set("Size", cos.Integer(xrefObjNum+1))
	startxref, err := w.WriteXRefStream(cos.Reference{ObjectNumber: xrefObjNum}, rows, trailerDict, d.Registry)
	if err != nil {
		return err
	}
	w.WriteStartXRefFooter(startxref)
	return w.Err()
}

func (d *Document) writeIncremental(dst io.Writer, style XRefStyle) error {
	w := d.newWriter(dst)
	w.CopyBytes(d.data)

	nums := make([]uint32, 0, len(d.pending))
	for num := range d.pending {
		nums = append(nums, num)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	rows := make([]serializer.Row, 0, len(nums))
	for _, num := range nums {
		op := d.pending[num]
		if op.kind == pendingFree {
			rows = append(rows, serializer.Row{ObjectNumber: num, Entry: cos.Entry{Kind: cos.EntryFree, NextGeneration: op.generation + 1}})
			continue
		}
		offset, err := w.WriteObject(cos.Reference{ObjectNumber: num, GenerationNumber: op.generation}, op.obj)
		if err != nil {
			return err
		}
		rows = append(rows, serializer.Row{ObjectNumber: num, Entry: cos.Entry{Kind: cos.EntryInUse, Offset: offset, Generation: op.generation}})
	}

	trailerDict := d.baseTrailerDict()
	trailerDict.Set("Prev", cos.Integer(d.Engine.StartXRefOffset))

	if style == XRefClassical {
		trailerDict.Set("Size", cos.Integer(d.nextObjectNumber))
		startxref, err := w.WriteClassicalXRef(rows)
		if err != nil {
			return err
		}
		return w.WriteTrailer(trailerDict, startxref)
	}

	xrefObjNum := d.nextObjectNumber
	rows = append(rows, serializer.Row{ObjectNumber: xrefObjNum, Entry: cos.Entry{Kind: cos.EntryInUse, Offset: w.Written()}})
	trailerDict.Set("Size", cos.Integer(xrefObjNum+1))
	startxref, err := w.WriteXRefStream(cos.Reference{ObjectNumber: xrefObjNum}, rows, trailerDict, d.Registry)
	if err != nil {
		return err
	}
	w.WriteStartXRefFooter(startxref)
	return w.Err()
}
