package xref

import (
	"fmt"

	"github.com/aescarias/pdfnaut-go/cos"
)

// Trailer accumulates file-trailer information across every xref section
// merged so far. Fields follow first-wins semantics: the newest section's
// value is set first and older sections may only fill in what's missing,
// matching how a PDF's incremental updates are only required to carry the
// entries they actually changed.
type Trailer struct {
	Root              *cos.Reference
	Info              *cos.Reference
	ID                cos.Array
	Size              int
	Encrypt           cos.Object
	AdditionalStreams cos.Array
}

// mergeInfo applies d's trailer-relevant entries into t wherever t doesn't
// already have a value, and reports the Prev and (if present) XRefStm
// offsets found in d so the caller can continue walking the chain.
func (t *Trailer) mergeInfo(d *cos.Dict) (prev int64, xrefStm int64, hasXRefStm bool, err error) {
	if enc, ok := d.Get("Encrypt"); ok && t.Encrypt == nil {
		t.Encrypt = enc
	}

	if t.Size == 0 {
		size, ok := d.Get("Size")
		if !ok {
			return 0, 0, false, fmt.Errorf("%w: trailer missing /Size", cos.ErrMalformedXRef)
		}
		si, ok := size.(cos.Integer)
		if !ok {
			return 0, 0, false, fmt.Errorf("%w: /Size is not an integer", cos.ErrMalformedXRef)
		}
		t.Size = int(si)
	}

	if t.Root == nil {
		if root, ok := d.Get("Root"); ok {
			if ref, ok := root.(cos.Reference); ok {
				t.Root = &ref
			}
		}
	}

	if t.Info == nil {
		if info, ok := d.Get("Info"); ok {
			if ref, ok := info.(cos.Reference); ok {
				t.Info = &ref
			}
		}
	}

	if t.ID == nil {
		if id, ok := d.Get("ID"); ok {
			if arr, ok := id.(cos.Array); ok {
				t.ID = arr
			}
		}
	}

	if t.AdditionalStreams == nil {
		if streams, ok := d.Get("AdditionalStreams"); ok {
			if arr, ok := streams.(cos.Array); ok {
				t.AdditionalStreams = arr
			}
		}
	}

	prev, _ = offsetFromObject(getOrNil(d, "Prev"))

	if xs, ok := d.Get("XRefStm"); ok {
		if xi, ok := xs.(cos.Integer); ok {
			return prev, int64(xi), true, nil
		}
	}
	return prev, 0, false, nil
}

func getOrNil(d *cos.Dict, key cos.Name) cos.Object {
	v, ok := d.Get(key)
	if !ok {
		return nil
	}
	return v
}

// offsetFromObject accepts either a direct Integer or (non-conformingly,
// but seen in the wild) an indirect reference for a /Prev-shaped value.
func offsetFromObject(o cos.Object) (int64, bool) {
	switch v := o.(type) {
	case cos.Integer:
		return int64(v), true
	case cos.Reference:
		return int64(v.ObjectNumber), true
	default:
		return 0, false
	}
}
