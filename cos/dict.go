package cos

import "strings"

// Dict is a PDF dictionary object. Unlike a bare Go map, it preserves
// insertion order, since serialization must reproduce the key order the
// document was written with.
type Dict struct {
	keys   []Name
	values map[Name]Object
}

// NewDict returns an empty, order-preserving dictionary.
func NewDict() *Dict {
	return &Dict{values: map[Name]Object{}}
}

// Set inserts or overwrites key. It reports whether key already existed;
// callers (the parser) use that to decide whether a duplicate-key warning
// is warranted. Last write wins, matching the order the keys were set in.
func (d *Dict) Set(key Name, value Object) (replaced bool) {
	if d.values == nil {
		d.values = map[Name]Object{}
	}
	if _, ok := d.values[key]; ok {
		d.values[key] = value
		return true
	}
	d.keys = append(d.keys, key)
	d.values[key] = value
	return false
}

// Get returns the value for key, and whether it was present.
func (d *Dict) Get(key Name) (Object, bool) {
	if d == nil || d.values == nil {
		return nil, false
	}
	v, ok := d.values[key]
	return v, ok
}

// GetOrNull returns the value for key if present, else Null.
func (d *Dict) GetOrNull(key Name) Object {
	if v, ok := d.Get(key); ok {
		return v
	}
	return Null{}
}

// Keys returns the dictionary's keys in insertion order.
func (d *Dict) Keys() []Name {
	if d == nil {
		return nil
	}
	return d.keys
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

func (d *Dict) Clone() Object {
	out := NewDict()
	for _, k := range d.Keys() {
		v := d.values[k]
		if v != nil {
			v = v.Clone()
		}
		out.Set(k, v)
	}
	return out
}

func (d *Dict) String() string { return d.PDFString() }

func (d *Dict) PDFString() string {
	var b strings.Builder
	b.WriteString("<<")
	for i, k := range d.Keys() {
		if i > 0 {
			b.WriteByte(' ')
		}
		v := d.values[k]
		b.WriteString(Name(k).PDFString())
		b.WriteByte(' ')
		if v == nil {
			b.WriteString("null")
		} else {
			b.WriteString(v.PDFString())
		}
	}
	b.WriteString(">>")
	return b.String()
}
