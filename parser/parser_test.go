package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/aescarias/pdfnaut-go/cos"
)

func parse(t *testing.T, data string) cos.Object {
	t.Helper()
	obj, err := ParseObject([]byte(data))
	if err != nil {
		t.Fatalf("ParseObject(%q): %v", data, err)
	}
	return obj
}

func TestParseScalars(t *testing.T) {
	if got := parse(t, "true"); got != cos.Boolean(true) {
		t.Fatalf("true => %#v", got)
	}
	if got := parse(t, "-17"); got != cos.Integer(-17) {
		t.Fatalf("-17 => %#v", got)
	}
	if got := parse(t, ".5"); got != cos.Real(0.5) {
		t.Fatalf(".5 => %#v", got)
	}
	if got := parse(t, "/Type"); got != cos.Name("Type") {
		t.Fatalf("/Type => %#v", got)
	}
}

func TestParseArray(t *testing.T) {
	got := parse(t, "[1 2 /Three (four)]")
	want := cos.Array{cos.Integer(1), cos.Integer(2), cos.Name("Three"), cos.LiteralString("four")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("array mismatch (-want +got):\n%s", diff)
	}
}

func TestParseIndirectReference(t *testing.T) {
	got := parse(t, "12 0 R")
	want := cos.Reference{ObjectNumber: 12, GenerationNumber: 0}
	if got != want {
		t.Fatalf("reference = %#v, want %#v", got, want)
	}
}

func TestParseBareIntegersNotReference(t *testing.T) {
	// Only two tokens: can't be a reference, falls back to a bare integer.
	p := New([]byte("5 6"))
	first, err := p.ParseObject()
	if err != nil {
		t.Fatalf("ParseObject: %v", err)
	}
	if first != cos.Integer(5) {
		t.Fatalf("first = %#v, want Integer(5)", first)
	}
}

func TestParseDictPreservesOrderAndLastWins(t *testing.T) {
	got := parse(t, "<< /A 1 /B 2 /A 3 >>")
	d, ok := got.(*cos.Dict)
	if !ok {
		t.Fatalf("got %#v, want *cos.Dict", got)
	}
	if keys := d.Keys(); len(keys) != 2 || keys[0] != "A" || keys[1] != "B" {
		t.Fatalf("keys = %v, want [A B] (duplicate key must not reorder or double-insert)", keys)
	}
	v, _ := d.Get("A")
	if v != cos.Integer(3) {
		t.Fatalf("A = %#v, want Integer(3) (last value wins)", v)
	}
}

func TestParseDictNullEntryOmitted(t *testing.T) {
	got := parse(t, "<< /A null /B 1 >>")
	d := got.(*cos.Dict)
	if _, ok := d.Get("A"); ok {
		t.Fatalf("a null-valued entry should be equivalent to an absent entry")
	}
}

func TestContentStreamModeDisablesReferences(t *testing.T) {
	p := New([]byte("1 0 0 RG"))
	p.ContentStreamMode = true
	for _, want := range []cos.Object{cos.Integer(1), cos.Integer(0), cos.Integer(0), cos.Name("RG")} {
		got, err := p.ParseObject()
		if err != nil {
			t.Fatalf("ParseObject: %v", err)
		}
		if got != want {
			t.Fatalf("got %#v, want %#v", got, want)
		}
	}
}

func TestParseObjectDefinition(t *testing.T) {
	num, gen, obj, err := ParseObjectDefinition([]byte("12 0 obj << /Type /Catalog >> endobj"), false)
	if err != nil {
		t.Fatalf("ParseObjectDefinition: %v", err)
	}
	if num != 12 || gen != 0 {
		t.Fatalf("num,gen = %d,%d", num, gen)
	}
	d, ok := obj.(*cos.Dict)
	if !ok {
		t.Fatalf("obj = %#v, want *cos.Dict", obj)
	}
	typ, _ := d.Get("Type")
	if typ != cos.Name("Catalog") {
		t.Fatalf("Type = %#v", typ)
	}
}
