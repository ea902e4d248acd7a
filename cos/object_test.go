package cos

import "testing"

func TestLiteralStringBalancedParensRoundTrip(t *testing.T) {
	s := LiteralString("a(b)c")
	want := `(a\(b\)c)`
	if got := s.PDFString(); got != want {
		t.Fatalf("PDFString() = %q, want %q", got, want)
	}
}

func TestLiteralStringOctalEscapesNonPrintable(t *testing.T) {
	s := LiteralString([]byte{0x41, 0x42, 0x43, 0x00, 0x7f})
	got := s.PDFString()
	want := `(ABC\000\177)`
	if got != want {
		t.Fatalf("PDFString() = %q, want %q", got, want)
	}
}

func TestNameEscapesNonRegularBytes(t *testing.T) {
	n := Name("A B")
	if got := n.PDFString(); got != "/A#20B" {
		t.Fatalf("PDFString() = %q, want /A#20B", got)
	}
}

func TestNamePassesThroughRegularBytes(t *testing.T) {
	n := Name("Type1Font")
	if got := n.PDFString(); got != "/Type1Font" {
		t.Fatalf("PDFString() = %q, want /Type1Font", got)
	}
}

func TestHexStringUppercaseDigits(t *testing.T) {
	s := HexString([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	if got := s.PDFString(); got != "<DEADBEEF>" {
		t.Fatalf("PDFString() = %q, want <DEADBEEF>", got)
	}
}

func TestDictPreservesInsertionOrderOnDuplicateKey(t *testing.T) {
	d := NewDict()
	d.Set("A", Integer(1))
	d.Set("B", Integer(2))
	replaced := d.Set("A", Integer(3))
	if !replaced {
		t.Fatalf("expected Set to report replacement of an existing key")
	}
	if got := d.Keys(); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("Keys() = %v, want [A B] (insertion order preserved)", got)
	}
	v, _ := d.Get("A")
	if v != Integer(3) {
		t.Fatalf("A = %v, want 3 (last write wins)", v)
	}
}

func TestDictPDFStringHasNoSpacesAroundDelimiters(t *testing.T) {
	d := NewDict()
	d.Set("Type", Name("Catalog"))
	d.Set("Pages", Reference{ObjectNumber: 2, GenerationNumber: 0})
	want := "<</Type /Catalog /Pages 2 0 R>>"
	if got := d.PDFString(); got != want {
		t.Fatalf("PDFString() = %q, want %q", got, want)
	}
}

func TestArrayClonesEveryElementIndependently(t *testing.T) {
	a := Array{LiteralString("x"), Integer(1)}
	cloned := a.Clone().(Array)
	cloned[0].(LiteralString)[0] = 'y'
	if string(a[0].(LiteralString)) != "x" {
		t.Fatalf("Clone shared underlying storage: original mutated to %q", a[0])
	}
}
