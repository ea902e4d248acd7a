package xref

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/aescarias/pdfnaut-go/cos"
	"github.com/aescarias/pdfnaut-go/warn"
)

func buildMinimalClassicalPDF() ([]byte, int) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	obj1Offset := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	obj2Offset := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")
	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 3\n")
	buf.WriteString("0000000000 65535 f \n")
	fmt.Fprintf(&buf, "%010d 00000 n \n", obj1Offset)
	fmt.Fprintf(&buf, "%010d 00000 n \n", obj2Offset)
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes(), xrefOffset
}

func TestBuildClassicalXRefAndResolve(t *testing.T) {
	data, _ := buildMinimalClassicalPDF()

	e, err := Build(data, nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if e.Trailer.Root == nil || e.Trailer.Root.ObjectNumber != 1 {
		t.Fatalf("Root = %v", e.Trailer.Root)
	}

	obj, err := e.Resolve(*e.Trailer.Root)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	dict, ok := obj.(*cos.Dict)
	if !ok {
		t.Fatalf("root is not a dict: %T", obj)
	}
	typ, _ := dict.Get("Type")
	if typ != cos.Name("Catalog") {
		t.Fatalf("Type = %v, want Catalog", typ)
	}
}

func TestResolveUndefinedReferenceIsNull(t *testing.T) {
	data, _ := buildMinimalClassicalPDF()
	e, err := Build(data, nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	obj, err := e.Resolve(cos.Reference{ObjectNumber: 99})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := obj.(cos.Null); !ok {
		t.Fatalf("expected Null for undefined object, got %T", obj)
	}
}

func TestBuildRecoversFromCorruptXRefSection(t *testing.T) {
	data, _ := buildMinimalClassicalPDF()
	corrupted := bytes.Replace(data, []byte("xref\n0 3"), []byte("xref\nGARBAGE HERE"), 1)

	e, err := Build(corrupted, warn.New(nil, false), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if e.Trailer.Root == nil {
		t.Fatalf("expected recovery scan to locate /Root")
	}
	obj, err := e.Resolve(*e.Trailer.Root)
	if err != nil {
		t.Fatalf("Resolve after recovery: %v", err)
	}
	if _, ok := obj.(*cos.Dict); !ok {
		t.Fatalf("root not resolved to a dict after recovery: %T", obj)
	}
}

func TestBuildRecoversFromMissingStartXRef(t *testing.T) {
	data, _ := buildMinimalClassicalPDF()
	idx := bytes.Index(data, []byte("startxref"))
	truncated := data[:idx]

	e, err := Build(truncated, warn.New(nil, false), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if e.Trailer.Root == nil || e.Trailer.Root.ObjectNumber != 1 {
		t.Fatalf("Root = %v after recovery", e.Trailer.Root)
	}
}

// xrefStreamRow encodes one 1/4/2-byte-wide cross-reference stream entry.
func xrefStreamRow(kind byte, f2 uint32, f3 uint16) []byte {
	row := make([]byte, 0, 7)
	row = append(row, kind)
	row = append(row, byte(f2>>24), byte(f2>>16), byte(f2>>8), byte(f2))
	row = append(row, byte(f3>>8), byte(f3))
	return row
}

// buildObjectStreamPDF builds a document whose object 3 is stored inside an
// object stream (object 4), and whose cross-reference section is an xref
// stream (object 5) referencing both regular and compressed objects.
func buildObjectStreamPDF(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n")

	obj1Offset := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	obj2Offset := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")

	content := []byte("3 0\n<< /Type /Page /Parent 2 0 R >>")
	first := int(bytes.IndexByte(content, '<'))

	obj4Offset := buf.Len()
	fmt.Fprintf(&buf, "4 0 obj\n<< /Type /ObjStm /N 1 /First %d /Length %d >>\nstream\n", first, len(content))
	buf.Write(content)
	buf.WriteString("\nendstream\nendobj\n")

	xrefOffset := buf.Len()

	var entries bytes.Buffer
	entries.Write(xrefStreamRow(0, 0, 65535))                 // object 0: free
	entries.Write(xrefStreamRow(1, uint32(obj1Offset), 0))    // object 1
	entries.Write(xrefStreamRow(1, uint32(obj2Offset), 0))    // object 2
	entries.Write(xrefStreamRow(2, 4, 0))                     // object 3: compressed in 4, index 0
	entries.Write(xrefStreamRow(1, uint32(obj4Offset), 0))    // object 4
	entries.Write(xrefStreamRow(1, uint32(xrefOffset), 0))    // object 5: this xref stream

	fmt.Fprintf(&buf, "5 0 obj\n<< /Type /XRef /Size 6 /W [1 4 2] /Root 1 0 R /Length %d >>\nstream\n", entries.Len())
	buf.Write(entries.Bytes())
	buf.WriteString("\nendstream\nendobj\n")

	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes()
}

func TestResolveCompressedObjectInObjectStream(t *testing.T) {
	data := buildObjectStreamPDF(t)

	e, err := Build(data, warn.New(nil, false), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	entry, ok := e.Table.Entries[3]
	if !ok || entry.Kind != cos.EntryCompressed {
		t.Fatalf("object 3 entry = %+v, want compressed", entry)
	}

	obj, err := e.Resolve(cos.Reference{ObjectNumber: 3})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	dict, ok := obj.(*cos.Dict)
	if !ok {
		t.Fatalf("object 3 is not a dict: %T", obj)
	}
	typ, _ := dict.Get("Type")
	if typ != cos.Name("Page") {
		t.Fatalf("Type = %v, want Page", typ)
	}
}
