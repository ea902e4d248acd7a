package xref

import (
	"fmt"

	"github.com/aescarias/pdfnaut-go/cos"
	"github.com/aescarias/pdfnaut-go/lexer"
	"github.com/aescarias/pdfnaut-go/parser"
)

// parseClassicalSection reads one or more "start count" subsections (each
// followed by count 20-byte-style entries) up to the "trailer" keyword, and
// returns the resulting table plus the trailer dictionary that follows.
// tk must already be positioned just past the "xref" keyword.
func parseClassicalSection(tk *lexer.Tokenizer) (*Table, *cos.Dict, error) {
	table := newTable()

	for {
		peek, err := tk.PeekToken()
		if err != nil {
			return nil, nil, err
		}
		if peek.IsKeyword("trailer") {
			_, _ = tk.NextToken()
			break
		}

		start, err := nextInt(tk, "subsection start object number")
		if err != nil {
			return nil, nil, err
		}
		count, err := nextInt(tk, "subsection entry count")
		if err != nil {
			return nil, nil, err
		}

		for i := int64(0); i < count; i++ {
			if err := table.parseClassicalEntry(tk, uint32(start+i)); err != nil {
				return nil, nil, err
			}
		}
	}

	p := parser.NewFromTokenizer(tk)
	obj, err := p.ParseObject()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid trailer dictionary: %v", cos.ErrMalformedXRef, err)
	}
	dict, ok := obj.(*cos.Dict)
	if !ok {
		return nil, nil, fmt.Errorf("%w: trailer is not a dictionary", cos.ErrMalformedXRef)
	}
	return table, dict, nil
}

func (t *Table) parseClassicalEntry(tk *lexer.Tokenizer, objectNumber uint32) error {
	offset, err := nextInt(tk, "entry offset")
	if err != nil {
		return err
	}
	generation, err := nextInt(tk, "entry generation")
	if err != nil {
		return err
	}
	kindTok, err := tk.NextToken()
	if err != nil {
		return err
	}
	if kindTok.Kind != lexer.Keyword {
		return fmt.Errorf("%w: corrupt xref entry", cos.ErrMalformedXRef)
	}

	var entry cos.Entry
	switch kindTok.Value {
	case "f":
		entry = cos.Entry{Kind: cos.EntryFree, NextFree: uint32(offset), NextGeneration: uint16(generation)}
	case "n":
		if offset == 0 {
			// A handful of buggy writers emit an in-use entry with a zero
			// offset; there is nothing useful to record.
			return nil
		}
		entry = cos.Entry{Kind: cos.EntryInUse, Offset: uint64(offset), Generation: uint16(generation)}
	default:
		return fmt.Errorf("%w: unknown entry type %q", cos.ErrMalformedXRef, kindTok.Value)
	}

	if _, has := t.Entries[objectNumber]; !has {
		t.Entries[objectNumber] = entry
	}
	return nil
}

func nextInt(tk *lexer.Tokenizer, what string) (int64, error) {
	tok, err := tk.NextToken()
	if err != nil {
		return 0, err
	}
	if tok.Kind != lexer.Integer {
		return 0, fmt.Errorf("%w: expected %s", cos.ErrMalformedXRef, what)
	}
	return tok.Int()
}
