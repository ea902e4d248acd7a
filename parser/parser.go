// Package parser implements the object parser (C2): it consumes tokens
// from the lexer and assembles cos.Object values, recursively, including
// dictionaries, arrays, indirect references and stream bodies.
//
// The parser only handles self-contained chunks (an object definition, a
// trailer dictionary); resolving indirect Length values or decoding stream
// payloads is the xref engine's job, since that requires the merged xref
// map.
package parser

import (
	"errors"
	"fmt"

	"github.com/aescarias/pdfnaut-go/cos"
	"github.com/aescarias/pdfnaut-go/lexer"
	"github.com/aescarias/pdfnaut-go/warn"
)

var (
	errArrayNotTerminated      = fmt.Errorf("%w: unterminated array", cos.ErrMalformedToken)
	errDictionaryCorrupt       = fmt.Errorf("%w: corrupt dictionary", cos.ErrMalformedDictionary)
	errDictionaryNotTerminated = fmt.Errorf("%w: unterminated dictionary", cos.ErrMalformedDictionary)
	errUnexpectedEOF           = fmt.Errorf("%w: unexpected end of input", cos.ErrMalformedToken)
)

// Parser parses cos objects out of a token stream.
type Parser struct {
	tokens *lexer.Tokenizer

	// ContentStreamMode disables indirect-reference recognition so that
	// `1 0 0 RG` tokenizes as three numbers followed by an operator,
	// rather than attempting (and failing) to read a reference.
	ContentStreamMode bool

	// Warn receives non-fatal recovery diagnostics (duplicate dictionary
	// keys, relaxed dictionary-entry recovery). May be nil, in which case
	// warnings are silently dropped and strict-mode escalation is
	// unavailable.
	Warn *warn.Collector
}

// New returns a parser over data.
func New(data []byte) *Parser {
	return &Parser{tokens: lexer.New(data)}
}

// NewFromTokenizer builds a parser sharing an already-positioned
// tokenizer, used by the xref engine to parse an object in place inside a
// larger file buffer.
func NewFromTokenizer(tk *lexer.Tokenizer) *Parser {
	return &Parser{tokens: tk}
}

// Tokens exposes the underlying tokenizer, e.g. so a caller can read the
// `stream` keyword and payload immediately following a parsed dictionary.
func (p *Parser) Tokens() *lexer.Tokenizer { return p.tokens }

// ParseObject tokenizes and parses data as a single PDF object.
func ParseObject(data []byte) (cos.Object, error) {
	p := New(data)
	return p.ParseObject()
}

// ParseObject reads one object starting at the parser's current position,
// leaving the cursor at the first byte after it.
func (p *Parser) ParseObject() (cos.Object, error) {
	tk, err := p.tokens.NextToken()
	if err != nil {
		return nil, err
	}

	switch tk.Kind {
	case lexer.EOF:
		return nil, errUnexpectedEOF
	case lexer.Name:
		return cos.Name(tk.Value), nil
	case lexer.String:
		return cos.LiteralString(tk.Value), nil
	case lexer.StringHex:
		return cos.HexString(tk.Value), nil
	case lexer.StartArray:
		return p.parseArray()
	case lexer.StartDict:
		return p.parseDict()
	case lexer.Real:
		f, err := tk.Float()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", cos.ErrMalformedToken, err)
		}
		return cos.Real(f), nil
	case lexer.Keyword:
		return p.parseKeyword(tk.Value)
	case lexer.Integer:
		return p.parseNumericOrReference(tk)
	default:
		return nil, fmt.Errorf("%w: unexpected token %v", cos.ErrMalformedToken, tk.Kind)
	}
}

func (p *Parser) parseArray() (cos.Array, error) {
	var a cos.Array
	for {
		tk, err := p.tokens.PeekToken()
		if err != nil {
			return nil, err
		}
		switch tk.Kind {
		case lexer.EndArray:
			_, _ = p.tokens.NextToken()
			return a, nil
		case lexer.EOF:
			return nil, errArrayNotTerminated
		default:
			obj, err := p.ParseObject()
			if err != nil {
				return nil, err
			}
			a = append(a, obj)
		}
	}
}

func (p *Parser) parseDict() (*cos.Dict, error) {
	d := cos.NewDict()
	for {
		tk, err := p.tokens.PeekToken()
		if err != nil {
			return nil, err
		}
		switch tk.Kind {
		case lexer.EndDict:
			_, _ = p.tokens.NextToken()
			return d, nil
		case lexer.EOF:
			return nil, errDictionaryNotTerminated
		case lexer.Name:
			key := cos.Name(tk.Value)
			// Read while the key is still the upcoming token, so the flag
			// describes the gap between the key and what follows it.
			eolAfterKey := p.tokens.HasEOLBeforeToken()
			_, _ = p.tokens.NextToken()

			var obj cos.Object
			// Relaxed recovery (non-strict mode only): a key immediately
			// followed by end-of-line with no value is treated as an
			// empty string, matching producers that emit blank form
			// field values this way.
			if eolAfterKey && p.Warn != nil && !p.Warn.Strict() {
				if next, _ := p.tokens.PeekToken(); next.Kind == lexer.Name || next.Kind == lexer.EndDict {
					obj = cos.LiteralString("")
					if werr := p.Warn.Warn(warn.KindMalformedDictionary, int64(p.tokens.CurrentPosition()), cos.ErrMalformedDictionary,
						"dictionary key %q has no value, read as an empty string", key); werr != nil {
						return nil, werr
					}
				}
			}
			if obj == nil {
				obj, err = p.ParseObject()
				if err != nil {
					return nil, err
				}
			}

			// "Specifying the null object as the value of a dictionary
			// entry shall be equivalent to omitting the entry entirely."
			if _, isNull := obj.(cos.Null); isNull {
				continue
			}

			if replaced := d.Set(key, obj); replaced && p.Warn != nil {
				if werr := p.Warn.Warn(warn.KindDuplicateKey, int64(p.tokens.CurrentPosition()), cos.ErrMalformedDictionary,
					"duplicate dictionary key %q, last value wins", key); werr != nil {
					return nil, werr
				}
			}
		default:
			return nil, errDictionaryCorrupt
		}
	}
}

func (p *Parser) parseKeyword(kw string) (cos.Object, error) {
	switch kw {
	case "null":
		return cos.Null{}, nil
	case "true":
		return cos.Boolean(true), nil
	case "false":
		return cos.Boolean(false), nil
	default:
		if p.ContentStreamMode {
			return cos.Name(kw), nil // content-stream operators are opaque to the COS layer
		}
		return nil, fmt.Errorf("%w: unexpected keyword %q", cos.ErrMalformedToken, kw)
	}
}

var refKeyword = lexer.Token{Kind: lexer.Keyword, Value: "R"}

// parseNumericOrReference disambiguates `N G R` from a bare integer by
// peeking two tokens ahead without consuming them unless all three match.
func (p *Parser) parseNumericOrReference(first lexer.Token) (cos.Object, error) {
	i, err := first.Int()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cos.ErrMalformedToken, err)
	}

	if p.ContentStreamMode {
		return cos.Integer(i), nil
	}

	next, err := p.tokens.PeekToken()
	if err != nil {
		return nil, err
	}
	if next.Kind != lexer.Integer {
		return cos.Integer(i), nil
	}
	gen, err := next.Int()
	if err != nil {
		return cos.Integer(i), nil
	}

	nextNext, _ := p.tokens.PeekPeekToken()
	if nextNext != refKeyword {
		return cos.Integer(i), nil
	}

	_, _ = p.tokens.NextToken() // consume generation
	_, _ = p.tokens.NextToken() // consume "R"

	if i < 0 || gen < 0 {
		return nil, fmt.Errorf("%w: negative reference %d %d R", cos.ErrMalformedToken, i, gen)
	}
	return cos.Reference{ObjectNumber: uint32(i), GenerationNumber: uint16(gen)}, nil
}

// ParseObjectDefinition parses an `N G obj ... endobj` wrapper. If
// headerOnly, it stops right after the header and returns a nil object
// (used by the xref engine to validate an offset cheaply).
func ParseObjectDefinition(data []byte, headerOnly bool) (objectNumber, generationNumber int64, obj cos.Object, err error) {
	tk := lexer.New(data)

	numTok, err := tk.NextToken()
	if err != nil {
		return 0, 0, nil, err
	}
	objNr, err := numTok.Int()
	if numTok.Kind != lexer.Integer || err != nil {
		return 0, 0, nil, fmt.Errorf("%w: expected object number", cos.ErrWrongObjectHeader)
	}

	genTok, err := tk.NextToken()
	if err != nil {
		return 0, 0, nil, err
	}
	genNr, err := genTok.Int()
	if genTok.Kind != lexer.Integer || err != nil {
		return 0, 0, nil, fmt.Errorf("%w: expected generation number", cos.ErrWrongObjectHeader)
	}

	kwTok, err := tk.NextToken()
	if err != nil {
		return 0, 0, nil, err
	}
	if !kwTok.IsKeyword("obj") {
		return 0, 0, nil, fmt.Errorf("%w: expected \"obj\" keyword", cos.ErrWrongObjectHeader)
	}

	if headerOnly {
		return objNr, genNr, nil, nil
	}

	p := NewFromTokenizer(tk)
	obj, err = p.ParseObject()
	return objNr, genNr, obj, err
}

// ErrMissingStreamLength is returned when a stream dictionary's Length key
// is absent or not an integer and cannot be deferred further.
var ErrMissingStreamLength = errors.New("parser: stream Length missing or not an integer")
