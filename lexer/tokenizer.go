package lexer

import (
	"encoding/hex"
	"fmt"

	"github.com/aescarias/pdfnaut-go/cos"
)

// ErrUnexpectedByte is returned when a required token cannot be recognized
// at the current position.
type ErrUnexpectedByte struct {
	At       int
	Expected string
}

func (e *ErrUnexpectedByte) Error() string {
	return fmt.Sprintf("unexpected byte at %d, expected %s", e.At, e.Expected)
}

func (e *ErrUnexpectedByte) Unwrap() error { return cos.ErrMalformedToken }

// Tokenizer lexes a PDF byte buffer. It keeps a two-token lookahead buffer
// so the object parser can distinguish `N G R` from a bare integer without
// backtracking.
type Tokenizer struct {
	data []byte

	pos int // scan position, past the end of the farthest-read token

	currentPos int // position just after the "current" (about to be returned) token
	nextPos    int // position just after the n+1 token

	tok1    Token // n+1 lookahead
	err1    error
	tok2    Token // n+2 lookahead
	err2    error

	// contentStreamMode records the mode set by SetContentStreamMode.
	// Lexing does not depend on it.
	contentStreamMode bool

	// sawEOLBeforeNext records whether the whitespace skipped by the most
	// recent lex() call contained a CR or LF, i.e. whether an end-of-line
	// preceded tok2; used by the parser's relaxed dictionary-entry
	// recovery.
	sawEOLBeforeNext bool
}

// New returns a tokenizer over data starting at position 0.
func New(data []byte) *Tokenizer {
	t := &Tokenizer{data: data}
	t.initiateAt(0)
	return t
}

// SetContentStreamMode records whether the input is a content stream. The
// tokenizer produces the same tokens in either mode; reference recognition
// is switched off by the parser's ContentStreamMode instead.
func (t *Tokenizer) SetContentStreamMode(v bool) { t.contentStreamMode = v }

func (t *Tokenizer) initiateAt(pos int) {
	t.currentPos = pos
	t.pos = pos
	t.tok1, t.err1 = t.lex()
	t.nextPos = t.pos
	t.tok2, t.err2 = t.lex()
}

// CurrentPosition returns the byte offset just past the most recently
// returned token (i.e. where the next NextToken() call will start from).
func (t *Tokenizer) CurrentPosition() int { return t.currentPos }

// SetPosition rewinds/advances the tokenizer to an arbitrary offset,
// re-priming the lookahead buffer. Used by the parser's dictionary-mode
// backtracking ("parse strict, retry relaxed").
func (t *Tokenizer) SetPosition(pos int) { t.initiateAt(pos) }

// Bytes returns the remaining unconsumed input starting at CurrentPosition.
func (t *Tokenizer) Bytes() []byte {
	if t.currentPos >= len(t.data) {
		return nil
	}
	return t.data[t.currentPos:]
}

// Len returns the total length of the underlying buffer.
func (t *Tokenizer) Len() int { return len(t.data) }

// PeekToken returns the next token without consuming it.
func (t *Tokenizer) PeekToken() (Token, error) { return t.tok1, t.err1 }

// PeekPeekToken returns the token after the next, without consuming
// either.
func (t *Tokenizer) PeekPeekToken() (Token, error) { return t.tok2, t.err2 }

// HasEOLBeforeToken reports whether the token after the upcoming one (the
// one PeekPeekToken returns) was preceded by an end-of-line while skipping
// whitespace.
func (t *Tokenizer) HasEOLBeforeToken() bool { return t.sawEOLBeforeNext }

// NextToken consumes and returns the next token.
func (t *Tokenizer) NextToken() (Token, error) {
	tk, err := t.tok1, t.err1
	t.tok1, t.err1 = t.tok2, t.err2
	t.currentPos = t.nextPos
	t.nextPos = t.pos
	t.tok2, t.err2 = t.lex()
	return tk, err
}

// SkipBytes consumes exactly n bytes from CurrentPosition (used to read a
// stream payload once `stream\n` has been recognized) and re-primes
// lookahead from the new position.
func (t *Tokenizer) SkipBytes(n int) []byte {
	start := t.currentPos
	end := start + n
	if end > len(t.data) {
		end = len(t.data)
	}
	out := t.data[start:end]
	t.initiateAt(end)
	return out
}

func (t *Tokenizer) read() (byte, bool) {
	if t.pos >= len(t.data) {
		return 0, false
	}
	ch := t.data[t.pos]
	t.pos++
	return ch, true
}

func (t *Tokenizer) unread() { t.pos-- }

func (t *Tokenizer) lex() (Token, error) {
	t.sawEOLBeforeNext = false
	ch, ok := t.read()
	for ok && isWhitespace(ch) {
		if ch == '\n' || ch == '\r' {
			t.sawEOLBeforeNext = true
		}
		ch, ok = t.read()
	}
	if !ok {
		return Token{Kind: EOF}, nil
	}

	switch ch {
	case '[':
		return Token{Kind: StartArray}, nil
	case ']':
		return Token{Kind: EndArray}, nil
	case '/':
		return t.lexName()
	case '>':
		ch, ok = t.read()
		if ch != '>' || !ok {
			return Token{}, &ErrUnexpectedByte{At: t.pos - 1, Expected: "'>' to close dictionary"}
		}
		return Token{Kind: EndDict}, nil
	case '<':
		v, ok := t.read()
		if ok && v == '<' {
			return Token{Kind: StartDict}, nil
		}
		if ok {
			t.unread()
		}
		return t.lexHexString()
	case '%':
		for ok && ch != '\r' && ch != '\n' {
			ch, ok = t.read()
		}
		return t.lex()
	case '(':
		return t.lexLiteralString()
	default:
		t.unread()
		if tok, ok := t.lexNumber(); ok {
			return tok, nil
		}
		return t.lexKeyword()
	}
}

func (t *Tokenizer) lexName() (Token, error) {
	var out []byte
	for {
		ch, ok := t.read()
		if !ok || isDelimiter(ch) {
			if ok {
				t.unread()
			}
			break
		}
		if ch == '#' {
			h1, ok1 := t.read()
			h2, ok2 := t.read()
			if !ok1 || !ok2 {
				return Token{}, &ErrUnexpectedByte{At: t.pos, Expected: "two hex digits after # in name"}
			}
			v1, k1 := hexVal(h1)
			v2, k2 := hexVal(h2)
			if !k1 || !k2 {
				return Token{}, &ErrUnexpectedByte{At: t.pos, Expected: "hex digit in #xx name escape"}
			}
			out = append(out, v1<<4|v2)
			continue
		}
		out = append(out, ch)
	}
	return Token{Kind: Name, Value: string(out)}, nil
}

func (t *Tokenizer) lexHexString() (Token, error) {
	var nibbles []byte
	for {
		ch, ok := t.read()
		if !ok {
			return Token{}, &ErrUnexpectedByte{At: t.pos, Expected: "'>' to close hex string"}
		}
		if isWhitespace(ch) {
			continue
		}
		if ch == '>' {
			break
		}
		v, ok := hexVal(ch)
		if !ok {
			return Token{}, &ErrUnexpectedByte{At: t.pos - 1, Expected: "hex digit"}
		}
		nibbles = append(nibbles, v)
	}
	if len(nibbles)%2 == 1 {
		nibbles = append(nibbles, 0)
	}
	out := make([]byte, len(nibbles)/2)
	for i := range out {
		out[i] = nibbles[2*i]<<4 | nibbles[2*i+1]
	}
	return Token{Kind: StringHex, Value: string(out)}, nil
}

func (t *Tokenizer) lexLiteralString() (Token, error) {
	var out []byte
	depth := 0
	for {
		ch, ok := t.read()
		if !ok {
			return Token{}, &ErrUnexpectedByte{At: t.pos, Expected: "')' to close literal string"}
		}
		switch ch {
		case '(':
			depth++
			out = append(out, ch)
		case ')':
			if depth == 0 {
				return Token{Kind: String, Value: string(out)}, nil
			}
			depth--
			out = append(out, ch)
		case '\\':
			b, consumed, ok2 := t.lexStringEscape()
			if !ok2 {
				return Token{}, &ErrUnexpectedByte{At: t.pos, Expected: "escape sequence in literal string"}
			}
			if consumed {
				out = append(out, b)
			}
		case '\r':
			// bare CR or CRLF normalize to LF.
			nxt, nok := t.read()
			if nok && nxt != '\n' {
				t.unread()
			}
			out = append(out, '\n')
		default:
			out = append(out, ch)
		}
	}
}

// lexStringEscape consumes the byte(s) after a backslash inside a literal
// string. consumed is false for a line-continuation escape, which
// contributes no byte to the decoded string.
func (t *Tokenizer) lexStringEscape() (b byte, consumed bool, ok bool) {
	ch, got := t.read()
	if !got {
		return 0, false, false
	}
	switch ch {
	case 'n':
		return '\n', true, true
	case 'r':
		return '\r', true, true
	case 't':
		return '\t', true, true
	case 'b':
		return '\b', true, true
	case 'f':
		return '\f', true, true
	case '(', ')', '\\':
		return ch, true, true
	case '\r':
		nxt, nok := t.read()
		if nok && nxt != '\n' {
			t.unread()
		}
		return 0, false, true
	case '\n':
		return 0, false, true
	default:
		if ch < '0' || ch > '7' {
			// Backslash before a non-escape character: the backslash is
			// dropped and the character passes through literally.
			return ch, true, true
		}
		octal := ch - '0'
		for i := 0; i < 2; i++ {
			d, dok := t.read()
			if !dok || d < '0' || d > '7' {
				if dok {
					t.unread()
				}
				return octal, true, true
			}
			octal = octal<<3 + (d - '0')
		}
		return octal & 0xff, true, true
	}
}

func (t *Tokenizer) lexNumber() (Token, bool) {
	mark := t.pos
	var out []byte
	hasDigit := false

	ch, ok := t.read()
	if ch == '+' || ch == '-' {
		out = append(out, ch)
		ch, ok = t.read()
	}
	for isDigit(ch) {
		out = append(out, ch)
		hasDigit = true
		ch, ok = t.read()
	}

	isReal := false
	if ch == '.' {
		isReal = true
		out = append(out, ch)
		ch, ok = t.read()
		for isDigit(ch) {
			out = append(out, ch)
			hasDigit = true
			ch, ok = t.read()
		}
	}

	if !hasDigit {
		t.pos = mark
		return Token{}, false
	}

	// Tolerate PostScript exponential notation as a recovery: not emitted
	// by write_object, but some producers emit it.
	if ch == 'e' || ch == 'E' {
		save := t.pos
		exp := []byte{ch}
		ch, ok = t.read()
		if ch == '+' || ch == '-' {
			exp = append(exp, ch)
			ch, ok = t.read()
		}
		expDigit := false
		for isDigit(ch) {
			exp = append(exp, ch)
			expDigit = true
			ch, ok = t.read()
		}
		if expDigit {
			out = append(out, exp...)
			isReal = true
		} else {
			t.pos = save
			ch, ok = t.read()
		}
	}

	if ok {
		t.unread()
	}
	if isReal {
		return Token{Kind: Real, Value: string(out)}, true
	}
	return Token{Kind: Integer, Value: string(out)}, true
}

func (t *Tokenizer) lexKeyword() (Token, error) {
	var out []byte
	ch, ok := t.read()
	if !ok {
		return Token{Kind: EOF}, nil
	}
	out = append(out, ch)
	ch, ok = t.read()
	for ok && !isDelimiter(ch) {
		out = append(out, ch)
		ch, ok = t.read()
	}
	if ok {
		t.unread()
	}
	return Token{Kind: Keyword, Value: string(out)}, nil
}

// DecodeNameEscape is exposed for callers validating standalone name text
// (e.g. crypt filter names in CF dictionaries) without a full tokenizer
// pass.
func DecodeNameEscape(raw string) (string, error) {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] != '#' || i+2 >= len(raw) {
			out = append(out, raw[i])
			continue
		}
		var buf [1]byte
		if _, err := hex.Decode(buf[:], []byte(raw[i+1:i+3])); err != nil {
			return "", err
		}
		out = append(out, buf[0])
		i += 2
	}
	return string(out), nil
}
