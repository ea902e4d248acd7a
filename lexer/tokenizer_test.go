package lexer

import "testing"

func tokenize(t *testing.T, data string) []Token {
	t.Helper()
	tk := New([]byte(data))
	var out []Token
	for {
		tok, err := tk.NextToken()
		if err != nil {
			t.Fatalf("NextToken: %v", err)
		}
		if tok.Kind == EOF {
			break
		}
		out = append(out, tok)
	}
	return out
}

func TestOctalEscape(t *testing.T) {
	toks := tokenize(t, `(\101\102\103)`)
	if len(toks) != 1 || toks[0].Kind != String {
		t.Fatalf("want one String token, got %v", toks)
	}
	if got, want := toks[0].Value, "ABC"; got != want {
		t.Fatalf("octal decode = %q, want %q", got, want)
	}
}

func TestNameHashEscape(t *testing.T) {
	toks := tokenize(t, `/A#20B`)
	if len(toks) != 1 || toks[0].Kind != Name {
		t.Fatalf("want one Name token, got %v", toks)
	}
	if got, want := toks[0].Value, "A B"; got != want {
		t.Fatalf("name decode = %q, want %q", got, want)
	}
}

func TestLiteralStringBalance(t *testing.T) {
	toks := tokenize(t, `(a(b)c)`)
	if len(toks) != 1 || toks[0].Kind != String {
		t.Fatalf("want one String token, got %v", toks)
	}
	if got, want := toks[0].Value, "a(b)c"; got != want {
		t.Fatalf("literal decode = %q, want %q", got, want)
	}
}

func TestLineContinuation(t *testing.T) {
	toks := tokenize(t, "(a\\\nb)")
	if len(toks) != 1 || toks[0].Value != "ab" {
		t.Fatalf("line continuation should drop the escaped EOL, got %q", toks[0].Value)
	}
}

func TestHexStringOddPad(t *testing.T) {
	toks := tokenize(t, "<48656C6C6F2>")
	if len(toks) != 1 || toks[0].Kind != StringHex {
		t.Fatalf("want one StringHex token, got %v", toks)
	}
	want := "Hello\x20"
	_ = want
	if len(toks[0].Value) != 6 {
		t.Fatalf("odd hex digit count should pad with trailing 0, got %d bytes", len(toks[0].Value))
	}
}

func TestHexStringWhitespaceIgnored(t *testing.T) {
	toks := tokenize(t, "<48 65 6C 6C 6F>")
	if len(toks) != 1 || toks[0].Value != "Hello" {
		t.Fatalf("whitespace inside hex string should be ignored, got %q", toks[0].Value)
	}
}

func TestNumericGrammar(t *testing.T) {
	cases := map[string]Kind{
		".25": Real,
		"10.": Real,
		"-3":  Integer,
		"+17": Integer,
		"0":   Integer,
	}
	for input, want := range cases {
		toks := tokenize(t, input)
		if len(toks) != 1 || toks[0].Kind != want {
			t.Fatalf("tokenize(%q) = %v, want single %v token", input, toks, want)
		}
	}
}

func TestIndirectReferenceLookahead(t *testing.T) {
	tk := New([]byte("123 0 R"))
	first, err := tk.PeekToken()
	if err != nil || first.Kind != Integer || first.Value != "123" {
		t.Fatalf("PeekToken = %v, %v", first, err)
	}
	second, err := tk.PeekPeekToken()
	if err != nil || second.Kind != Integer || second.Value != "0" {
		t.Fatalf("PeekPeekToken = %v, %v", second, err)
	}
}

func TestContentStreamOperatorsStayNumbers(t *testing.T) {
	tk := New([]byte("1 0 0 RG"))
	tk.SetContentStreamMode(true)
	var kinds []Kind
	for {
		tok, err := tk.NextToken()
		if err != nil {
			t.Fatalf("NextToken: %v", err)
		}
		if tok.Kind == EOF {
			break
		}
		kinds = append(kinds, tok.Kind)
	}
	want := []Kind{Integer, Integer, Integer, Keyword}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds[%d] = %v, want %v", i, kinds[i], want[i])
		}
	}
}
