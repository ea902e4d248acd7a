// Package document wires the tokenizer, parser, filter registry, security
// handler, xref engine, and serializer into the top-level per-document
// public API (Open / ApplyPassword / Resolve / Add / Replace / Free /
// Write).
package document

import "github.com/aescarias/pdfnaut-go/crypt"

// XRefStyle selects the cross-reference form Write emits.
type XRefStyle int

const (
	// XRefAuto keeps whichever form the opened document already used
	// (Engine.UsedXRefStream), or Classical for a document built from
	// scratch.
	XRefAuto XRefStyle = iota
	XRefClassical
	XRefStream
)

// Config holds the per-document options spec.md §6 names.
type Config struct {
	// Strict elevates recovery warnings (bad startxref, missing Length,
	// corrupt xref sections) to returned errors instead of silently
	// recovering.
	Strict bool
	// XRefStyle chooses the cross-reference form Write emits.
	XRefStyle XRefStyle
	// IncrementalUpdate, if true on Write, preserves the original input
	// bytes verbatim and appends only the new section; if false, the
	// whole file is rewritten from the resolved object graph.
	IncrementalUpdate bool
	// CryptProvider supplies the cipher primitives ApplyPassword needs
	// once an /Encrypt dictionary is found. Nil is fine for documents
	// that turn out not to be encrypted.
	CryptProvider crypt.Provider
}

// DefaultConfig returns the zero-friendly default: relaxed recovery,
// auto-detected xref style, full rewrite on Write, and no crypt provider
// (ApplyPassword will fail on an encrypted document until one is set).
func DefaultConfig() Config {
	return Config{XRefStyle: XRefAuto}
}
