// Package warn implements per-document recovery/warning collection. It
// wraps log/slog the way the rest of the pack uses it, but scoped to a
// single document instance rather than a package-level logger: there is no
// mutable global state here.
package warn

import (
	"fmt"
	"io"
	"log/slog"
)

// Kind classifies a recovery the engine performed silently in non-strict
// mode (or raised as an error in strict mode).
type Kind string

const (
	KindMalformedHeader     Kind = "malformed_header"
	KindMalformedToken      Kind = "malformed_token"
	KindMalformedDictionary Kind = "malformed_dictionary"
	KindMalformedStream     Kind = "malformed_stream"
	KindMalformedXRef       Kind = "malformed_xref"
	KindDuplicateKey        Kind = "duplicate_key"
	KindFilterError         Kind = "filter_error"
	KindRecoveredOffset     Kind = "recovered_offset"
)

// Warning is a single structured diagnostic: an offset into the source
// buffer (or -1 if not applicable) plus a kind and message.
type Warning struct {
	Kind    Kind
	Offset  int64
	Message string
}

func (w Warning) String() string {
	if w.Offset >= 0 {
		return fmt.Sprintf("%s at %d: %s", w.Kind, w.Offset, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Kind, w.Message)
}

// Collector gathers warnings for one document instance and mirrors them to
// an injected slog.Handler (nil means discard). Strict turns every Warn
// call into a returned error instead of a recorded warning.
type Collector struct {
	log      *slog.Logger
	strict   bool
	warnings []Warning
}

// New returns a Collector logging through handler (a text handler writing
// to io.Discard if handler is nil) in the given strictness mode.
func New(handler slog.Handler, strict bool) *Collector {
	if handler == nil {
		handler = slog.NewTextHandler(io.Discard, nil)
	}
	return &Collector{log: slog.New(handler), strict: strict}
}

// Warn records a recovery. In strict mode it instead returns an error
// wrapping the given sentinel so the caller can propagate it.
func (c *Collector) Warn(kind Kind, offset int64, sentinel error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if c.strict {
		return fmt.Errorf("%w: %s", sentinel, msg)
	}
	w := Warning{Kind: kind, Offset: offset, Message: msg}
	c.warnings = append(c.warnings, w)
	c.log.Warn(msg, slog.String("kind", string(kind)), slog.Int64("offset", offset))
	return nil
}

// Warnings returns all warnings recorded so far, oldest first.
func (c *Collector) Warnings() []Warning { return c.warnings }

// Strict reports whether this collector elevates recoveries to errors.
func (c *Collector) Strict() bool { return c.strict }
