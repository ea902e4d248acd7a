// Package xref implements the cross-reference engine (C5): classical and
// stream-based xref parsing, hybrid-file merging, object-stream decoding,
// and lazy memoized object resolution with a recovery fallback for
// corrupt files.
package xref

import "github.com/aescarias/pdfnaut-go/cos"

// Table maps object number to its most recent cross-reference entry.
type Table struct {
	Entries map[uint32]cos.Entry
}

func newTable() *Table {
	return &Table{Entries: make(map[uint32]cos.Entry)}
}

// mergeOlder folds an older section's entries into t, keeping t's existing
// entry whenever an object number is already present: sections are walked
// newest-first, so the first (newest) assignment for an object number
// always wins.
func (t *Table) mergeOlder(older *Table) {
	for on, e := range older.Entries {
		if _, has := t.Entries[on]; !has {
			t.Entries[on] = e
		}
	}
}
