package cos

// EntryKind tags the variant held by an XRef Entry.
type EntryKind uint8

const (
	// EntryFree marks an object number as part of the free list.
	EntryFree EntryKind = iota
	// EntryInUse marks an object stored at a byte offset.
	EntryInUse
	// EntryCompressed marks an object stored inside an object stream.
	EntryCompressed
)

// Entry is a single cross-reference table entry. Which fields are
// meaningful depends on Kind.
type Entry struct {
	Kind EntryKind

	// EntryFree
	NextFree       uint32
	NextGeneration uint16

	// EntryInUse
	Offset     uint64
	Generation uint16

	// EntryCompressed
	ContainingStream uint32
	IndexInStream    uint32
}
