package cos

import "errors"

// Error kinds, per the error taxonomy: these are sentinels, not concrete
// error types, matched with errors.Is after fmt.Errorf("%w", ...) wrapping
// adds positional context (byte offset, object reference, filter name).
var (
	ErrMalformedHeader     = errors.New("cos: malformed header")
	ErrMalformedToken      = errors.New("cos: malformed token")
	ErrMalformedDictionary = errors.New("cos: malformed dictionary")
	ErrMalformedStream     = errors.New("cos: malformed stream")
	ErrMalformedXRef       = errors.New("cos: malformed xref")

	ErrUnknownObject     = errors.New("cos: unknown object")
	ErrWrongObjectHeader = errors.New("cos: wrong object header")
	ErrCircularReference = errors.New("cos: circular reference")

	ErrFilterError       = errors.New("cos: filter error")
	ErrUnsupportedFilter = errors.New("cos: unsupported filter")

	ErrEncryptionRequired    = errors.New("cos: encryption required")
	ErrBadPassword           = errors.New("cos: bad password")
	ErrUnsupportedEncryption = errors.New("cos: unsupported encryption")
	ErrCryptProviderMissing  = errors.New("cos: crypt provider missing")

	ErrSerialization = errors.New("cos: serialization error")
)
