package document

import (
	"fmt"
	"regexp"

	"github.com/aescarias/pdfnaut-go/cos"
	"github.com/aescarias/pdfnaut-go/crypt"
	"github.com/aescarias/pdfnaut-go/filter"
	"github.com/aescarias/pdfnaut-go/serializer"
	"github.com/aescarias/pdfnaut-go/warn"
	"github.com/aescarias/pdfnaut-go/xref"
)

type pendingKind int

const (
	pendingAdd pendingKind = iota
	pendingReplace
	pendingFree
)

type pendingOp struct {
	kind       pendingKind
	generation uint16
	obj        cos.Object
}

// Document is the opened, editable view over one PDF file: a parsed xref
// engine plus a set of staged Add/Replace/Free edits that only take effect
// on Write.
type Document struct {
	cfg      Config
	data     []byte
	Warn     *warn.Collector
	Registry *filter.Registry
	Engine   *xref.Engine
	Crypt    *crypt.Handler // nil until ApplyPassword succeeds, or if unencrypted
	version  string

	pending          map[uint32]pendingOp
	nextObjectNumber uint32
}

var headerVersionRe = regexp.MustCompile(`%PDF-(\d\.\d)`)

// Open parses data's cross-reference information (tolerating up to the
// first 1024 bytes of junk before the header, and recovering via full-file
// scan if the xref chain is unreadable) and returns a Document ready for
// Resolve/Add/Replace/Free/Write. If the file is encrypted, every Resolve
// of an object other than the Encrypt dictionary itself fails with
// cos.ErrBadPassword until ApplyPassword succeeds.
func Open(data []byte, cfg Config) (*Document, error) {
	warnCollector := warn.New(nil, cfg.Strict)
	registry := filter.NewRegistry()

	engine, err := xref.Build(data, warnCollector, registry)
	if err != nil {
		return nil, err
	}

	d := &Document{
		cfg:      cfg,
		data:     data,
		Warn:     warnCollector,
		Registry: registry,
		Engine:   engine,
		version:  detectVersion(data),
		pending:  map[uint32]pendingOp{},
	}
	d.nextObjectNumber = d.computeNextObjectNumber()
	return d, nil
}

func detectVersion(data []byte) string {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if m := headerVersionRe.FindSubmatch(head); m != nil {
		return string(m[1])
	}
	return "1.7"
}

func (d *Document) computeNextObjectNumber() uint32 {
	max := uint32(d.Engine.Trailer.Size)
	for num := range d.Engine.Table.Entries {
		if num+1 > max {
			max = num + 1
		}
	}
	if max == 0 {
		max = 1
	}
	return max
}

// IsEncrypted reports whether the trailer carries an /Encrypt entry.
func (d *Document) IsEncrypted() bool {
	_, ok := d.Engine.Trailer.Encrypt.(cos.Null)
	return d.Engine.Trailer.Encrypt != nil && !ok
}

// asStringBytes extracts the raw bytes of a direct literal/hex string
// object, used for the trailer's first /ID component.
func asStringBytes(o cos.Object) []byte {
	switch v := o.(type) {
	case cos.LiteralString:
		return []byte(v)
	case cos.HexString:
		return []byte(v)
	default:
		return nil
	}
}

// ApplyPassword authenticates against the document's Standard security
// handler (user or owner password; Algorithm 2/6 don't distinguish which
// was supplied) and, on success, wires the resulting *crypt.Handler into
// the xref engine (decrypt-on-read). The filter registry gets
// explicitCryptFilterPassthrough, not the handler, for the rare stream that
// names Crypt explicitly in its own /Filter array. An
// unencrypted document authenticates trivially with every permission bit
// set. cfg.CryptProvider must be a real cipher provider for an encrypted
// document; crypt.IdentityProvider will simply fail to authenticate.
func (d *Document) ApplyPassword(password string) (bool, crypt.Permissions, error) {
	if !d.IsEncrypted() {
		return true, ^crypt.Permissions(0), nil
	}

	encObj := d.Engine.Trailer.Encrypt
	if ref, ok := encObj.(cos.Reference); ok {
		resolved, err := d.Engine.Resolve(ref)
		if err != nil {
			return false, 0, err
		}
		encObj = resolved
	}
	encDict, ok := encObj.(*cos.Dict)
	if !ok {
		return false, 0, fmt.Errorf("%w: /Encrypt is not a dictionary", cos.ErrMalformedDictionary)
	}

	var fileID []byte
	if len(d.Engine.Trailer.ID) > 0 {
		fileID = asStringBytes(d.Engine.Trailer.ID[0])
	}

	provider := d.cfg.CryptProvider
	if provider == nil {
		provider = crypt.IdentityProvider{}
	}

	handler, err := crypt.NewHandler(encDict, fileID, provider)
	if err != nil {
		return false, 0, err
	}

	ok, err = handler.Authenticate(password)
	if err != nil {
		return false, 0, err
	}
	if !ok {
		return false, 0, nil
	}

	d.Crypt = handler
	d.Engine.Crypt = handler
	d.Registry.SetCryptResolver(explicitCryptFilterPassthrough{})
	return true, handler.P, nil
}

// explicitCryptFilterPassthrough satisfies filter.CryptResolver for the
// rare stream whose own /Filter array names "Crypt" explicitly. Per-object
// decryption already happened in xref.Engine.resolveInUse/decryptObject
// before the filter chain runs (7.5.8.2, 7.6.2), so by the time a Crypt
// step reaches the filter registry the payload is already plaintext; this
// resolver exists only so the registry doesn't error out with
// cos.ErrCryptProviderMissing when such a step is present.
type explicitCryptFilterPassthrough struct{}

func (explicitCryptFilterPassthrough) Decrypt(_ string, data []byte) ([]byte, error) { return data, nil }
func (explicitCryptFilterPassthrough) Encrypt(_ string, data []byte) ([]byte, error) { return data, nil }

// GetTrailer returns the merged trailer information (Root, Info, ID, Size,
// Encrypt) accumulated from every cross-reference section found.
func (d *Document) GetTrailer() xref.Trailer {
	return d.Engine.Trailer
}

// Entries returns a snapshot of every object number's cross-reference
// entry, with staged Add/Replace/Free edits folded in. Added and replaced
// objects show as EntryInUse with their staged generation, but with no
// offset (it's assigned at Write time); freed objects show as EntryFree.
func (d *Document) Entries() map[uint32]cos.Entry {
	out := make(map[uint32]cos.Entry, len(d.Engine.Table.Entries)+len(d.pending))
	for num, e := range d.Engine.Table.Entries {
		out[num] = e
	}
	for num, op := range d.pending {
		switch op.kind {
		case pendingFree:
			out[num] = cos.Entry{Kind: cos.EntryFree, NextGeneration: op.generation + 1}
		default:
			out[num] = cos.Entry{Kind: cos.EntryInUse, Generation: op.generation}
		}
	}
	return out
}

// Resolve dereferences ref, checking staged edits before delegating to the
// xref engine. A freed reference resolves to cos.Null{}, matching the
// engine's own convention for an absent entry. If the document is
// encrypted and no password has been accepted yet, every reference except
// the Encrypt dictionary's own fails with cos.ErrBadPassword rather than
// silently handing back still-ciphertext bytes.
func (d *Document) Resolve(ref cos.Reference) (cos.Object, error) {
	if op, ok := d.pending[ref.ObjectNumber]; ok {
		if op.kind == pendingFree {
			return cos.Null{}, nil
		}
		return op.obj, nil
	}
	if d.IsEncrypted() && d.Crypt == nil && !d.isEncryptDictRef(ref) {
		return nil, fmt.Errorf("%w: object %d", cos.ErrBadPassword, ref.ObjectNumber)
	}
	return d.Engine.Resolve(ref)
}

func (d *Document) isEncryptDictRef(ref cos.Reference) bool {
	encRef, ok := d.Engine.Trailer.Encrypt.(cos.Reference)
	return ok && encRef == ref
}

// resolveIfReference dereferences o if it's a cos.Reference, otherwise
// returns it unchanged; used for Filter/DecodeParms entries that are
// allowed to be indirect.
func (d *Document) resolveIfReference(o cos.Object) (cos.Object, error) {
	if ref, ok := o.(cos.Reference); ok {
		return d.Resolve(ref)
	}
	return o, nil
}

// DecodedStreamContent resolves ref and applies its Filter/DecodeParms
// chain, returning the fully decoded payload. ref must name a stream
// object.
func (d *Document) DecodedStreamContent(ref cos.Reference) ([]byte, error) {
	obj, err := d.Resolve(ref)
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*cos.Stream)
	if !ok {
		return nil, fmt.Errorf("%w: object %d is not a stream", cos.ErrMalformedStream, ref.ObjectNumber)
	}

	filterObj, err := d.resolveIfReference(stream.Dict.GetOrNull("Filter"))
	if err != nil {
		return nil, err
	}
	paramsObj, err := d.resolveIfReference(stream.Dict.GetOrNull("DecodeParms"))
	if err != nil {
		return nil, err
	}
	chain, err := filter.ChainFromStreamDict(filterObj, paramsObj)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return stream.Content, nil
	}
	return d.Registry.Decode(stream.Content, chain)
}

// Add stages obj as a new object at the next free object number (generation
// 0) and returns the reference it will be written under.
func (d *Document) Add(obj cos.Object) cos.Reference {
	ref := cos.Reference{ObjectNumber: d.nextObjectNumber, GenerationNumber: 0}
	d.pending[ref.ObjectNumber] = pendingOp{kind: pendingAdd, generation: 0, obj: obj}
	d.nextObjectNumber++
	return ref
}

// Replace stages obj to overwrite ref's current contents at the next Write.
func (d *Document) Replace(ref cos.Reference, obj cos.Object) {
	d.pending[ref.ObjectNumber] = pendingOp{kind: pendingReplace, generation: ref.GenerationNumber, obj: obj}
}

// Free stages ref's object number to become a free entry at the next Write.
func (d *Document) Free(ref cos.Reference) {
	d.pending[ref.ObjectNumber] = pendingOp{kind: pendingFree, generation: ref.GenerationNumber}
}
