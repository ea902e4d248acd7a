package xref

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/aescarias/pdfnaut-go/cos"
	"github.com/aescarias/pdfnaut-go/filter"
	"github.com/aescarias/pdfnaut-go/lexer"
	"github.com/aescarias/pdfnaut-go/parser"
	"github.com/aescarias/pdfnaut-go/warn"
)

// CryptHandler is the per-object decrypt surface an Engine needs from the
// security handler. A *crypt.Handler satisfies this without xref importing
// crypt, keeping C4 and C5 decoupled the same way filter.CryptResolver
// keeps C3 decoupled from C4.
type CryptHandler interface {
	DecryptString(ref cos.Reference, data []byte) ([]byte, error)
	DecryptStream(ref cos.Reference, data []byte) ([]byte, error)
}

// Engine is the merged, lazily-resolving view over one PDF file's
// cross-reference information.
type Engine struct {
	data     []byte
	Table    *Table
	Trailer  Trailer
	Warn     *warn.Collector
	Registry *filter.Registry
	Crypt    CryptHandler // nil for unencrypted documents

	// UsedXRefStream reports whether the newest (first-processed) section
	// of the chain this Engine was built from was a cross-reference
	// stream rather than a classical table. A writer in "auto" xref-style
	// mode uses this to keep writing whichever form the file already used.
	UsedXRefStream bool

	// StartXRefOffset is the byte offset the chain was followed from, or
	// -1 if the chain couldn't be followed at all and fullScanRecovery
	// built the table instead. An incremental update needs a genuine
	// previous-section offset to chain Prev to; -1 means there wasn't
	// one, so a writer should fall back to a full rewrite.
	StartXRefOffset int64

	resolved       map[cos.Reference]cos.Object
	inFlight       map[cos.Reference]bool
	objStreamCache map[uint32][]cos.Object
}

// Build locates the file's startxref chain, merges every classical/stream
// section it finds (newest first), and falls back to a full-file object
// scan if the chain can't be followed.
func Build(data []byte, warnCollector *warn.Collector, registry *filter.Registry) (*Engine, error) {
	if registry == nil {
		registry = filter.NewRegistry()
	}
	e := &Engine{
		data:            data,
		Warn:            warnCollector,
		Registry:        registry,
		resolved:        map[cos.Reference]cos.Object{},
		inFlight:        map[cos.Reference]bool{},
		objStreamCache:  map[uint32][]cos.Object{},
		StartXRefOffset: -1,
	}

	offset, err := findStartXRef(data)
	if err == nil {
		if err = e.followChain(offset); err == nil {
			e.StartXRefOffset = offset
			return e, nil
		}
		if werr := e.warnOrNil(warn.KindMalformedXRef, offset, cos.ErrMalformedXRef,
			"xref chain unreadable (%v); recovering via full-file scan", err); werr != nil {
			return nil, werr
		}
	} else if werr := e.warnOrNil(warn.KindMalformedXRef, -1, cos.ErrMalformedXRef,
		"no startxref found (%v); recovering via full-file scan", err); werr != nil {
		return nil, werr
	}

	if err := e.fullScanRecovery(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) warnOrNil(kind warn.Kind, offset int64, sentinel error, format string, args ...any) error {
	if e.Warn == nil {
		return nil
	}
	return e.Warn.Warn(kind, offset, sentinel, format, args...)
}

// findStartXRef scans for the last `startxref\n<offset>\n%%EOF` marker.
func findStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, fmt.Errorf("%w: no startxref keyword found", cos.ErrMalformedXRef)
	}
	rest := data[idx+len("startxref"):]
	if eofIdx := bytes.Index(rest, []byte("%%EOF")); eofIdx >= 0 {
		rest = rest[:eofIdx]
	}
	rest = bytes.TrimSpace(rest)
	offset, err := strconv.ParseInt(string(rest), 10, 64)
	if err != nil || offset < 0 || offset >= int64(len(data)) {
		return 0, fmt.Errorf("%w: corrupt startxref offset", cos.ErrMalformedXRef)
	}
	return offset, nil
}

// followChain walks the Prev chain starting at offset, merging classical
// and xref-stream sections newest-first and handling hybrid-file XRefStm
// hidden entries.
func (e *Engine) followChain(start int64) error {
	visited := map[int64]bool{}
	table := newTable()
	offset := start
	first := true

	for offset != 0 {
		if visited[offset] {
			break
		}
		visited[offset] = true

		if offset < 0 || offset >= int64(len(e.data)) {
			return fmt.Errorf("%w: xref section offset %d out of range", cos.ErrMalformedXRef, offset)
		}

		tk := lexer.New(e.data[offset:])
		peek, err := tk.PeekToken()
		if err != nil {
			return err
		}

		var (
			sectionTable *Table
			dict         *cos.Dict
		)
		if peek.IsKeyword("xref") {
			_, _ = tk.NextToken()
			sectionTable, dict, err = parseClassicalSection(tk)
		} else {
			sectionTable, dict, err = e.parseXRefStreamAt(offset)
			if first && err == nil {
				e.UsedXRefStream = true
			}
		}
		if err != nil {
			return err
		}
		table.mergeOlder(sectionTable)
		first = false

		prev, xrefStm, hasXRefStm, err := e.Trailer.mergeInfo(dict)
		if err != nil {
			return err
		}

		if hasXRefStm {
			hiddenTable, hiddenDict, err := e.parseXRefStreamAt(xrefStm)
			if err != nil {
				return err
			}
			table.mergeOlder(hiddenTable)
			if _, _, _, err := e.Trailer.mergeInfo(hiddenDict); err != nil {
				return err
			}
		}

		offset = prev
	}

	e.Table = table
	return nil
}

func (e *Engine) parseXRefStreamAt(offset int64) (*Table, *cos.Dict, error) {
	_, _, obj, err := e.readRawObjectAt(offset)
	if err != nil {
		return nil, nil, err
	}
	stream, ok := obj.(*cos.Stream)
	if !ok {
		return nil, nil, fmt.Errorf("%w: expected an xref stream at %d", cos.ErrMalformedXRef, offset)
	}

	fields, err := parseStreamFields(stream.Dict)
	if err != nil {
		return nil, nil, err
	}

	decoded, err := decodeXRefStreamPayload(e.Registry, stream.Content, stream.Dict)
	if err != nil {
		return nil, nil, err
	}

	table, err := decodeStreamEntries(decoded, fields)
	if err != nil {
		return nil, nil, err
	}
	return table, stream.Dict, nil
}

// readRawObjectAt parses the `N G obj ... endobj` body at offset, including
// an attached stream payload if the body is a dictionary immediately
// followed by the `stream` keyword. The returned object is never decrypted.
func (e *Engine) readRawObjectAt(offset int64) (objNr uint32, genNr uint16, obj cos.Object, err error) {
	if offset < 0 || offset >= int64(len(e.data)) {
		return 0, 0, nil, fmt.Errorf("%w: offset %d out of range", cos.ErrMalformedXRef, offset)
	}

	tk := lexer.New(e.data[offset:])
	numTok, err := tk.NextToken()
	if err != nil {
		return 0, 0, nil, err
	}
	n, nerr := numTok.Int()
	if numTok.Kind != lexer.Integer || nerr != nil {
		return 0, 0, nil, fmt.Errorf("%w: expected object number at offset %d", cos.ErrWrongObjectHeader, offset)
	}

	genTok, err := tk.NextToken()
	if err != nil {
		return 0, 0, nil, err
	}
	g, gerr := genTok.Int()
	if genTok.Kind != lexer.Integer || gerr != nil {
		return 0, 0, nil, fmt.Errorf("%w: expected generation number at offset %d", cos.ErrWrongObjectHeader, offset)
	}

	kwTok, err := tk.NextToken()
	if err != nil {
		return 0, 0, nil, err
	}
	if !kwTok.IsKeyword("obj") {
		return 0, 0, nil, fmt.Errorf("%w: expected \"obj\" keyword at offset %d", cos.ErrWrongObjectHeader, offset)
	}

	p := parser.NewFromTokenizer(tk)
	p.Warn = e.Warn
	body, err := p.ParseObject()
	if err != nil {
		return 0, 0, nil, err
	}

	dict, isDict := body.(*cos.Dict)
	streamTok, perr := tk.PeekToken()
	if !isDict || perr != nil || !streamTok.IsKeyword("stream") {
		return uint32(n), uint16(g), body, nil
	}

	_, _ = tk.NextToken() // consume "stream"
	rest := tk.Bytes()
	skip := 0
	if len(rest) > 0 && rest[0] == '\r' {
		skip++
	}
	if len(rest) > skip && rest[skip] == '\n' {
		skip++
	}
	tk.SkipBytes(skip)

	streamStart := offset + int64(tk.CurrentPosition())
	length, lerr := e.resolveStreamLength(dict)
	if lerr != nil {
		recovered, rerr := scanForEndstream(e.data, streamStart)
		if rerr != nil {
			return 0, 0, nil, lerr
		}
		if werr := e.warnOrNil(warn.KindMalformedStream, streamStart, cos.ErrMalformedStream,
			"stream Length unresolved for object %d, recovered via endstream scan", n); werr != nil {
			return 0, 0, nil, werr
		}
		length = recovered
	}

	end := streamStart + length
	if length < 0 || end > int64(len(e.data)) {
		return 0, 0, nil, fmt.Errorf("%w: stream length out of range for object %d", cos.ErrMalformedStream, n)
	}
	content := append([]byte(nil), e.data[streamStart:end]...)
	return uint32(n), uint16(g), &cos.Stream{Dict: dict, Content: content}, nil
}

func (e *Engine) resolveStreamLength(dict *cos.Dict) (int64, error) {
	lengthObj, ok := dict.Get("Length")
	if !ok {
		return 0, parser.ErrMissingStreamLength
	}
	if ref, isRef := lengthObj.(cos.Reference); isRef {
		resolved, err := e.Resolve(ref)
		if err != nil {
			return 0, err
		}
		lengthObj = resolved
	}
	li, ok := lengthObj.(cos.Integer)
	if !ok || li < 0 {
		return 0, parser.ErrMissingStreamLength
	}
	return int64(li), nil
}

// scanForEndstream recovers a stream's length by searching for its
// "endstream" marker, trimming the single EOL that precedes it.
func scanForEndstream(data []byte, start int64) (int64, error) {
	if start < 0 || start > int64(len(data)) {
		return 0, fmt.Errorf("%w: recovery scan start out of range", cos.ErrMalformedStream)
	}
	idx := bytes.Index(data[start:], []byte("endstream"))
	if idx < 0 {
		return 0, fmt.Errorf("%w: no endstream marker found", cos.ErrMalformedStream)
	}
	length := int64(idx)
	if length > 0 && data[start+length-1] == '\n' {
		length--
		if length > 0 && data[start+length-1] == '\r' {
			length--
		}
	} else if length > 0 && data[start+length-1] == '\r' {
		length--
	}
	return length, nil
}

// Resolve dereferences ref, memoizing the result. A reference to an object
// number with no xref entry resolves to Null per 7.3.10 rather than
// erroring. In-flight re-entry (a cycle) also resolves to Null.
func (e *Engine) Resolve(ref cos.Reference) (cos.Object, error) {
	if ref.ObjectNumber == 0 {
		return cos.Null{}, nil
	}
	if obj, ok := e.resolved[ref]; ok {
		return obj, nil
	}
	entry, ok := e.Table.Entries[ref.ObjectNumber]
	if !ok {
		return cos.Null{}, nil
	}
	if e.inFlight[ref] {
		return cos.Null{}, fmt.Errorf("%w: object %d", cos.ErrCircularReference, ref.ObjectNumber)
	}

	e.inFlight[ref] = true
	e.resolved[ref] = cos.Null{}
	defer delete(e.inFlight, ref)

	var (
		obj cos.Object
		err error
	)
	switch entry.Kind {
	case cos.EntryFree:
		obj = cos.Null{}
	case cos.EntryInUse:
		obj, err = e.resolveInUse(ref, entry)
	case cos.EntryCompressed:
		obj, err = e.resolveCompressed(entry)
	default:
		obj = cos.Null{}
	}
	if err != nil {
		delete(e.resolved, ref)
		return nil, err
	}
	e.resolved[ref] = obj
	return obj, nil
}

func (e *Engine) resolveInUse(ref cos.Reference, entry cos.Entry) (cos.Object, error) {
	gotNr, gotGen, obj, err := e.readRawObjectAt(int64(entry.Offset))
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", ref.ObjectNumber, err)
	}
	if gotNr != ref.ObjectNumber {
		return nil, fmt.Errorf("%w: offset %d declares object %d, expected %d",
			cos.ErrWrongObjectHeader, entry.Offset, gotNr, ref.ObjectNumber)
	}

	if e.Crypt != nil {
		obj, err = e.decryptObject(obj, cos.Reference{ObjectNumber: ref.ObjectNumber, GenerationNumber: gotGen})
		if err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// decryptObject recursively decrypts every string leaf and the stream
// payload (if any) of obj. Objects stored inside an object stream never
// reach this path: 7.6.2 says compressed objects are never independently
// encrypted.
func (e *Engine) decryptObject(obj cos.Object, ref cos.Reference) (cos.Object, error) {
	switch v := obj.(type) {
	case cos.LiteralString:
		dec, err := e.Crypt.DecryptString(ref, []byte(v))
		if err != nil {
			return nil, err
		}
		return cos.LiteralString(dec), nil
	case cos.HexString:
		dec, err := e.Crypt.DecryptString(ref, []byte(v))
		if err != nil {
			return nil, err
		}
		return cos.HexString(dec), nil
	case cos.Array:
		out := make(cos.Array, len(v))
		for i, item := range v {
			dec, err := e.decryptObject(item, ref)
			if err != nil {
				return nil, err
			}
			out[i] = dec
		}
		return out, nil
	case *cos.Dict:
		out := cos.NewDict()
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			dec, err := e.decryptObject(val, ref)
			if err != nil {
				return nil, err
			}
			out.Set(k, dec)
		}
		return out, nil
	case *cos.Stream:
		decDict, err := e.decryptObject(v.Dict, ref)
		if err != nil {
			return nil, err
		}
		content, err := e.Crypt.DecryptStream(ref, v.Content)
		if err != nil {
			return nil, err
		}
		return &cos.Stream{Dict: decDict.(*cos.Dict), Content: content}, nil
	default:
		return obj, nil
	}
}

func (e *Engine) resolveCompressed(entry cos.Entry) (cos.Object, error) {
	objects, err := e.objectStream(entry.ContainingStream)
	if err != nil {
		return nil, err
	}
	if int(entry.IndexInStream) >= len(objects) {
		return nil, fmt.Errorf("%w: compressed object index %d >= %d", cos.ErrMalformedXRef, entry.IndexInStream, len(objects))
	}
	return objects[entry.IndexInStream], nil
}

func (e *Engine) objectStream(streamObjNr uint32) ([]cos.Object, error) {
	if cached, ok := e.objStreamCache[streamObjNr]; ok {
		return cached, nil
	}

	streamObj, err := e.Resolve(cos.Reference{ObjectNumber: streamObjNr})
	if err != nil {
		return nil, err
	}
	stream, ok := streamObj.(*cos.Stream)
	if !ok {
		return nil, fmt.Errorf("%w: object %d is not an object stream", cos.ErrMalformedXRef, streamObjNr)
	}

	nObj, _ := stream.Dict.Get("N")
	n, ok := nObj.(cos.Integer)
	if !ok {
		return nil, fmt.Errorf("%w: object stream missing /N", cos.ErrMalformedStream)
	}
	firstObj, _ := stream.Dict.Get("First")
	first, ok := firstObj.(cos.Integer)
	if !ok {
		return nil, fmt.Errorf("%w: object stream missing /First", cos.ErrMalformedStream)
	}

	filterObj, _ := stream.Dict.Get("Filter")
	paramsObj, _ := stream.Dict.Get("DecodeParms")
	chain, err := filter.ChainFromStreamDict(filterObj, paramsObj)
	if err != nil {
		return nil, err
	}

	decoded := stream.Content
	if len(chain) > 0 {
		decoded, err = e.Registry.Decode(stream.Content, chain)
		if err != nil {
			return nil, err
		}
	}

	objects, err := decodeObjectStream(decoded, int64(first), int(n))
	if err != nil {
		return nil, err
	}
	e.objStreamCache[streamObjNr] = objects
	return objects, nil
}

// fullScanRecovery rebuilds the table by scanning the file for `N G obj`
// declarations line by line, then locating the last `trailer` keyword for
// the Root/Size/ID entries; xref-stream dictionaries are not consulted.
// Used when the startxref chain can't be followed at all.
func (e *Engine) fullScanRecovery() error {
	table := newTable()
	table.Entries[0] = cos.Entry{Kind: cos.EntryFree, NextFree: 0, NextGeneration: 65535}

	data := e.data
	pos := 0
	var lastTrailer *cos.Dict

	for pos < len(data) {
		line, lineOffset, next := readLine(data, pos)
		pos = next
		if len(line) == 0 {
			continue
		}

		tk := lexer.New(line)
		first, _ := tk.PeekToken()

		if first.IsKeyword("trailer") {
			_, _ = tk.NextToken()
			tail := data[lineOffset+int64(tk.CurrentPosition()):]
			p := parser.NewFromTokenizer(lexer.New(tail))
			if obj, perr := p.ParseObject(); perr == nil {
				if d, ok := obj.(*cos.Dict); ok {
					lastTrailer = d
				}
			}
			continue
		}

		objNr, genNr, derr := peekObjectDeclaration(tk)
		if derr == nil {
			if _, has := table.Entries[uint32(objNr)]; !has {
				table.Entries[uint32(objNr)] = cos.Entry{Kind: cos.EntryInUse, Offset: uint64(lineOffset), Generation: uint16(genNr)}
			}
		}
	}

	e.Table = table
	if lastTrailer != nil {
		if _, _, _, err := e.Trailer.mergeInfo(lastTrailer); err != nil {
			return err
		}
	} else if e.Trailer.Root == nil {
		return fmt.Errorf("%w: recovery scan found no trailer", cos.ErrMalformedXRef)
	}

	return e.warnOrNil(warn.KindRecoveredOffset, -1, cos.ErrMalformedXRef,
		"xref table unreadable; object table recovered via full-file scan")
}

func readLine(data []byte, pos int) (line []byte, offset int64, next int) {
	for pos < len(data) && (data[pos] == '\n' || data[pos] == '\r') {
		pos++
	}
	start := pos
	for pos < len(data) && data[pos] != '\n' && data[pos] != '\r' {
		pos++
	}
	return data[start:pos], int64(start), pos
}

func peekObjectDeclaration(tk *lexer.Tokenizer) (objNr, genNr int64, err error) {
	numTok, err := tk.NextToken()
	if err != nil {
		return 0, 0, err
	}
	objNr, nerr := numTok.Int()
	if numTok.Kind != lexer.Integer || nerr != nil {
		return 0, 0, fmt.Errorf("%w: not an object declaration", cos.ErrWrongObjectHeader)
	}
	genTok, err := tk.NextToken()
	if err != nil {
		return 0, 0, err
	}
	genNr, gerr := genTok.Int()
	if genTok.Kind != lexer.Integer || gerr != nil {
		return 0, 0, fmt.Errorf("%w: not an object declaration", cos.ErrWrongObjectHeader)
	}
	kwTok, err := tk.NextToken()
	if err != nil {
		return 0, 0, err
	}
	if !kwTok.IsKeyword("obj") {
		return 0, 0, fmt.Errorf("%w: not an object declaration", cos.ErrWrongObjectHeader)
	}
	return objNr, genNr, nil
}
