// Package filter implements the filter registry (C3): a set of named
// codecs applied to stream payloads, chained in the order given by a
// stream's Filter array.
package filter

import (
	"fmt"

	"github.com/aescarias/pdfnaut-go/cos"
)

// Standard filter names (ISO 32000-2 §7.4).
const (
	ASCII85Decode   = "ASCII85Decode"
	ASCIIHexDecode  = "ASCIIHexDecode"
	RunLengthDecode = "RunLengthDecode"
	LZWDecode       = "LZWDecode"
	FlateDecode     = "FlateDecode"
	Crypt           = "Crypt"
)

// Params is a filter's DecodeParms dictionary, already resolved to direct
// values (no indirect references).
type Params map[string]cos.Object

// IntParam reads an integer parameter, falling back to def if absent.
func (p Params) IntParam(key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	if i, ok := v.(cos.Integer); ok {
		return int(i)
	}
	return def
}

// Codec implements one named filter's encode/decode directions.
type Codec interface {
	// Decode must be total on well-formed input; malformed input returns
	// an error, which Registry.Decode wraps with cos.ErrFilterError.
	Decode(data []byte, params Params) ([]byte, error)
	// Encode is the inverse of Decode. RunLengthDecode has no Encode
	// (it's decode-only from upstream per spec) and returns
	// cos.ErrUnsupportedFilter.
	Encode(data []byte, params Params) ([]byte, error)
}

// CryptResolver decrypts/encrypts a named Crypt-filter payload; it is
// provided by the security handler so the filter registry stays decoupled
// from C4.
type CryptResolver interface {
	Decrypt(cryptFilterName string, data []byte) ([]byte, error)
	Encrypt(cryptFilterName string, data []byte) ([]byte, error)
}

// Registry maps filter name to codec. NewRegistry returns one
// pre-populated with every built-in filter; the zero value has no codecs.
type Registry struct {
	codecs map[string]Codec
	crypt  CryptResolver
}

// NewRegistry returns a registry with all built-in codecs registered.
func NewRegistry() *Registry {
	r := &Registry{codecs: map[string]Codec{}}
	r.Register(ASCII85Decode, asciiDecoder85{})
	r.Register(ASCIIHexDecode, asciiHexCodec{})
	r.Register(RunLengthDecode, runLengthCodec{})
	r.Register(LZWDecode, lzwCodec{})
	r.Register(FlateDecode, flateCodec{})
	return r
}

// ChainFromStreamDict builds a Chain from a stream dictionary's resolved
// Filter and DecodeParms entries (Filter may be a single Name or an Array
// of Names; DecodeParms follows the same single-or-parallel-array shape).
// Both arguments must already have indirect references resolved.
func ChainFromStreamDict(filterObj, paramsObj cos.Object) (Chain, error) {
	var names []cos.Name
	switch v := filterObj.(type) {
	case nil, cos.Null:
		return nil, nil
	case cos.Name:
		names = []cos.Name{v}
	case cos.Array:
		for _, item := range v {
			n, ok := item.(cos.Name)
			if !ok {
				return nil, fmt.Errorf("%w: Filter array must contain names", cos.ErrMalformedDictionary)
			}
			names = append(names, n)
		}
	default:
		return nil, fmt.Errorf("%w: unexpected /Filter type %T", cos.ErrMalformedDictionary, filterObj)
	}

	paramsList := make([]Params, len(names))
	switch v := paramsObj.(type) {
	case nil, cos.Null:
		// no DecodeParms at all: every step gets an empty Params.
	case *cos.Dict:
		if len(names) != 1 {
			return nil, fmt.Errorf("%w: single DecodeParms dict with multiple filters", cos.ErrMalformedDictionary)
		}
		paramsList[0] = dictToParams(v)
	case cos.Array:
		if len(v) != len(names) {
			return nil, fmt.Errorf("%w: DecodeParms array length mismatch with Filter array", cos.ErrMalformedDictionary)
		}
		for i, item := range v {
			if d, ok := item.(*cos.Dict); ok {
				paramsList[i] = dictToParams(d)
			}
		}
	default:
		return nil, fmt.Errorf("%w: unexpected /DecodeParms type %T", cos.ErrMalformedDictionary, paramsObj)
	}

	chain := make(Chain, len(names))
	for i, n := range names {
		params := paramsList[i]
		if n == Crypt {
			if params == nil {
				params = Params{}
			}
		}
		chain[i] = struct {
			Name   string
			Params Params
		}{Name: string(n), Params: params}
	}
	return chain, nil
}

func dictToParams(d *cos.Dict) Params {
	p := make(Params, d.Len())
	for _, k := range d.Keys() {
		v, _ := d.Get(k)
		p[string(k)] = v
	}
	return p
}

// Register adds or replaces a codec. New filters plug in at this boundary.
func (r *Registry) Register(name string, c Codec) {
	if r.codecs == nil {
		r.codecs = map[string]Codec{}
	}
	r.codecs[name] = c
}

// SetCryptResolver wires the security handler's Crypt filter implementation.
func (r *Registry) SetCryptResolver(cr CryptResolver) { r.crypt = cr }

func (r *Registry) lookup(name string) (Codec, error) {
	c, ok := r.codecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", cos.ErrUnsupportedFilter, name)
	}
	return c, nil
}

// Chain is an ordered sequence of (filter name, params) pairs, taken
// directly from a stream's Filter/DecodeParms entries.
type Chain []struct {
	Name   string
	Params Params
}

// Decode applies the chain in reverse, i.e. the order needed to undo
// encoding (the last-applied filter is undone first).
func (r *Registry) Decode(data []byte, chain Chain) ([]byte, error) {
	out := data
	for i := len(chain) - 1; i >= 0; i-- {
		step := chain[i]
		if step.Name == Crypt {
			if r.crypt == nil {
				return nil, fmt.Errorf("%w: Crypt filter with no resolver attached", cos.ErrCryptProviderMissing)
			}
			name := "Identity"
			if n, ok := step.Params["Name"].(cos.Name); ok {
				name = string(n)
			}
			decoded, err := r.crypt.Decrypt(name, out)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", cos.ErrFilterError, err)
			}
			out = decoded
			continue
		}
		codec, err := r.lookup(step.Name)
		if err != nil {
			return nil, err
		}
		decoded, err := codec.Decode(out, step.Params)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", cos.ErrFilterError, step.Name, err)
		}
		out = decoded
	}
	return out, nil
}

// Encode applies the chain in forward order.
func (r *Registry) Encode(data []byte, chain Chain) ([]byte, error) {
	out := data
	for _, step := range chain {
		if step.Name == Crypt {
			if r.crypt == nil {
				return nil, fmt.Errorf("%w: Crypt filter with no resolver attached", cos.ErrCryptProviderMissing)
			}
			name := "Identity"
			if n, ok := step.Params["Name"].(cos.Name); ok {
				name = string(n)
			}
			encoded, err := r.crypt.Encrypt(name, out)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", cos.ErrFilterError, err)
			}
			out = encoded
			continue
		}
		codec, err := r.lookup(step.Name)
		if err != nil {
			return nil, err
		}
		encoded, err := codec.Encode(out, step.Params)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", cos.ErrFilterError, step.Name, err)
		}
		out = encoded
	}
	return out, nil
}
