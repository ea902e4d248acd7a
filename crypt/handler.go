package crypt

import (
	"crypto/md5"
	"fmt"

	"github.com/aescarias/pdfnaut-go/cos"
)

// padding is the canonical 32-byte password padding string (ISO 32000-2
// 7.6.3.3, Algorithm 2 step a).
var padding = [32]byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// Method is a stream/string crypt filter method.
type Method uint8

const (
	MethodIdentity Method = iota
	MethodRC4      // V2
	MethodAESV2    // V4/AESV2, AES-128-CBC
)

// Handler implements the Standard security handler for revisions 2, 3 and
// 4. Revision 5/6 (AES-256) is recognized, but NewHandler returns
// cos.ErrUnsupportedEncryption for it: the architecture (a
// Handler consuming an injected Provider) does not preclude adding it, but
// it is out of this core's required scope.
type Handler struct {
	Provider Provider

	R                  int
	V                  int
	KeyLengthBytes     int // 5..16
	O, U               []byte
	P                  Permissions
	FileID             []byte
	EncryptMetadata    bool
	StreamMethod       Method
	StringMethod       Method

	fileKey []byte // populated by Authenticate on success
}

// NewHandler reads the fields of an Encrypt dictionary (resolved: no
// indirect references remaining) plus the trailer's first file ID
// component, and returns a Handler ready for Authenticate.
func NewHandler(encrypt *cos.Dict, fileID []byte, provider Provider) (*Handler, error) {
	filt, _ := encrypt.Get("Filter")
	if name, ok := filt.(cos.Name); !ok || name != "Standard" {
		return nil, fmt.Errorf("%w: unsupported /Filter %v", cos.ErrUnsupportedEncryption, filt)
	}

	h := &Handler{Provider: provider, FileID: fileID, EncryptMetadata: true}

	v, _ := encrypt.Get("V")
	if vi, ok := v.(cos.Integer); ok {
		h.V = int(vi)
	} else {
		h.V = 0
	}

	r, _ := encrypt.Get("R")
	ri, ok := r.(cos.Integer)
	if !ok {
		return nil, fmt.Errorf("%w: missing /R", cos.ErrMalformedDictionary)
	}
	h.R = int(ri)
	if h.R >= 5 {
		return nil, fmt.Errorf("%w: revision %d (AES-256) is architecturally supported but not implemented", cos.ErrUnsupportedEncryption, h.R)
	}

	oVal, _ := encrypt.Get("O")
	h.O = []byte(asString(oVal))
	uVal, _ := encrypt.Get("U")
	h.U = []byte(asString(uVal))

	p, _ := encrypt.Get("P")
	pi, ok := p.(cos.Integer)
	if !ok {
		return nil, fmt.Errorf("%w: missing /P", cos.ErrMalformedDictionary)
	}
	h.P = Permissions(int32(pi))

	h.KeyLengthBytes = 5
	if length, ok := encrypt.Get("Length"); ok {
		if li, ok := length.(cos.Integer); ok {
			h.KeyLengthBytes = int(li) / 8
		}
	}

	if em, ok := encrypt.Get("EncryptMetadata"); ok {
		if b, ok := em.(cos.Boolean); ok {
			h.EncryptMetadata = bool(b)
		}
	}

	switch h.V {
	case 1:
		h.StreamMethod, h.StringMethod = MethodRC4, MethodRC4
		h.KeyLengthBytes = 5
	case 2:
		h.StreamMethod, h.StringMethod = MethodRC4, MethodRC4
	case 4:
		stmF, strF, err := resolveCryptFilterMethods(encrypt)
		if err != nil {
			return nil, err
		}
		h.StreamMethod, h.StringMethod = stmF, strF
	default:
		return nil, fmt.Errorf("%w: unsupported /V %d", cos.ErrUnsupportedEncryption, h.V)
	}

	return h, nil
}

func asString(o cos.Object) string {
	switch v := o.(type) {
	case cos.LiteralString:
		return string(v)
	case cos.HexString:
		return string(v)
	default:
		return ""
	}
}

func resolveCryptFilterMethods(encrypt *cos.Dict) (stm, str Method, err error) {
	cfVal, _ := encrypt.Get("CF")
	cfDict, _ := cfVal.(*cos.Dict)

	lookup := func(key string) (Method, error) {
		nameVal, ok := encrypt.Get(cos.Name(key))
		if !ok {
			return MethodIdentity, nil
		}
		name, ok := nameVal.(cos.Name)
		if !ok {
			return MethodIdentity, nil
		}
		if name == "Identity" {
			return MethodIdentity, nil
		}
		if cfDict == nil {
			return MethodIdentity, fmt.Errorf("%w: /CF missing for crypt filter %q", cos.ErrMalformedDictionary, name)
		}
		filterVal, ok := cfDict.Get(name)
		if !ok {
			return MethodIdentity, fmt.Errorf("%w: crypt filter %q not found in /CF", cos.ErrMalformedDictionary, name)
		}
		filterDict, ok := filterVal.(*cos.Dict)
		if !ok {
			return MethodIdentity, fmt.Errorf("%w: crypt filter %q is not a dictionary", cos.ErrMalformedDictionary, name)
		}
		cfm, _ := filterDict.Get("CFM")
		switch cfm {
		case cos.Name("V2"):
			return MethodRC4, nil
		case cos.Name("AESV2"):
			return MethodAESV2, nil
		case cos.Name("None"), nil:
			return MethodIdentity, nil
		default:
			return MethodIdentity, fmt.Errorf("%w: unsupported CFM %v", cos.ErrUnsupportedEncryption, cfm)
		}
	}

	stm, err = lookup("StmF")
	if err != nil {
		return 0, 0, err
	}
	str, err = lookup("StrF")
	return stm, str, err
}

// padPassword pads/truncates a password to the canonical 32 bytes.
func padPassword(password string) [32]byte {
	var out [32]byte
	n := copy(out[:], password)
	copy(out[n:], padding[:])
	return out
}

// deriveFileKey runs the general key-derivation algorithm (ISO 32000-2
// 7.6.4.3, Algorithm 2) against the given (already-padded) user password
// bytes.
func (h *Handler) deriveFileKey(paddedPassword [32]byte) []byte {
	hash := md5.New()
	hash.Write(paddedPassword[:])
	hash.Write(h.O)
	hash.Write(h.P.bytesLE())
	hash.Write(h.FileID)
	if h.R >= 4 && !h.EncryptMetadata {
		hash.Write([]byte{0xff, 0xff, 0xff, 0xff})
	}
	sum := hash.Sum(nil)

	if h.R >= 3 {
		for i := 0; i < 50; i++ {
			sum2 := md5.Sum(sum[:h.KeyLengthBytes])
			sum = sum2[:]
		}
	}
	return sum[:h.KeyLengthBytes]
}

// computeU computes the expected U entry for the derived file key
// (Algorithm 4 for R2, Algorithm 5 for R>=3).
func (h *Handler) computeU(fileKey []byte) ([]byte, error) {
	if h.R == 2 {
		out, err := arc4(h.Provider, fileKey, padding[:])
		return out, err
	}

	hash := md5.New()
	hash.Write(padding[:])
	hash.Write(h.FileID)
	sum := hash.Sum(nil)

	out, err := arc4(h.Provider, fileKey, sum)
	if err != nil {
		return nil, err
	}
	for i := byte(1); i <= 19; i++ {
		key := xorKey(fileKey, i)
		out, err = arc4(h.Provider, key, out)
		if err != nil {
			return nil, err
		}
	}
	// Algorithm 5 output is 16 bytes; the stored U entry is 32 bytes
	// (16 meaningful + 16 arbitrary padding), so only the prefix is
	// compared.
	return out[:16], nil
}

func xorKey(key []byte, x byte) []byte {
	out := make([]byte, len(key))
	for i, b := range key {
		out[i] = b ^ x
	}
	return out
}

func arc4(p Provider, key, data []byte) ([]byte, error) {
	if p == nil {
		return nil, cos.ErrCryptProviderMissing
	}
	return p.ARC4(key, data)
}

// Authenticate tries password as both the user and owner password and
// returns whether either one validated, deriving and storing the file key
// on success.
func (h *Handler) Authenticate(password string) (bool, error) {
	padded := padPassword(password)

	fileKey := h.deriveFileKey(padded)
	expectedU, err := h.computeU(fileKey)
	if err != nil {
		return false, err
	}
	if bytesHasPrefix(h.U, expectedU) {
		h.fileKey = fileKey
		return true, nil
	}

	// Owner-password path: recover the user password by undoing
	// Algorithm 7, then retry as if it were the user password.
	ownerKey := h.ownerRC4Key(padded)
	recovered, err := h.recoverUserPassword(ownerKey)
	if err != nil {
		return false, err
	}
	userPadded := padPassword(string(recovered))
	fileKey = h.deriveFileKey(userPadded)
	expectedU, err = h.computeU(fileKey)
	if err != nil {
		return false, err
	}
	if bytesHasPrefix(h.U, expectedU) {
		h.fileKey = fileKey
		return true, nil
	}
	return false, nil
}

// ownerRC4Key derives the RC4 key used to decrypt the O entry (Algorithm 7
// step a/b): MD5 of the padded owner password, re-hashed 50 times for
// R>=3, truncated to the key length.
func (h *Handler) ownerRC4Key(paddedOwner [32]byte) []byte {
	sum := md5.Sum(paddedOwner[:])
	out := sum[:]
	if h.R >= 3 {
		for i := 0; i < 50; i++ {
			sum2 := md5.Sum(out[:h.KeyLengthBytes])
			out = sum2[:]
		}
	}
	return out[:h.KeyLengthBytes]
}

// recoverUserPassword undoes the RC4 (R2) or 20-round RC4 (R>=3) transform
// applied to the padded user password to produce the stored O entry.
func (h *Handler) recoverUserPassword(ownerKey []byte) ([]byte, error) {
	data := append([]byte(nil), h.O...)
	if h.R == 2 {
		return arc4(h.Provider, ownerKey, data)
	}
	var err error
	for i := byte(19); ; i-- {
		key := xorKey(ownerKey, i)
		data, err = arc4(h.Provider, key, data)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			break
		}
	}
	return data, nil
}

func bytesHasPrefix(full, prefix []byte) bool {
	if len(full) < len(prefix) {
		return false
	}
	for i := range prefix {
		if full[i] != prefix[i] {
			return false
		}
	}
	return true
}

// ObjectKey derives the per-object key for ref (Algorithm 1): append the
// object number (low 3 bytes, LE) and generation (low 2 bytes, LE) to the
// file key, plus the literal "sAlT" for AES, MD5, truncate to
// min(len(fileKey)+5, 16).
func (h *Handler) ObjectKey(ref cos.Reference, method Method) []byte {
	b := append([]byte(nil), h.fileKey...)
	b = append(b, byte(ref.ObjectNumber), byte(ref.ObjectNumber>>8), byte(ref.ObjectNumber>>16))
	b = append(b, byte(ref.GenerationNumber), byte(ref.GenerationNumber>>8))
	if method == MethodAESV2 {
		b = append(b, 's', 'A', 'l', 'T')
	}
	sum := md5.Sum(b)
	size := len(h.fileKey) + 5
	if size > 16 {
		size = 16
	}
	return sum[:size]
}

// DecryptString decrypts a literal/hex string belonging to ref, using
// StringMethod.
func (h *Handler) DecryptString(ref cos.Reference, data []byte) ([]byte, error) {
	return h.transform(ref, h.StringMethod, data, false)
}

// EncryptString is the inverse of DecryptString.
func (h *Handler) EncryptString(ref cos.Reference, data []byte) ([]byte, error) {
	return h.transform(ref, h.StringMethod, data, true)
}

// DecryptStream decrypts a stream payload belonging to ref, using
// StreamMethod.
func (h *Handler) DecryptStream(ref cos.Reference, data []byte) ([]byte, error) {
	return h.transform(ref, h.StreamMethod, data, false)
}

// EncryptStream is the inverse of DecryptStream.
func (h *Handler) EncryptStream(ref cos.Reference, data []byte) ([]byte, error) {
	return h.transform(ref, h.StreamMethod, data, true)
}

func (h *Handler) transform(ref cos.Reference, method Method, data []byte, encrypt bool) ([]byte, error) {
	if h.fileKey == nil {
		return nil, fmt.Errorf("%w: no password applied", cos.ErrBadPassword)
	}
	switch method {
	case MethodIdentity:
		return data, nil
	case MethodRC4:
		if h.Provider == nil {
			return nil, cos.ErrCryptProviderMissing
		}
		return h.Provider.ARC4(h.ObjectKey(ref, method), data)
	case MethodAESV2:
		if h.Provider == nil {
			return nil, cos.ErrCryptProviderMissing
		}
		key := h.ObjectKey(ref, method)
		if encrypt {
			return h.Provider.AESCBCEncrypt(key, data)
		}
		return h.Provider.AESCBCDecrypt(key, data)
	default:
		return nil, fmt.Errorf("%w: unknown crypt method", cos.ErrUnsupportedEncryption)
	}
}
