package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rc4"
	"fmt"
	"io"
	"testing"

	"github.com/aescarias/pdfnaut-go/cos"
)

// stdlibProvider is a reference Provider built on the standard library,
// used only to exercise Handler in tests. The core itself ships only
// IdentityProvider; real callers bring their own Provider the same way
// this test does.
type stdlibProvider struct{}

func (stdlibProvider) ARC4(key, data []byte) ([]byte, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

func (stdlibProvider) AESCBCEncrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padLen := aes.BlockSize - len(data)%aes.BlockSize
	padded := append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)

	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

func (stdlibProvider) AESCBCDecrypt(key, data []byte) ([]byte, error) {
	if len(data) < aes.BlockSize || (len(data)-aes.BlockSize)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("crypt: bad AES payload length %d", len(data))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv, ct := data[:aes.BlockSize], data[aes.BlockSize:]
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)
	if len(out) == 0 {
		return out, nil
	}
	padLen := int(out[len(out)-1])
	if padLen == 0 || padLen > len(out) {
		return nil, fmt.Errorf("crypt: bad PKCS#7 padding")
	}
	return out[:len(out)-padLen], nil
}

// buildFixture constructs a self-consistent R3/V2 Handler plus the O/U
// bytes a real producer would store, given userPassword/ownerPassword.
func buildFixture(t *testing.T, userPassword, ownerPassword string) (h *Handler, fileID []byte) {
	t.Helper()
	fileID = []byte("0123456789abcdef")

	h = &Handler{
		Provider:        stdlibProvider{},
		R:               3,
		V:               2,
		KeyLengthBytes:  16,
		FileID:          fileID,
		EncryptMetadata: true,
		StreamMethod:    MethodRC4,
		StringMethod:    MethodRC4,
		P:               Permissions(-4),
	}

	// Algorithm 3: compute O from the owner password.
	ownerKey := h.ownerRC4Key(padPassword(ownerPassword))
	userPadded := padPassword(userPassword)
	data := append([]byte(nil), userPadded[:]...)
	var err error
	for i := byte(0); i <= 19; i++ {
		key := xorKey(ownerKey, i)
		data, err = stdlibProvider{}.ARC4(key, data)
		if err != nil {
			t.Fatalf("ARC4: %v", err)
		}
	}
	h.O = data

	// Algorithm 2 + Algorithm 5: derive the file key from the user
	// password, then compute U.
	fileKey := h.deriveFileKey(userPadded)
	u, err := h.computeU(fileKey)
	if err != nil {
		t.Fatalf("computeU: %v", err)
	}
	h.U = append(append([]byte(nil), u...), make([]byte, 16)...)

	return h, fileID
}

func TestAuthenticateUserPassword(t *testing.T) {
	h, _ := buildFixture(t, "secret", "ownersecret")
	ok, err := h.Authenticate("secret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !ok {
		t.Fatalf("expected user password to authenticate")
	}
}

func TestAuthenticateOwnerPasswordRecoversUserKey(t *testing.T) {
	h, _ := buildFixture(t, "secret", "ownersecret")
	ok, err := h.Authenticate("ownersecret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !ok {
		t.Fatalf("expected owner password to authenticate via recovery")
	}
}

func TestAuthenticateWrongPasswordFails(t *testing.T) {
	h, _ := buildFixture(t, "secret", "ownersecret")
	ok, err := h.Authenticate("wrong")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if ok {
		t.Fatalf("wrong password must not authenticate")
	}
}

func TestObjectKeyDerivationVariesWithReference(t *testing.T) {
	h, _ := buildFixture(t, "", "")
	if ok, err := h.Authenticate(""); err != nil || !ok {
		t.Fatalf("Authenticate: ok=%v err=%v", ok, err)
	}

	k1 := h.ObjectKey(cos.Reference{ObjectNumber: 3, GenerationNumber: 0}, MethodRC4)
	k2 := h.ObjectKey(cos.Reference{ObjectNumber: 4, GenerationNumber: 0}, MethodRC4)
	if bytes.Equal(k1, k2) {
		t.Fatalf("object keys for distinct object numbers must differ")
	}
	want := h.KeyLengthBytes + 5
	if want > 16 {
		want = 16
	}
	if len(k1) != want {
		t.Fatalf("object key length = %d, want %d", len(k1), want)
	}
}

func TestEncryptDecryptStreamRoundTrip(t *testing.T) {
	h, _ := buildFixture(t, "pw", "pw-owner")
	if ok, err := h.Authenticate("pw"); err != nil || !ok {
		t.Fatalf("Authenticate: ok=%v err=%v", ok, err)
	}

	ref := cos.Reference{ObjectNumber: 7, GenerationNumber: 0}
	plain := []byte("stream contents go here")

	encrypted, err := h.EncryptStream(ref, plain)
	if err != nil {
		t.Fatalf("EncryptStream: %v", err)
	}
	decrypted, err := h.DecryptStream(ref, encrypted)
	if err != nil {
		t.Fatalf("DecryptStream: %v", err)
	}
	if !bytes.Equal(decrypted, plain) {
		t.Fatalf("round trip mismatch: got %q want %q", decrypted, plain)
	}
}

func TestEncryptDecryptStringRoundTripAESV2(t *testing.T) {
	h, _ := buildFixture(t, "pw", "pw-owner")
	h.StringMethod = MethodAESV2
	if ok, err := h.Authenticate("pw"); err != nil || !ok {
		t.Fatalf("Authenticate: ok=%v err=%v", ok, err)
	}

	ref := cos.Reference{ObjectNumber: 12, GenerationNumber: 0}
	plain := []byte("a literal string value")

	encrypted, err := h.EncryptString(ref, plain)
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	decrypted, err := h.DecryptString(ref, encrypted)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	if !bytes.Equal(decrypted, plain) {
		t.Fatalf("round trip mismatch: got %q want %q", decrypted, plain)
	}
}

func TestTransformWithoutAuthenticateFails(t *testing.T) {
	h, _ := buildFixture(t, "pw", "pw-owner")
	ref := cos.Reference{ObjectNumber: 1, GenerationNumber: 0}
	if _, err := h.DecryptStream(ref, []byte("x")); err == nil {
		t.Fatalf("expected an error before Authenticate has derived a file key")
	}
}
