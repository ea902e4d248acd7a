// Package crypt implements the Standard security handler (C4): password
// based key derivation and per-object (de)cryption for encryption
// revisions 2, 3 and 4. The actual cipher primitives are supplied by the
// caller through the Provider interface; this package ships only the
// no-op Identity provider, since third-party cryptographic primitives are
// an external collaborator's concern, not this core's.
package crypt


// Provider is the injected cryptographic primitive set. Cryptographic
// library choice is a runtime concern: a caller links crypto/rc4 and
// crypto/aes (or any other implementation) and passes a Provider in.
type Provider interface {
	// ARC4 applies the RC4 stream cipher with key to data and returns the
	// (symmetric) transformed bytes.
	ARC4(key, data []byte) ([]byte, error)
	// AESCBCDecrypt decrypts data (PKCS#7-padded, IV as the first 16
	// bytes of the ciphertext per spec) and returns the unpadded
	// plaintext.
	AESCBCDecrypt(key, data []byte) ([]byte, error)
	// AESCBCEncrypt pads data with PKCS#7, prepends a random IV, and
	// returns the ciphertext.
	AESCBCEncrypt(key, data []byte) ([]byte, error)
}

// IdentityProvider implements Provider as a no-op: ARC4 and AES calls
// return their input unchanged. It is the only Provider this core ships,
// matching the "core ships an Identity primitive only" design: callers
// that need genuine encryption/decryption must inject a real provider.
type IdentityProvider struct{}

func (IdentityProvider) ARC4(_, data []byte) ([]byte, error) { return data, nil }

func (IdentityProvider) AESCBCDecrypt(_, data []byte) ([]byte, error) { return data, nil }

func (IdentityProvider) AESCBCEncrypt(_, data []byte) ([]byte, error) { return data, nil }
