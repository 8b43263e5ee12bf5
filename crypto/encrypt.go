package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/nacl/box"
)

// AccessKeySize is the size of a symmetric message access key.
const AccessKeySize = chacha20poly1305.KeySize

// EncryptAnonymous seals data for the holder of the private key matching
// public. The sender is not authenticated.
func EncryptAnonymous(data []byte, public Key) ([]byte, error) {
	recipient, err := public.array("encrypt anonymous")
	if err != nil {
		return nil, err
	}

	sealed, err := box.SealAnonymous(nil, data, recipient, rand.Reader)
	if err != nil {
		return nil, newError("encrypt anonymous", fmt.Errorf("%w: %w", ErrEncrypt, err))
	}

	NewLogger("EncryptAnonymous").
		WithFields(SecureFieldHash(public.Data, "recipient")).
		WithField("plaintext_size", len(data)).
		Debug("Sealed data for recipient")

	return sealed, nil
}

// EncryptSymmetric encrypts data under a 256-bit key with
// XChaCha20-Poly1305. The random 24-byte nonce is prefixed to the result.
func EncryptSymmetric(data, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, newError("encrypt symmetric", fmt.Errorf("%w: %w", ErrInvalidKeyLength, err))
	}

	out := make([]byte, aead.NonceSize(), aead.NonceSize()+len(data)+aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, newError("encrypt symmetric", fmt.Errorf("%w: %w", ErrEncrypt, err))
	}

	return aead.Seal(out, out[:aead.NonceSize()], data, nil), nil
}
