package crypto

import (
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/nacl/box"
)

// DecryptAnonymous opens a sealed box with the recipient's private key.
func DecryptAnonymous(ciphertext []byte, private Key) ([]byte, error) {
	privateKey, err := private.array("decrypt anonymous")
	if err != nil {
		return nil, err
	}

	public, err := DerivePublicEncryptionKey(privateKey[:])
	if err != nil {
		return nil, err
	}
	var publicKey [KeySize]byte
	copy(publicKey[:], public)

	plaintext, ok := box.OpenAnonymous(nil, ciphertext, &publicKey, privateKey)
	if !ok {
		return nil, newError("decrypt anonymous", ErrDecrypt)
	}
	return plaintext, nil
}

// DecryptSymmetric reverses EncryptSymmetric.
func DecryptSymmetric(data, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, newError("decrypt symmetric", fmt.Errorf("%w: %w", ErrInvalidKeyLength, err))
	}

	if len(data) < aead.NonceSize()+aead.Overhead() {
		return nil, newError("decrypt symmetric", fmt.Errorf("%w: ciphertext too short", ErrDecrypt))
	}

	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, newError("decrypt symmetric", ErrDecrypt)
	}
	return plaintext, nil
}
