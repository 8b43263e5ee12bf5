package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
)

// Sign signs data with an Ed25519 private key (32-byte seed or 64-byte
// expanded key) and returns the Base64-encoded signature.
func Sign(private Key, data []byte) (string, error) {
	var signingKey ed25519.PrivateKey
	switch len(private.Data) {
	case ed25519.SeedSize:
		signingKey = ed25519.NewKeyFromSeed(private.Data)
	case ed25519.PrivateKeySize:
		signingKey = ed25519.PrivateKey(private.Data)
	default:
		return "", newError("sign", fmt.Errorf("%w: %w: %d", ErrSign, ErrInvalidKeyLength, len(private.Data)))
	}

	signature := ed25519.Sign(signingKey, data)
	return base64.StdEncoding.EncodeToString(signature), nil
}

// Verify checks a Base64-encoded Ed25519 signature over data.
func Verify(public Key, data []byte, signatureB64 string) error {
	if len(public.Data) != ed25519.PublicKeySize {
		return newError("verify", fmt.Errorf("%w: %d", ErrInvalidKeyLength, len(public.Data)))
	}

	signature, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return newError("verify", fmt.Errorf("%w: %w", ErrVerify, err))
	}

	if !ed25519.Verify(ed25519.PublicKey(public.Data), data, signature) {
		return newError("verify", ErrVerify)
	}
	return nil
}
