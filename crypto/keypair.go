package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// Algorithm identifiers used on the wire.
const (
	AnonymousEncryptionCipher = "curve25519xsalsa20poly1305"
	ChecksumAlgorithm         = "sha256"
	SigningAlgorithm          = "ed25519"
	SymmetricCipher           = "xchacha20poly1305"
)

// KeySize is the length of every private and public key used by the protocol.
const KeySize = 32

// encryptionKeyIDLength is the length of the random id attached to new
// encryption keys.
const encryptionKeyIDLength = 4

// Key is a key of Algorithm whose raw bytes are Data, with an optional ID.
type Key struct {
	Data      []byte
	Algorithm string
	ID        string
}

// String returns the Base64 encoding of the key bytes.
func (k Key) String() string {
	return base64.StdEncoding.EncodeToString(k.Data)
}

// IsZero reports whether the key carries no data.
func (k Key) IsZero() bool {
	return len(k.Data) == 0
}

// Equal reports whether two keys hold the same bytes.
func (k Key) Equal(other Key) bool {
	if len(k.Data) != len(other.Data) {
		return false
	}
	for i := range k.Data {
		if k.Data[i] != other.Data[i] {
			return false
		}
	}
	return true
}

// array copies the key into a fixed-size array, failing on a bad length.
func (k Key) array(op string) (*[KeySize]byte, error) {
	if len(k.Data) != KeySize {
		return nil, newError(op, fmt.Errorf("%w: %d", ErrInvalidKeyLength, len(k.Data)))
	}
	var out [KeySize]byte
	copy(out[:], k.Data)
	return &out, nil
}

// KeyPair couples a private key with its public key.
type KeyPair struct {
	Private Key
	Public  Key
}

// String returns the Base64 encoding of private‖public, the form used to
// store key material.
func (kp KeyPair) String() string {
	raw := make([]byte, 0, len(kp.Private.Data)+len(kp.Public.Data))
	raw = append(raw, kp.Private.Data...)
	raw = append(raw, kp.Public.Data...)
	return base64.StdEncoding.EncodeToString(raw)
}

// GenerateSigningKeyPair creates a new Ed25519 key pair. The private key is
// the 32-byte seed.
func GenerateSigningKeyPair() (*KeyPair, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, newError("generate signing key", err)
	}

	return &KeyPair{
		Private: Key{Data: private.Seed(), Algorithm: SigningAlgorithm},
		Public:  Key{Data: []byte(public), Algorithm: SigningAlgorithm},
	}, nil
}

// GenerateEncryptionKeyPair creates a new Curve25519 key pair for sealed-box
// encryption. The public key gets a short random id.
func GenerateEncryptionKeyPair() (*KeyPair, error) {
	public, private, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, newError("generate encryption key", err)
	}

	id, err := RandomString(encryptionKeyIDLength)
	if err != nil {
		return nil, newError("generate encryption key", err)
	}

	return &KeyPair{
		Private: Key{Data: private[:], Algorithm: AnonymousEncryptionCipher},
		Public:  Key{Data: public[:], Algorithm: AnonymousEncryptionCipher, ID: id},
	}, nil
}

// SigningKeyPairFromBase64 decodes stored signing key material. A 32-byte
// value is a seed whose public key is derived; a 64-byte value is
// private‖public.
func SigningKeyPairFromBase64(b64 string) (*KeyPair, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, newError("decode signing key", err)
	}

	switch len(raw) {
	case KeySize:
		public := ed25519.NewKeyFromSeed(raw).Public().(ed25519.PublicKey)
		return &KeyPair{
			Private: Key{Data: raw, Algorithm: SigningAlgorithm},
			Public:  Key{Data: []byte(public), Algorithm: SigningAlgorithm},
		}, nil
	case 2 * KeySize:
		return &KeyPair{
			Private: Key{Data: raw[:KeySize], Algorithm: SigningAlgorithm},
			Public:  Key{Data: raw[KeySize:], Algorithm: SigningAlgorithm},
		}, nil
	default:
		return nil, newError("decode signing key", fmt.Errorf("%w: %d", ErrInvalidKeyLength, len(raw)))
	}
}

// EncryptionKeyPairFromBase64 decodes stored encryption key material the same
// way as SigningKeyPairFromBase64, deriving the Curve25519 public key when
// only the private key is present. keyID is attached to the public key.
func EncryptionKeyPairFromBase64(b64, keyID string) (*KeyPair, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, newError("decode encryption key", err)
	}

	var private, public []byte
	switch len(raw) {
	case KeySize:
		private = raw
		public, err = DerivePublicEncryptionKey(raw)
		if err != nil {
			return nil, err
		}
	case 2 * KeySize:
		private, public = raw[:KeySize], raw[KeySize:]
	default:
		return nil, newError("decode encryption key", fmt.Errorf("%w: %d", ErrInvalidKeyLength, len(raw)))
	}

	return &KeyPair{
		Private: Key{Data: private, Algorithm: AnonymousEncryptionCipher},
		Public:  Key{Data: public, Algorithm: AnonymousEncryptionCipher, ID: keyID},
	}, nil
}

// DerivePublicEncryptionKey computes the Curve25519 public key for a private key.
func DerivePublicEncryptionKey(private []byte) ([]byte, error) {
	if len(private) != KeySize {
		return nil, newError("derive public key", fmt.Errorf("%w: %d", ErrInvalidKeyLength, len(private)))
	}
	public, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return nil, newError("derive public key", err)
	}
	return public, nil
}

// DerivePublicSigningKey computes the Ed25519 public key for a 32-byte seed.
func DerivePublicSigningKey(seed []byte) ([]byte, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, newError("derive public key", fmt.Errorf("%w: %d", ErrInvalidKeyLength, len(seed)))
	}
	return ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey), nil
}
