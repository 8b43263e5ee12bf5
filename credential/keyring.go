package credential

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
	"github.com/sirupsen/logrus"
)

const (
	serviceName = "openemail"
	identityKey = "identity"
)

// ErrNotFound indicates no identity is stored.
var ErrNotFound = errors.New("no stored identity")

// Identity is the key material of a session, as stored in the keyring.
// Key pairs are Base64 private‖public.
type Identity struct {
	Address         string `json:"address"`
	SigningKeys     string `json:"signing_keys"`
	EncryptionKeys  string `json:"encryption_keys"`
	EncryptionKeyID string `json:"encryption_key_id"`
}

// Store keeps one Identity in a keyring.
type Store struct {
	ring keyring.Keyring
}

// NewStore wraps an open keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Open returns a Store on the system keyring, falling back to an encrypted
// file under fileDir.
func Open(fileDir string) (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(serviceName + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewStore(ring), nil
}

// Save stores id, replacing any previous identity.
func (s *Store) Save(id Identity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("encoding identity: %w", err)
	}

	err = s.ring.Set(keyring.Item{
		Key:         identityKey,
		Data:        data,
		Label:       "Mail/HTTPS identity " + id.Address,
		Description: "signing and encryption keys",
	})
	if err != nil {
		return fmt.Errorf("storing identity: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Store.Save",
		"address":  id.Address,
	}).Debug("Stored identity in keyring")
	return nil
}

// Load returns the stored identity.
func (s *Store) Load() (Identity, error) {
	item, err := s.ring.Get(identityKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return Identity{}, ErrNotFound
	}
	if err != nil {
		return Identity{}, fmt.Errorf("reading identity: %w", err)
	}

	var id Identity
	if err := json.Unmarshal(item.Data, &id); err != nil {
		return Identity{}, fmt.Errorf("decoding identity: %w", err)
	}
	return id, nil
}

// Delete removes the stored identity. Deleting a missing identity is not an
// error.
func (s *Store) Delete() error {
	err := s.ring.Remove(identityKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting identity: %w", err)
	}
	return nil
}
