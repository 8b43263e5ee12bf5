package openmail

import (
	"fmt"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/credential"
	"github.com/opd-ai/openmail/crypto"
	"github.com/opd-ai/openmail/envelope"
	"github.com/opd-ai/openmail/messaging"
	"github.com/opd-ai/openmail/profile"
)

// User is the identity a session acts as: an address with its signing and
// encryption key pairs. It implements interfaces.Signer.
type User struct {
	Address    address.Address
	Signing    crypto.KeyPair
	Encryption crypto.KeyPair
}

// NewUser generates fresh key pairs for addr, ready for Register.
func NewUser(addr address.Address) (*User, error) {
	signing, err := crypto.GenerateSigningKeyPair()
	if err != nil {
		return nil, err
	}
	encryption, err := crypto.GenerateEncryptionKeyPair()
	if err != nil {
		return nil, err
	}
	return &User{Address: addr, Signing: *signing, Encryption: *encryption}, nil
}

// UserFromBase64 restores a user from stored key material. Each key pair is
// Base64 of a 32-byte private key (public derived) or of private‖public.
func UserFromBase64(addr, signing, encryption, encryptionKeyID string) (*User, error) {
	a, err := address.Parse(addr)
	if err != nil {
		return nil, err
	}
	s, err := crypto.SigningKeyPairFromBase64(signing)
	if err != nil {
		return nil, fmt.Errorf("signing keys: %w", err)
	}
	e, err := crypto.EncryptionKeyPairFromBase64(encryption, encryptionKeyID)
	if err != nil {
		return nil, fmt.Errorf("encryption keys: %w", err)
	}
	return &User{Address: a, Signing: *s, Encryption: *e}, nil
}

// UserFromCredential restores a user saved with Credential.
func UserFromCredential(id credential.Identity) (*User, error) {
	return UserFromBase64(id.Address, id.SigningKeys, id.EncryptionKeys, id.EncryptionKeyID)
}

// Credential returns the form stored in the keyring.
func (u *User) Credential() credential.Identity {
	return credential.Identity{
		Address:         u.Address.String(),
		SigningKeys:     u.Signing.String(),
		EncryptionKeys:  u.Encryption.String(),
		EncryptionKeyID: u.Encryption.Public.ID,
	}
}

// Authorization implements interfaces.Signer.
func (u *User) Authorization(agent string) (string, error) {
	return crypto.Authorization(agent, u.Signing)
}

// Identity returns the public keys a profile advertises.
func (u *User) Identity() profile.Identity {
	return profile.Identity{Address: u.Address, Signing: u.Signing.Public, Encryption: u.Encryption.Public}
}

func (u *User) author() envelope.Author {
	return envelope.Author{Address: u.Address, Signing: u.Signing, EncryptionKeyID: u.Encryption.Public.ID}
}

func (u *User) reader() messaging.Reader {
	return messaging.Reader{Address: u.Address, Signer: u, EncryptionKey: u.Encryption.Private}
}

// Wipe zeroes the key material.
func (u *User) Wipe() {
	u.Signing.Wipe()
	u.Encryption.Wipe()
}
