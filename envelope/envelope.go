package envelope

import (
	"encoding/hex"
	"fmt"
	"slices"
	"time"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/crypto"
	"github.com/opd-ai/openmail/wire"
)

// Envelope is a validated incoming message header. It is immutable once
// returned by Parse.
type Envelope struct {
	ID string
	// Author is the address whose agents serve the message.
	Author address.Address
	// Origin is the Author field of the content headers.
	Origin    address.Address
	Date      time.Time
	Subject   string
	SubjectID string
	ParentID  string
	Category  string
	// Size is the plaintext body size, from the content headers when present.
	Size int
	// BodyChecksum is the hex SHA-256 of the plaintext body; empty when the
	// sender did not declare one.
	BodyChecksum string
	Readers      []address.Address
	// Files maps attachment part message ids to their descriptors.
	Files map[string]Attachment
	// File is set on attachment part messages.
	File *Attachment
	// AccessKey is the recovered symmetric key, nil for broadcasts and for
	// messages that could not be opened.
	AccessKey []byte

	header    map[string]string
	encrypted bool
	readable  bool
}

// IsBroadcast reports whether the message carries no access entries.
func (e *Envelope) IsBroadcast() bool { return !e.encrypted }

// IsChild reports whether the message names a parent.
func (e *Envelope) IsChild() bool { return e.ParentID != "" }

// Readable reports whether the content headers were recovered. An encrypted
// message not addressed to the reader parses as an unreadable envelope
// carrying only its id and author.
func (e *Envelope) Readable() bool { return e.readable }

// Header returns the normalized wire header value for name.
func (e *Envelope) Header(name string) string {
	return e.header[normalizeName(name)]
}

// RawHeader returns a copy of the normalized wire headers.
func (e *Envelope) RawHeader() map[string]string {
	out := make(map[string]string, len(e.header))
	for k, v := range e.header {
		out[k] = v
	}
	return out
}

// VerifySignature checks Message-Signature against keys; any one of them
// verifying is enough.
func (e *Envelope) VerifySignature(keys ...crypto.Key) error {
	sig := wire.ParseAttrs(e.header[normalizeName(HeaderMessageSignature)])
	value := sig["value"]
	if value == "" {
		return fmt.Errorf("%w: %s", ErrMissingHeader, HeaderMessageSignature)
	}

	checksum := wire.ParseAttrs(e.header[normalizeName(HeaderMessageChecksum)])
	digest, err := hex.DecodeString(checksum["value"])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}

	for _, k := range keys {
		if crypto.Verify(k, digest, value) == nil {
			return nil
		}
	}
	return ErrSignature
}

// DecryptBody turns a fetched body into plaintext: broadcasts pass through,
// encrypted bodies are opened with the access key.
func (e *Envelope) DecryptBody(data []byte) ([]byte, error) {
	if !e.encrypted {
		return data, nil
	}
	if e.AccessKey == nil {
		return nil, ErrUnreadable
	}
	return crypto.DecryptSymmetric(data, e.AccessKey)
}

// VerifyBody checks plaintext against the declared body checksum. Messages
// without a declared checksum always pass.
func (e *Envelope) VerifyBody(plaintext []byte) error {
	if e.BodyChecksum == "" {
		return nil
	}
	if crypto.Checksum(plaintext) != e.BodyChecksum {
		return fmt.Errorf("%w: body of %s", ErrChecksumMismatch, shortID(e.ID))
	}
	return nil
}

// HasReader reports whether addr is a declared reader.
func (e *Envelope) HasReader(addr address.Address) bool {
	return slices.Contains(e.Readers, addr)
}
