package envelope

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Wire header names.
const (
	HeaderMessageID         = "Message-Id"
	HeaderContentType       = "Content-Type"
	HeaderContentLength     = "Content-Length"
	HeaderMessageAccess     = "Message-Access"
	HeaderMessageEncryption = "Message-Encryption"
	HeaderMessageHeaders    = "Message-Headers"
	HeaderMessageChecksum   = "Message-Checksum"
	HeaderMessageSignature  = "Message-Signature"
)

// ContentType is the Content-Type of every message body.
const ContentType = "application/octet-stream"

// CategoryPersonal is the category written on outgoing messages.
const CategoryPersonal = "personal"

var (
	// ErrInvalidEnvelope is the root of every envelope validation failure.
	ErrInvalidEnvelope = errors.New("invalid envelope")

	// ErrChecksumMismatch indicates a Message-Checksum that does not match
	// the declared fields, or a declared order missing canonical fields.
	ErrChecksumMismatch = fmt.Errorf("%w: checksum mismatch", ErrInvalidEnvelope)

	// ErrMissingHeader indicates a required wire or content header is absent.
	ErrMissingHeader = fmt.Errorf("%w: missing header", ErrInvalidEnvelope)

	// ErrUnreadable indicates an encrypted message whose access key could
	// not be recovered with the recipient's key.
	ErrUnreadable = errors.New("message not readable with this key")

	// ErrSignature indicates a Message-Signature that does not verify
	// against any of the author's signing keys.
	ErrSignature = fmt.Errorf("%w: signature does not verify", ErrInvalidEnvelope)
)

// Canonical checksum field lists, sorted lexicographically. Build signs
// exactly these fields; Parse requires every one of them that is present on
// a message to appear in the declared order.
var (
	BroadcastChecksumFields = []string{HeaderMessageHeaders, HeaderMessageID}
	EncryptedChecksumFields = []string{HeaderMessageAccess, HeaderMessageEncryption, HeaderMessageHeaders, HeaderMessageID}
)

// ChecksumFields returns a copy of the canonical field list.
func ChecksumFields(encrypted bool) []string {
	fields := BroadcastChecksumFields
	if encrypted {
		fields = EncryptedChecksumFields
	}
	out := append([]string(nil), fields...)
	sort.Strings(out)
	return out
}

// checksumDigest concatenates the values of fields, looked up
// case-insensitively in header (absent fields count as empty), and hashes
// the result with SHA-256.
func checksumDigest(header map[string]string, fields []string) [sha256.Size]byte {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(header[strings.ToLower(strings.TrimSpace(f))])
	}
	return sha256.Sum256([]byte(b.String()))
}

// normalize lower-cases header names and trims values.
func normalize(raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
