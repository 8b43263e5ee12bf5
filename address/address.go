package address

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/opd-ai/openmail/crypto"
)

var (
	// ErrInvalidAddress is the root of every address parsing failure.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrMalformedAddress indicates text that does not match the address grammar.
	ErrMalformedAddress = fmt.Errorf("%w: malformed", ErrInvalidAddress)

	// ErrMultipleAt indicates text containing more than one '@'.
	ErrMultipleAt = fmt.Errorf("%w: more than a single @ character", ErrInvalidAddress)
)

var grammar = regexp.MustCompile(`^[a-z0-9][a-z0-9.\-_+]{2,}@[a-z0-9.-]+\.([a-z]{2,}|xn--[a-z0-9]{2,})$`)

// messageIDNonceLength is the number of random characters mixed into a
// message id.
const messageIDNonceLength = 24

// Address is a validated, lower-case Mail/HTTPS address. The zero value is
// not a valid address.
type Address struct {
	local string
	host  string
}

// Parse lower-cases text and validates it against the address grammar.
func Parse(text string) (Address, error) {
	canonical := strings.ToLower(strings.TrimSpace(text))

	if strings.Count(canonical, "@") > 1 {
		return Address{}, fmt.Errorf("%w: %q", ErrMultipleAt, canonical)
	}
	if !grammar.MatchString(canonical) {
		return Address{}, fmt.Errorf("%w: %q", ErrMalformedAddress, canonical)
	}

	local, host, _ := strings.Cut(canonical, "@")
	return Address{local: local, host: host}, nil
}

// MustParse is like Parse but panics on error. It is meant for constants
// and tests.
func MustParse(text string) Address {
	a, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return a
}

// LocalPart returns the part before '@'.
func (a Address) LocalPart() string { return a.local }

// HostPart returns the domain after '@'.
func (a Address) HostPart() string { return a.host }

// IsZero reports whether a is the zero Address.
func (a Address) IsZero() bool { return a.local == "" && a.host == "" }

// String returns the canonical local@host form.
func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	return a.local + "@" + a.host
}

// Compare orders addresses by their canonical form.
func (a Address) Compare(other Address) int {
	return strings.Compare(a.String(), other.String())
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Link returns the pairwise identifier of two addresses: the hex SHA-256 of
// the smaller canonical form followed by the larger. Link(a, b) == Link(b, a).
func Link(first, second Address) string {
	lo, hi := first.String(), second.String()
	if hi < lo {
		lo, hi = hi, lo
	}
	sum := sha256.Sum256([]byte(lo + hi))
	return hex.EncodeToString(sum[:])
}

// NewMessageID returns a fresh message id for author.
func NewMessageID(author Address) (string, error) {
	nonce, err := crypto.RandomString(messageIDNonceLength)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(nonce + author.host + author.local))
	return hex.EncodeToString(sum[:]), nil
}

// ParseList parses a comma-separated address list, skipping entries that
// do not parse.
func ParseList(text string) []Address {
	var out []Address
	for _, item := range strings.Split(text, ",") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		a, err := Parse(item)
		if err != nil {
			continue
		}
		out = append(out, a)
	}
	return out
}

// JoinList renders addresses as a comma-separated list.
func JoinList(addresses []Address) string {
	parts := make([]string, len(addresses))
	for i, a := range addresses {
		parts[i] = a.String()
	}
	return strings.Join(parts, ",")
}
