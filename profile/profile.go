package profile

import (
	"errors"
	"fmt"
	"time"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/crypto"
	"github.com/opd-ai/openmail/wire"
	"github.com/sirupsen/logrus"
)

// ErrInvalidProfile indicates a profile document whose required fields are
// missing or malformed.
var ErrInvalidProfile = errors.New("invalid profile")

// Field identifiers used by the client directly.
const (
	FieldName             = "name"
	FieldSigningKey       = "signing-key"
	FieldUpdated          = "updated"
	FieldEncryptionKey    = "encryption-key"
	FieldLastSigningKey   = "last-signing-key"
	FieldAway             = "away"
	FieldAwayWarning      = "away-warning"
	FieldLastSeenPublic   = "last-seen-public"
	FieldPublicAccess     = "public-access"
	FieldPublicLinks      = "public-links"
	FieldStatus           = "status"
	FieldAbout            = "about"
	FieldBirthday         = "birthday"
	FieldAddressExpansion = "address-expansion"
)

// Spec describes one profile field.
type Spec struct {
	ID       string
	Kind     Kind
	Required bool
	// Default is used for absent optional fields; nil means absent.
	Default *Value
}

func withDefault(v Value) *Value { return &v }

// Schema lists every known profile field.
var Schema = []Spec{
	{ID: FieldName, Kind: KindString, Required: true},
	{ID: FieldSigningKey, Kind: KindKey, Required: true},
	{ID: FieldUpdated, Kind: KindDateTime, Required: true},

	{ID: FieldAbout, Kind: KindString},
	{ID: FieldAddressExpansion, Kind: KindString},
	{ID: FieldAwayWarning, Kind: KindString},
	{ID: FieldBirthday, Kind: KindDate},
	{ID: "books", Kind: KindString},
	{ID: "department", Kind: KindString},
	{ID: "education", Kind: KindString},
	{ID: FieldEncryptionKey, Kind: KindKey},
	{ID: "gender", Kind: KindString},
	{ID: "interests", Kind: KindString},
	{ID: "job-title", Kind: KindString},
	{ID: "languages", Kind: KindString},
	{ID: FieldLastSigningKey, Kind: KindKey},
	{ID: "location", Kind: KindString},
	{ID: "mailing-address", Kind: KindString},
	{ID: "movies", Kind: KindString},
	{ID: "music", Kind: KindString},
	{ID: "notes", Kind: KindString},
	{ID: "organization", Kind: KindString},
	{ID: "phone", Kind: KindString},
	{ID: "places-lived", Kind: KindString},
	{ID: "relationship-status", Kind: KindString},
	{ID: "sports", Kind: KindString},
	{ID: "streams", Kind: KindString},
	{ID: FieldStatus, Kind: KindString},
	{ID: "website", Kind: KindString},
	{ID: "work", Kind: KindString},

	{ID: FieldAway, Kind: KindBool, Default: withDefault(BoolValue(false))},
	{ID: FieldLastSeenPublic, Kind: KindBool, Default: withDefault(BoolValue(true))},
	{ID: FieldPublicAccess, Kind: KindBool, Default: withDefault(BoolValue(true))},
	{ID: FieldPublicLinks, Kind: KindBool, Default: withDefault(BoolValue(true))},
}

// Lookup returns the Spec for id.
func Lookup(id string) (Spec, bool) {
	for _, s := range Schema {
		if s.ID == id {
			return s, true
		}
	}
	return Spec{}, false
}

// Profile is the parsed public profile of an address. It is never modified
// after Parse returns.
type Profile struct {
	address address.Address
	fields  map[string]Value
}

// Parse parses a profile document for addr. A missing or malformed required
// field fails the whole profile with ErrInvalidProfile; a malformed optional
// field is treated as absent.
func Parse(addr address.Address, text string) (*Profile, error) {
	raw := wire.ParseFields(text)
	p := &Profile{address: addr, fields: make(map[string]Value, len(Schema))}

	for _, spec := range Schema {
		value, present := raw[spec.ID]
		if !present {
			if spec.Required {
				return nil, fmt.Errorf("%w: required field %q does not exist", ErrInvalidProfile, spec.ID)
			}
			if spec.Default != nil {
				p.fields[spec.ID] = *spec.Default
			}
			continue
		}

		parsed, ok := ParseValue(spec.Kind, value)
		if !ok {
			if spec.Required {
				return nil, fmt.Errorf("%w: required field %q contains invalid data", ErrInvalidProfile, spec.ID)
			}
			logrus.WithFields(logrus.Fields{
				"function": "Parse",
				"address":  addr.String(),
				"field":    spec.ID,
			}).Debug("Ignoring malformed optional profile field")
			continue
		}
		p.fields[spec.ID] = parsed
	}

	return p, nil
}

// Address returns the address the profile belongs to.
func (p *Profile) Address() address.Address { return p.address }

// Get returns the value of field id, if present.
func (p *Profile) Get(id string) (Value, bool) {
	v, ok := p.fields[id]
	return v, ok
}

// String returns a string field, or "" when absent.
func (p *Profile) String(id string) string {
	return p.fields[id].Str
}

// Bool returns a bool field, or false when absent.
func (p *Profile) Bool(id string) bool {
	return p.fields[id].Bool
}

// Name returns the required display name.
func (p *Profile) Name() string { return p.fields[FieldName].Str }

// SigningKey returns the required current signing key.
func (p *Profile) SigningKey() crypto.Key { return p.fields[FieldSigningKey].Key }

// Updated returns the required last update time.
func (p *Profile) Updated() time.Time { return p.fields[FieldUpdated].Time }

// EncryptionKey returns the encryption key, if published.
func (p *Profile) EncryptionKey() (crypto.Key, bool) {
	v, ok := p.fields[FieldEncryptionKey]
	return v.Key, ok
}

// LastSigningKey returns the previous signing key, if published.
func (p *Profile) LastSigningKey() (crypto.Key, bool) {
	v, ok := p.fields[FieldLastSigningKey]
	return v.Key, ok
}

// SigningKeys returns the current signing key followed by the last one, if
// any.
func (p *Profile) SigningKeys() []crypto.Key {
	keys := []crypto.Key{p.SigningKey()}
	if last, ok := p.LastSigningKey(); ok {
		keys = append(keys, last)
	}
	return keys
}

// MatchesFingerprint reports whether fp identifies the current or last
// signing key.
func (p *Profile) MatchesFingerprint(fp string) bool {
	for _, k := range p.SigningKeys() {
		if crypto.Fingerprint(k) == fp {
			return true
		}
	}
	return false
}

// Fields returns the present fields as wire pairs in Schema order.
func (p *Profile) Fields() []wire.Pair {
	var out []wire.Pair
	for _, spec := range Schema {
		if v, ok := p.fields[spec.ID]; ok {
			out = append(out, wire.P(spec.ID, v.Wire()))
		}
	}
	return out
}
