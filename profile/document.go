package profile

import (
	"strings"
	"time"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/crypto"
	"github.com/opd-ai/openmail/wire"
)

// managed fields are always written from the session's keys and clock.
var managed = map[string]bool{
	FieldUpdated:       true,
	FieldEncryptionKey: true,
	FieldSigningKey:    true,
}

// Identity is the key material a published profile advertises.
type Identity struct {
	Address    address.Address
	Signing    crypto.Key
	Encryption crypto.Key
}

// FieldKey renders a field id the way documents spell it ("job-title" ->
// "Job-Title").
func FieldKey(id string) string {
	parts := strings.Split(id, "-")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "-")
}

func encryptionKeyAttrs(k crypto.Key) string {
	id := k.ID
	if id == "" {
		id = "0"
	}
	return wire.Attrs(
		wire.P("id", id),
		wire.P("algorithm", crypto.AnonymousEncryptionCipher),
		wire.P("value", k.String()),
	)
}

func signingKeyAttrs(k crypto.Key) string {
	return wire.Attrs(
		wire.P("algorithm", crypto.SigningAlgorithm),
		wire.P("value", k.String()),
	)
}

// UpdateDocument renders a profile update for id. values are written in
// order, skipping empty values and managed fields; Updated, Encryption-Key
// and Signing-Key are appended from id and now.
func UpdateDocument(id Identity, values []wire.Pair, now time.Time) []byte {
	pairs := make([]wire.Pair, 0, len(values)+3)
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v.Key))
		if v.Value == "" || managed[key] {
			continue
		}
		pairs = append(pairs, wire.P(FieldKey(key), v.Value))
	}
	pairs = append(pairs,
		wire.P(FieldKey(FieldUpdated), FormatDateTime(now)),
		wire.P(FieldKey(FieldEncryptionKey), encryptionKeyAttrs(id.Encryption)),
		wire.P(FieldKey(FieldSigningKey), signingKeyAttrs(id.Signing)),
	)

	return []byte("# Profile of " + id.Address.String() + "\n" +
		wire.Fields(pairs...) +
		"\n#End of profile")
}

// RegistrationDocument renders the minimal profile sent with an account
// registration: the local part as name plus both public keys.
func RegistrationDocument(id Identity, now time.Time) []byte {
	return []byte(wire.Fields(
		wire.P(FieldKey(FieldName), id.Address.LocalPart()),
		wire.P(FieldKey(FieldEncryptionKey), encryptionKeyAttrs(id.Encryption)),
		wire.P(FieldKey(FieldSigningKey), signingKeyAttrs(id.Signing)),
		wire.P(FieldKey(FieldUpdated), FormatDateTime(now)),
	))
}
