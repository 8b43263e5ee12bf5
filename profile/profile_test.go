package profile

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/crypto"
	"github.com/opd-ai/openmail/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = address.MustParse("alice@example.com")

func testIdentity(t *testing.T) Identity {
	t.Helper()
	signing, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)
	encryption, err := crypto.GenerateEncryptionKeyPair()
	require.NoError(t, err)
	return Identity{Address: alice, Signing: signing.Public, Encryption: encryption.Public}
}

func minimalDocument(t *testing.T) (string, Identity) {
	id := testIdentity(t)
	doc := strings.Join([]string{
		"# Profile of alice@example.com",
		"Name: Alice",
		"Signing-Key: " + signingKeyAttrs(id.Signing),
		"Updated: 2024-05-01T10:00:00+00:00",
		"#End of profile",
	}, "\n")
	return doc, id
}

func TestParseMinimal(t *testing.T) {
	doc, id := minimalDocument(t)

	p, err := Parse(alice, doc)
	require.NoError(t, err)

	assert.Equal(t, alice, p.Address())
	assert.Equal(t, "Alice", p.Name())
	assert.True(t, p.SigningKey().Equal(id.Signing))
	assert.Equal(t, crypto.SigningAlgorithm, p.SigningKey().Algorithm)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), p.Updated().UTC())

	_, ok := p.EncryptionKey()
	assert.False(t, ok)
	_, ok = p.Get(FieldAbout)
	assert.False(t, ok)

	assert.False(t, p.Bool(FieldAway))
	assert.True(t, p.Bool(FieldLastSeenPublic))
	assert.True(t, p.Bool(FieldPublicAccess))
	assert.True(t, p.Bool(FieldPublicLinks))
}

func TestParseRequiredFields(t *testing.T) {
	doc, _ := minimalDocument(t)

	tests := []struct {
		name   string
		mutate func(string) string
	}{
		{"missing name", func(s string) string { return strings.Replace(s, "Name: Alice\n", "", 1) }},
		{"missing updated", func(s string) string {
			return strings.Replace(s, "Updated: 2024-05-01T10:00:00+00:00\n", "", 1)
		}},
		{"bad updated", func(s string) string { return strings.Replace(s, "2024-05-01T10:00:00+00:00", "yesterday", 1) }},
		{"bad signing key", func(s string) string {
			return strings.Replace(s, "algorithm=ed25519", "bogus", 1)
		}},
		{"commented name", func(s string) string { return strings.Replace(s, "Name: Alice", "#Name: Alice", 1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(alice, tt.mutate(doc))
			assert.True(t, errors.Is(err, ErrInvalidProfile), "got %v", err)
		})
	}
}

func TestParseOptionalFields(t *testing.T) {
	doc, id := minimalDocument(t)
	doc += "\n" + strings.Join([]string{
		"About: Hi there",
		"Birthday: 1990-02-03",
		"Away: Yes",
		"Public-Access: No",
		"Last-Seen-Public: yes",
		"Encryption-Key: " + encryptionKeyAttrs(id.Encryption),
		"Last-Signing-Key: value=!!!; algorithm=ed25519",
		"Job-Title: Engineer",
	}, "\n")

	p, err := Parse(alice, doc)
	require.NoError(t, err)

	assert.Equal(t, "Hi there", p.String(FieldAbout))
	assert.Equal(t, "Engineer", p.String("job-title"))

	birthday, ok := p.Get(FieldBirthday)
	require.True(t, ok)
	assert.Equal(t, KindDate, birthday.Kind)
	assert.Equal(t, "1990-02-03", birthday.Wire())

	assert.True(t, p.Bool(FieldAway))
	assert.False(t, p.Bool(FieldPublicAccess))
	// only the exact "Yes" is true
	assert.False(t, p.Bool(FieldLastSeenPublic))

	key, ok := p.EncryptionKey()
	require.True(t, ok)
	assert.True(t, key.Equal(id.Encryption))
	assert.Equal(t, id.Encryption.ID, key.ID)

	_, ok = p.LastSigningKey()
	assert.False(t, ok, "malformed optional key must be absent")
	assert.Len(t, p.SigningKeys(), 1)
}

func TestMatchesFingerprint(t *testing.T) {
	doc, id := minimalDocument(t)
	old := testIdentity(t)
	doc += "\nLast-Signing-Key: " + signingKeyAttrs(old.Signing)

	p, err := Parse(alice, doc)
	require.NoError(t, err)

	assert.True(t, p.MatchesFingerprint(crypto.Fingerprint(id.Signing)))
	assert.True(t, p.MatchesFingerprint(crypto.Fingerprint(old.Signing)))
	assert.False(t, p.MatchesFingerprint(crypto.Fingerprint(old.Encryption)))
}

func TestUpdateDocumentRoundTrip(t *testing.T) {
	id := testIdentity(t)
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	doc := UpdateDocument(id, []wire.Pair{
		wire.P("name", "Alice A."),
		wire.P("status", ""),
		wire.P("job-title", "Engineer"),
		wire.P("Updated", "ignored"),
		wire.P("away", "Yes"),
	}, now)

	text := string(doc)
	assert.True(t, strings.HasPrefix(text, "# Profile of alice@example.com\n"))
	assert.True(t, strings.HasSuffix(text, "\n#End of profile"))
	assert.Contains(t, text, "Job-Title: Engineer")
	assert.Contains(t, text, "Updated: 2025-01-02T03:04:05+00:00")
	assert.NotContains(t, text, "ignored")
	assert.NotContains(t, text, "Status:")

	p, err := Parse(alice, text)
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", p.Name())
	assert.True(t, p.Bool(FieldAway))
	assert.Equal(t, now, p.Updated().UTC())
	key, ok := p.EncryptionKey()
	require.True(t, ok)
	assert.Equal(t, id.Encryption.ID, key.ID)
	assert.Equal(t, crypto.AnonymousEncryptionCipher, key.Algorithm)
}

func TestRegistrationDocument(t *testing.T) {
	id := testIdentity(t)
	id.Encryption.ID = ""
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	p, err := Parse(alice, string(RegistrationDocument(id, now)))
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Name())
	key, ok := p.EncryptionKey()
	require.True(t, ok)
	assert.Equal(t, "0", key.ID)
}

func TestParseValueKinds(t *testing.T) {
	tests := []struct {
		kind Kind
		raw  string
		ok   bool
	}{
		{KindString, "anything", true},
		{KindBool, "No", true},
		{KindDate, "2020-13-01", false},
		{KindDate, "2020-12-01", true},
		{KindDateTime, "2020-12-01T10:11:12Z", true},
		{KindDateTime, "2020-12-01T10:11:12", true},
		{KindDateTime, "2020-12-01 10:11:12+02:00", true},
		{KindDateTime, "noon", false},
		{KindKey, "algorithm=ed25519", false},
		{KindKey, "value=AAAA", false},
		{KindKey, "algorithm=ed25519; value=AAAA", true},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String()+"/"+tt.raw, func(t *testing.T) {
			v, ok := ParseValue(tt.kind, tt.raw)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.kind, v.Kind)
			}
		})
	}
}

func TestFieldKey(t *testing.T) {
	assert.Equal(t, "Job-Title", FieldKey("job-title"))
	assert.Equal(t, "Name", FieldKey("name"))
}
