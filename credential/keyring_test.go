package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadDelete(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring(nil))

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNotFound)

	id := Identity{
		Address:         "alice@example.com",
		SigningKeys:     "c2lnbmluZw==",
		EncryptionKeys:  "ZW5jcnlwdGlvbg==",
		EncryptionKeyID: "ab12",
	}
	require.NoError(t, s.Save(id))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, id, got)

	require.NoError(t, s.Delete())
	_, err = s.Load()
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete())
}

func TestLoadCorrupt(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{{Key: identityKey, Data: []byte("not json")}})
	_, err := NewStore(ring).Load()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
