package openmail

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresUser(t *testing.T) {
	_, err := New(nil, NewOptions())
	assert.Error(t, err)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	network := newNetwork()

	c := newClient(t, network, "alice@example.com")
	assert.False(t, c.Authenticate(ctx))

	require.NoError(t, c.Register(ctx))
	assert.True(t, network.HasAccount(c.User().Address))
	assert.True(t, c.Authenticate(ctx))

	p, err := c.FetchProfile(ctx, c.User().Address)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Name())

	require.NoError(t, c.DeleteAccount(ctx))
	assert.False(t, network.HasAccount(c.User().Address))
}

func TestRestoredUserAuthenticates(t *testing.T) {
	ctx := context.Background()
	network := newNetwork()
	alice := registered(t, network, "alice@example.com")

	restored, err := UserFromCredential(alice.User().Credential())
	require.NoError(t, err)
	assert.Equal(t, alice.User().Encryption.Public.ID, restored.Encryption.Public.ID)

	again := clientFor(t, network, restored)
	assert.True(t, again.Authenticate(ctx))
}

func TestUpdateProfileAndImage(t *testing.T) {
	ctx := context.Background()
	network := newNetwork()
	alice := registered(t, network, "alice@example.com")
	bob := registered(t, network, "bob@example.org")

	require.NoError(t, alice.UpdateProfile(ctx, []wire.Pair{wire.P("name", "Alice Example"), wire.P("away", "Yes")}))
	p, err := bob.FetchProfile(ctx, alice.User().Address)
	require.NoError(t, err)
	assert.Equal(t, "Alice Example", p.Name())
	assert.True(t, p.Bool("away"))

	cached, err := bob.Profile(ctx, alice.User().Address)
	require.NoError(t, err)
	assert.Same(t, p, cached)

	image := []byte("\x89PNG fake image")
	require.NoError(t, alice.UpdateProfileImage(ctx, image))
	got, err := bob.FetchProfileImage(ctx, alice.User().Address)
	require.NoError(t, err)
	assert.Equal(t, image, got)

	require.NoError(t, alice.DeleteProfileImage(ctx))
	_, err = bob.FetchProfileImage(ctx, alice.User().Address)
	assert.Error(t, err)
}

func TestUpdateProfileImageRejectsEmpty(t *testing.T) {
	network := newNetwork()
	alice := registered(t, network, "alice@example.com")
	assert.Error(t, alice.UpdateProfileImage(context.Background(), nil))
}

func TestLogoutRemovesDataDir(t *testing.T) {
	network := newNetwork()
	dir := filepath.Join(t.TempDir(), "session")

	user, err := NewUser(address.MustParse("alice@example.com"))
	require.NoError(t, err)
	options := NewOptions()
	options.Requester = network
	options.DataDir = dir
	c, err := New(user, options)
	require.NoError(t, err)
	require.NoError(t, c.Register(context.Background()))

	require.NoError(t, c.Logout())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, make([]byte, len(user.Signing.Private.Data)), user.Signing.Private.Data)
	assert.Empty(t, c.Contacts())
}

func TestCollectionString(t *testing.T) {
	assert.Equal(t, "broadcasts", Broadcasts.String())
	assert.Equal(t, "inbox", Inbox.String())
	assert.Equal(t, "outbox", Outbox.String())
	assert.Equal(t, "sent", Sent.String())
	assert.Equal(t, "collection(9)", Collection(9).String())
}
