package openmail

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/crypto"
	"github.com/opd-ai/openmail/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationProcessedOnce(t *testing.T) {
	ctx := context.Background()
	network := newNetwork()
	alice := registered(t, network, "alice@example.com")
	bob := registered(t, network, "bob@example.org")

	var requests []messaging.Notification
	bob.OnContactRequest(func(n messaging.Notification) { requests = append(requests, n) })

	_, err := alice.Send(ctx, &Draft{Readers: []address.Address{bob.User().Address}, Subject: "Hello", Body: []byte("hi")})
	require.NoError(t, err)
	require.Len(t, network.Notifications(bob.User().Address), 1)

	got, err := bob.FetchNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, alice.User().Address, got[0].From)
	assert.Equal(t, address.Link(alice.User().Address, bob.User().Address), got[0].Link)
	require.Len(t, requests, 1)

	got, err = bob.FetchNotifications(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Len(t, requests, 1)
	assert.Len(t, bob.Notifications(), 1)

	pending := bob.ContactRequests()
	require.Len(t, pending, 1)
	assert.Equal(t, alice.User().Address, pending[0].From)

	// the message of a contact request reaches the inbox
	inbox, err := bob.FetchInbox(ctx)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "hi", inbox[0].Text())

	_, err = bob.NewContact(ctx, alice.User().Address, true)
	require.NoError(t, err)
	assert.Empty(t, bob.ContactRequests())
}

func TestProcessedNotificationsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	network := newNetwork()
	alice := registered(t, network, "alice@example.com")
	bob := registered(t, network, "bob@example.org")

	_, err := alice.Send(ctx, &Draft{Readers: []address.Address{bob.User().Address}, Subject: "Hello", Body: []byte("hi")})
	require.NoError(t, err)

	got, err := bob.FetchNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)

	options := NewOptions()
	options.Requester = network
	options.Store = bob.store
	restarted, err := New(bob.User(), options)
	require.NoError(t, err)

	got, err = restarted.FetchNotifications(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNotificationFingerprintMismatchDropped(t *testing.T) {
	ctx := context.Background()
	network := newNetwork()
	alice := registered(t, network, "alice@example.com")
	bob := registered(t, network, "bob@example.org")

	sealed, err := messaging.SealAddress(alice.User().Address, bob.User().Encryption.Public)
	require.NoError(t, err)
	forger, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)

	line := strings.Join([]string{
		"forged-1",
		address.Link(alice.User().Address, bob.User().Address),
		crypto.Fingerprint(forger.Public),
		sealed,
	}, ",")
	network.PushNotification(bob.User().Address, line)
	network.PushNotification(bob.User().Address, "not,a,valid")

	got, err := bob.FetchNotifications(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, bob.ContactRequests())

	bob.mu.RLock()
	_, marked := bob.seen["forged-1"]
	bob.mu.RUnlock()
	assert.True(t, marked)
}

func TestNotificationFromUnreachableNotifierRetried(t *testing.T) {
	ctx := context.Background()
	network := newNetwork()
	alice := registered(t, network, "alice@example.com")
	bob := registered(t, network, "bob@example.org")

	_, err := alice.Send(ctx, &Draft{Readers: []address.Address{bob.User().Address}, Subject: "Hello", Body: []byte("hi")})
	require.NoError(t, err)

	network.SetDown("mail.example.com", true)
	network.SetDown("example.com", true)
	got, err := bob.FetchNotifications(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	network.SetDown("mail.example.com", false)
	network.SetDown("example.com", false)
	got, err = bob.FetchNotifications(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestContactRequestsExpire(t *testing.T) {
	ctx := context.Background()
	network := newNetwork()
	clock := fixedClock()
	alice := registered(t, network, "alice@example.com")
	bob := registered(t, network, "bob@example.org", withClock(clock))

	_, err := alice.Send(ctx, &Draft{Readers: []address.Address{bob.User().Address}, Subject: "Hello", Body: []byte("hi")})
	require.NoError(t, err)

	_, err = bob.FetchNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, bob.ContactRequests(), 1)

	clock.Advance(6 * 24 * time.Hour)
	assert.Len(t, bob.ContactRequests(), 1)

	clock.Advance(2 * 24 * time.Hour)
	assert.Empty(t, bob.ContactRequests())
	assert.Empty(t, bob.Notifications())
}
