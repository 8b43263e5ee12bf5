package messaging

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/envelope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchPrivateMessage(t *testing.T) {
	w := newWorld(t)
	alice := w.register("alice@example.com")
	bob := w.register("bob@example.org")

	w.send(alice, &envelope.Outgoing{ID: "m1", Subject: "Hi", Readers: []address.Address{bob.addr}, Body: []byte("hi")})

	f, _ := w.fetcher(bob)
	ctx := context.Background()

	msgs, err := f.FetchMany(ctx, Listing{Author: alice.addr}, FetchOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Text())
	assert.True(t, msgs[0].New)
	assert.Equal(t, alice.addr, msgs[0].Envelope.Origin)
	assert.Equal(t, Listing{Author: alice.addr}, msgs[0].Listing())

	for _, r := range w.network.Requests() {
		if r.Method != http.MethodGet || r.Agent == "example.org" {
			continue
		}
		assert.Equal(t, "mail.example.org", r.Agent, "reads go through the reader's agents")
	}

	w.network.ClearRequests()
	msgs, err = f.FetchMany(ctx, Listing{Author: alice.addr}, FetchOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].New)
	assert.Equal(t, 0, w.count(http.MethodHead), "envelope served from cache")
	assert.Equal(t, 1, w.count(http.MethodGet), "only the listing is fetched")
	assert.EqualValues(t, 2, f.Stats().CacheHits)
}

func TestFetchBroadcastUnauthenticated(t *testing.T) {
	w := newWorld(t)
	alice := w.register("alice@example.com")
	bob := w.register("bob@example.org")

	w.send(alice, &envelope.Outgoing{ID: "b1", Subject: "News", Body: []byte("to everyone")})
	w.send(alice, &envelope.Outgoing{ID: "p1", Subject: "Private", Readers: []address.Address{bob.addr}, Body: []byte("x")})

	f, _ := w.fetcher(bob)
	msgs, err := f.FetchMany(context.Background(), Listing{Author: alice.addr, Broadcast: true}, FetchOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "b1", msgs[0].ID())
	assert.True(t, msgs[0].Envelope.IsBroadcast())

	for _, r := range w.network.Requests() {
		if r.Method == http.MethodHead && r.Status == http.StatusOK && r.URL != "https://mail.example.org/mail/example.org" {
			assert.False(t, r.Authenticated, r.URL)
		}
	}
}

func TestFetchSkipsTamperedMessage(t *testing.T) {
	w := newWorld(t)
	alice := w.register("alice@example.com")
	bob := w.register("bob@example.org")

	for _, id := range []string{"m1", "m2"} {
		w.send(alice, &envelope.Outgoing{ID: id, Subject: "S", Readers: []address.Address{bob.addr}, Body: []byte(id)})
	}
	w.network.SetMessageHeader(alice.addr, "m1", envelope.HeaderMessageID, "forged")

	f, store := w.fetcher(bob)
	msgs, err := f.FetchMany(context.Background(), Listing{Author: alice.addr}, FetchOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m2", msgs[0].ID())
	assert.EqualValues(t, 1, f.Stats().Skipped)

	_, found, err := store.Envelope(context.Background(), Listing{Author: alice.addr}.key("m1"))
	require.NoError(t, err)
	assert.False(t, found, "invalid envelopes are not cached")
}

func TestFetchAttachmentParts(t *testing.T) {
	w := newWorld(t)
	alice := w.register("alice@example.com")
	bob := w.register("bob@example.org")

	data := []byte("0123456789")
	parts := []envelope.Attachment{
		{Name: "digits.txt", ID: "a1", Type: "text/plain", Size: len(data), Part: 1, Parts: 2},
		{Name: "digits.txt", ID: "a2", Type: "text/plain", Size: len(data), Part: 2, Parts: 2},
	}
	readers := []address.Address{bob.addr}

	w.send(alice, &envelope.Outgoing{ID: "root", Subject: "Files", Readers: readers, Body: []byte("see attached"), Files: parts})
	// second part first, so listing order does not match part order
	for _, i := range []int{1, 0} {
		p := parts[i]
		w.send(alice, &envelope.Outgoing{
			ID: p.ID, Subject: "Files", Readers: readers, ParentID: "root", File: &p,
			Body: data[i*5 : i*5+5],
		})
	}

	f, _ := w.fetcher(bob)
	msgs, err := f.FetchMany(context.Background(), Listing{Author: alice.addr}, FetchOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	root := msgs[0]
	assert.Equal(t, "see attached", root.Text())
	group := root.Attachments["digits.txt"]
	require.Len(t, group, 2)
	assert.Equal(t, []string{"a1", "a2"}, ids(group))
	for _, p := range group {
		assert.True(t, p.Deferred)
		assert.Nil(t, p.Body)
	}

	got, err := f.DownloadAttachment(context.Background(), group)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))
}

func TestFetchExcludePurgesCache(t *testing.T) {
	w := newWorld(t)
	alice := w.register("alice@example.com")

	w.send(alice, &envelope.Outgoing{ID: "m1", Subject: "S", Body: []byte("x")})
	w.send(alice, &envelope.Outgoing{ID: "m2", Subject: "S", Body: []byte("y")})

	f, store := w.fetcher(alice)
	ctx := context.Background()
	own := Listing{Author: alice.addr}

	msgs, err := f.FetchMany(ctx, own, FetchOptions{})
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	msgs, err = f.FetchMany(ctx, own, FetchOptions{Exclude: map[string]bool{"m1": true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"m2"}, ids(msgs))

	_, found, err := store.Envelope(ctx, own.key("m1"))
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = store.Body(ctx, own.key("m1"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFetchRemoteOnly(t *testing.T) {
	w := newWorld(t)
	alice := w.register("alice@example.com")
	w.send(alice, &envelope.Outgoing{ID: "m1", Subject: "S", Body: []byte("x")})

	f, _ := w.fetcher(alice)
	ctx := context.Background()
	own := Listing{Author: alice.addr}

	_, err := f.FetchMany(ctx, own, FetchOptions{})
	require.NoError(t, err)

	_, err = w.network.Do(ctx, mustDelete(alice, "m1"))
	require.NoError(t, err)

	msgs, err := f.FetchMany(ctx, own, FetchOptions{})
	require.NoError(t, err)
	assert.Len(t, msgs, 1, "cached messages stay visible")

	msgs, err = f.FetchMany(ctx, own, FetchOptions{RemoteOnly: true})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestFetchWithSignatureVerification(t *testing.T) {
	w := newWorld(t)
	alice := w.register("alice@example.com")
	bob := w.register("bob@example.org")
	w.send(alice, &envelope.Outgoing{ID: "m1", Subject: "S", Body: []byte("x")})

	f, _ := w.fetcher(bob, WithSignatureVerification(w.profiles))
	msgs, err := f.FetchMany(context.Background(), Listing{Author: alice.addr, Broadcast: true}, FetchOptions{})
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	mallory := w.register("mallory@example.com")
	w.profiles[alice.addr] = mallory.profile
	f, _ = w.fetcher(bob, WithSignatureVerification(w.profiles))
	msgs, err = f.FetchMany(context.Background(), Listing{Author: alice.addr, Broadcast: true}, FetchOptions{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestFetchListingUnavailable(t *testing.T) {
	w := newWorld(t)
	alice := w.register("alice@example.com")
	bob := w.register("bob@example.org")

	f, _ := w.fetcher(bob)
	w.network.SetDown("mail.example.org", true)

	_, err := f.FetchMany(context.Background(), Listing{Author: alice.addr}, FetchOptions{RemoteOnly: true})
	assert.Error(t, err)

	msgs, err := f.FetchMany(context.Background(), Listing{Author: alice.addr}, FetchOptions{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
