package openmail

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/crypto"
	testsim "github.com/opd-ai/openmail/testing"
	"github.com/stretchr/testify/require"
)

func newNetwork() *testsim.Network {
	network := testsim.NewNetwork()
	network.AddDomain("example.com", "mail.example.com")
	network.AddDomain("example.org", "mail.example.org")
	return network
}

type clientOption func(*Options)

func withClock(clock crypto.TimeProvider) clientOption {
	return func(o *Options) { o.TimeProvider = clock }
}

// newClient creates a session for a fresh user on network without
// registering it.
func newClient(t *testing.T, network *testsim.Network, addr string, opts ...clientOption) *Client {
	t.Helper()
	user, err := NewUser(address.MustParse(addr))
	require.NoError(t, err)
	return clientFor(t, network, user, opts...)
}

func clientFor(t *testing.T, network *testsim.Network, user *User, opts ...clientOption) *Client {
	t.Helper()
	options := NewOptions()
	options.Requester = network
	options.DataDir = t.TempDir()
	for _, opt := range opts {
		opt(options)
	}
	c, err := New(user, options)
	require.NoError(t, err)
	return c
}

// registered creates a session and registers its user.
func registered(t *testing.T, network *testsim.Network, addr string, opts ...clientOption) *Client {
	t.Helper()
	c := newClient(t, network, addr, opts...)
	require.NoError(t, c.Register(context.Background()))
	return c
}

func writes(network *testsim.Network) []testsim.RequestRecord {
	var out []testsim.RequestRecord
	for _, r := range network.Requests() {
		switch r.Method {
		case http.MethodPut, http.MethodPost, http.MethodDelete:
			out = append(out, r)
		}
	}
	return out
}

func fixedClock() *crypto.FixedTimeProvider {
	return crypto.NewFixedTimeProvider(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
}
