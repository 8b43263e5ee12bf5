package messaging

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/agent"
	"github.com/opd-ai/openmail/cache"
	"github.com/opd-ai/openmail/crypto"
	"github.com/opd-ai/openmail/envelope"
	"github.com/opd-ai/openmail/interfaces"
	"github.com/opd-ai/openmail/profile"
	testsim "github.com/opd-ai/openmail/testing"
	"github.com/opd-ai/openmail/wire"
	"github.com/stretchr/testify/require"
)

type signer struct{ keys crypto.KeyPair }

func (s signer) Authorization(agent string) (string, error) {
	return crypto.Authorization(agent, s.keys)
}

type identity struct {
	addr       address.Address
	signing    *crypto.KeyPair
	encryption *crypto.KeyPair
	profile    *profile.Profile
}

func (id identity) reader() Reader {
	return Reader{Address: id.addr, Signer: signer{*id.signing}, EncryptionKey: id.encryption.Private}
}

func (id identity) author() envelope.Author {
	return envelope.Author{Address: id.addr, Signing: *id.signing, EncryptionKeyID: id.encryption.Public.ID}
}

type directory map[address.Address]*profile.Profile

func (d directory) Profile(_ context.Context, addr address.Address) (*profile.Profile, error) {
	if p, ok := d[addr]; ok {
		return p, nil
	}
	return nil, profile.ErrInvalidProfile
}

// world is a simulated deployment with registered accounts.
type world struct {
	t        *testing.T
	network  *testsim.Network
	resolver *agent.Resolver
	profiles directory
}

func newWorld(t *testing.T) *world {
	network := testsim.NewNetwork()
	network.AddDomain("example.com", "mail.example.com")
	network.AddDomain("example.org", "mail.example.org")
	return &world{t: t, network: network, resolver: agent.NewResolver(network), profiles: make(directory)}
}

func (w *world) register(addr string) identity {
	w.t.Helper()
	signing, err := crypto.GenerateSigningKeyPair()
	require.NoError(w.t, err)
	encryption, err := crypto.GenerateEncryptionKeyPair()
	require.NoError(w.t, err)

	a := address.MustParse(addr)
	doc := profile.UpdateDocument(profile.Identity{Address: a, Signing: signing.Public, Encryption: encryption.Public},
		[]wire.Pair{wire.P("name", a.LocalPart())}, time.Now())
	p, err := profile.Parse(a, string(doc))
	require.NoError(w.t, err)

	_, err = w.network.Do(context.Background(), &interfaces.Request{
		Method: http.MethodPut,
		URL:    agent.Account("mail."+a.HostPart(), a),
		Signer: signer{*signing},
		Body:   doc,
	})
	require.NoError(w.t, err)

	w.profiles[a] = p
	return identity{addr: a, signing: signing, encryption: encryption, profile: p}
}

func (w *world) send(from identity, msg *envelope.Outgoing) *envelope.Wire {
	w.t.Helper()
	built, err := envelope.Build(context.Background(), msg, from.author(), w.profiles)
	require.NoError(w.t, err)

	_, err = w.network.Do(context.Background(), &interfaces.Request{
		Method: http.MethodPut,
		URL:    agent.Home("mail."+from.addr.HostPart(), from.addr, "messages"),
		Signer: signer{*from.signing},
		Header: built.HeaderMap(),
		Body:   built.Body,
	})
	require.NoError(w.t, err)
	return built
}

func (w *world) fetcher(id identity, opts ...FetcherOption) (*Fetcher, cache.Store) {
	w.t.Helper()
	store, err := cache.NewFileStore(w.t.TempDir())
	require.NoError(w.t, err)
	return NewFetcher(w.network, w.resolver, store, id.reader(), opts...), store
}

func (w *world) count(method string) int {
	n := 0
	for _, r := range w.network.Requests() {
		if r.Method == method {
			n++
		}
	}
	return n
}

func mustDelete(from identity, id string) *interfaces.Request {
	return &interfaces.Request{
		Method: http.MethodDelete,
		URL:    agent.Home("mail."+from.addr.HostPart(), from.addr, "messages", id),
		Signer: signer{*from.signing},
	}
}
