package agent

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/crypto"
	testsim "github.com/opd-ai/openmail/testing"
	"github.com/stretchr/testify/assert"
)

func countWellKnown(network *testsim.Network) int {
	n := 0
	for _, r := range network.Requests() {
		if r.Method == http.MethodGet {
			n++
		}
	}
	return n
}

func TestResolveKeepsFirstThreeLive(t *testing.T) {
	network := testsim.NewNetwork()
	network.SetWellKnown("example.com", "# agents\n\na1.example.com\nA2.example.com\n  \na3.example.com\na4.example.com\na5.example.com\n")
	for _, a := range []string{"a1.example.com", "a2.example.com", "a3.example.com", "a4.example.com", "a5.example.com"} {
		network.AddAgent(a)
	}
	network.SetDown("a2.example.com", true)

	r := NewResolver(network)
	agents := r.Resolve(context.Background(), "example.com")
	assert.Equal(t, []string{"a1.example.com", "a3.example.com", "a4.example.com"}, agents)

	for _, req := range network.Requests() {
		assert.NotEqual(t, "a5.example.com", req.Agent, "probing stops once enough agents are live")
	}
}

func TestResolveCaches(t *testing.T) {
	network := testsim.NewNetwork()
	network.AddDomain("example.com", "mail1.example.com")

	r := NewResolver(network)
	first := r.AgentsFor(context.Background(), address.MustParse("alice@example.com"))
	second := r.Resolve(context.Background(), "EXAMPLE.com")

	assert.Equal(t, []string{"mail1.example.com"}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, countWellKnown(network))

	r.Invalidate("example.com")
	r.Resolve(context.Background(), "example.com")
	assert.Equal(t, 2, countWellKnown(network))
}

func TestResolveTTL(t *testing.T) {
	network := testsim.NewNetwork()
	network.AddDomain("example.com", "mail1.example.com")
	clock := crypto.NewFixedTimeProvider(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	r := NewResolver(network, WithTTL(time.Hour), WithTimeProvider(clock))
	r.Resolve(context.Background(), "example.com")
	clock.Advance(30 * time.Minute)
	r.Resolve(context.Background(), "example.com")
	assert.Equal(t, 1, countWellKnown(network))

	clock.Advance(time.Hour)
	r.Resolve(context.Background(), "example.com")
	assert.Equal(t, 2, countWellKnown(network))
}

func TestResolveSecondLocation(t *testing.T) {
	network := testsim.NewNetwork()
	network.SetWellKnown("mail.example.com", "agent.example.net\n")
	network.AddAgent("agent.example.net")

	r := NewResolver(network)
	assert.Equal(t, []string{"agent.example.net"}, r.Resolve(context.Background(), "example.com"))
}

func TestResolveFallbackNotCached(t *testing.T) {
	network := testsim.NewNetwork()

	r := NewResolver(network, WithMaxAgents(2))
	assert.Equal(t, []string{"mail.example.com"}, r.Resolve(context.Background(), "example.com"))
	assert.Equal(t, 2, countWellKnown(network))

	network.AddDomain("example.com", "a.example.com", "b.example.com", "c.example.com")
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, r.Resolve(context.Background(), "example.com"))
}

func TestResolveNoLiveCandidates(t *testing.T) {
	network := testsim.NewNetwork()
	network.AddDomain("example.com", "a.example.com")
	network.SetDown("a.example.com", true)

	r := NewResolver(network)
	assert.Equal(t, []string{FallbackAgent("example.com")}, r.Resolve(context.Background(), "example.com"))
}

func TestCandidates(t *testing.T) {
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, Candidates("#c\n a.example.com \n\n# x\nB.example.com"))
	assert.Nil(t, Candidates("# only comments"))
}
