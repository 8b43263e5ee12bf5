package agent

import (
	"context"
	"net/http"
	"testing"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/interfaces"
	testsim "github.com/opd-ai/openmail/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpoints(t *testing.T) {
	alice := address.MustParse("alice@example.com")

	assert.Equal(t, "https://mail.example.com/home/example.com/alice", Home("mail.example.com", alice))
	assert.Equal(t, "https://mail.example.com/home/example.com/alice/messages/m1", Home("mail.example.com", alice, "messages", "m1"))
	assert.Equal(t, "https://a.example.org/mail/example.com/alice/profile", Mail("a.example.org", alice, "profile"))
	assert.Equal(t, "https://a.example.org/mail/example.com/alice/link/abc/notifications", Link("a.example.org", alice, "abc", "notifications"))
	assert.Equal(t, "https://mail.example.com/account/example.com/alice", Account("mail.example.com", alice))
}

func TestTryFallsThrough(t *testing.T) {
	network := testsim.NewNetwork()
	network.AddAgent("a1.example.com")
	network.AddAgent("a2.example.com")
	network.SetDown("a1.example.com", true)

	build := func(a string) *interfaces.Request {
		return &interfaces.Request{Method: http.MethodHead, URL: "https://" + a + "/mail/example.com"}
	}

	resp, used, err := Try(context.Background(), network, []string{"a1.example.com", "a2.example.com"}, build)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a2.example.com", used)
	assert.Len(t, network.Requests(), 2)
}

func TestTryAllFail(t *testing.T) {
	network := testsim.NewNetwork()
	network.AddAgent("a1.example.com")
	network.SetDown("a1.example.com", true)

	_, _, err := Try(context.Background(), network, []string{"a1.example.com"}, func(a string) *interfaces.Request {
		return &interfaces.Request{Method: http.MethodHead, URL: "https://" + a + "/mail/example.com"}
	})
	assert.ErrorIs(t, err, interfaces.ErrNetwork)

	_, _, err = Try(context.Background(), network, nil, nil)
	assert.ErrorIs(t, err, ErrNoAgents)
}
