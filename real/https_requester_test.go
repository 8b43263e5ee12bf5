package real

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opd-ai/openmail/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSigner struct {
	agents []string
}

func (s *staticSigner) Authorization(agent string) (string, error) {
	s.agents = append(s.agents, agent)
	return "SOTN value=test; host=" + agent, nil
}

func newTestRequester(t *testing.T, handler http.HandlerFunc) (*HTTPSRequester, *httptest.Server) {
	t.Helper()
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)

	config := &interfaces.RequesterConfig{Timeout: 2 * time.Second, UserAgent: "openmail-test"}
	return NewHTTPSRequester(config, server.Client()), server
}

func TestDoGet(t *testing.T) {
	requester, server := newTestRequester(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "openmail-test", r.Header.Get("User-Agent"))
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Message-Id", "abc")
		_, _ = io.WriteString(w, "hello")
	})

	resp, err := requester.Do(context.Background(), &interfaces.Request{URL: server.URL + "/x"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []byte("hello"), resp.Body)
	assert.Equal(t, "abc", resp.Get("message-id"))
	assert.False(t, requester.IsSimulation())
}

func TestDoPutWithAuthAndHeaders(t *testing.T) {
	signer := &staticSigner{}
	requester, server := newTestRequester(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "SOTN "))
		assert.Equal(t, "id-1", r.Header.Get("Message-Id"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "payload", string(body))
		w.WriteHeader(http.StatusCreated)
	})

	resp, err := requester.Do(context.Background(), &interfaces.Request{
		Method: http.MethodPut,
		URL:    server.URL + "/home/example.com/alice/messages",
		Signer: signer,
		Header: map[string]string{"Message-Id": "id-1"},
		Body:   []byte("payload"),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, []string{"127.0.0.1"}, signer.agents)
}

func TestDoErrors(t *testing.T) {
	requester, server := newTestRequester(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/big":
			_, _ = io.WriteString(w, strings.Repeat("x", 100))
		case "/slow":
			select {
			case <-r.Context().Done():
			case <-time.After(3 * time.Second):
			}
		}
	})

	tests := []struct {
		name string
		req  *interfaces.Request
	}{
		{"not found", &interfaces.Request{URL: server.URL + "/missing"}},
		{"too large", &interfaces.Request{URL: server.URL + "/big", MaxLength: 10}},
		{"plain http", &interfaces.Request{URL: strings.Replace(server.URL, "https://", "http://", 1)}},
		{"bad url", &interfaces.Request{URL: "https://%zz"}},
		{"timeout", &interfaces.Request{URL: server.URL + "/slow"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := requester.Do(context.Background(), tt.req)
			assert.True(t, errors.Is(err, interfaces.ErrNetwork), "got %v", err)
		})
	}

	stats := requester.Stats()
	assert.Equal(t, int64(len(tests)), stats.Requests)
	assert.Equal(t, int64(len(tests)), stats.Failures)
}

func TestDoCancelledContext(t *testing.T) {
	requester, server := newTestRequester(t, func(w http.ResponseWriter, r *http.Request) {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := requester.Do(ctx, &interfaces.Request{URL: server.URL})
	assert.True(t, errors.Is(err, interfaces.ErrNetwork))
}
