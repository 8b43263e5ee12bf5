package agent

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/interfaces"
	"github.com/sirupsen/logrus"
)

// ErrNoAgents is returned by Try when there is no agent to ask.
var ErrNoAgents = errors.New("no agents")

func endpoint(agent, kind string, addr address.Address, elems ...string) string {
	parts := make([]string, 0, len(elems)+3)
	parts = append(parts, kind, url.PathEscape(addr.HostPart()), url.PathEscape(addr.LocalPart()))
	for _, e := range elems {
		parts = append(parts, url.PathEscape(e))
	}
	return "https://" + agent + "/" + strings.Join(parts, "/")
}

// Home is the authenticated endpoint of addr's own account.
func Home(agent string, addr address.Address, elems ...string) string {
	return endpoint(agent, "home", addr, elems...)
}

// Mail is the public endpoint of addr.
func Mail(agent string, addr address.Address, elems ...string) string {
	return endpoint(agent, "mail", addr, elems...)
}

// Link is the pairwise endpoint that addr exposes to the holder of link.
func Link(agent string, addr address.Address, link string, elems ...string) string {
	return Mail(agent, addr, append([]string{"link", link}, elems...)...)
}

// Account is the registration endpoint of addr.
func Account(agent string, addr address.Address) string {
	return endpoint(agent, "account", addr)
}

// Try sends the request built for each agent in turn and returns the first
// successful response together with the agent that answered. The error of
// the last attempt is returned when every agent fails.
func Try(ctx context.Context, requester interfaces.Requester, agents []string, build func(agent string) *interfaces.Request) (*interfaces.Response, string, error) {
	if len(agents) == 0 {
		return nil, "", ErrNoAgents
	}

	var lastErr error
	for _, a := range agents {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		req := build(a)
		resp, err := requester.Do(ctx, req)
		if err == nil {
			return resp, a, nil
		}
		lastErr = err
		logrus.WithFields(logrus.Fields{
			"function": "Try",
			"agent":    a,
			"method":   interfaces.MethodOf(req),
			"error":    err.Error(),
		}).Debug("Agent request failed, trying next agent")
	}
	return nil, "", fmt.Errorf("all %d agents failed: %w", len(agents), lastErr)
}
