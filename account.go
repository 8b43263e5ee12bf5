package openmail

import (
	"context"
	"net/http"

	"github.com/opd-ai/openmail/agent"
	"github.com/opd-ai/openmail/interfaces"
	"github.com/opd-ai/openmail/profile"
	"github.com/sirupsen/logrus"
)

// Authenticate checks that one of the user's agents accepts the session
// keys.
func (c *Client) Authenticate(ctx context.Context) bool {
	_, err := c.read(ctx, c.user.Address, func(a string) *interfaces.Request {
		return &interfaces.Request{Method: http.MethodHead, URL: agent.Home(a, c.user.Address), Signer: c.user}
	})

	entry := logrus.WithFields(logrus.Fields{
		"function": "Authenticate",
		"address":  c.user.Address.String(),
	})
	if err != nil {
		entry.WithField("error", err.Error()).Error("Authentication failed")
		return false
	}
	entry.Info("Authentication successful")
	return true
}

// Register creates the user's account with a minimal profile.
func (c *Client) Register(ctx context.Context) error {
	doc := profile.RegistrationDocument(c.user.Identity(), c.clock.Now())
	_, err := c.write(ctx, "Register", c.user.Address, func(a string) *interfaces.Request {
		return &interfaces.Request{Method: http.MethodPut, URL: agent.Account(a, c.user.Address), Signer: c.user, Body: doc}
	})
	return err
}

// DeleteAccount removes the user's account from its agents. The session
// stays usable until Logout.
func (c *Client) DeleteAccount(ctx context.Context) error {
	_, err := c.write(ctx, "DeleteAccount", c.user.Address, func(a string) *interfaces.Request {
		return &interfaces.Request{Method: http.MethodDelete, URL: agent.Account(a, c.user.Address), Signer: c.user}
	})
	return err
}
