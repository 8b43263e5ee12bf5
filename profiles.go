package openmail

import (
	"context"
	"fmt"
	"net/http"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/agent"
	"github.com/opd-ai/openmail/interfaces"
	"github.com/opd-ai/openmail/limits"
	"github.com/opd-ai/openmail/profile"
	"github.com/opd-ai/openmail/wire"
	"github.com/sirupsen/logrus"
)

// Profile returns the session copy of addr's profile, fetching it on first
// use. It implements envelope.ProfileSource.
func (c *Client) Profile(ctx context.Context, addr address.Address) (*profile.Profile, error) {
	c.profilesMu.RLock()
	p, ok := c.profiles[addr]
	c.profilesMu.RUnlock()
	if ok {
		return p, nil
	}
	return c.FetchProfile(ctx, addr)
}

// FetchProfile fetches addr's public profile and replaces the session copy.
func (c *Client) FetchProfile(ctx context.Context, addr address.Address) (*profile.Profile, error) {
	resp, err := c.read(ctx, addr, func(a string) *interfaces.Request {
		return &interfaces.Request{URL: agent.Mail(a, addr, "profile"), MaxLength: limits.MaxProfileSize}
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "FetchProfile",
			"address":  addr.String(),
			"error":    err.Error(),
		}).Debug("Profile unavailable")
		return nil, fmt.Errorf("fetching profile of %s: %w", addr, err)
	}

	p, err := profile.Parse(addr, string(resp.Body))
	if err != nil {
		return nil, err
	}

	c.profilesMu.Lock()
	c.profiles[addr] = p
	c.profilesMu.Unlock()
	return p, nil
}

// UpdateProfile publishes values as the user's profile. The current keys
// and update time are added automatically.
func (c *Client) UpdateProfile(ctx context.Context, values []wire.Pair) error {
	doc := profile.UpdateDocument(c.user.Identity(), values, c.clock.Now())
	if err := limits.ValidateProfile(doc); err != nil {
		return err
	}

	_, err := c.write(ctx, "UpdateProfile", c.user.Address, func(a string) *interfaces.Request {
		return &interfaces.Request{Method: http.MethodPut, URL: agent.Home(a, c.user.Address, "profile"), Signer: c.user, Body: doc}
	})
	if err != nil {
		return err
	}

	if p, err := profile.Parse(c.user.Address, string(doc)); err == nil {
		c.profilesMu.Lock()
		c.profiles[c.user.Address] = p
		c.profilesMu.Unlock()
	}
	return nil
}

// FetchProfileImage returns addr's profile image.
func (c *Client) FetchProfileImage(ctx context.Context, addr address.Address) ([]byte, error) {
	resp, err := c.read(ctx, addr, func(a string) *interfaces.Request {
		return &interfaces.Request{URL: agent.Mail(a, addr, "image"), MaxLength: limits.MaxProfileImageSize}
	})
	if err != nil {
		return nil, fmt.Errorf("fetching image of %s: %w", addr, err)
	}
	return resp.Body, nil
}

// UpdateProfileImage replaces the user's profile image.
func (c *Client) UpdateProfileImage(ctx context.Context, image []byte) error {
	if err := limits.ValidateProfileImage(image); err != nil {
		return err
	}
	_, err := c.write(ctx, "UpdateProfileImage", c.user.Address, func(a string) *interfaces.Request {
		return &interfaces.Request{Method: http.MethodPut, URL: agent.Home(a, c.user.Address, "image"), Signer: c.user, Body: image}
	})
	return err
}

// DeleteProfileImage removes the user's profile image.
func (c *Client) DeleteProfileImage(ctx context.Context) error {
	_, err := c.write(ctx, "DeleteProfileImage", c.user.Address, func(a string) *interfaces.Request {
		return &interfaces.Request{Method: http.MethodDelete, URL: agent.Home(a, c.user.Address, "image"), Signer: c.user}
	})
	return err
}
