package openmail

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/agent"
	"github.com/opd-ai/openmail/interfaces"
	"github.com/opd-ai/openmail/limits"
	"github.com/opd-ai/openmail/messaging"
	"github.com/opd-ai/openmail/profile"
	"github.com/opd-ai/openmail/wire"
	"github.com/sirupsen/logrus"
)

// Contact is an address book entry.
type Contact struct {
	Address           address.Address
	ReceiveBroadcasts bool
}

// Link returns the pairwise link under which the entry is stored.
func (c Contact) Link(user address.Address) string {
	return address.Link(c.Address, user)
}

// parseContact decodes an opened address book payload: either a bare
// address or "address=...; broadcasts=Yes|No".
func parseContact(payload string) (Contact, bool) {
	payload = strings.TrimSpace(payload)
	if addr, err := address.Parse(payload); err == nil {
		return Contact{Address: addr, ReceiveBroadcasts: true}, true
	}

	attrs := wire.ParseAttrs(payload)
	addr, err := address.Parse(attrs["address"])
	if err != nil {
		return Contact{}, false
	}
	return Contact{
		Address:           addr,
		ReceiveBroadcasts: !strings.EqualFold(attrs["broadcasts"], "no"),
	}, true
}

// FetchContacts downloads and decrypts the address book, replacing the
// session copy. Entries that cannot be decrypted are skipped.
func (c *Client) FetchContacts(ctx context.Context) ([]Contact, error) {
	resp, err := c.read(ctx, c.user.Address, func(a string) *interfaces.Request {
		return &interfaces.Request{URL: agent.Home(a, c.user.Address, "links"), Signer: c.user, MaxLength: limits.MaxListingSize}
	})
	if err != nil {
		return nil, fmt.Errorf("fetching contacts: %w", err)
	}

	book := make(map[address.Address]Contact)
	for _, line := range wire.SplitLines(string(resp.Body)) {
		_, sealed, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}
		payload, err := messaging.OpenText(sealed, c.user.Encryption.Private)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "FetchContacts",
				"error":    err.Error(),
			}).Debug("Skipping unreadable contact entry")
			continue
		}
		if contact, ok := parseContact(payload); ok {
			book[contact.Address] = contact
		}
	}

	c.mu.Lock()
	c.contacts = book
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "FetchContacts",
		"contacts": len(book),
	}).Debug("Contact list fetched")
	return c.Contacts(), nil
}

// Contacts returns the session copy of the address book, sorted by address.
func (c *Client) Contacts() []Contact {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Contact, 0, len(c.contacts))
	for _, contact := range c.contacts {
		out = append(out, contact)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address.Compare(out[j].Address) < 0 })
	return out
}

// IsContact reports whether addr is in the address book.
func (c *Client) IsContact(addr address.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.contacts[addr]
	return ok
}

// NewContact adds addr to the address book and returns its profile. The
// entry is sealed to the user's own encryption key.
func (c *Client) NewContact(ctx context.Context, addr address.Address, receiveBroadcasts bool) (*profile.Profile, error) {
	contact := Contact{Address: addr, ReceiveBroadcasts: receiveBroadcasts}
	sealed, err := messaging.SealText(wire.Attrs(
		wire.P("address", addr.String()),
		wire.P("broadcasts", wire.YesNo(receiveBroadcasts)),
	), c.user.Encryption.Public)
	if err != nil {
		return nil, err
	}

	p, err := c.FetchProfile(ctx, addr)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewContact",
			"address":  addr.String(),
		}).Error("Failed adding contact: no profile found")
		return nil, fmt.Errorf("%w: no profile for %s", ErrWrite, addr)
	}

	link := contact.Link(c.user.Address)
	_, err = c.write(ctx, "NewContact", addr, func(a string) *interfaces.Request {
		return &interfaces.Request{Method: http.MethodPut, URL: agent.Home(a, c.user.Address, "links", link), Signer: c.user, Body: []byte(sealed)}
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.contacts[addr] = contact
	c.mu.Unlock()
	return p, nil
}

// DeleteContact removes addr from the address book.
func (c *Client) DeleteContact(ctx context.Context, addr address.Address) error {
	link := Contact{Address: addr}.Link(c.user.Address)
	_, err := c.write(ctx, "DeleteContact", addr, func(a string) *interfaces.Request {
		return &interfaces.Request{Method: http.MethodDelete, URL: agent.Home(a, c.user.Address, "links", link), Signer: c.user}
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.contacts, addr)
	c.mu.Unlock()
	return nil
}
