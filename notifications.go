package openmail

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/agent"
	"github.com/opd-ai/openmail/interfaces"
	"github.com/opd-ai/openmail/limits"
	"github.com/opd-ai/openmail/messaging"
	"github.com/opd-ai/openmail/profile"
	"github.com/opd-ai/openmail/wire"
	"github.com/sirupsen/logrus"
)

// FetchNotifications downloads the user's notification listing and returns
// the notifications accepted by this call. A line is processed at most
// once: its id is remembered when it is accepted or found invalid, but not
// when the notifier's profile could not be reached.
func (c *Client) FetchNotifications(ctx context.Context) ([]messaging.Notification, error) {
	resp, err := c.read(ctx, c.user.Address, func(a string) *interfaces.Request {
		return &interfaces.Request{URL: agent.Home(a, c.user.Address, "notifications"), Signer: c.user, MaxLength: limits.MaxListingSize}
	})
	if err != nil {
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}

	var accepted []messaging.Notification
	changed := false
	for _, line := range wire.SplitLines(string(resp.Body)) {
		n, done := c.processNotification(ctx, line)
		if done {
			changed = true
		}
		if n != nil {
			accepted = append(accepted, *n)
		}
	}

	if changed {
		c.mu.RLock()
		seen := make(map[string]time.Time, len(c.seen))
		for id, t := range c.seen {
			seen[id] = t
		}
		c.mu.RUnlock()
		if err := c.store.SaveNotifications(ctx, seen); err != nil {
			return accepted, err
		}
	}

	c.callbackMu.RLock()
	callback := c.contactRequestCallback
	c.callbackMu.RUnlock()
	if callback != nil {
		for _, n := range accepted {
			if !c.IsContact(n.From) {
				callback(n)
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "FetchNotifications",
		"accepted": len(accepted),
	}).Debug("Notifications fetched")
	return accepted, nil
}

// processNotification returns the accepted notification, if any, and
// whether the line id was marked as processed.
func (c *Client) processNotification(ctx context.Context, raw string) (*messaging.Notification, bool) {
	entry := logrus.WithField("function", "processNotification")

	line, err := messaging.ParseNotificationLine(raw)
	if err != nil {
		entry.WithField("error", err.Error()).Debug("Invalid notification")
		return nil, false
	}

	c.mu.RLock()
	_, seen := c.seen[line.ID]
	c.mu.RUnlock()
	if seen {
		return nil, false
	}
	entry = entry.WithField("id", shortID(line.ID))

	from, err := line.Notifier(c.user.Encryption.Private)
	if err != nil {
		entry.WithField("error", err.Error()).Debug("Unable to open notification")
		return nil, c.markSeen(line.ID)
	}

	p, err := c.FetchProfile(ctx, from)
	if err != nil {
		if errors.Is(err, profile.ErrInvalidProfile) {
			entry.WithField("error", err.Error()).Debug("Notifier has an invalid profile")
			return nil, c.markSeen(line.ID)
		}
		entry.WithField("from", from.String()).Error("Could not fetch profile of notifier")
		return nil, false
	}

	if !p.MatchesFingerprint(line.Fingerprint) {
		entry.WithField("from", from.String()).Debug("Fingerprint mismatch for notification")
		return nil, c.markSeen(line.ID)
	}

	n := messaging.Notification{
		ID:          line.ID,
		Link:        line.Link,
		Fingerprint: line.Fingerprint,
		From:        from,
		Received:    c.clock.Now(),
	}

	c.mu.Lock()
	c.seen[line.ID] = n.Received
	c.notifications = append(c.notifications, n)
	c.mu.Unlock()
	return &n, true
}

func (c *Client) markSeen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[id] = c.clock.Now()
	return true
}

// Notifications returns the accepted notifications that have not expired.
func (c *Client) Notifications() []messaging.Notification {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	live := c.notifications[:0]
	for _, n := range c.notifications {
		if !n.Expired(now) {
			live = append(live, n)
		}
	}
	c.notifications = live
	return append([]messaging.Notification(nil), live...)
}

// ContactRequests returns one unexpired notification per notifier that is
// not in the address book, ordered by notifier.
func (c *Client) ContactRequests() []messaging.Notification {
	latest := make(map[address.Address]messaging.Notification)
	for _, n := range c.Notifications() {
		if c.IsContact(n.From) || n.From == c.user.Address {
			continue
		}
		if prev, ok := latest[n.From]; !ok || n.Received.After(prev.Received) {
			latest[n.From] = n
		}
	}

	out := make([]messaging.Notification, 0, len(latest))
	for _, n := range latest {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].From.Compare(out[j].From) < 0 })
	return out
}
