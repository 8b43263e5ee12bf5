package openmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/agent"
	"github.com/opd-ai/openmail/envelope"
	"github.com/opd-ai/openmail/interfaces"
	"github.com/opd-ai/openmail/messaging"
	"github.com/sirupsen/logrus"
)

// Draft is a message to send. No readers means a broadcast.
type Draft struct {
	Readers []address.Address
	Subject string
	// SubjectID continues an existing thread; empty starts a new one.
	SubjectID   string
	Body        []byte
	Attachments []File
}

// File is an attachment of a Draft.
type File struct {
	Name     string
	Type     string
	Modified time.Time
	Data     []byte
}

func (c *Client) newID() (string, error) {
	return address.NewMessageID(c.user.Address)
}

// Send builds draft, stores it on the user's agents and notifies every
// reader. Attachments follow as child messages. It returns the id of the
// parent message.
func (c *Client) Send(ctx context.Context, draft *Draft) (string, error) {
	id, err := c.newID()
	if err != nil {
		return "", err
	}

	var parts []messaging.Part
	for _, f := range draft.Attachments {
		p, err := messaging.SplitAttachment(f.Name, f.Type, f.Modified, f.Data, c.newID)
		if err != nil {
			return "", err
		}
		parts = append(parts, p...)
	}

	files := make([]envelope.Attachment, len(parts))
	for i, p := range parts {
		files[i] = p.Attachment
	}

	now := c.clock.Now()
	parent := &envelope.Outgoing{
		ID:        id,
		Date:      now,
		Subject:   draft.Subject,
		SubjectID: draft.SubjectID,
		Readers:   draft.Readers,
		Body:      draft.Body,
		Files:     files,
	}
	if err := c.put(ctx, parent); err != nil {
		return "", err
	}
	c.notifyReaders(ctx, draft.Readers)

	subjectID := draft.SubjectID
	if subjectID == "" {
		subjectID = id
	}
	for _, p := range parts {
		file := p.Attachment
		child := &envelope.Outgoing{
			ID:        file.ID,
			Date:      now,
			Subject:   draft.Subject,
			SubjectID: subjectID,
			Readers:   draft.Readers,
			Body:      p.Data,
			ParentID:  id,
			File:      &file,
		}
		if err := c.put(ctx, child); err != nil {
			return "", err
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Send",
		"id":          shortID(id),
		"readers":     len(draft.Readers),
		"attachments": len(parts),
	}).Info("Sent message")
	return id, nil
}

// put builds msg and writes it to the user's agents.
func (c *Client) put(ctx context.Context, msg *envelope.Outgoing) error {
	built, err := envelope.Build(ctx, msg, c.user.author(), c)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	header := built.HeaderMap()
	_, err = c.write(ctx, "Send", c.user.Address, func(a string) *interfaces.Request {
		return &interfaces.Request{Method: http.MethodPut, URL: agent.Home(a, c.user.Address, "messages"), Signer: c.user, Header: header, Body: built.Body}
	})
	return err
}

// notifyReaders tells every reader that the user has new mail for them.
// Each reader is notified through the first of its agents that accepts;
// failures are logged and never fail the send.
func (c *Client) notifyReaders(ctx context.Context, readers []address.Address) {
	for _, reader := range readers {
		if reader == c.user.Address {
			continue
		}
		entry := logrus.WithFields(logrus.Fields{
			"function": "notifyReaders",
			"reader":   reader.String(),
		})

		p, err := c.Profile(ctx, reader)
		if err != nil {
			entry.WithField("error", err.Error()).Warn("Failed notifying reader: could not fetch profile")
			continue
		}
		key, ok := p.EncryptionKey()
		if !ok {
			entry.Warn("Failed notifying reader: no encryption key")
			continue
		}
		sealed, err := messaging.SealAddress(c.user.Address, key)
		if err != nil {
			entry.WithField("error", err.Error()).Warn("Failed notifying reader: cannot seal address")
			continue
		}

		link := address.Link(reader, c.user.Address)
		_, err = c.read(ctx, reader, func(a string) *interfaces.Request {
			return &interfaces.Request{Method: http.MethodPut, URL: agent.Link(a, reader, link, "notifications"), Signer: c.user, Body: []byte(sealed)}
		})
		if err != nil {
			entry.WithField("error", err.Error()).Warn("Failed notifying reader")
			continue
		}
		entry.Debug("Notified reader")
	}
}

// DeleteMessage removes a sent message from the user's agents. The id is
// excluded from later Sent fetches and its cache entries are purged.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	_, err := c.write(ctx, "DeleteMessage", c.user.Address, func(a string) *interfaces.Request {
		return &interfaces.Request{Method: http.MethodDelete, URL: agent.Home(a, c.user.Address, "messages", id), Signer: c.user}
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.deleted[id] = true
	delete(c.collections[Outbox], id)
	delete(c.collections[Sent], id)
	c.mu.Unlock()

	return c.fetcher.Invalidate(ctx, messaging.Listing{Author: c.user.Address}, id)
}

// DownloadAttachment fetches the parts of an attachment listed under name
// in m and returns the reassembled file.
func (c *Client) DownloadAttachment(ctx context.Context, m *messaging.Message, name string) ([]byte, error) {
	parts, ok := m.Attachments[name]
	if !ok {
		return nil, fmt.Errorf("message %s has no attachment %q", shortID(m.ID()), name)
	}
	return c.fetcher.DownloadAttachment(ctx, parts)
}

// FetchBroadcasts fetches the public messages of every contact that accepts
// broadcasts.
func (c *Client) FetchBroadcasts(ctx context.Context) ([]*messaging.Message, error) {
	var listings []messaging.Listing
	for _, contact := range c.Contacts() {
		if contact.ReceiveBroadcasts {
			listings = append(listings, messaging.Listing{Author: contact.Address, Broadcast: true})
		}
	}
	return c.collect(ctx, Broadcasts, listings, messaging.FetchOptions{})
}

// FetchInbox fetches the messages addressed to the user by contacts and by
// senders of pending contact requests.
func (c *Client) FetchInbox(ctx context.Context) ([]*messaging.Message, error) {
	authors := make(map[address.Address]bool)
	for _, contact := range c.Contacts() {
		authors[contact.Address] = true
	}
	for _, n := range c.ContactRequests() {
		authors[n.From] = true
	}
	delete(authors, c.user.Address)

	listings := make([]messaging.Listing, 0, len(authors))
	for a := range authors {
		listings = append(listings, messaging.Listing{Author: a})
	}
	return c.collect(ctx, Inbox, listings, messaging.FetchOptions{})
}

// FetchOutbox fetches the user's messages that are still stored on their
// agents.
func (c *Client) FetchOutbox(ctx context.Context) ([]*messaging.Message, error) {
	return c.collect(ctx, Outbox, []messaging.Listing{{Author: c.user.Address}}, messaging.FetchOptions{RemoteOnly: true})
}

// FetchSent fetches every message the user sent, including messages only
// left in the cache, minus deleted ones.
func (c *Client) FetchSent(ctx context.Context) ([]*messaging.Message, error) {
	c.mu.RLock()
	exclude := make(map[string]bool, len(c.deleted))
	for id := range c.deleted {
		exclude[id] = true
	}
	c.mu.RUnlock()

	return c.collect(ctx, Sent, []messaging.Listing{{Author: c.user.Address}}, messaging.FetchOptions{Exclude: exclude})
}

// collect fetches listings concurrently and replaces collection with the
// merged result. A failing listing is logged and skipped; the error is
// returned only when every listing failed.
func (c *Client) collect(ctx context.Context, collection Collection, listings []messaging.Listing, opts messaging.FetchOptions) ([]*messaging.Message, error) {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		merged = make(map[string]*messaging.Message)
		errs   []error
	)

	for _, l := range listings {
		wg.Add(1)
		go func(l messaging.Listing) {
			defer wg.Done()
			msgs, err := c.fetcher.FetchMany(ctx, l, opts)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function":   "collect",
					"collection": collection.String(),
					"author":     l.Author.String(),
					"error":      err.Error(),
				}).Warn("Skipping listing")
				errs = append(errs, fmt.Errorf("%s: %w", l.Author, err))
				return
			}
			for _, m := range msgs {
				merged[m.ID()] = m
			}
		}(l)
	}
	wg.Wait()

	if len(listings) > 0 && len(errs) == len(listings) {
		return nil, errors.Join(errs...)
	}

	c.mu.Lock()
	previous := c.collections[collection]
	c.collections[collection] = merged
	c.mu.Unlock()

	c.callbackMu.RLock()
	callback := c.newMessageCallback
	c.callbackMu.RUnlock()
	if callback != nil {
		for id, m := range merged {
			if _, known := previous[id]; !known && m.New {
				callback(collection, m)
			}
		}
	}

	return c.Messages(collection), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
