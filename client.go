package openmail

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/agent"
	"github.com/opd-ai/openmail/cache"
	"github.com/opd-ai/openmail/crypto"
	"github.com/opd-ai/openmail/factory"
	"github.com/opd-ai/openmail/interfaces"
	"github.com/opd-ai/openmail/limits"
	"github.com/opd-ai/openmail/messaging"
	"github.com/opd-ai/openmail/profile"
	"github.com/sirupsen/logrus"
)

// Options contains configuration options for creating a Client.
type Options struct {
	// Requester carries every request. Nil builds one with the requester
	// factory and its OPENMAIL_* environment overrides.
	Requester interfaces.Requester
	// Store caches envelopes, bodies and processed notifications. Nil opens
	// a FileStore in DataDir.
	Store cache.Store
	// DataDir is removed by Logout.
	DataDir string
	// AgentCacheTTL expires resolved agent lists; zero keeps them for the
	// lifetime of the Client.
	AgentCacheTTL time.Duration
	// MaxAgents caps the live agents kept per domain.
	MaxAgents int
	// VerifySignatures checks every fetched envelope against its author's
	// signing keys.
	VerifySignatures bool
	// TimeProvider is the clock used for notification expiry.
	TimeProvider crypto.TimeProvider
}

// NewOptions creates a new default Options.
func NewOptions() *Options {
	return &Options{
		MaxAgents:    limits.MaxAgents,
		TimeProvider: crypto.DefaultTimeProvider{},
	}
}

// Collection names one of the message collections a Client maintains.
type Collection int

const (
	// Broadcasts holds public messages of contacts who accept broadcasts.
	Broadcasts Collection = iota
	// Inbox holds messages addressed to the user.
	Inbox
	// Outbox holds the user's messages still stored on their agents.
	Outbox
	// Sent holds every message the user sent, including ones only cached.
	Sent
)

func (c Collection) String() string {
	switch c {
	case Broadcasts:
		return "broadcasts"
	case Inbox:
		return "inbox"
	case Outbox:
		return "outbox"
	case Sent:
		return "sent"
	default:
		return fmt.Sprintf("collection(%d)", int(c))
	}
}

// ContactRequestCallback is called for an accepted notification from an
// address that is not in the address book.
type ContactRequestCallback func(n messaging.Notification)

// NewMessageCallback is called for every message first seen by a fetch.
type NewMessageCallback func(collection Collection, m *messaging.Message)

// Stats counts client activity. The in-flight counts are for status
// display only.
type Stats struct {
	Writes         uint64
	WriteFailures  uint64
	WritesInFlight int64
	SyncsInFlight  int64
	Fetch          messaging.FetcherStats
}

// Client is a logged-in Mail/HTTPS session. It is safe for concurrent use.
type Client struct {
	options   *Options
	user      *User
	requester interfaces.Requester
	resolver  *agent.Resolver
	store     cache.Store
	fetcher   *messaging.Fetcher
	clock     crypto.TimeProvider

	profilesMu sync.RWMutex
	profiles   map[address.Address]*profile.Profile

	mu            sync.RWMutex
	contacts      map[address.Address]Contact
	notifications []messaging.Notification
	seen          map[string]time.Time
	deleted       map[string]bool
	collections   map[Collection]map[string]*messaging.Message

	callbackMu             sync.RWMutex
	contactRequestCallback ContactRequestCallback
	newMessageCallback     NewMessageCallback

	writes        atomic.Uint64
	writeFailures atomic.Uint64
	writing       atomic.Int64
	syncing       atomic.Int64
}

// New creates a Client acting as user.
func New(user *User, options *Options) (*Client, error) {
	if user == nil || user.Address.IsZero() {
		return nil, errors.New("user is required")
	}
	if options == nil {
		options = NewOptions()
	}

	requester := options.Requester
	if requester == nil {
		var err error
		requester, err = factory.NewRequesterFactory().CreateRequester()
		if err != nil {
			return nil, err
		}
	}

	store := options.Store
	if store == nil {
		var err error
		store, err = cache.NewFileStore(options.DataDir)
		if err != nil {
			return nil, err
		}
	}

	clock := crypto.OrDefault(options.TimeProvider)
	resolver := agent.NewResolver(requester,
		agent.WithTTL(options.AgentCacheTTL),
		agent.WithMaxAgents(options.MaxAgents),
		agent.WithTimeProvider(clock),
	)

	c := &Client{
		options:   options,
		user:      user,
		requester: requester,
		resolver:  resolver,
		store:     store,
		clock:     clock,
		profiles:  make(map[address.Address]*profile.Profile),
		contacts:  make(map[address.Address]Contact),
		deleted:   make(map[string]bool),
		collections: map[Collection]map[string]*messaging.Message{
			Broadcasts: {}, Inbox: {}, Outbox: {}, Sent: {},
		},
	}

	var fetcherOpts []messaging.FetcherOption
	if options.VerifySignatures {
		fetcherOpts = append(fetcherOpts, messaging.WithSignatureVerification(c))
	}
	c.fetcher = messaging.NewFetcher(requester, resolver, store, user.reader(), fetcherOpts...)

	seen, err := store.SeenNotifications(context.Background())
	if err != nil {
		return nil, err
	}
	c.seen = seen

	logrus.WithFields(logrus.Fields{
		"function":   "New",
		"address":    user.Address.String(),
		"simulation": requester.IsSimulation(),
	}).Info("Created client")

	return c, nil
}

// User returns the session identity.
func (c *Client) User() *User { return c.user }

// Resolver returns the agent resolver of the session.
func (c *Client) Resolver() *agent.Resolver { return c.resolver }

// OnContactRequest sets the callback for notifications from unknown
// addresses.
func (c *Client) OnContactRequest(callback ContactRequestCallback) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	c.contactRequestCallback = callback
}

// OnNewMessage sets the callback for newly fetched messages.
func (c *Client) OnNewMessage(callback NewMessageCallback) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	c.newMessageCallback = callback
}

// Stats returns a snapshot of the session counters.
func (c *Client) Stats() Stats {
	return Stats{
		Writes:         c.writes.Load(),
		WriteFailures:  c.writeFailures.Load(),
		WritesInFlight: c.writing.Load(),
		SyncsInFlight:  c.syncing.Load(),
		Fetch:          c.fetcher.Stats(),
	}
}

// Messages returns the current contents of collection, newest first.
func (c *Client) Messages(collection Collection) []*messaging.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*messaging.Message, 0, len(c.collections[collection]))
	for _, m := range c.collections[collection] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Envelope.Date.Equal(out[j].Envelope.Date) {
			return out[i].Envelope.Date.After(out[j].Envelope.Date)
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

// Logout wipes the session keys, closes the cache and removes the data
// directory.
func (c *Client) Logout() error {
	c.user.Wipe()

	c.mu.Lock()
	c.contacts = make(map[address.Address]Contact)
	c.notifications = nil
	for k := range c.collections {
		c.collections[k] = map[string]*messaging.Message{}
	}
	c.mu.Unlock()

	c.profilesMu.Lock()
	c.profiles = make(map[address.Address]*profile.Profile)
	c.profilesMu.Unlock()

	var errs []error
	if err := c.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.options.DataDir != "" {
		if err := os.RemoveAll(c.options.DataDir); err != nil {
			errs = append(errs, fmt.Errorf("removing data directory: %w", err))
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Logout",
		"address":  c.user.Address.String(),
	}).Info("Logged out")
	return errors.Join(errs...)
}
