package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/agent"
	"github.com/opd-ai/openmail/cache"
	"github.com/opd-ai/openmail/crypto"
	"github.com/opd-ai/openmail/envelope"
	"github.com/opd-ai/openmail/interfaces"
	"github.com/opd-ai/openmail/limits"
	"github.com/opd-ai/openmail/wire"
	"github.com/sirupsen/logrus"
)

// maxBodyOverhead covers the nonce and tag added by body encryption.
const maxBodyOverhead = 1024

// ErrForeignAuthor indicates an envelope whose content names an author
// other than the owner of the listing it was served from.
var ErrForeignAuthor = fmt.Errorf("%w: author does not own listing", envelope.ErrInvalidEnvelope)

// Listing names one message listing: an author's public broadcasts, the
// pairwise listing an author exposes to the reader, or the reader's own
// messages (Author equal to the reader).
type Listing struct {
	Author    address.Address
	Broadcast bool
}

func (l Listing) key(id string) cache.Key {
	return cache.Key{Author: l.Author, Broadcast: l.Broadcast, ID: id}
}

// Reader is the identity messages are fetched for.
type Reader struct {
	Address address.Address
	// Signer authenticates requests; nil sends them unauthenticated.
	Signer interfaces.Signer
	// EncryptionKey is the private key that opens access entries.
	EncryptionKey crypto.Key
}

// AgentSource resolves the agents serving an address.
type AgentSource interface {
	AgentsFor(ctx context.Context, addr address.Address) []string
}

// FetchOptions controls FetchMany.
type FetchOptions struct {
	// RemoteOnly ignores ids known only from the cache.
	RemoteOnly bool
	// Exclude lists ids to skip; their cache entries are purged.
	Exclude map[string]bool
}

// FetcherStats counts fetch activity.
type FetcherStats struct {
	EnvelopesFetched uint64
	BodiesFetched    uint64
	CacheHits        uint64
	Skipped          uint64
}

// Fetcher retrieves envelopes and bodies for a reader, caching both. All
// requests go through the reader's own agents. It is safe for concurrent
// use.
type Fetcher struct {
	requester interfaces.Requester
	agents    AgentSource
	store     cache.Store
	reader    Reader
	profiles  envelope.ProfileSource

	envelopesFetched atomic.Uint64
	bodiesFetched    atomic.Uint64
	cacheHits        atomic.Uint64
	skipped          atomic.Uint64
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithSignatureVerification checks every fetched envelope against the
// current or last signing key of its author, looked up through profiles.
func WithSignatureVerification(profiles envelope.ProfileSource) FetcherOption {
	return func(f *Fetcher) { f.profiles = profiles }
}

// NewFetcher creates a Fetcher for reader.
func NewFetcher(requester interfaces.Requester, agents AgentSource, store cache.Store, reader Reader, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		requester: requester,
		agents:    agents,
		store:     store,
		reader:    reader,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Stats returns a snapshot of the fetch counters.
func (f *Fetcher) Stats() FetcherStats {
	return FetcherStats{
		EnvelopesFetched: f.envelopesFetched.Load(),
		BodiesFetched:    f.bodiesFetched.Load(),
		CacheHits:        f.cacheHits.Load(),
		Skipped:          f.skipped.Load(),
	}
}

// url returns the location of listing l (or of one of its messages) on
// agent a, and whether requests must be authenticated.
func (f *Fetcher) url(a string, l Listing, elems ...string) (string, bool) {
	elems = append([]string{"messages"}, elems...)
	switch {
	case l.Author == f.reader.Address:
		return agent.Home(a, f.reader.Address, elems...), true
	case l.Broadcast:
		return agent.Mail(a, l.Author, elems...), false
	default:
		return agent.Link(a, l.Author, address.Link(f.reader.Address, l.Author), elems...), true
	}
}

func (f *Fetcher) get(ctx context.Context, method string, l Listing, maxLength int64, elems ...string) (*interfaces.Response, error) {
	agents := f.agents.AgentsFor(ctx, f.reader.Address)
	resp, _, err := agent.Try(ctx, f.requester, agents, func(a string) *interfaces.Request {
		u, auth := f.url(a, l, elems...)
		req := &interfaces.Request{Method: method, URL: u, MaxLength: maxLength}
		if auth {
			req.Signer = f.reader.Signer
		}
		return req
	})
	return resp, err
}

// LocalIDs lists the ids cached for l.
func (f *Fetcher) LocalIDs(ctx context.Context, l Listing) ([]string, error) {
	return f.store.EnvelopeIDs(ctx, l.Author, l.Broadcast)
}

// RemoteIDs fetches the id listing of l.
func (f *Fetcher) RemoteIDs(ctx context.Context, l Listing) ([]string, error) {
	resp, err := f.get(ctx, http.MethodGet, l, limits.MaxListingSize)
	if err != nil {
		return nil, fmt.Errorf("listing messages of %s: %w", l.Author, err)
	}
	return wire.SplitLines(string(resp.Body)), nil
}

// FetchOne returns message id of listing l: the envelope from cache or a
// HEAD request, then the body from cache or a GET request. Attachment parts
// keep their body deferred. Unreadable messages return
// envelope.ErrUnreadable.
func (f *Fetcher) FetchOne(ctx context.Context, l Listing, id string) (*Message, error) {
	key := l.key(id)

	header, cached, err := f.store.Envelope(ctx, key)
	if err != nil {
		return nil, err
	}
	if cached {
		f.cacheHits.Add(1)
	} else {
		resp, err := f.get(ctx, http.MethodHead, l, 0, id)
		if err != nil {
			return nil, fmt.Errorf("fetching envelope %s: %w", shortID(id), err)
		}
		header = resp.Header
		f.envelopesFetched.Add(1)
	}

	env, err := envelope.Parse(id, header, l.Author, f.reader.EncryptionKey)
	if err != nil {
		if cached {
			_ = f.store.Delete(ctx, key)
		}
		return nil, err
	}
	if !cached {
		if err := f.store.PutEnvelope(ctx, key, header); err != nil {
			return nil, err
		}
	}
	if !env.Readable() {
		return nil, envelope.ErrUnreadable
	}
	if env.Origin != l.Author {
		return nil, fmt.Errorf("%w: %s in listing of %s", ErrForeignAuthor, env.Origin, l.Author)
	}
	if err := f.verify(ctx, env); err != nil {
		return nil, err
	}

	if env.IsChild() && env.File != nil {
		m := NewMessage(env, nil)
		m.New, m.Deferred, m.listing = !cached, true, l
		return m, nil
	}

	body, err := f.body(ctx, l, env)
	if err != nil {
		return nil, err
	}
	m := NewMessage(env, body)
	m.New, m.listing = !cached, l
	return m, nil
}

func (f *Fetcher) verify(ctx context.Context, env *envelope.Envelope) error {
	if f.profiles == nil {
		return nil
	}
	p, err := f.profiles.Profile(ctx, env.Author)
	if err != nil {
		return fmt.Errorf("verifying %s: %w", shortID(env.ID), err)
	}
	return env.VerifySignature(p.SigningKeys()...)
}

func (f *Fetcher) body(ctx context.Context, l Listing, env *envelope.Envelope) ([]byte, error) {
	key := l.key(env.ID)
	raw, found, err := f.store.Body(ctx, key)
	if err != nil {
		return nil, err
	}
	if found {
		f.cacheHits.Add(1)
	} else {
		resp, err := f.get(ctx, http.MethodGet, l, limits.MaxMessageSize+maxBodyOverhead, env.ID)
		if err != nil {
			return nil, fmt.Errorf("fetching body %s: %w", shortID(env.ID), err)
		}
		raw = resp.Body
		f.bodiesFetched.Add(1)
		if err := f.store.PutBody(ctx, key, raw); err != nil {
			return nil, err
		}
	}

	plain, err := env.DecryptBody(raw)
	if err != nil {
		_ = f.store.Delete(ctx, key)
		return nil, err
	}
	if err := env.VerifyBody(plain); err != nil {
		_ = f.store.Delete(ctx, key)
		return nil, err
	}
	return plain, nil
}

// FetchMany fetches every message of l and returns the assembled root
// messages, newest first. Messages that fail to fetch or validate are
// skipped and logged; they never fail the whole listing.
func (f *Fetcher) FetchMany(ctx context.Context, l Listing, opts FetchOptions) ([]*Message, error) {
	ids := make(map[string]bool)

	if !opts.RemoteOnly {
		local, err := f.LocalIDs(ctx, l)
		if err != nil {
			return nil, err
		}
		for _, id := range local {
			ids[id] = true
		}
	}

	remote, err := f.RemoteIDs(ctx, l)
	if err != nil {
		if opts.RemoteOnly {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{
			"function": "FetchMany",
			"author":   l.Author.String(),
			"error":    err.Error(),
		}).Warn("Remote listing unavailable, using cached messages")
	}
	for _, id := range remote {
		ids[id] = true
	}

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		if opts.Exclude[id] {
			if err := f.Invalidate(ctx, l, id); err != nil {
				return nil, err
			}
			continue
		}
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	var msgs []*Message
	for _, id := range sorted {
		m, err := f.FetchOne(ctx, l, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.skipped.Add(1)
			entry := logrus.WithFields(logrus.Fields{
				"function": "FetchMany",
				"author":   l.Author.String(),
				"id":       shortID(id),
				"error":    err.Error(),
			})
			if errors.Is(err, envelope.ErrUnreadable) {
				entry.Debug("Skipping message not addressed to reader")
			} else {
				entry.Warn("Skipping message")
			}
			continue
		}
		msgs = append(msgs, m)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "FetchMany",
		"author":    l.Author.String(),
		"broadcast": l.Broadcast,
		"messages":  len(msgs),
	}).Debug("Fetched listing")

	return Assemble(msgs), nil
}

// Invalidate drops the cached envelope and body of id.
func (f *Fetcher) Invalidate(ctx context.Context, l Listing, id string) error {
	return f.store.Delete(ctx, l.key(id))
}

// DownloadAttachment fetches, decrypts and concatenates the deferred bodies
// of parts, in the order given.
func (f *Fetcher) DownloadAttachment(ctx context.Context, parts []*Message) ([]byte, error) {
	var out []byte
	for _, p := range parts {
		if !p.Deferred {
			out = append(out, p.Body...)
			continue
		}

		resp, err := f.get(ctx, http.MethodGet, p.listing, limits.MaxMessageSize+maxBodyOverhead, p.ID())
		if err != nil {
			return nil, fmt.Errorf("downloading part %s: %w", shortID(p.ID()), err)
		}
		plain, err := p.Envelope.DecryptBody(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("decrypting part %s: %w", shortID(p.ID()), err)
		}
		if err := p.Envelope.VerifyBody(plain); err != nil {
			return nil, err
		}
		f.bodiesFetched.Add(1)
		out = append(out, plain...)
	}
	return out, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
