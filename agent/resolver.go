package agent

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/crypto"
	"github.com/opd-ai/openmail/interfaces"
	"github.com/opd-ai/openmail/limits"
	"github.com/opd-ai/openmail/wire"
	"github.com/sirupsen/logrus"
)

// WellKnownPath is where domains publish their agent list.
const WellKnownPath = "/.well-known/mail.txt"

type entry struct {
	agents   []string
	resolved time.Time
}

// Resolver discovers and caches the live agents of each domain. It is safe
// for concurrent use.
type Resolver struct {
	requester interfaces.Requester
	maxAgents int
	ttl       time.Duration
	clock     crypto.TimeProvider

	mu    sync.Mutex
	cache map[string]entry
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTTL expires cached agent lists after ttl. Zero keeps them for the
// lifetime of the Resolver.
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.ttl = ttl }
}

// WithMaxAgents overrides how many live agents are kept per domain.
func WithMaxAgents(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxAgents = n
		}
	}
}

// WithTimeProvider sets the clock used for TTL checks.
func WithTimeProvider(tp crypto.TimeProvider) Option {
	return func(r *Resolver) { r.clock = crypto.OrDefault(tp) }
}

// NewResolver creates a Resolver that talks through requester.
func NewResolver(requester interfaces.Requester, opts ...Option) *Resolver {
	r := &Resolver{
		requester: requester,
		maxAgents: limits.MaxAgents,
		clock:     crypto.DefaultTimeProvider{},
		cache:     make(map[string]entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FallbackAgent is the agent assumed for host when discovery fails.
func FallbackAgent(host string) string {
	return "mail." + host
}

// AgentsFor resolves the agents serving addr's domain.
func (r *Resolver) AgentsFor(ctx context.Context, addr address.Address) []string {
	return r.Resolve(ctx, addr.HostPart())
}

// Resolve returns up to maxAgents live agents for host, in the order the
// well-known document lists them. When the document is unreachable or none
// of its agents answer, it returns the single fallback agent "mail.{host}";
// that answer is not cached so the next call retries discovery.
func (r *Resolver) Resolve(ctx context.Context, host string) []string {
	host = strings.ToLower(host)

	if agents, ok := r.cached(host); ok {
		return agents
	}

	agents := r.discover(ctx, host)
	if len(agents) == 0 {
		logrus.WithFields(logrus.Fields{
			"function": "Resolve",
			"host":     host,
			"fallback": FallbackAgent(host),
		}).Debug("No live agents discovered, using fallback")
		return []string{FallbackAgent(host)}
	}

	r.mu.Lock()
	r.cache[host] = entry{agents: agents, resolved: r.clock.Now()}
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Resolve",
		"host":     host,
		"agents":   agents,
	}).Debug("Resolved agents")

	return append([]string(nil), agents...)
}

// Invalidate drops the cached agents of host.
func (r *Resolver) Invalidate(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, strings.ToLower(host))
}

func (r *Resolver) cached(host string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.cache[host]
	if !ok {
		return nil, false
	}
	if r.ttl > 0 && r.clock.Since(e.resolved) >= r.ttl {
		delete(r.cache, host)
		return nil, false
	}
	return append([]string(nil), e.agents...), true
}

func (r *Resolver) discover(ctx context.Context, host string) []string {
	document, ok := r.fetchDocument(ctx, host)
	if !ok {
		return nil
	}

	var live []string
	for _, candidate := range Candidates(document) {
		if len(live) >= r.maxAgents {
			break
		}
		if r.probe(ctx, candidate, host) {
			live = append(live, candidate)
		}
	}
	return live
}

func (r *Resolver) fetchDocument(ctx context.Context, host string) (string, bool) {
	for _, location := range []string{host, FallbackAgent(host)} {
		resp, err := r.requester.Do(ctx, &interfaces.Request{
			URL:       "https://" + location + WellKnownPath,
			MaxLength: limits.MaxListingSize,
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "fetchDocument",
				"location": location,
				"error":    err.Error(),
			}).Debug("Well-known document unavailable")
			continue
		}
		return string(resp.Body), true
	}
	return "", false
}

func (r *Resolver) probe(ctx context.Context, agent, host string) bool {
	_, err := r.requester.Do(ctx, &interfaces.Request{
		Method: http.MethodHead,
		URL:    "https://" + agent + "/mail/" + host,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "probe",
			"agent":    agent,
			"host":     host,
		}).Debug("Agent did not answer probe")
		return false
	}
	return true
}

// Candidates extracts agent host names from a well-known document: every
// non-blank line that is not a '#' comment, in order.
func Candidates(document string) []string {
	var out []string
	for _, line := range wire.SplitLines(document) {
		if strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, strings.ToLower(line))
	}
	return out
}
