// Package agent resolves the Mail/HTTPS agents that serve a domain.
//
// A domain lists its agents, one host name per line, in
// https://{domain}/.well-known/mail.txt (falling back to
// https://mail.{domain}/.well-known/mail.txt). The Resolver probes each
// candidate with HEAD https://{agent}/mail/{domain} and keeps the first
// three that answer:
//
//	resolver := agent.NewResolver(requester, agent.WithTTL(time.Hour))
//	agents := resolver.AgentsFor(ctx, addr)
//	for _, a := range agents {
//	    // try a, fall through to the next on failure
//	}
//
// Successful resolutions are cached per domain, for the Resolver's lifetime
// by default or for the configured TTL. Failed discovery yields the single
// agent "mail.{domain}" and is not cached.
package agent
