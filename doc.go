// Package openmail implements a client session for the Mail/HTTPS protocol.
//
// Mail/HTTPS is a decentralized, address-based messaging protocol. Messages
// are signed, optionally end-to-end-encrypted envelopes served over plain
// HTTPS by per-domain agents. There is no central server: every domain
// publishes its agents in a well-known document and clients fail over
// between them. This package is the facade that ties the subsystems
// together: agent discovery ([agent]), envelope encoding ([envelope]),
// message fetching and reconstruction ([messaging]) and local caching
// ([cache]).
//
// # Getting Started
//
// Create a user, register it and send a message:
//
//	user, err := openmail.NewUser(address.MustParse("alice@example.com"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	options := openmail.NewOptions()
//	options.DataDir = "/var/lib/openmail"
//
//	client, err := openmail.New(user, options)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Logout()
//
//	if err := client.Register(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	id, err := client.Send(ctx, &openmail.Draft{
//	    Readers: []address.Address{address.MustParse("bob@example.org")},
//	    Subject: "Hello",
//	    Body:    []byte("hi"),
//	})
//
// # Core Types
//
//   - [Client]: the session context; holds the agent cache, profile cache,
//     address book, notifications and message collections
//   - [User]: the local identity and its key pairs
//   - [Options]: configuration for [New]
//   - [Draft]: an outgoing message with optional attachments
//
// # Writes
//
// Every mutating operation (profile and image updates, contact changes,
// sending and deleting messages, account registration and deletion) is
// tried against the resolved agents of the relevant address in order and
// commits on the first agent that answers with success. When every agent
// fails the operation returns an error wrapping [ErrWrite]; the caller
// rolls back any optimistic local state.
//
// # Synchronization
//
// [Client.Sync] refreshes the address book and notifications and then
// fetches four collections concurrently:
//
//   - [Broadcasts]: public messages of contacts who accept broadcasts
//   - [Inbox]: messages addressed to the user by contacts and by senders of
//     pending contact requests
//   - [Outbox]: the user's messages still stored on their agents
//   - [Sent]: everything the user sent, including cached copies
//
// A peer that is unreachable or serves malformed data is skipped and logged;
// it never aborts a whole sync.
//
// # Notifications
//
// Senders announce new mail by pushing a notification to the reader. A
// notification is accepted only when the fingerprint it claims matches the
// current or last signing key of the sender's profile, and every
// notification id is processed at most once. Accepted notifications from
// addresses outside the address book are reported as contact requests via
// [Client.OnContactRequest] and expire after seven days.
//
// # Testing
//
// Pass a simulated agent network from package testing as
// [Options.Requester] to exercise the whole client in memory.
package openmail
