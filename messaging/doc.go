// Package messaging fetches, caches and reassembles Mail/HTTPS messages.
//
// # Overview
//
// A message is an [envelope.Envelope] plus its decrypted body. Long bodies
// and attachments travel as separate child messages that name their parent;
// the client collects every message of a listing first and only then links
// children to parents and rebuilds the full body and the attachment groups.
//
// # Architecture
//
//   - [Message]: an envelope, its body and its children. [Message.AddChild]
//     attaches a part; [Message.ReconstructFromChildren] concatenates body
//     parts and groups attachment parts, both ordered by declared part number.
//   - [Fetcher]: reads listings and messages through the reader's agents,
//     caching raw envelopes and bodies in a [cache.Store]. Attachment part
//     bodies are downloaded on demand with [Fetcher.DownloadAttachment].
//   - [Notification]: a verified "new mail" notice from another address.
//
// # Listings
//
// Three kinds of [Listing] exist. The reader's own messages come from the
// authenticated home endpoint, an author's broadcasts from the public mail
// endpoint, and everything else from the pairwise link endpoint the author
// exposes to the reader:
//
//	f := messaging.NewFetcher(requester, resolver, store, reader)
//	inbox, err := f.FetchMany(ctx, messaging.Listing{Author: bob}, messaging.FetchOptions{})
//
// # Failure Handling
//
// A message that cannot be fetched, parsed or decrypted is logged and left
// out of the result. It never fails the listing it belongs to.
package messaging
