// Package limits provides centralized size and lifetime constants for the
// Mail/HTTPS client.
//
// # Limits
//
//   - MaxAgents (3): live agents kept per domain by the resolver.
//   - MaxMessageSize (64 MB): the largest single message body. Attachments
//     above it are split into numbered parts.
//   - MaxProfileSize (64 kB) and MaxProfileImageSize (640 kB): bounds on
//     fetched profile documents and images.
//   - MaxHeadersSize (512 kB): bound on the decoded content header block of
//     an envelope.
//   - MaxListingSize (4 MiB): bound on text listings returned by agents.
//   - NotificationLifetime (7 days).
//
// # Validation Functions
//
//	if err := limits.ValidateProfile(doc); err != nil {
//	    // ErrEmpty or ErrTooLarge
//	}
//
// For custom limits use ValidateSize:
//
//	err := limits.ValidateSize(data, limits.MaxMessageSize)
package limits
