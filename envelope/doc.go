// Package envelope builds and parses Mail/HTTPS message envelopes.
//
// A message travels as a set of wire headers plus an opaque body. The
// descriptive fields (id, author, subject, readers, attachments) live in a
// Base64 "Message-Headers" block. For private messages that block and the
// body are encrypted with a per-message XChaCha20-Poly1305 access key, which
// is sealed once for every reader and for the author and listed in
// "Message-Access". A SHA-256 checksum over a declared list of wire headers
// is signed with the author's Ed25519 key.
//
// Parse verifies the checksum before decrypting anything and recovers the
// access key by trying each access entry with the reader's private key:
//
//	env, err := envelope.Parse(id, headers, author, keys.Private)
//	if err != nil {
//	    return err
//	}
//	if !env.Readable() {
//	    // encrypted for someone else
//	}
//	body, err := env.DecryptBody(raw)
package envelope
