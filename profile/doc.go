// Package profile parses and renders Mail/HTTPS public profiles.
//
// A profile is a "Key: value" document. Three fields are required (name,
// signing-key, updated); every other field in Schema is optional and
// individually dropped when malformed. Field values are a tagged variant,
// Value, whose Kind selects string, bool, date, datetime or key semantics.
// Lookups go through the explicit Schema table:
//
//	p, err := profile.Parse(addr, text)
//	if errors.Is(err, profile.ErrInvalidProfile) { ... }
//	key, ok := p.EncryptionKey()
//	away := p.Bool(profile.FieldAway)
//
// UpdateDocument and RegistrationDocument render the documents a client
// uploads.
package profile
