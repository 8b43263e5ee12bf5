// Package address implements Mail/HTTPS addresses and the identifiers
// derived from them.
//
// An Address is immutable and compares by its canonical lower-case
// local@host form, so it can be used directly as a map key:
//
//	alice, err := address.Parse("Alice@Example.com")
//	// alice.String() == "alice@example.com"
//
// Link computes the symmetric pairwise hash that names the channel between
// two addresses on an agent; NewMessageID generates content ids for new
// messages.
//
// Parse failures wrap ErrInvalidAddress. Text with more than one '@' fails
// with ErrMultipleAt, anything else that does not match the grammar with
// ErrMalformedAddress.
package address
