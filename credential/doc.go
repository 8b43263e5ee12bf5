// Package credential stores the session identity (address and key pairs)
// in the operating system keyring.
package credential
