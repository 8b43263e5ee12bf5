// Package crypto implements the cryptographic primitives of the Mail/HTTPS
// protocol.
//
// Identities carry two key pairs: an Ed25519 signing pair and a Curve25519
// encryption pair. Message bodies and envelope headers are protected by a
// random 256-bit access key with XChaCha20-Poly1305, and the access key is
// delivered to each reader through an anonymous sealed box.
//
// # Keys
//
//	signing, _ := crypto.GenerateSigningKeyPair()
//	encryption, _ := crypto.GenerateEncryptionKeyPair()
//	stored := signing.String() // Base64 private‖public
//	restored, _ := crypto.SigningKeyPairFromBase64(stored)
//
// # Encryption
//
//	sealed, _ := crypto.EncryptAnonymous(accessKey, readerPublic)
//	accessKey, _ = crypto.DecryptAnonymous(sealed, readerPrivate)
//
//	ciphertext, _ := crypto.EncryptSymmetric(body, accessKey) // nonce‖ciphertext
//	body, _ = crypto.DecryptSymmetric(ciphertext, accessKey)
//
// # Signatures and authorization
//
// Sign returns Base64 signatures. Authorization builds the SOTN header that
// agents require on authenticated endpoints; VerifyAuthorization is its
// counterpart.
//
// Every fallible function returns a *Error wrapping one of the sentinel
// errors (ErrInvalidKeyLength, ErrEncrypt, ErrDecrypt, ErrSign, ErrVerify), so
// callers can use errors.Is. No function returns partial output on failure.
package crypto
