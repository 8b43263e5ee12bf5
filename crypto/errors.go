package crypto

import "errors"

var (
	// ErrInvalidKeyLength indicates key material of the wrong size.
	ErrInvalidKeyLength = errors.New("invalid key length")
	// ErrEncrypt indicates an encryption failure.
	ErrEncrypt = errors.New("encryption failed")
	// ErrDecrypt indicates a decryption or authentication failure.
	ErrDecrypt = errors.New("decryption failed")
	// ErrSign indicates a signing failure.
	ErrSign = errors.New("signing failed")
	// ErrVerify indicates a signature that does not verify.
	ErrVerify = errors.New("signature verification failed")
)

// Error is returned by every fallible operation in this package. Op names the
// operation; Err is one of the sentinel errors above or an underlying cause.
type Error struct {
	Op  string
	Err error
}

func newError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func (e *Error) Error() string {
	return "crypto: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
