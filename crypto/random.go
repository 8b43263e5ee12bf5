package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
)

const alphanumeric = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// RandomBytes returns length cryptographically random bytes.
func RandomBytes(length int) ([]byte, error) {
	out := make([]byte, length)
	if _, err := rand.Read(out); err != nil {
		return nil, newError("random bytes", err)
	}
	return out, nil
}

// RandomString returns length random characters from 0-9, A-Z and a-z.
func RandomString(length int) (string, error) {
	limit := big.NewInt(int64(len(alphanumeric)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", newError("random string", err)
		}
		out[i] = alphanumeric[n.Int64()]
	}
	return string(out), nil
}

// Fingerprint identifies a public key: the hex SHA-256 of its bytes.
func Fingerprint(public Key) string {
	sum := sha256.Sum256(public.Data)
	return hex.EncodeToString(sum[:])
}

// Checksum returns the hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
