// Package limits provides centralized size and lifetime limits for the
// Mail/HTTPS protocol. This ensures consistent validation across the resolver,
// codec and fetch layers.
package limits

import (
	"errors"
	"fmt"
	"time"
)

const (
	// MaxAgents is the number of live agents kept per domain.
	MaxAgents = 3

	// MaxMessageSize is the largest body sent as a single message. Larger
	// attachments are split into parts of at most this size.
	MaxMessageSize = 64_000_000

	// MaxProfileSize bounds a fetched profile document.
	MaxProfileSize = 64_000

	// MaxProfileImageSize bounds a fetched profile image.
	MaxProfileImageSize = 640_000

	// MaxHeadersSize bounds the decoded content header block of an envelope,
	// counted as the sum of key and value lengths.
	MaxHeadersSize = 512_000

	// MaxListingSize bounds id listings, contact lists, notification lists and
	// the well-known agent document.
	MaxListingSize = 4 * 1024 * 1024

	// NotificationLifetime is how long a notification stays valid after it
	// was received.
	NotificationLifetime = 7 * 24 * time.Hour
)

var (
	// ErrEmpty indicates empty data was provided
	ErrEmpty = errors.New("empty data")

	// ErrTooLarge indicates data exceeds its limit
	ErrTooLarge = errors.New("data too large")
)

// ValidateSize checks data against maxSize. Returns an error with context
// including the actual and maximum sizes.
func ValidateSize(data []byte, maxSize int) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	if len(data) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrTooLarge, len(data), maxSize)
	}
	return nil
}

// ValidateProfile checks a profile document against MaxProfileSize.
func ValidateProfile(data []byte) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	if len(data) > MaxProfileSize {
		return fmt.Errorf("%w: profile size %d exceeds limit %d", ErrTooLarge, len(data), MaxProfileSize)
	}
	return nil
}

// ValidateProfileImage checks an image against MaxProfileImageSize.
func ValidateProfileImage(data []byte) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	if len(data) > MaxProfileImageSize {
		return fmt.Errorf("%w: image size %d exceeds limit %d", ErrTooLarge, len(data), MaxProfileImageSize)
	}
	return nil
}

// ValidateHeaders checks the combined size of a parsed header block.
func ValidateHeaders(fields map[string]string) error {
	total := 0
	for k, v := range fields {
		total += len(k) + len(v)
	}
	if total > MaxHeadersSize {
		return fmt.Errorf("%w: header size %d exceeds limit %d", ErrTooLarge, total, MaxHeadersSize)
	}
	return nil
}

// PartCount returns how many parts of at most MaxMessageSize bytes are
// needed for size bytes. Empty data still occupies one part.
func PartCount(size int) int {
	if size <= MaxMessageSize {
		return 1
	}
	return (size + MaxMessageSize - 1) / MaxMessageSize
}
