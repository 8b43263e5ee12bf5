package messaging

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/crypto"
	"github.com/opd-ai/openmail/limits"
)

// ErrMalformedNotification indicates a notification line that cannot be read.
var ErrMalformedNotification = errors.New("malformed notification")

// NotificationLine is one undecoded line of a notification listing:
// "id,link,fingerprint,sealed-address".
type NotificationLine struct {
	ID          string
	Link        string
	Fingerprint string
	Sealed      string
}

// ParseNotificationLine splits a listing line. All four fields are required.
func ParseNotificationLine(line string) (NotificationLine, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 4 {
		return NotificationLine{}, fmt.Errorf("%w: %d fields", ErrMalformedNotification, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
		if fields[i] == "" {
			return NotificationLine{}, fmt.Errorf("%w: empty field %d", ErrMalformedNotification, i)
		}
	}
	return NotificationLine{ID: fields[0], Link: fields[1], Fingerprint: fields[2], Sealed: fields[3]}, nil
}

// Notifier opens the sealed notifier address with the reader's private
// encryption key.
func (l NotificationLine) Notifier(private crypto.Key) (address.Address, error) {
	sealed, err := base64.StdEncoding.DecodeString(l.Sealed)
	if err != nil {
		return address.Address{}, fmt.Errorf("%w: %w", ErrMalformedNotification, err)
	}
	plain, err := crypto.DecryptAnonymous(sealed, private)
	if err != nil {
		return address.Address{}, err
	}
	return address.Parse(string(plain))
}

// SealAddress seals addr for the holder of public, Base64-encoded. It is the
// body of a notification and the payload format of contact entries.
func SealAddress(addr address.Address, public crypto.Key) (string, error) {
	return SealText(addr.String(), public)
}

// SealText seals text for the holder of public, Base64-encoded.
func SealText(text string, public crypto.Key) (string, error) {
	sealed, err := crypto.EncryptAnonymous([]byte(text), public)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// OpenText reverses SealText.
func OpenText(b64 string, private crypto.Key) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return "", err
	}
	plain, err := crypto.DecryptAnonymous(sealed, private)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Notification is an accepted notification: From announced new mail over
// Link, and its signing key fingerprint matched From's profile.
type Notification struct {
	ID          string
	Link        string
	Fingerprint string
	From        address.Address
	Received    time.Time
}

// Expired reports whether the notification is older than
// limits.NotificationLifetime at now.
func (n Notification) Expired(now time.Time) bool {
	return now.Sub(n.Received) > limits.NotificationLifetime
}
