package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/opd-ai/openmail/address"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// ErrInvalidKey indicates a key whose id cannot be stored.
var ErrInvalidKey = errors.New("invalid cache key")

// Key identifies one cached message: the author whose listing it came from,
// whether that was the public broadcast listing, and the message id.
type Key struct {
	Author    address.Address
	Broadcast bool
	ID        string
}

func (k Key) validate() error {
	if k.Author.IsZero() {
		return fmt.Errorf("%w: no author", ErrInvalidKey)
	}
	if k.ID == "" || k.ID == "." || k.ID == ".." || strings.ContainsAny(k.ID, `/\`) {
		return fmt.Errorf("%w: id %q", ErrInvalidKey, k.ID)
	}
	return nil
}

// Store persists fetched envelopes, raw message bodies and the set of
// processed notification ids. Missing entries are not errors; callers
// re-fetch them.
type Store interface {
	// Envelope returns the raw wire headers stored for key.
	Envelope(ctx context.Context, key Key) (map[string]string, bool, error)
	PutEnvelope(ctx context.Context, key Key, header map[string]string) error

	// Body returns the raw (still encrypted) body stored for key.
	Body(ctx context.Context, key Key) ([]byte, bool, error)
	PutBody(ctx context.Context, key Key, body []byte) error

	// Delete removes the envelope and body of key.
	Delete(ctx context.Context, key Key) error

	// EnvelopeIDs lists the ids with a stored envelope for a listing.
	EnvelopeIDs(ctx context.Context, author address.Address, broadcast bool) ([]string, error)

	// SeenNotifications returns processed notification ids with the time
	// each was received.
	SeenNotifications(ctx context.Context) (map[string]time.Time, error)
	// SaveNotifications replaces the processed notification set.
	SaveNotifications(ctx context.Context, seen map[string]time.Time) error

	Close() error
}

// Open returns the store for backend rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(dir)
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dir, "cache.db"))
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
