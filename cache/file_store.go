package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/opd-ai/openmail/address"
	"github.com/sirupsen/logrus"
)

const (
	envelopesDir      = "envelopes"
	messagesDir       = "messages"
	broadcastsDir     = "broadcasts"
	notificationsFile = "notifications.json"
	envelopeExt       = ".json"
)

// FileStore keeps the cache as plain files under a data directory:
//
//	envelopes/{host}/{local}[/broadcasts]/{id}.json
//	messages/{host}/{local}[/broadcasts]/{id}
//	notifications.json
//
// Writes go to a temporary file that is renamed into place.
type FileStore struct {
	dir string
}

// NewFileStore creates the data directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("cache directory not set")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the data directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) listingDir(kind string, author address.Address, broadcast bool) string {
	parts := []string{s.dir, kind, author.HostPart(), author.LocalPart()}
	if broadcast {
		parts = append(parts, broadcastsDir)
	}
	return filepath.Join(parts...)
}

func (s *FileStore) envelopePath(key Key) string {
	return filepath.Join(s.listingDir(envelopesDir, key.Author, key.Broadcast), key.ID+envelopeExt)
}

func (s *FileStore) bodyPath(key Key) string {
	return filepath.Join(s.listingDir(messagesDir, key.Author, key.Broadcast), key.ID)
}

// Envelope implements Store.
func (s *FileStore) Envelope(_ context.Context, key Key) (map[string]string, bool, error) {
	if err := key.validate(); err != nil {
		return nil, false, err
	}
	data, found, err := readFile(s.envelopePath(key))
	if err != nil || !found {
		return nil, false, err
	}

	var header map[string]string
	if err := json.Unmarshal(data, &header); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "FileStore.Envelope",
			"id":       shortID(key.ID),
			"error":    err.Error(),
		}).Warn("Discarding corrupt cached envelope")
		_ = os.Remove(s.envelopePath(key))
		return nil, false, nil
	}
	return header, true, nil
}

// PutEnvelope implements Store.
func (s *FileStore) PutEnvelope(_ context.Context, key Key, header map[string]string) error {
	if err := key.validate(); err != nil {
		return err
	}
	data, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encoding envelope %s: %w", shortID(key.ID), err)
	}
	return writeFile(s.envelopePath(key), data)
}

// Body implements Store.
func (s *FileStore) Body(_ context.Context, key Key) ([]byte, bool, error) {
	if err := key.validate(); err != nil {
		return nil, false, err
	}
	return readFile(s.bodyPath(key))
}

// PutBody implements Store.
func (s *FileStore) PutBody(_ context.Context, key Key, body []byte) error {
	if err := key.validate(); err != nil {
		return err
	}
	return writeFile(s.bodyPath(key), body)
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, key Key) error {
	if err := key.validate(); err != nil {
		return err
	}
	for _, p := range []string{s.envelopePath(key), s.bodyPath(key)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}

// EnvelopeIDs implements Store.
func (s *FileStore) EnvelopeIDs(_ context.Context, author address.Address, broadcast bool) ([]string, error) {
	entries, err := os.ReadDir(s.listingDir(envelopesDir, author, broadcast))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing cached envelopes: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), envelopeExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), envelopeExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// SeenNotifications implements Store.
func (s *FileStore) SeenNotifications(_ context.Context) (map[string]time.Time, error) {
	seen := make(map[string]time.Time)
	data, found, err := readFile(filepath.Join(s.dir, notificationsFile))
	if err != nil || !found {
		return seen, err
	}
	if err := json.Unmarshal(data, &seen); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "FileStore.SeenNotifications",
			"error":    err.Error(),
		}).Warn("Ignoring corrupt notification file")
		return make(map[string]time.Time), nil
	}
	return seen, nil
}

// SaveNotifications implements Store.
func (s *FileStore) SaveNotifications(_ context.Context, seen map[string]time.Time) error {
	data, err := json.Marshal(seen)
	if err != nil {
		return fmt.Errorf("encoding notifications: %w", err)
	}
	return writeFile(filepath.Join(s.dir, notificationsFile), data)
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

func readFile(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, true, nil
}

func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
