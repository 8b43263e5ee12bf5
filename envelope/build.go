package envelope

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/crypto"
	"github.com/opd-ai/openmail/profile"
	"github.com/opd-ai/openmail/wire"
	"github.com/sirupsen/logrus"
)

// ErrBuild is returned when an outgoing message cannot be assembled.
var ErrBuild = errors.New("cannot build message")

// Author is the signing identity of outgoing messages.
type Author struct {
	Address address.Address
	Signing crypto.KeyPair
	// EncryptionKeyID is written into Message-Signature; "0" when empty.
	EncryptionKeyID string
}

// ProfileSource resolves the published profile of an address. Build uses it
// to seal the access key for every party of a private message.
type ProfileSource interface {
	Profile(ctx context.Context, addr address.Address) (*profile.Profile, error)
}

// Outgoing is a message to be built. Readers empty means a broadcast.
type Outgoing struct {
	ID        string
	Date      time.Time
	Subject   string
	SubjectID string
	Readers   []address.Address
	Body      []byte
	ParentID  string
	// File describes the attachment part this message carries.
	File *Attachment
	// Files lists the attachment parts that follow as child messages.
	Files []Attachment
}

// Wire is a built message ready to be written to the author's agents.
type Wire struct {
	ID string
	// Header keeps wire order.
	Header []wire.Pair
	Body   []byte
	// AccessKey is nil for broadcasts.
	AccessKey []byte
}

// HeaderMap returns the headers keyed by name.
func (w *Wire) HeaderMap() map[string]string {
	out := make(map[string]string, len(w.Header))
	for _, p := range w.Header {
		out[p.Key] = p.Value
	}
	return out
}

// Get returns the value of header name, case-insensitively.
func (w *Wire) Get(name string) string {
	for _, p := range w.Header {
		if strings.EqualFold(p.Key, name) {
			return p.Value
		}
	}
	return ""
}

// Build assembles, encrypts and signs msg. Private messages (any readers)
// get a fresh access key sealed to every reader and to the author.
func Build(ctx context.Context, msg *Outgoing, author Author, profiles ProfileSource) (*Wire, error) {
	if msg.ID == "" || msg.Subject == "" || author.Address.IsZero() {
		return nil, fmt.Errorf("%w: id, subject and author are required", ErrBuild)
	}

	content := []byte(wire.Fields(contentFields(msg, author.Address)...))
	body := msg.Body

	header := []wire.Pair{
		wire.P(HeaderMessageID, msg.ID),
		wire.P(HeaderContentType, ContentType),
	}

	var accessKey []byte
	if len(msg.Readers) > 0 {
		var err error
		accessKey, err = crypto.RandomBytes(crypto.AccessKeySize)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBuild, err)
		}

		access, err := accessEntries(ctx, parties(msg.Readers, author.Address), author.Address, accessKey, profiles)
		if err != nil {
			return nil, err
		}

		if body, err = crypto.EncryptSymmetric(body, accessKey); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBuild, err)
		}
		if content, err = crypto.EncryptSymmetric(content, accessKey); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBuild, err)
		}

		header = append(header,
			wire.P(HeaderMessageAccess, strings.Join(access, ",")),
			wire.P(HeaderMessageEncryption, wire.Attrs(wire.P("algorithm", crypto.SymmetricCipher))),
		)
	}

	header = append(header, wire.P(HeaderMessageHeaders, wire.Attrs(wire.P("value", base64.StdEncoding.EncodeToString(content)))))

	values := make(map[string]string, len(header))
	for _, p := range header {
		values[strings.ToLower(p.Key)] = p.Value
	}
	fields := ChecksumFields(accessKey != nil)
	digest := checksumDigest(values, fields)

	signature, err := crypto.Sign(author.Signing.Private, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	keyID := author.EncryptionKeyID
	if keyID == "" {
		keyID = "0"
	}

	header = append(header,
		wire.P(HeaderContentLength, strconv.Itoa(len(body))),
		wire.P(HeaderMessageChecksum, wire.Attrs(
			wire.P("algorithm", crypto.ChecksumAlgorithm),
			wire.P("order", strings.Join(fields, ":")),
			wire.P("value", hex.EncodeToString(digest[:])),
		)),
		wire.P(HeaderMessageSignature, wire.Attrs(
			wire.P("id", keyID),
			wire.P("algorithm", crypto.SigningAlgorithm),
			wire.P("value", signature),
		)),
	)

	logrus.WithFields(logrus.Fields{
		"function":  "Build",
		"id":        shortID(msg.ID),
		"readers":   len(msg.Readers),
		"body_size": len(msg.Body),
		"encrypted": accessKey != nil,
	}).Debug("Built message")

	return &Wire{ID: msg.ID, Header: header, Body: body, AccessKey: accessKey}, nil
}

func contentFields(msg *Outgoing, author address.Address) []wire.Pair {
	subjectID := msg.SubjectID
	if subjectID == "" {
		subjectID = msg.ID
	}
	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}

	pairs := []wire.Pair{
		wire.P("Id", msg.ID),
		wire.P("Author", author.String()),
		wire.P("Date", profile.FormatDateTime(date)),
		wire.P("Size", strconv.Itoa(len(msg.Body))),
		wire.P("Checksum", wire.Attrs(
			wire.P("algorithm", crypto.ChecksumAlgorithm),
			wire.P("value", crypto.Checksum(msg.Body)),
		)),
		wire.P("Subject", msg.Subject),
		wire.P("Subject-Id", subjectID),
		wire.P("Category", CategoryPersonal),
	}
	if len(msg.Readers) > 0 {
		pairs = append(pairs, wire.P("Readers", address.JoinList(msg.Readers)))
	}
	if msg.File != nil {
		pairs = append(pairs, wire.P("File", msg.File.Attrs()))
	}
	if msg.ParentID != "" {
		pairs = append(pairs, wire.P("Parent-Id", msg.ParentID))
	}
	if len(msg.Files) > 0 {
		files := make([]string, len(msg.Files))
		for i, f := range msg.Files {
			files[i] = f.Attrs()
		}
		pairs = append(pairs, wire.P("Files", strings.Join(files, ",")))
	}
	return pairs
}

// parties returns readers followed by the author, without duplicates.
func parties(readers []address.Address, author address.Address) []address.Address {
	seen := make(map[address.Address]bool, len(readers)+1)
	out := make([]address.Address, 0, len(readers)+1)
	for _, r := range append(append([]address.Address(nil), readers...), author) {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// accessEntries seals accessKey to the encryption key of every party. The
// link identifies the pair (author, party) so agents can index entries.
func accessEntries(ctx context.Context, to []address.Address, author address.Address, accessKey []byte, profiles ProfileSource) ([]string, error) {
	entries := make([]string, 0, len(to))
	for _, party := range to {
		p, err := profiles.Profile(ctx, party)
		if err != nil {
			return nil, fmt.Errorf("%w: profile of %s: %w", ErrBuild, party, err)
		}
		key, ok := p.EncryptionKey()
		if !ok || key.ID == "" {
			return nil, fmt.Errorf("%w: %s publishes no usable encryption key", ErrBuild, party)
		}

		sealed, err := crypto.EncryptAnonymous(accessKey, key)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBuild, err)
		}

		entries = append(entries, wire.Attrs(
			wire.P("link", address.Link(author, party)),
			wire.P("fingerprint", crypto.Fingerprint(p.SigningKey())),
			wire.P("value", base64.StdEncoding.EncodeToString(sealed)),
			wire.P("id", key.ID),
		))
	}
	return entries, nil
}
