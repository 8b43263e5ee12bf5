package envelope

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/opd-ai/openmail/address"
	"github.com/opd-ai/openmail/crypto"
	"github.com/opd-ai/openmail/limits"
	"github.com/opd-ai/openmail/profile"
	"github.com/opd-ai/openmail/wire"
	"github.com/sirupsen/logrus"
)

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Parse validates the wire headers of message id served by author's agents.
// private is the reader's encryption private key; it may be zero for
// broadcasts. The checksum is verified before anything is decrypted.
func Parse(id string, raw map[string]string, author address.Address, private crypto.Key) (*Envelope, error) {
	header := normalize(raw)

	encrypted := header[normalizeName(HeaderMessageAccess)] != ""
	var accessKey []byte
	if encrypted && !private.IsZero() {
		accessKey = openAccess(header[normalizeName(HeaderMessageAccess)], private)
	}

	encoded := wire.ParseAttrs(header[normalizeName(HeaderMessageHeaders)])["value"]
	if encoded == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingHeader, HeaderMessageHeaders)
	}
	if err := verifyChecksum(header, encrypted); err != nil {
		return nil, err
	}

	if encrypted && accessKey == nil {
		logrus.WithFields(logrus.Fields{
			"function": "Parse",
			"id":       shortID(id),
			"author":   author.String(),
		}).Debug("No access entry opens with this key")
		return &Envelope{ID: id, Author: author, header: header, encrypted: true}, nil
	}

	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: content headers: %w", ErrInvalidEnvelope, err)
	}
	if encrypted {
		if content, err = crypto.DecryptSymmetric(content, accessKey); err != nil {
			return nil, fmt.Errorf("%w: content headers: %w", ErrInvalidEnvelope, err)
		}
	}

	fields := wire.ParseFields(string(content))
	if err := limits.ValidateHeaders(fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}

	env, err := fromFields(fields, author, atoi(header[normalizeName(HeaderContentLength)]))
	if err != nil {
		return nil, err
	}
	env.header = header
	env.encrypted = encrypted
	env.readable = true
	env.AccessKey = accessKey
	if id != "" && env.ID != id {
		logrus.WithFields(logrus.Fields{
			"function":   "Parse",
			"listing_id": shortID(id),
			"content_id": shortID(env.ID),
		}).Warn("Content id differs from listing id")
	}
	return env, nil
}

// openAccess returns the first access key that opens with private.
func openAccess(access string, private crypto.Key) []byte {
	for _, entry := range wire.SplitList(access) {
		sealed, err := base64.StdEncoding.DecodeString(wire.ParseAttrs(entry)["value"])
		if err != nil || len(sealed) == 0 {
			continue
		}
		key, err := crypto.DecryptAnonymous(sealed, private)
		if err == nil && len(key) == crypto.AccessKeySize {
			return key
		}
	}
	return nil
}

func verifyChecksum(header map[string]string, encrypted bool) error {
	raw := header[normalizeName(HeaderMessageChecksum)]
	if raw == "" {
		return fmt.Errorf("%w: %s", ErrMissingHeader, HeaderMessageChecksum)
	}
	attrs := wire.ParseAttrs(raw)
	if attrs["algorithm"] != crypto.ChecksumAlgorithm {
		return fmt.Errorf("%w: checksum algorithm %q", ErrInvalidEnvelope, attrs["algorithm"])
	}

	var order []string
	for _, f := range strings.Split(attrs["order"], ":") {
		if f = normalizeName(f); f != "" {
			order = append(order, f)
		}
	}
	if len(order) == 0 {
		return fmt.Errorf("%w: empty checksum order", ErrChecksumMismatch)
	}
	for _, f := range ChecksumFields(encrypted) {
		f = normalizeName(f)
		if _, present := header[f]; present && !slices.Contains(order, f) {
			return fmt.Errorf("%w: order omits %s", ErrChecksumMismatch, f)
		}
	}

	declared, err := hex.DecodeString(attrs["value"])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrChecksumMismatch, err)
	}
	digest := checksumDigest(header, order)
	if !slices.Equal(declared, digest[:]) {
		return ErrChecksumMismatch
	}
	return nil
}

// fromFields reads the content headers. outerSize is the wire body length,
// used when the content declares no size.
func fromFields(fields map[string]string, author address.Address, outerSize int) (*Envelope, error) {
	for _, name := range []string{"id", "date", "subject", "author"} {
		if fields[name] == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingHeader, name)
		}
	}

	date, ok := profile.ParseDateTime(fields["date"])
	if !ok {
		return nil, fmt.Errorf("%w: date %q", ErrInvalidEnvelope, fields["date"])
	}
	origin, err := address.Parse(fields["author"])
	if err != nil {
		return nil, fmt.Errorf("%w: author: %w", ErrInvalidEnvelope, err)
	}

	env := &Envelope{
		ID:        fields["id"],
		Author:    author,
		Origin:    origin,
		Date:      date,
		Subject:   fields["subject"],
		SubjectID: fields["subject-id"],
		ParentID:  fields["parent-id"],
		Category:  fields["category"],
		Size:      atoi(fields["size"]),
		Readers:   address.ParseList(fields["readers"]),
		Files:     make(map[string]Attachment),
	}
	if env.SubjectID == "" {
		env.SubjectID = env.ID
	}
	if env.Size == 0 {
		env.Size = outerSize
	}
	if sum := wire.ParseAttrs(fields["checksum"]); sum["algorithm"] == crypto.ChecksumAlgorithm {
		env.BodyChecksum = strings.ToLower(sum["value"])
	}

	for _, item := range wire.SplitList(fields["files"]) {
		if a, ok := parseAttachment(wire.ParseAttrs(item), ""); ok {
			env.Files[a.ID] = a
		}
	}
	if raw := fields["file"]; raw != "" {
		if a, ok := parseAttachment(wire.ParseAttrs(raw), env.ID); ok {
			a.ID = env.ID
			if a.Size == 0 {
				a.Size = env.Size
			}
			env.File = &a
		}
	}
	return env, nil
}
