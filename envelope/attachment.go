package envelope

import (
	"strconv"
	"strings"

	"github.com/opd-ai/openmail/wire"
)

// DefaultAttachmentType is used when a file descriptor names no type.
const DefaultAttachmentType = "application/octet-stream"

// Attachment describes one part of an attached file. Part and Parts are
// 1-based; both zero means the descriptor carries no part information.
type Attachment struct {
	Name     string
	ID       string
	Type     string
	Size     int
	Part     int
	Parts    int
	Modified string
}

// Attrs renders the descriptor as an attribute list.
func (a Attachment) Attrs() string {
	typ := a.Type
	if typ == "" {
		typ = DefaultAttachmentType
	}
	pairs := []wire.Pair{wire.P("name", a.Name), wire.P("id", a.ID), wire.P("type", typ)}
	if a.Size > 0 {
		pairs = append(pairs, wire.P("size", strconv.Itoa(a.Size)))
	}
	if a.Part > 0 && a.Parts > 0 {
		pairs = append(pairs, wire.P("part", strconv.Itoa(a.Part)+"/"+strconv.Itoa(a.Parts)))
	}
	if a.Modified != "" {
		pairs = append(pairs, wire.P("modified", a.Modified))
	}
	return wire.Attrs(pairs...)
}

// parseAttachment reads a descriptor. name is required; id falls back to
// defaultID. Malformed size and part values read as zero.
func parseAttachment(attrs map[string]string, defaultID string) (Attachment, bool) {
	name, ok := attrs["name"]
	if !ok {
		return Attachment{}, false
	}
	id := attrs["id"]
	if id == "" {
		id = defaultID
	}
	if id == "" {
		return Attachment{}, false
	}

	a := Attachment{
		Name:     name,
		ID:       id,
		Type:     attrs["type"],
		Size:     atoi(attrs["size"]),
		Modified: attrs["modified"],
	}
	if a.Type == "" {
		a.Type = DefaultAttachmentType
	}
	a.Part, a.Parts = parsePart(attrs["part"])
	return a, true
}

// parsePart reads "i/n". It never fails; anything unparsable is (0, 0).
func parsePart(raw string) (int, int) {
	i, n, ok := strings.Cut(raw, "/")
	if !ok {
		return 0, 0
	}
	part, parts := atoi(strings.TrimSpace(i)), atoi(strings.TrimSpace(n))
	if part == 0 || parts == 0 {
		return 0, 0
	}
	return part, parts
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
