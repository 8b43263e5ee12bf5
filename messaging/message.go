package messaging

import (
	"cmp"
	"slices"
	"strings"

	"github.com/opd-ai/openmail/envelope"
)

// Message is an envelope plus its decrypted body and the child messages that
// carry its split body parts and attachment parts.
type Message struct {
	Envelope *envelope.Envelope
	// Body is the plaintext. After ReconstructFromChildren it includes the
	// body parts of all children.
	Body []byte
	// File describes the attachment part this message carries, if any.
	File *envelope.Attachment
	// Children are messages naming this one as their parent.
	Children []*Message
	// Attachments groups attachment part children by file name, each group
	// ordered by part number.
	Attachments map[string][]*Message
	// New is set when the envelope was fetched remotely in this session.
	New bool
	// Deferred is set for attachment parts whose body is downloaded on
	// demand with Fetcher.DownloadAttachment.
	Deferred bool

	listing Listing
	own     []byte
}

// NewMessage wraps env with its plaintext body.
func NewMessage(env *envelope.Envelope, body []byte) *Message {
	return &Message{Envelope: env, Body: body, File: env.File, own: body}
}

// ID returns the message id.
func (m *Message) ID() string { return m.Envelope.ID }

// ParentID returns the parent message id, empty for root messages.
func (m *Message) ParentID() string { return m.Envelope.ParentID }

// Text returns the body as UTF-8 text.
func (m *Message) Text() string { return strings.ToValidUTF8(string(m.Body), "�") }

// Listing returns the listing the message was fetched from.
func (m *Message) Listing() Listing { return m.listing }

// AddChild attaches child. When this message lists the child in its Files,
// the child takes that attachment descriptor. A child with an id already
// attached is ignored.
func (m *Message) AddChild(child *Message) {
	if slices.ContainsFunc(m.Children, func(c *Message) bool { return c.ID() == child.ID() }) {
		return
	}
	m.Children = append(m.Children, child)
	if child.ParentID() != m.ID() {
		return
	}
	if file, ok := m.Envelope.Files[child.ID()]; ok {
		child.File = &file
	}
}

// ReconstructFromChildren rebuilds Body and Attachments from the children
// attached so far. Call it once every child is attached; the result does
// not depend on the order children were added, and calling it again gives
// the same result.
func (m *Message) ReconstructFromChildren() {
	var parts []*Message
	attachments := make(map[string][]*Message)

	for _, child := range m.Children {
		if child.ParentID() != m.ID() {
			continue
		}
		if _, listed := m.Envelope.Files[child.ID()]; !listed {
			parts = append(parts, child)
			continue
		}
		if child.File != nil {
			attachments[child.File.Name] = append(attachments[child.File.Name], child)
		}
	}

	sortParts(parts)
	body := append([]byte(nil), m.own...)
	for _, p := range parts {
		body = append(body, p.Body...)
	}
	m.Body = body

	for name := range attachments {
		sortParts(attachments[name])
	}
	m.Attachments = attachments
}

func ordinal(m *Message) int {
	if m.File == nil {
		return 0
	}
	return m.File.Part
}

// sortParts orders by declared part number, then by id so equal ordinals
// still sort deterministically.
func sortParts(parts []*Message) {
	slices.SortStableFunc(parts, func(a, b *Message) int {
		if c := cmp.Compare(ordinal(a), ordinal(b)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})
}

// Assemble links every message to its parent and reconstructs the roots.
// It returns the root messages, newest first; children whose parent is not
// in msgs are dropped.
func Assemble(msgs []*Message) []*Message {
	byID := make(map[string]*Message, len(msgs))
	for _, m := range msgs {
		byID[m.ID()] = m
	}

	var roots []*Message
	for _, m := range msgs {
		if m.ParentID() == "" {
			roots = append(roots, m)
			continue
		}
		if parent, ok := byID[m.ParentID()]; ok && parent.ParentID() == "" {
			parent.AddChild(m)
		}
	}

	for _, r := range roots {
		r.ReconstructFromChildren()
	}
	slices.SortFunc(roots, func(a, b *Message) int {
		if c := b.Envelope.Date.Compare(a.Envelope.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})
	return roots
}
