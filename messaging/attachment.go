package messaging

import (
	"time"

	"github.com/opd-ai/openmail/envelope"
	"github.com/opd-ai/openmail/limits"
	"github.com/opd-ai/openmail/profile"
)

// Part is one piece of an attachment, sent as its own child message.
type Part struct {
	Attachment envelope.Attachment
	Data       []byte
}

// SplitAttachment cuts data into parts of at most limits.MaxMessageSize
// bytes. newID supplies the message id of each part.
func SplitAttachment(name, typ string, modified time.Time, data []byte, newID func() (string, error)) ([]Part, error) {
	count := limits.PartCount(len(data))
	parts := make([]Part, 0, count)

	var mod string
	if !modified.IsZero() {
		mod = profile.FormatDateTime(modified)
	}

	for i := 0; i < count; i++ {
		id, err := newID()
		if err != nil {
			return nil, err
		}
		start := i * limits.MaxMessageSize
		end := min(start+limits.MaxMessageSize, len(data))

		parts = append(parts, Part{
			Attachment: envelope.Attachment{
				Name:     name,
				ID:       id,
				Type:     typ,
				Size:     len(data),
				Part:     i + 1,
				Parts:    count,
				Modified: mod,
			},
			Data: data[start:end],
		})
	}
	return parts, nil
}
