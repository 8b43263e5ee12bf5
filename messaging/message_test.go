package messaging

import (
	"testing"
	"time"

	"github.com/opd-ai/openmail/envelope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func part(id, parent string, file *envelope.Attachment, body string) *Message {
	return NewMessage(&envelope.Envelope{ID: id, ParentID: parent, File: file}, []byte(body))
}

func reconstructionFixture() (*Message, []*Message) {
	photo1 := envelope.Attachment{Name: "photo.jpg", ID: "f1", Part: 1, Parts: 2}
	photo2 := envelope.Attachment{Name: "photo.jpg", ID: "f2", Part: 2, Parts: 2}
	notes := envelope.Attachment{Name: "notes.txt", ID: "f3", Part: 1, Parts: 1}

	root := NewMessage(&envelope.Envelope{
		ID:    "root",
		Files: map[string]envelope.Attachment{"f1": photo1, "f2": photo2, "f3": notes},
	}, []byte("A"))

	children := []*Message{
		part("b2", "root", &envelope.Attachment{Part: 2}, "C"),
		part("b1", "root", &envelope.Attachment{Part: 1}, "B"),
		part("f2", "root", nil, ""),
		part("f1", "root", nil, ""),
		part("f3", "root", nil, ""),
	}
	return root, children
}

func permutations(n int) [][]int {
	if n == 1 {
		return [][]int{{0}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			q := append(append(append([]int{}, p[:i]...), n-1), p[i:]...)
			out = append(out, q)
		}
	}
	return out
}

func ids(msgs []*Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID()
	}
	return out
}

func TestReconstructOrderIndependent(t *testing.T) {
	for _, perm := range permutations(5) {
		root, children := reconstructionFixture()
		for _, i := range perm {
			root.AddChild(children[i])
		}
		root.ReconstructFromChildren()
		root.ReconstructFromChildren()

		assert.Equal(t, "ABC", string(root.Body), perm)
		require.Len(t, root.Attachments, 2)
		assert.Equal(t, []string{"f1", "f2"}, ids(root.Attachments["photo.jpg"]), perm)
		assert.Equal(t, []string{"f3"}, ids(root.Attachments["notes.txt"]), perm)
	}
}

func TestAddChildTakesDescriptorFromParent(t *testing.T) {
	root, children := reconstructionFixture()
	child := children[2]
	require.Nil(t, child.File)

	root.AddChild(child)
	require.NotNil(t, child.File)
	assert.Equal(t, "photo.jpg", child.File.Name)
	assert.Equal(t, 2, child.File.Part)

	root.AddChild(child)
	assert.Len(t, root.Children, 1)
}

func TestReconstructIgnoresForeignChildren(t *testing.T) {
	root := NewMessage(&envelope.Envelope{ID: "root"}, []byte("A"))
	root.AddChild(part("x", "other", nil, "X"))
	root.ReconstructFromChildren()
	assert.Equal(t, "A", string(root.Body))
	assert.Empty(t, root.Attachments)
}

func TestReconstructEqualOrdinalsById(t *testing.T) {
	root := NewMessage(&envelope.Envelope{ID: "root"}, nil)
	root.AddChild(part("b", "root", nil, "2"))
	root.AddChild(part("a", "root", nil, "1"))
	root.ReconstructFromChildren()
	assert.Equal(t, "12", string(root.Body))
}

func TestAssemble(t *testing.T) {
	now := time.Now()
	older := NewMessage(&envelope.Envelope{ID: "old", Date: now.Add(-time.Hour)}, []byte("o"))
	newer := NewMessage(&envelope.Envelope{ID: "new", Date: now}, []byte("n"))
	bodyPart := part("p1", "new", &envelope.Attachment{Part: 1}, "+")
	orphan := part("lost", "missing", nil, "?")

	roots := Assemble([]*Message{bodyPart, older, orphan, newer})
	assert.Equal(t, []string{"new", "old"}, ids(roots))
	assert.Equal(t, "n+", roots[0].Text())
}

func TestTextReplacesInvalidUTF8(t *testing.T) {
	m := NewMessage(&envelope.Envelope{ID: "m"}, []byte{'o', 'k', 0xff})
	assert.Equal(t, "ok�", m.Text())
}
