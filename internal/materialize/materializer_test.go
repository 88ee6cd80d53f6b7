package materialize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workerdom/coordinator/internal/dom"
	"github.com/workerdom/coordinator/internal/identity"
	"github.com/workerdom/coordinator/internal/protocol"
	"github.com/workerdom/coordinator/internal/sanitize"
)

func newTestMaterializer() (*Materializer, *identity.Map) {
	ids := identity.New(dom.NewRoot())
	return New(sanitize.NewGate(), ids), ids
}

func TestMaterializeElementTree(t *testing.T) {
	m, ids := newTestMaterializer()

	sk := &protocol.Skeleton{
		NodeID: "w1",
		Kind:   protocol.KindElement,
		Tag:    "div",
		Class:  "card",
		Style:  map[string]string{"color": "red", "border": "none"},
		Children: []protocol.Skeleton{
			{NodeID: "w2", Kind: protocol.KindElement, Tag: "span",
				Children: []protocol.Skeleton{{NodeID: "w3", Kind: protocol.KindText, Text: "hi"}}},
		},
	}

	n, err := m.Materialize(sk, true)
	require.NoError(t, err)

	cls, _ := dom.GetAttr(n, "class")
	assert.Equal(t, "card", cls)
	style, _ := dom.GetAttr(n, "style")
	assert.Equal(t, "border: none; color: red", style)

	resolved, ok := ids.Resolve("w2")
	require.True(t, ok)
	assert.Equal(t, "span", resolved.Data)
	assert.Equal(t, "hi", dom.Text(n))
}

func TestMaterializeSanitizesEmbeddedScript(t *testing.T) {
	m, ids := newTestMaterializer()

	sk := &protocol.Skeleton{
		NodeID: "w1",
		Kind:   protocol.KindElement,
		Tag:    "div",
		Children: []protocol.Skeleton{
			{NodeID: "w2", Kind: protocol.KindElement, Tag: "script",
				Children: []protocol.Skeleton{{Kind: protocol.KindText, Text: "steal()"}}},
			{NodeID: "w3", Kind: protocol.KindElement, Tag: "p"},
		},
	}

	n, err := m.Materialize(sk, true)
	require.NoError(t, err)

	rendered, err := dom.Render(n)
	require.NoError(t, err)
	assert.NotContains(t, rendered, "script")

	// The removed child must not hold an identity; the survivor must.
	_, ok := ids.Resolve("w2")
	assert.False(t, ok)
	_, ok = ids.Resolve("w3")
	assert.True(t, ok)
}

func TestMaterializeRejectionLeavesNoBindings(t *testing.T) {
	m, ids := newTestMaterializer()

	sk := &protocol.Skeleton{
		NodeID: "w1",
		Kind:   protocol.KindElement,
		Tag:    "script",
		Children: []protocol.Skeleton{
			{NodeID: "w2", Kind: protocol.KindElement, Tag: "div"},
		},
	}

	_, err := m.Materialize(sk, true)
	require.ErrorIs(t, err, sanitize.ErrRejected)
	assert.Equal(t, 0, ids.Len())
}

func TestMaterializeUnknownKind(t *testing.T) {
	m, _ := newTestMaterializer()
	_, err := m.Materialize(&protocol.Skeleton{NodeID: "w1", Kind: "comment"}, true)
	assert.Error(t, err)
}

func TestMaterializeTextNode(t *testing.T) {
	m, _ := newTestMaterializer()
	n, err := m.Materialize(&protocol.Skeleton{NodeID: "w1", Kind: protocol.KindText, Text: "plain"}, true)
	require.NoError(t, err)
	assert.Equal(t, "plain", n.Data)
}
