package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workerdom/coordinator/internal/protocol"
)

func TestAppendChildRecordsMutation(t *testing.T) {
	d := newVDoc()
	d.live = true

	first := d.createElement("div")
	second := d.createElement("span")
	d.appendChild(d.body, first)
	d.appendChild(d.body, second)

	muts := d.takePending()
	require.Len(t, muts, 2)

	assert.Equal(t, protocol.MutationChildList, muts[0].Type)
	assert.Equal(t, protocol.RootNodeID, muts[0].Target)
	require.Len(t, muts[0].AddedNodes, 1)
	assert.Equal(t, "div", muts[0].AddedNodes[0].Tag)
	assert.Empty(t, muts[0].PreviousSibling)

	// The second insertion anchors on the first.
	assert.Equal(t, first.id, muts[1].PreviousSibling)
}

func TestMutationsSilentBeforeLive(t *testing.T) {
	d := newVDoc()
	d.appendChild(d.body, d.createElement("div"))
	assert.Empty(t, d.takePending())
}

func TestRemoveChildRecordsMutation(t *testing.T) {
	d := newVDoc()
	child := d.createElement("div")
	d.appendChild(d.body, child)
	d.live = true

	d.removeChild(d.body, child)
	muts := d.takePending()
	require.Len(t, muts, 1)
	assert.Equal(t, []string{child.id}, muts[0].RemovedNodes)
	assert.Empty(t, d.body.children)
}

func TestSetAttributeRecordsOldValue(t *testing.T) {
	d := newVDoc()
	n := d.createElement("div")
	d.live = true

	d.setAttribute(n, "class", "a")
	d.setAttribute(n, "class", "b")
	d.removeAttribute(n, "class")

	muts := d.takePending()
	require.Len(t, muts, 3)

	assert.Nil(t, muts[0].OldValue)
	require.NotNil(t, muts[1].OldValue)
	assert.Equal(t, "a", *muts[1].OldValue)

	// Removal carries the old value and the nil-value sentinel.
	assert.Nil(t, muts[2].Value)
	require.NotNil(t, muts[2].OldValue)
	assert.Equal(t, "b", *muts[2].OldValue)
}

func TestSetTextOnElementReplacesChildren(t *testing.T) {
	d := newVDoc()
	n := d.createElement("p")
	old := d.createText("old")
	d.appendChild(n, old)
	d.live = true

	d.setText(n, "new")

	muts := d.takePending()
	require.Len(t, muts, 2)
	assert.Equal(t, []string{old.id}, muts[0].RemovedNodes)
	require.Len(t, muts[1].AddedNodes, 1)
	assert.Equal(t, protocol.KindText, muts[1].AddedNodes[0].Kind)
	assert.Equal(t, "new", muts[1].AddedNodes[0].Text)
}

func TestSetTextOnTextNode(t *testing.T) {
	d := newVDoc()
	n := d.createText("old")
	d.live = true

	d.setText(n, "new")
	muts := d.takePending()
	require.Len(t, muts, 1)
	assert.Equal(t, protocol.MutationCharacterData, muts[0].Type)
	require.NotNil(t, muts[0].Value)
	assert.Equal(t, "new", *muts[0].Value)
}

func TestSkeletonSerializesSubtree(t *testing.T) {
	d := newVDoc()
	div := d.createElement("div")
	d.setAttribute(div, "class", "card")
	d.appendChild(div, d.createText("hello"))
	d.appendChild(d.body, div)

	sk := d.skeleton(d.body)
	assert.Equal(t, protocol.RootNodeID, sk.NodeID)
	require.Len(t, sk.Children, 1)
	assert.Equal(t, "div", sk.Children[0].Tag)
	require.Len(t, sk.Children[0].Attributes, 1)
	assert.Equal(t, "card", sk.Children[0].Attributes[0].Value)
	require.Len(t, sk.Children[0].Children, 1)
	assert.Equal(t, "hello", sk.Children[0].Children[0].Text)
}
