package identity

import (
	"golang.org/x/net/html"

	"github.com/workerdom/coordinator/internal/protocol"
)

// Map associates worker node identifiers with live nodes, both ways.
type Map struct {
	root   *html.Node
	byID   map[string]*html.Node
	byNode map[*html.Node]string
}

// New creates an identity map whose root sentinel resolves to root.
func New(root *html.Node) *Map {
	return &Map{
		root:   root,
		byID:   make(map[string]*html.Node),
		byNode: make(map[*html.Node]string),
	}
}

// Bind registers or overwrites the association between n and id. Rebinding
// an id to a new node releases the old node; rebinding a node to a new id
// releases the old id.
func (m *Map) Bind(n *html.Node, id string) {
	if id == "" || id == protocol.RootNodeID || n == nil {
		return
	}
	if old, ok := m.byID[id]; ok && old != n {
		delete(m.byNode, old)
	}
	if oldID, ok := m.byNode[n]; ok && oldID != id {
		delete(m.byID, oldID)
	}
	m.byID[id] = n
	m.byNode[n] = id
}

// Resolve returns the live node for id. The root sentinel resolves to the
// mount point. An unregistered id yields (nil, false); callers must treat
// that as a recoverable precondition failure, never a crash.
func (m *Map) Resolve(id string) (*html.Node, bool) {
	if id == protocol.RootNodeID {
		return m.root, true
	}
	n, ok := m.byID[id]
	return n, ok
}

// IDOf returns the identifier bound to n, if any.
func (m *Map) IDOf(n *html.Node) (string, bool) {
	if n == m.root {
		return protocol.RootNodeID, true
	}
	id, ok := m.byNode[n]
	return id, ok
}

// Unbind removes the association for n. Called only on permanent detachment.
func (m *Map) Unbind(n *html.Node) {
	id, ok := m.byNode[n]
	if !ok {
		return
	}
	delete(m.byNode, n)
	delete(m.byID, id)
}

// UnbindSubtree removes associations for n and every descendant.
func (m *Map) UnbindSubtree(n *html.Node) {
	m.Unbind(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		m.UnbindSubtree(c)
	}
}

// Len returns the number of live associations.
func (m *Map) Len() int {
	return len(m.byID)
}

// Root returns the mount point the root sentinel resolves to.
func (m *Map) Root() *html.Node {
	return m.root
}
