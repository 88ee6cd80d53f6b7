package materialize

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/workerdom/coordinator/internal/dom"
	"github.com/workerdom/coordinator/internal/identity"
	"github.com/workerdom/coordinator/internal/protocol"
	"github.com/workerdom/coordinator/internal/sanitize"
)

// Materializer builds live node trees from skeletons.
type Materializer struct {
	gate *sanitize.Gate
	ids  *identity.Map
}

// New creates a materializer bound to one session's gate and identity map.
func New(gate *sanitize.Gate, ids *identity.Map) *Materializer {
	return &Materializer{gate: gate, ids: ids}
}

// Materialize builds a live tree from sk. With sanitize true the finished
// subtree passes the gate once, in place; rejection returns
// sanitize.ErrRejected with no net identity bindings and no attached nodes.
// With sanitize false the caller has arranged for the surrounding subtree
// to be sanitized as a whole.
func (m *Materializer) Materialize(sk *protocol.Skeleton, sanitizeTree bool) (*html.Node, error) {
	pending := make(map[*html.Node]string)
	n, err := m.build(sk, pending)
	if err != nil {
		return nil, err
	}

	if sanitizeTree {
		if err := m.gate.SanitizeSubtree(n); err != nil {
			return nil, err
		}
	}

	// Bind identities for survivors only.
	for node, nodeID := range pending {
		if node == n || dom.Contains(n, node) {
			m.ids.Bind(node, nodeID)
		}
	}
	return n, nil
}

// build constructs the raw tree, recording prospective identity bindings.
func (m *Materializer) build(sk *protocol.Skeleton, pending map[*html.Node]string) (*html.Node, error) {
	switch sk.Kind {
	case protocol.KindText:
		n := dom.NewText(sk.Text)
		if sk.NodeID != "" {
			pending[n] = sk.NodeID
		}
		return n, nil

	case protocol.KindElement:
		if sk.Tag == "" {
			return nil, fmt.Errorf("element skeleton %q missing tag", sk.NodeID)
		}
		n := dom.NewElement(sk.Tag)
		if sk.Class != "" {
			dom.SetAttr(n, "class", sk.Class)
		}
		if len(sk.Style) > 0 {
			dom.SetAttr(n, "style", renderStyle(sk.Style))
		}
		for _, a := range sk.Attributes {
			dom.SetAttr(n, a.Name, a.Value)
		}
		for i := range sk.Children {
			// Children are not sanitized individually; the parent subtree
			// is sanitized as a whole by the caller.
			child, err := m.build(&sk.Children[i], pending)
			if err != nil {
				return nil, err
			}
			dom.Append(n, child)
		}
		if sk.NodeID != "" {
			pending[n] = sk.NodeID
		}
		return n, nil

	default:
		return nil, fmt.Errorf("unknown skeleton kind %q", sk.Kind)
	}
}

// renderStyle flattens an inline style map deterministically.
func renderStyle(style map[string]string) string {
	keys := make([]string, 0, len(style))
	for k := range style {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(style[k])
	}
	return b.String()
}
