package session

import (
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/workerdom/coordinator/internal/dom"
	"github.com/workerdom/coordinator/internal/protocol"
	"github.com/workerdom/coordinator/internal/shared/id"
)

// hydrate reconciles the worker's initial skeleton against whatever content
// was pre-rendered under the host mount point. Pre-rendered nodes that line
// up with the skeleton are adopted and bound to the worker's identifiers;
// everything else is materialized fresh. Hydration bypasses the mutation
// queue; it runs exactly once, before the mutating phase.
func (s *Session) hydrate(sk *protocol.Skeleton) {
	if sk == nil {
		s.log.Warn("init-result carried no skeleton")
		return
	}
	s.reconcileChildren(s.host.Root(), sk.Children)
}

// reconcileChildren walks skeleton children and pre-rendered children in
// lockstep. A pairwise structural match (same kind, same tag) adopts the
// live node; a mismatch materializes the skeleton child in its place.
// Pre-rendered leftovers past the skeleton's length stay in the tree under
// coordinator-assigned identifiers so events on them still resolve.
func (s *Session) reconcileChildren(parent *html.Node, skChildren []protocol.Skeleton) {
	live := childNodes(parent)

	for i := range skChildren {
		sk := &skChildren[i]
		if i < len(live) && matches(live[i], sk) {
			s.adopt(live[i], sk)
			continue
		}

		n, err := s.mat.Materialize(sk, true)
		if err != nil {
			s.log.Warn("skeleton child rejected during hydration",
				zap.String("nodeId", sk.NodeID),
				zap.Error(err))
			continue
		}
		if i < len(live) {
			old := live[i]
			dom.InsertBefore(parent, n, old)
			dom.Detach(old)
			s.ids.UnbindSubtree(old)
			s.dropProps(old)
		} else {
			dom.Append(parent, n)
		}
	}

	for i := len(skChildren); i < len(live); i++ {
		s.claimOrphan(live[i])
	}
}

// adopt binds a matching pre-rendered node to the skeleton's identifier and
// reconciles its content. Worker-supplied attributes still pass the gate;
// adoption trusts structure, not values.
func (s *Session) adopt(n *html.Node, sk *protocol.Skeleton) {
	s.ids.Bind(n, sk.NodeID)

	if n.Type == html.TextNode {
		n.Data = sk.Text
		return
	}

	if sk.Class != "" {
		s.gate.ValidateAndSetAttribute(n, "class", protocol.String(sk.Class))
	}
	if len(sk.Style) > 0 {
		s.gate.ValidateAndSetAttribute(n, "style", protocol.String(renderStyle(sk.Style)))
	}
	for _, a := range sk.Attributes {
		s.gate.ValidateAndSetAttribute(n, a.Name, protocol.String(a.Value))
	}

	s.reconcileChildren(n, sk.Children)
}

// claimOrphan assigns coordinator identifiers to a pre-rendered subtree the
// skeleton did not account for.
func (s *Session) claimOrphan(n *html.Node) {
	dom.Walk(n, func(c *html.Node) bool {
		if c.Type != html.ElementNode {
			return false
		}
		if _, bound := s.ids.IDOf(c); !bound {
			s.ids.Bind(c, id.NewNodeID().String())
		}
		return true
	})
}

// matches reports whether a live node structurally corresponds to a
// skeleton node.
func matches(n *html.Node, sk *protocol.Skeleton) bool {
	switch sk.Kind {
	case protocol.KindText:
		return n.Type == html.TextNode
	case protocol.KindElement:
		return n.Type == html.ElementNode && n.Data == strings.ToLower(sk.Tag)
	default:
		return false
	}
}

func childNodes(parent *html.Node) []*html.Node {
	var out []*html.Node
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
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
