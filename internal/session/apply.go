package session

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/workerdom/coordinator/internal/dom"
	"github.com/workerdom/coordinator/internal/protocol"
)

// Apply commits one mutation record to the live document. Implements
// queue.Applier; runs on the session's logical thread of control. A failure
// is a diagnostic, never a crash: the record is dropped and the rest of the
// stream proceeds.
func (s *Session) Apply(m protocol.Mutation) error {
	var err error
	switch m.Type {
	case protocol.MutationChildList:
		err = s.applyChildList(m)
	case protocol.MutationAttributes:
		err = s.applyAttributes(m)
	case protocol.MutationCharacterData:
		err = s.applyCharacterData(m)
	case protocol.MutationProperties:
		err = s.applyProperties(m)
	default:
		err = fmt.Errorf("%w: %q", protocol.ErrUnknownMutationType, m.Type)
	}

	if s.metrics != nil {
		if err != nil {
			s.metrics.MutationsDropped.WithLabelValues(m.Type).Inc()
		} else {
			s.metrics.MutationsApplied.WithLabelValues(m.Type).Inc()
		}
	}
	return err
}

// Visible reports whether the record's target is inside the viewport.
// Implements queue.Applier. Unresolvable targets count as visible so the
// record reaches Apply and fails loudly there instead of pinning the queue.
func (s *Session) Visible(target string) bool {
	n, ok := s.ids.Resolve(target)
	if !ok {
		return true
	}
	return s.host.Visible(n)
}

// applyChildList handles removals first, then insertions anchored on the
// record's sibling references.
func (s *Session) applyChildList(m protocol.Mutation) error {
	parent, ok := s.ids.Resolve(m.Target)
	if !ok {
		return fmt.Errorf("childList target %q not bound", m.Target)
	}

	for _, removedID := range m.RemovedNodes {
		n, ok := s.ids.Resolve(removedID)
		if !ok {
			s.log.Debug("removal of unbound node skipped")
			continue
		}
		dom.Detach(n)
		s.ids.UnbindSubtree(n)
		s.dropProps(n)
	}

	if len(m.AddedNodes) == 0 {
		return nil
	}

	ref := s.insertionAnchor(parent, m)
	for i := range m.AddedNodes {
		n, err := s.mat.Materialize(&m.AddedNodes[i], true)
		if err != nil {
			if s.metrics != nil {
				s.metrics.SanitizerRejections.Inc()
			}
			return fmt.Errorf("materialize %q: %w", m.AddedNodes[i].NodeID, err)
		}
		dom.InsertBefore(parent, n, ref)
	}
	return nil
}

// insertionAnchor resolves the node new children go before. NextSibling
// wins when it resolves; otherwise PreviousSibling's successor; otherwise
// append at the end.
func (s *Session) insertionAnchor(parent *html.Node, m protocol.Mutation) *html.Node {
	if m.NextSibling != "" {
		if n, ok := s.ids.Resolve(m.NextSibling); ok && n.Parent == parent {
			return n
		}
	}
	if m.PreviousSibling != "" {
		if n, ok := s.ids.Resolve(m.PreviousSibling); ok && n.Parent == parent {
			return n.NextSibling
		}
	}
	return nil
}

func (s *Session) applyAttributes(m protocol.Mutation) error {
	n, ok := s.ids.Resolve(m.Target)
	if !ok {
		return fmt.Errorf("attributes target %q not bound", m.Target)
	}
	if !s.gate.ValidateAndSetAttribute(n, m.AttributeName, m.Value) {
		if s.metrics != nil {
			s.metrics.SanitizerRejections.Inc()
		}
		return fmt.Errorf("attribute %q rejected on <%s>", m.AttributeName, n.Data)
	}
	return nil
}

func (s *Session) applyProperties(m protocol.Mutation) error {
	n, ok := s.ids.Resolve(m.Target)
	if !ok {
		return fmt.Errorf("properties target %q not bound", m.Target)
	}
	if !s.gate.ValidateAndSetProperty(s.props, n, m.PropertyName, m.Value) {
		if s.metrics != nil {
			s.metrics.SanitizerRejections.Inc()
		}
		return fmt.Errorf("property %q rejected on <%s>", m.PropertyName, n.Data)
	}
	return nil
}

func (s *Session) applyCharacterData(m protocol.Mutation) error {
	n, ok := s.ids.Resolve(m.Target)
	if !ok {
		return fmt.Errorf("characterData target %q not bound", m.Target)
	}
	if n.Type != html.TextNode {
		return fmt.Errorf("characterData target %q is not a text node", m.Target)
	}
	if m.Value == nil {
		n.Data = ""
		return nil
	}
	n.Data = *m.Value
	return nil
}

// dropProps clears the property table for n and every descendant.
func (s *Session) dropProps(n *html.Node) {
	s.props.Drop(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		s.dropProps(c)
	}
}
