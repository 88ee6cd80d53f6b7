package sanitize

import (
	"errors"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/workerdom/coordinator/internal/dom"
)

var (
	// ErrRejected signals that structural sanitization removed the node
	// itself. The caller must not bind an identity or insert the node.
	ErrRejected = errors.New("sanitize: subtree rejected")
)

// Gate validates and normalizes prospective document changes. Stateless
// aside from the policy; the scratch container used for detached nodes is
// owned per call, so concurrent sessions never share scratch state.
type Gate struct {
	policy  *bluemonday.Policy
	allowed map[string]struct{}
}

// NewGate creates a gate with the default allow-list policy.
func NewGate() *Gate {
	allowed := make(map[string]struct{}, len(allowedTags))
	for _, t := range allowedTags {
		allowed[t] = struct{}{}
	}
	return &Gate{
		policy:  newPolicy(),
		allowed: allowed,
	}
}

// TagAllowed reports whether elements with this tag may exist at all.
func (g *Gate) TagAllowed(tag string) bool {
	_, ok := g.allowed[strings.ToLower(tag)]
	return ok
}

// SanitizeSubtree runs a full structural pass over n in place, removing
// disallowed elements and attributes. Node pointers of surviving elements
// are stable. Returns ErrRejected if n itself is judged unsafe; in that
// case no externally observable state changes beyond n's own removal.
//
// Structural checks need a parent to detach into, so a detached n is
// temporarily parented under a scratch container for the duration of the
// call and released afterwards.
func (g *Gate) SanitizeSubtree(n *html.Node) error {
	if n.Type == html.TextNode {
		return nil
	}
	if n.Type != html.ElementNode {
		return ErrRejected
	}

	var scratch *html.Node
	if n.Parent == nil {
		scratch = dom.NewElement("div")
		dom.Append(scratch, n)
		defer func() {
			for c := scratch.FirstChild; c != nil; c = scratch.FirstChild {
				dom.Detach(c)
			}
		}()
	}

	dom.Walk(n, func(c *html.Node) bool {
		switch c.Type {
		case html.TextNode:
			return false
		case html.ElementNode:
			if !g.TagAllowed(c.Data) {
				dom.Detach(c)
				return false
			}
			g.filterAttrs(c)
			return true
		default:
			// Comments, doctypes and the rest never reach the live tree.
			dom.Detach(c)
			return false
		}
	})

	if n.Parent == nil {
		return ErrRejected
	}
	return nil
}

// filterAttrs re-validates every attribute on c through the policy probe,
// dropping failures and keeping normalized values.
func (g *Gate) filterAttrs(c *html.Node) {
	kept := c.Attr[:0]
	for _, a := range c.Attr {
		if a.Namespace != "" {
			continue
		}
		val, ok := g.probeAttr(c.Data, a.Key, a.Val)
		if !ok {
			continue
		}
		a.Val = val
		kept = append(kept, a)
	}
	c.Attr = kept
}

// ValidateAndSetAttribute checks the change against policy and commits it.
// A nil value is the removal sentinel. Setting href on an anchor that has
// no explicit target implies target="_top". Failure performs no mutation.
func (g *Gate) ValidateAndSetAttribute(n *html.Node, name string, value *string) bool {
	if n == nil || n.Type != html.ElementNode || !g.TagAllowed(n.Data) {
		return false
	}
	name = strings.ToLower(name)
	if name == "" {
		return false
	}

	if value == nil {
		dom.RemoveAttr(n, name)
		return true
	}

	sanitized, ok := g.probeAttr(n.Data, name, *value)
	if !ok {
		return false
	}
	dom.SetAttr(n, name, sanitized)

	if name == "href" && anchorLike(n.Data) {
		if _, has := dom.GetAttr(n, "target"); !has {
			dom.SetAttr(n, "target", "_top")
		}
	}
	return true
}

// propertyToAttr maps property names to their attribute counterparts where
// the two differ cosmetically.
var propertyToAttr = map[string]string{
	"className":       "class",
	"htmlFor":         "for",
	"readOnly":        "readonly",
	"tabIndex":        "tabindex",
	"maxLength":       "maxlength",
	"colSpan":         "colspan",
	"rowSpan":         "rowspan",
	"contentEditable": "contenteditable",
}

// ValidateAndSetProperty validates a live property assignment using the
// attribute-equivalent policy rules and stores it in the session's property
// table. Failure performs no mutation.
func (g *Gate) ValidateAndSetProperty(props dom.Properties, n *html.Node, name string, value *string) bool {
	if n == nil || n.Type != html.ElementNode || !g.TagAllowed(n.Data) {
		return false
	}
	if name == "" {
		return false
	}

	attrName, ok := propertyToAttr[name]
	if !ok {
		attrName = strings.ToLower(name)
	}

	if value == nil {
		props.Set(n, name, "")
		return true
	}

	sanitized, ok := g.probeAttr(n.Data, attrName, *value)
	if !ok {
		return false
	}
	props.Set(n, name, sanitized)
	return true
}

// probeAttr renders a single-element probe through the policy and reads
// back whether the attribute survived and with what (normalized) value.
func (g *Gate) probeAttr(tag, name, value string) (string, bool) {
	tag = strings.ToLower(tag)
	name = strings.ToLower(name)

	var b strings.Builder
	b.WriteString("<")
	b.WriteString(tag)
	b.WriteString(" ")
	b.WriteString(name)
	b.WriteString(`="`)
	b.WriteString(html.EscapeString(value))
	b.WriteString(`"></`)
	b.WriteString(tag)
	b.WriteString(">")

	out := g.policy.Sanitize(b.String())
	nodes, err := dom.ParseFragment(out)
	if err != nil {
		return "", false
	}
	for _, n := range nodes {
		if n.Type != html.ElementNode || n.Data != tag {
			continue
		}
		return dom.GetAttr(n, name)
	}
	return "", false
}

func anchorLike(tag string) bool {
	return tag == "a" || tag == "area"
}
