package worker

import (
	"fmt"

	"github.com/workerdom/coordinator/internal/protocol"
)

// vnode is one node of the worker's private virtual tree. The coordinator
// never sees vnodes, only the skeletons and mutations derived from them.
type vnode struct {
	id       string
	kind     string
	tag      string
	text     string
	attrs    []protocol.Attribute
	children []*vnode
	parent   *vnode
}

// vdoc is the worker-side virtual document. Before the initial flush it is
// plain state; once live, every structural or content change records a
// mutation for the next flush.
type vdoc struct {
	body    *vnode
	nodes   map[string]*vnode
	nextID  int
	live    bool
	pending []protocol.Mutation
}

func newVDoc() *vdoc {
	d := &vdoc{
		body:  &vnode{id: protocol.RootNodeID, kind: protocol.KindElement, tag: "body"},
		nodes: make(map[string]*vnode),
	}
	d.nodes[d.body.id] = d.body
	return d
}

func (d *vdoc) newID() string {
	d.nextID++
	return fmt.Sprintf("w%d", d.nextID)
}

func (d *vdoc) createElement(tag string) *vnode {
	n := &vnode{id: d.newID(), kind: protocol.KindElement, tag: tag}
	d.nodes[n.id] = n
	return n
}

func (d *vdoc) createText(text string) *vnode {
	n := &vnode{id: d.newID(), kind: protocol.KindText, text: text}
	d.nodes[n.id] = n
	return n
}

func (d *vdoc) appendChild(p, c *vnode) {
	if c == nil || p == nil || c == p {
		return
	}
	d.detach(c)
	var prev string
	if len(p.children) > 0 {
		prev = p.children[len(p.children)-1].id
	}
	p.children = append(p.children, c)
	c.parent = p

	if d.live {
		d.pending = append(d.pending, protocol.Mutation{
			Type:            protocol.MutationChildList,
			Target:          p.id,
			AddedNodes:      []protocol.Skeleton{d.skeleton(c)},
			PreviousSibling: prev,
		})
	}
}

func (d *vdoc) removeChild(p, c *vnode) {
	if c == nil || p == nil || c.parent != p {
		return
	}
	d.detach(c)
	if d.live {
		d.pending = append(d.pending, protocol.Mutation{
			Type:         protocol.MutationChildList,
			Target:       p.id,
			RemovedNodes: []string{c.id},
		})
	}
}

func (d *vdoc) detach(c *vnode) {
	p := c.parent
	if p == nil {
		return
	}
	for i, ch := range p.children {
		if ch == c {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	c.parent = nil
}

func (d *vdoc) setAttribute(n *vnode, name, value string) {
	var old *string
	for i := range n.attrs {
		if n.attrs[i].Name == name {
			prev := n.attrs[i].Value
			old = &prev
			n.attrs[i].Value = value
			break
		}
	}
	if old == nil {
		n.attrs = append(n.attrs, protocol.Attribute{Name: name, Value: value})
	}

	if d.live {
		d.pending = append(d.pending, protocol.Mutation{
			Type:          protocol.MutationAttributes,
			Target:        n.id,
			AttributeName: name,
			Value:         protocol.String(value),
			OldValue:      old,
		})
	}
}

func (d *vdoc) removeAttribute(n *vnode, name string) {
	for i := range n.attrs {
		if n.attrs[i].Name == name {
			old := n.attrs[i].Value
			n.attrs = append(n.attrs[:i], n.attrs[i+1:]...)
			if d.live {
				d.pending = append(d.pending, protocol.Mutation{
					Type:          protocol.MutationAttributes,
					Target:        n.id,
					AttributeName: name,
					OldValue:      &old,
				})
			}
			return
		}
	}
}

// setText updates a text node's data, or replaces an element's children
// with a single fresh text node.
func (d *vdoc) setText(n *vnode, text string) {
	if n.kind == protocol.KindText {
		n.text = text
		if d.live {
			d.pending = append(d.pending, protocol.Mutation{
				Type:   protocol.MutationCharacterData,
				Target: n.id,
				Value:  protocol.String(text),
			})
		}
		return
	}
	for len(n.children) > 0 {
		d.removeChild(n, n.children[0])
	}
	d.appendChild(n, d.createText(text))
}

func (d *vdoc) setProperty(n *vnode, name, value string) {
	if d.live {
		d.pending = append(d.pending, protocol.Mutation{
			Type:         protocol.MutationProperties,
			Target:       n.id,
			PropertyName: name,
			Value:        protocol.String(value),
		})
	}
}

// skeleton serializes the subtree rooted at n.
func (d *vdoc) skeleton(n *vnode) protocol.Skeleton {
	sk := protocol.Skeleton{
		NodeID: n.id,
		Kind:   n.kind,
		Tag:    n.tag,
		Text:   n.text,
	}
	if len(n.attrs) > 0 {
		sk.Attributes = append([]protocol.Attribute(nil), n.attrs...)
	}
	for _, c := range n.children {
		sk.Children = append(sk.Children, d.skeleton(c))
	}
	return sk
}

// takePending returns and clears the recorded mutations.
func (d *vdoc) takePending() []protocol.Mutation {
	out := d.pending
	d.pending = nil
	return out
}
