package dom

import "golang.org/x/net/html"

// Properties is a side table for live node properties that are not
// representable as attributes (value, checked and friends). Owned by the
// session; never shared across sessions.
type Properties map[*html.Node]map[string]string

// NewProperties creates an empty property table.
func NewProperties() Properties {
	return make(Properties)
}

// Set assigns a property on n.
func (p Properties) Set(n *html.Node, name, value string) {
	m, ok := p[n]
	if !ok {
		m = make(map[string]string)
		p[n] = m
	}
	m[name] = value
}

// Get returns a property of n.
func (p Properties) Get(n *html.Node, name string) (string, bool) {
	m, ok := p[n]
	if !ok {
		return "", false
	}
	v, ok := m[name]
	return v, ok
}

// Drop forgets all properties of n.
func (p Properties) Drop(n *html.Node) {
	delete(p, n)
}
