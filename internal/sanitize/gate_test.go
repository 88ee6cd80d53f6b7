package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workerdom/coordinator/internal/dom"
	"github.com/workerdom/coordinator/internal/protocol"
)

func TestSanitizeSubtreeRemovesDisallowedElements(t *testing.T) {
	g := NewGate()

	div := dom.NewElement("div")
	script := dom.NewElement("script")
	dom.Append(script, dom.NewText("steal()"))
	span := dom.NewElement("span")
	dom.Append(span, dom.NewText("ok"))
	dom.Append(div, script)
	dom.Append(div, span)

	require.NoError(t, g.SanitizeSubtree(div))

	rendered, err := dom.Render(div)
	require.NoError(t, err)
	assert.NotContains(t, rendered, "script")
	assert.Contains(t, rendered, "<span>ok</span>")
	// Surviving node pointers stay stable.
	assert.Same(t, div, span.Parent)
}

func TestSanitizeSubtreeStripsEventHandlers(t *testing.T) {
	g := NewGate()

	div := dom.NewElement("div")
	dom.SetAttr(div, "onclick", "alert(1)")
	dom.SetAttr(div, "class", "card")

	require.NoError(t, g.SanitizeSubtree(div))

	_, has := dom.GetAttr(div, "onclick")
	assert.False(t, has)
	cls, has := dom.GetAttr(div, "class")
	require.True(t, has)
	assert.Equal(t, "card", cls)
}

func TestSanitizeSubtreeRejectsDisallowedRoot(t *testing.T) {
	g := NewGate()
	script := dom.NewElement("script")
	assert.ErrorIs(t, g.SanitizeSubtree(script), ErrRejected)
}

func TestSanitizeSubtreeDropsComments(t *testing.T) {
	g := NewGate()
	div := dom.NewElement("div")
	nodes, err := dom.ParseFragment("<!-- secret --><p>text</p>")
	require.NoError(t, err)
	for _, n := range nodes {
		dom.Append(div, n)
	}

	require.NoError(t, g.SanitizeSubtree(div))
	rendered, err := dom.Render(div)
	require.NoError(t, err)
	assert.NotContains(t, rendered, "secret")
	assert.Contains(t, rendered, "<p>text</p>")
}

func TestValidateAndSetAttribute(t *testing.T) {
	g := NewGate()

	t.Run("rejects javascript urls", func(t *testing.T) {
		a := dom.NewElement("a")
		ok := g.ValidateAndSetAttribute(a, "href", protocol.String("javascript:alert(1)"))
		assert.False(t, ok)
		_, has := dom.GetAttr(a, "href")
		assert.False(t, has)
	})

	t.Run("href implies target _top", func(t *testing.T) {
		a := dom.NewElement("a")
		ok := g.ValidateAndSetAttribute(a, "href", protocol.String("https://example.com/"))
		require.True(t, ok)
		target, has := dom.GetAttr(a, "target")
		require.True(t, has)
		assert.Equal(t, "_top", target)
	})

	t.Run("explicit target preserved", func(t *testing.T) {
		a := dom.NewElement("a")
		dom.SetAttr(a, "target", "_blank")
		require.True(t, g.ValidateAndSetAttribute(a, "href", protocol.String("https://example.com/")))
		target, _ := dom.GetAttr(a, "target")
		assert.Equal(t, "_blank", target)
	})

	t.Run("nil value removes", func(t *testing.T) {
		div := dom.NewElement("div")
		dom.SetAttr(div, "class", "x")
		require.True(t, g.ValidateAndSetAttribute(div, "class", nil))
		_, has := dom.GetAttr(div, "class")
		assert.False(t, has)
	})

	t.Run("disallowed tag fails closed", func(t *testing.T) {
		script := dom.NewElement("script")
		assert.False(t, g.ValidateAndSetAttribute(script, "class", protocol.String("x")))
	})

	t.Run("event handler attribute rejected", func(t *testing.T) {
		div := dom.NewElement("div")
		assert.False(t, g.ValidateAndSetAttribute(div, "onclick", protocol.String("alert(1)")))
	})
}

func TestValidateAndSetProperty(t *testing.T) {
	g := NewGate()
	props := dom.NewProperties()

	t.Run("className maps to class policy", func(t *testing.T) {
		div := dom.NewElement("div")
		require.True(t, g.ValidateAndSetProperty(props, div, "className", protocol.String("card")))
		v, ok := props.Get(div, "className")
		require.True(t, ok)
		assert.Equal(t, "card", v)
	})

	t.Run("unsafe value rejected without mutation", func(t *testing.T) {
		a := dom.NewElement("a")
		assert.False(t, g.ValidateAndSetProperty(props, a, "href", protocol.String("javascript:alert(1)")))
		_, ok := props.Get(a, "href")
		assert.False(t, ok)
	})
}

func TestTagAllowed(t *testing.T) {
	g := NewGate()
	assert.True(t, g.TagAllowed("div"))
	assert.True(t, g.TagAllowed("DIV"))
	assert.False(t, g.TagAllowed("script"))
	assert.False(t, g.TagAllowed("iframe"))
	assert.False(t, g.TagAllowed("object"))
}
