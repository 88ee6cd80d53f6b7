package sanitize

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// allowedTags is the structural allow-list. Attribute rules alone are not
// enough context: an attribute safe on one tag may be unsafe on another, so
// every change first checks its element against this set.
var allowedTags = []string{
	"a", "abbr", "article", "aside", "b", "blockquote", "br", "button",
	"caption", "code", "div", "em", "figcaption", "figure", "footer",
	"h1", "h2", "h3", "h4", "h5", "h6", "header", "hr", "i", "img",
	"input", "label", "li", "main", "nav", "ol", "option", "p", "pre",
	"s", "section", "select", "small", "span", "strong", "sub", "sup",
	"table", "tbody", "td", "textarea", "tfoot", "th", "thead", "time",
	"tr", "u", "ul",
}

var (
	targetValues = regexp.MustCompile(`^(_top|_blank|_self)$`)
	inputTypes   = regexp.MustCompile(`^(text|search|number|checkbox|radio|range|email|tel|url|date|time|hidden|submit|button)$`)
	plainText    = regexp.MustCompile(`^[^<>]*$`)
	numeric      = regexp.MustCompile(`^[0-9]+$`)
)

// newPolicy builds the bluemonday policy backing the gate. The tag list
// must stay in sync with allowedTags.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(allowedTags...)
	p.AllowStandardURLs()

	p.AllowAttrs("class", "id", "title", "role", "lang", "dir", "hidden").
		Matching(plainText).Globally()
	p.AllowAttrs("tabindex").Matching(numeric).Globally()
	p.AllowAttrs("aria-label", "aria-hidden", "aria-expanded", "aria-live",
		"aria-checked", "aria-disabled", "aria-describedby").
		Matching(plainText).Globally()
	p.AllowDataAttributes()

	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("target").Matching(targetValues).OnElements("a")
	p.AllowAttrs("rel").Matching(plainText).OnElements("a")

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowAttrs("width", "height").Matching(numeric).OnElements("img")

	p.AllowAttrs("type").Matching(inputTypes).OnElements("input")
	p.AllowAttrs("name", "value", "placeholder").Matching(plainText).
		OnElements("input", "textarea", "select", "option", "button")
	p.AllowAttrs("disabled", "checked", "selected", "readonly").
		Matching(plainText).
		OnElements("input", "textarea", "select", "option", "button")
	p.AllowAttrs("for").Matching(plainText).OnElements("label")
	p.AllowAttrs("rows", "cols", "maxlength").Matching(numeric).
		OnElements("textarea", "input")
	p.AllowAttrs("colspan", "rowspan").Matching(numeric).
		OnElements("td", "th")
	p.AllowAttrs("datetime").Matching(plainText).OnElements("time")

	p.AllowStyles(
		"color", "background-color", "font-size", "font-weight",
		"font-style", "text-align", "text-decoration", "display",
		"margin", "padding", "width", "height", "border",
	).Globally()

	return p
}
