package capture

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// DefaultSourceLimit bounds the cleaned page source kept in an artifact.
const DefaultSourceLimit = 200_000

// DefaultTextLimit bounds the visible text kept in an artifact.
const DefaultTextLimit = 20_000

var (
	// noise is dropped with its whole subtree
	noise = setOf("script", "style", "noscript", "template", "iframe", "embed", "object", "svg", "canvas")

	blocks = setOf("html", "head", "body", "div", "p", "section", "article", "header", "footer", "nav",
		"main", "aside", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li", "table", "thead", "tbody",
		"tr", "td", "th", "form", "fieldset", "dialog", "blockquote", "pre")

	voids = setOf("area", "base", "br", "col", "embed", "hr", "img", "input", "link", "meta", "param",
		"source", "track", "wbr")

	// kept on every element; data-* and aria-* are kept as well
	globalAttrs = setOf("id", "class", "name", "role", "title", "hidden", "disabled", "style")
)

func setOf(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, item := range items {
		m[item] = true
	}
	return m
}

// sourceCleaner serializes a DOM without scripts, styles, comments and the
// attributes that do not help locate elements.
type sourceCleaner struct {
	b         strings.Builder
	max       int
	truncated bool
}

// cleanSource returns the cleaned markup of raw, cut at max bytes.
func cleanSource(raw string, max int) (string, bool, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", false, fmt.Errorf("failed to parse page source: %w", err)
	}

	c := &sourceCleaner{max: max}
	c.children(doc, 0)
	return c.b.String(), c.truncated, nil
}

func (c *sourceCleaner) full() bool {
	if c.b.Len() >= c.max {
		c.truncated = true
	}
	return c.truncated
}

func (c *sourceCleaner) node(n *html.Node, depth int) {
	if c.full() {
		return
	}

	switch n.Type {
	case html.CommentNode, html.DoctypeNode:
		return
	case html.TextNode:
		c.text(n.Data)
	case html.ElementNode:
		c.element(n, depth)
	default:
		c.children(n, depth)
	}
}

func (c *sourceCleaner) children(n *html.Node, depth int) {
	for child := n.FirstChild; child != nil && !c.truncated; child = child.NextSibling {
		c.node(child, depth)
	}
}

func (c *sourceCleaner) text(data string) {
	text := strings.Join(strings.Fields(data), " ")
	if text == "" {
		return
	}
	if room := c.max - c.b.Len(); len(text) > room {
		c.b.WriteString(html.EscapeString(text[:room]))
		c.b.WriteString("...")
		c.truncated = true
		return
	}
	c.b.WriteString(html.EscapeString(text))
}

func (c *sourceCleaner) element(n *html.Node, depth int) {
	tag := strings.ToLower(n.Data)
	if noise[tag] {
		return
	}

	block := blocks[tag]
	if block && c.b.Len() > 0 {
		c.indent(depth)
	}

	c.b.WriteString("<")
	c.b.WriteString(tag)
	for _, attr := range n.Attr {
		if keepAttr(tag, attr.Key) {
			fmt.Fprintf(&c.b, ` %s="%s"`, attr.Key, html.EscapeString(attr.Val))
		}
	}
	c.b.WriteString(">")

	if voids[tag] {
		return
	}

	c.children(n, depth+1)
	if block {
		c.indent(depth)
	}
	c.b.WriteString("</")
	c.b.WriteString(tag)
	c.b.WriteString(">")
}

func (c *sourceCleaner) indent(depth int) {
	c.b.WriteString("\n")
	c.b.WriteString(strings.Repeat("  ", depth))
}

func keepAttr(tag, key string) bool {
	key = strings.ToLower(key)
	if globalAttrs[key] || strings.HasPrefix(key, "data-") || strings.HasPrefix(key, "aria-") {
		return true
	}

	switch tag {
	case "a":
		return key == "href"
	case "img":
		return key == "src" || key == "alt"
	case "input", "textarea", "select", "option":
		return key == "type" || key == "value" || key == "placeholder" || key == "checked" || key == "selected"
	case "button":
		return key == "type"
	case "form":
		return key == "action" || key == "method"
	case "label":
		return key == "for"
	}
	return false
}

// visibleText returns the body text of raw with whitespace collapsed.
func visibleText(raw string, max int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse page source: %w", err)
	}

	body := doc.Find("body")
	body.Find(strings.Join(keys(noise), ",")).Remove()

	text := strings.Join(strings.Fields(body.Text()), " ")
	if len(text) > max {
		text = text[:max] + "..."
	}
	return text, nil
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
