// Package htmldoc provides typed HTML tree manipulation for content fixes.
//
// WordPress stores post content as body fragments. This package parses a
// fragment into a node tree, lets callers mutate it structurally, and
// serializes it back. Structural checks (one H1, canonical link present,
// JSON-LD block present) are done against the tree rather than by substring
// matching, so idempotence checks cannot be fooled by markup inside
// attributes or comments.
package htmldoc

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Doc wraps a parsed HTML fragment.
type Doc struct {
	body *html.Node
}

// Parse parses a body fragment into a Doc. Fragment parsing matters here:
// a full-document parse would hoist leading link and meta elements into
// head, outside the tree the structural checks walk and Render emits.
func Parse(markup string) (*Doc, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	return &Doc{body: body}, nil
}

// Render serializes the fragment back to markup. Only the body children are
// emitted, matching what WordPress stores.
func (d *Doc) Render() (string, error) {
	var sb strings.Builder
	for c := d.body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return "", fmt.Errorf("failed to render html: %w", err)
		}
	}
	return sb.String(), nil
}

// Body returns the body element of the fragment.
func (d *Doc) Body() *html.Node {
	return d.body
}

// Find returns all element nodes matching pred, in document order.
func (d *Doc) Find(pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	walk(d.body, func(n *html.Node) {
		if n.Type == html.ElementNode && pred(n) {
			out = append(out, n)
		}
	})
	return out
}

// FindTag returns all elements with the given tag name.
func (d *Doc) FindTag(tag string) []*html.Node {
	want := atom.Lookup([]byte(tag))
	return d.Find(func(n *html.Node) bool {
		if want != 0 {
			return n.DataAtom == want
		}
		return n.Data == tag
	})
}

// Headings returns all h1..h6 elements in document order.
func (d *Doc) Headings() []*html.Node {
	return d.Find(func(n *html.Node) bool {
		return HeadingLevel(n) > 0
	})
}

// PrependChild inserts n as the first child of the body.
func (d *Doc) PrependChild(n *html.Node) {
	if d.body.FirstChild != nil {
		d.body.InsertBefore(n, d.body.FirstChild)
	} else {
		d.body.AppendChild(n)
	}
}

// AppendChild appends n as the last child of the body.
func (d *Doc) AppendChild(n *html.Node) {
	d.body.AppendChild(n)
}

// HeadingLevel returns 1..6 for h1..h6 elements, 0 otherwise.
func HeadingLevel(n *html.Node) int {
	if n == nil || n.Type != html.ElementNode {
		return 0
	}
	switch n.DataAtom {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	case atom.H6:
		return 6
	}
	return 0
}

// SetTag renames an element node in place, e.g. demoting an h1 to h2.
func SetTag(n *html.Node, tag string) {
	n.Data = tag
	n.DataAtom = atom.Lookup([]byte(tag))
}

// Attr returns the value of the named attribute and whether it exists.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces the named attribute.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// NewElement creates an element node with optional children.
func NewElement(tag string, children ...*html.Node) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

// NewText creates a text node.
func NewText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// Text returns the concatenated text content of n, whitespace-normalized.
func Text(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
			sb.WriteString(" ")
		}
	})
	return strings.Join(strings.Fields(sb.String()), " ")
}

// StripTags returns the plain text of a markup fragment. Parse failures fall
// back to the input unchanged.
func StripTags(markup string) string {
	if !strings.Contains(markup, "<") {
		return strings.Join(strings.Fields(markup), " ")
	}
	d, err := Parse(markup)
	if err != nil {
		return strings.Join(strings.Fields(markup), " ")
	}
	return Text(d.body)
}

// WordCount counts words in the plain text of a markup fragment.
func WordCount(markup string) int {
	return len(strings.Fields(StripTags(markup)))
}

// TruncateAtWord truncates s to at most max characters, cutting at a word
// boundary and appending an ellipsis. Strings already within the limit are
// returned unchanged.
func TruncateAtWord(s string, max int) string {
	if len(s) <= max {
		return s
	}
	const ellipsis = "..."
	cut := max - len(ellipsis)
	if cut <= 0 {
		return ellipsis
	}
	truncated := s[:cut]
	if idx := strings.LastIndexAny(truncated, " \t\n"); idx > 0 {
		truncated = truncated[:idx]
	}
	return strings.TrimRight(truncated, " ,.;:") + ellipsis
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}
