// Package dom is a thin manipulation layer over golang.org/x/net/html node
// trees: flattened-text extraction with running offsets, text-node ranges with
// the two wrap strategies the highlight engine relies on, and the
// unwrap/normalize surgery that undoes them.
//
// Offsets throughout are byte offsets into UTF-8 text, half-open [start,end).
package dom

import (
	"io"
	"strings"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Flatten returns the concatenation of every descendant text node of n in
// document order. The result is the coordinate space all segment offsets and
// sentence locations refer to.
func Flatten(n *html.Node) string {
	var sb strings.Builder
	for _, seg := range Segments(n) {
		sb.WriteString(seg.Node.Data)
	}
	return sb.String()
}

// Segment is one text node together with its half-open range in the flattened
// text of the container it was collected from.
type Segment struct {
	Node  *html.Node
	Start int
	End   int
}

// Len returns the segment's length in bytes.
func (s Segment) Len() int {
	return s.End - s.Start
}

// Segments walks n's subtree in document order and returns every non-empty
// text node with its running offsets. The concatenation of the segment texts
// is exactly Flatten(n); empty text nodes are skipped since a zero-length
// segment can never intersect a token range.
func Segments(root *html.Node) []Segment {
	var segments []Segment
	offset := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if n.Data != "" {
				segments = append(segments, Segment{Node: n, Start: offset, End: offset + len(n.Data)})
				offset += len(n.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return segments
}

// rawTextAtoms are elements whose text content is script, style sheet or
// similar machine text. Wrapping an element inside them would corrupt the
// document, so the projector refuses to place markers there.
var rawTextAtoms = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Textarea: true,
	atom.Title:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Template: true,
}

// InRawText reports whether n sits inside an element that cannot legally
// contain markup, such as <script> or <style>.
func InRawText(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && rawTextAtoms[p.DataAtom] {
			return true
		}
	}
	return false
}

// HasAncestor reports whether n or one of its ancestors satisfies pred.
func HasAncestor(n *html.Node, pred func(*html.Node) bool) bool {
	for p := n; p != nil; p = p.Parent {
		if pred(p) {
			return true
		}
	}
	return false
}

// Root returns the topmost node reachable from n.
func Root(n *html.Node) *html.Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

// Parse reads a full HTML document. The parser always produces the
// html/head/body scaffolding, even for fragments.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.Errorf("parsing html: %w", err)
	}
	return doc, nil
}

// ParseString parses a document from a string.
func ParseString(s string) (*html.Node, error) {
	return Parse(strings.NewReader(s))
}

// Render serializes n back to HTML.
func Render(n *html.Node) (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return "", errors.Errorf("rendering html: %w", err)
	}
	return sb.String(), nil
}

// Body returns the <body> element of a parsed document, or the document
// itself when none exists.
func Body(doc *html.Node) *html.Node {
	if n := findElement(doc, atom.Body); n != nil {
		return n
	}
	return doc
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// NewElement creates a detached element node for the given tag.
func NewElement(tag string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Lookup([]byte(tag)),
		Data:     tag,
	}
}

// NewText creates a detached text node.
func NewText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// Attr returns the value of the named attribute.
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

// FindByAttr returns the first element in document order whose attribute key
// equals val, or nil.
func FindByAttr(root *html.Node, key, val string) *html.Node {
	if root == nil {
		return nil
	}
	if root.Type == html.ElementNode {
		if v, ok := Attr(root, key); ok && v == val {
			return root
		}
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := FindByAttr(c, key, val); found != nil {
			return found
		}
	}
	return nil
}

// FindAllByAttrKey returns every element in document order that carries the
// attribute key, regardless of value.
func FindAllByAttrKey(root *html.Node, key string) []*html.Node {
	var found []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, ok := Attr(n, key); ok {
				found = append(found, n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return found
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}
