package dom

import "golang.org/x/net/html"

// Unwrap replaces n with its own children, preserving their order, and
// returns n's former parent. Unwrapping a detached or childless node is
// harmless. The caller normalizes the parent afterwards to merge the text
// nodes the wrap had split.
func Unwrap(n *html.Node) *html.Node {
	parent := n.Parent
	if parent == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
	}
	parent.RemoveChild(n)
	return parent
}

// Normalize merges runs of adjacent sibling text nodes throughout n's subtree
// and removes empty text nodes, restoring the canonical form a freshly parsed
// tree has. Wrap and unwrap cycles split text nodes; normalizing afterwards
// makes the round trip byte-identical.
func Normalize(n *html.Node) {
	if n == nil {
		return
	}
	c := n.FirstChild
	for c != nil {
		next := c.NextSibling
		if c.Type == html.TextNode {
			if c.Data == "" {
				n.RemoveChild(c)
				c = next
				continue
			}
			for next != nil && next.Type == html.TextNode {
				c.Data += next.Data
				n.RemoveChild(next)
				next = c.NextSibling
			}
		} else {
			Normalize(c)
		}
		c = next
	}
}
