package dom

import (
	"gitlab.com/tozd/go/errors"
	"golang.org/x/net/html"
)

var (
	// ErrCrossNodeRange is returned by SurroundContents when the range's
	// endpoints sit in different text nodes. Such a range covers structural
	// markup and cannot be wrapped atomically.
	ErrCrossNodeRange = errors.New("range endpoints sit in different text nodes")

	// ErrNotTextNode is returned when a range endpoint is not a text node.
	ErrNotTextNode = errors.New("range endpoint is not a text node")

	// ErrDetachedNode is returned when a range's text node has no parent and
	// there is no position to insert a wrapper at.
	ErrDetachedNode = errors.New("range node is detached from the tree")

	// ErrOffsetOutOfRange is returned when a range's offsets do not fit the
	// node's text, typically because the tree mutated under a stale segment.
	ErrOffsetOutOfRange = errors.New("range offsets exceed node text")

	// ErrNoExtraction is returned by InsertNode when ExtractContents has not
	// been called first, so the range has no collapsed insertion point.
	ErrNoExtraction = errors.New("range has no extraction point")
)

// Range addresses a span of character data between two endpoints in a node
// tree, byte offsets, half-open. In the common case both endpoints sit in the
// same text node; a cross-node range means markup lives inside the span.
type Range struct {
	StartNode   *html.Node
	StartOffset int
	EndNode     *html.Node
	EndOffset   int

	// collapsed insertion point left behind by ExtractContents
	anchorParent *html.Node
	anchorNext   *html.Node
}

// NewRange returns a single-node range over node[start:end].
func NewRange(node *html.Node, start, end int) *Range {
	return &Range{StartNode: node, StartOffset: start, EndNode: node, EndOffset: end}
}

// Text returns the character data the range covers. Cross-node ranges return
// only the parts inside the endpoint nodes.
func (r *Range) Text() string {
	if r.StartNode == r.EndNode {
		return r.StartNode.Data[r.StartOffset:r.EndOffset]
	}
	return r.StartNode.Data[r.StartOffset:] + r.EndNode.Data[:r.EndOffset]
}

func (r *Range) validateEndpoint(n *html.Node, offset int) error {
	if n == nil || n.Type != html.TextNode {
		return errors.Errorf("validating range: %w", ErrNotTextNode)
	}
	if n.Parent == nil {
		return errors.Errorf("validating range: %w", ErrDetachedNode)
	}
	if offset < 0 || offset > len(n.Data) {
		return errors.Errorf("validating range: offset %d on %d bytes: %w", offset, len(n.Data), ErrOffsetOutOfRange)
	}
	return nil
}

// SurroundContents splits the range's text node and reparents the covered
// text into wrapper, inserting wrapper at the text's former position. This is
// the atomic wrap strategy: it refuses cross-node ranges, detached nodes and
// stale offsets, leaving the tree untouched on every error path.
//
// After a successful wrap the tree reads prefix, wrapper(covered), suffix,
// with empty prefix and suffix nodes elided.
func (r *Range) SurroundContents(wrapper *html.Node) error {
	if r.StartNode != r.EndNode {
		return errors.Errorf("surrounding range contents: %w", ErrCrossNodeRange)
	}
	if err := r.validateEndpoint(r.StartNode, r.StartOffset); err != nil {
		return err
	}
	if r.EndOffset < r.StartOffset || r.EndOffset > len(r.StartNode.Data) {
		return errors.Errorf("surrounding range contents: end %d: %w", r.EndOffset, ErrOffsetOutOfRange)
	}
	if wrapper.Parent != nil {
		return errors.New("wrapper is already attached")
	}

	node := r.StartNode
	parent := node.Parent
	data := node.Data
	before, covered, after := data[:r.StartOffset], data[r.StartOffset:r.EndOffset], data[r.EndOffset:]

	wrapper.AppendChild(NewText(covered))
	insertAfter(parent, wrapper, node)
	if after != "" {
		insertAfter(parent, NewText(after), wrapper)
	}
	if before == "" {
		parent.RemoveChild(node)
	} else {
		node.Data = before
	}
	return nil
}

// ExtractContents removes the covered text from the tree and returns it as a
// detached text node. The range collapses to the former position of the text,
// which a following InsertNode call fills. Only single-node ranges can be
// extracted; the caller splits cross-node ranges per intersecting text node.
func (r *Range) ExtractContents() (*html.Node, error) {
	if r.StartNode != r.EndNode {
		return nil, errors.Errorf("extracting range contents: %w", ErrCrossNodeRange)
	}
	if err := r.validateEndpoint(r.StartNode, r.StartOffset); err != nil {
		return nil, err
	}
	if r.EndOffset < r.StartOffset || r.EndOffset > len(r.StartNode.Data) {
		return nil, errors.Errorf("extracting range contents: end %d: %w", r.EndOffset, ErrOffsetOutOfRange)
	}

	node := r.StartNode
	parent := node.Parent
	data := node.Data
	before, covered, after := data[:r.StartOffset], data[r.StartOffset:r.EndOffset], data[r.EndOffset:]

	r.anchorParent = parent
	if after != "" {
		afterNode := NewText(after)
		insertAfter(parent, afterNode, node)
		r.anchorNext = afterNode
	} else {
		r.anchorNext = node.NextSibling
	}
	if before == "" {
		parent.RemoveChild(node)
	} else {
		node.Data = before
	}
	return NewText(covered), nil
}

// InsertNode places n at the collapsed insertion point left by
// ExtractContents.
func (r *Range) InsertNode(n *html.Node) error {
	if r.anchorParent == nil {
		return errors.Errorf("inserting at range: %w", ErrNoExtraction)
	}
	if n.Parent != nil {
		return errors.New("node is already attached")
	}
	r.anchorParent.InsertBefore(n, r.anchorNext)
	return nil
}

// insertAfter inserts n as a child of parent immediately after ref.
func insertAfter(parent, n, ref *html.Node) {
	parent.InsertBefore(n, ref.NextSibling)
}
