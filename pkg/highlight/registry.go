package highlight

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/dom"
)

// Registry tracks the markers of the current highlight. It has two states:
// empty, or populated with the markers of exactly one container. Clearing
// always works off the tree, not the bookkeeping, so markers survive being
// forgotten but never survive a clear.
type Registry struct {
	mu        sync.Mutex
	container *html.Node
	markers   []*html.Node
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Track replaces the bookkeeping with the given container and markers. The
// caller clears the previous highlight first; Track itself never touches the
// tree.
func (r *Registry) Track(container *html.Node, markers []*html.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.container = container
	r.markers = append([]*html.Node(nil), markers...)
}

// Empty reports whether no markers are tracked.
func (r *Registry) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.markers) == 0
}

// Container returns the container the tracked markers belong to, nil when
// empty.
func (r *Registry) Container() *html.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.markers) == 0 {
		return nil
	}
	return r.container
}

// Markers returns the tracked marker elements.
func (r *Registry) Markers() []*html.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*html.Node(nil), r.markers...)
}

// Clear unwraps every marker currently inside container and resets the
// bookkeeping. Idempotent: with zero markers present it mutates nothing.
// Returns the number of markers removed.
func (r *Registry) Clear(ctx context.Context, container *html.Node) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := Sweep(ctx, container)
	r.container = nil
	r.markers = nil
	return n
}

// ClearAll unwraps every marker in the whole document owning the tracked
// container, wherever the markers sit, and resets the bookkeeping. With no
// tracked container there is no document to sweep and ClearAll is a no-op.
func (r *Registry) ClearAll(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	if r.container != nil {
		n = Sweep(ctx, dom.Root(r.container))
	}
	r.container = nil
	r.markers = nil
	return n
}

// Sweep unwraps every marker under root and normalizes the subtree, merging
// the text nodes the wraps had split. The round-trip invariant lives here:
// after a sweep the flattened text is byte-identical to the pre-highlight
// text. Sweeping a tree without markers mutates nothing.
func Sweep(ctx context.Context, root *html.Node) int {
	found := Markers(root)
	if len(found) == 0 {
		return 0
	}
	for _, m := range found {
		dom.Unwrap(m)
	}
	dom.Normalize(root)
	zerolog.Ctx(ctx).Debug().
		Int("markers", len(found)).
		Msg("cleared markers")
	return len(found)
}
