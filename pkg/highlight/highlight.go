// Package highlight is the token-projection and highlight-lifecycle engine:
// it locates a sentence inside a node tree's flattened text, selects the
// clicked token together with its grammatically paired tokens, projects each
// token's character range onto the live text nodes, wraps the covered text in
// marker elements carrying the token's grammatical metadata, and keeps enough
// bookkeeping to undo all of it without corrupting the tree.
//
// The engine mutates only the markers it creates. Highlighting is re-invokable
// by contract: every Highlight call clears the previous markers first, so
// back-to-back calls on one container leave exactly the last call's markers.
package highlight

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/net/html"

	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/token"
)

var (
	// ErrSentenceNotFound means the sentence does not occur in the
	// container's current flattened text, typically because the tree mutated
	// between extraction and highlighting. The tree is left untouched.
	ErrSentenceNotFound = errors.New("sentence not found in container text")

	// ErrNoMatchingToken means no analyzed token matches the target word.
	// Benign: callers treat it as a no-op, the tree is left untouched.
	ErrNoMatchingToken = errors.New("no token matches the target word")

	// ErrWrapFailure means a fragment could not be wrapped by either
	// strategy. Local: the fragment is skipped, siblings proceed.
	ErrWrapFailure = errors.New("fragment could not be wrapped")

	// ErrAlreadyHighlighted marks a text node that already sits inside a
	// marker. Treated as a skip, never an error, to prevent nested markers.
	ErrAlreadyHighlighted = errors.New("text node already inside a marker")
)

// Highlighter orchestrates one highlight operation end to end:
// clear previous markers, locate the sentence, select the tokens, project
// each token onto the tree, record the created markers.
type Highlighter struct {
	registry  *Registry
	projector *Projector
}

func NewHighlighter() *Highlighter {
	return &Highlighter{
		registry:  NewRegistry(),
		projector: &Projector{},
	}
}

// Registry exposes the marker bookkeeping, for callers that drive clears
// directly.
func (h *Highlighter) Registry() *Registry {
	return h.registry
}

// Result describes one completed highlight operation.
type Result struct {
	// Location is where the sentence sits in the container's flattened text.
	Location Location

	// Tokens are the selected tokens in document order.
	Tokens []token.Token

	// Fragments are the per-text-node wrap outcomes, in document order.
	Fragments []Fragment

	// Markers are the created marker elements, in document order.
	Markers []*html.Node
}

// Highlight runs the full pipeline against container. The previous highlight
// is always cleared first, even when this call later fails to locate the
// sentence or the word.
//
// ErrSentenceNotFound and ErrNoMatchingToken abort before any marker is
// created. Per-fragment wrap failures never fail the operation; they surface
// as skipped fragments in the result and as warnings in the log.
func (h *Highlighter) Highlight(ctx context.Context, container *html.Node, analysis token.Analysis, sentence, word string) (*Result, error) {
	zerolog.Ctx(ctx).Debug().
		Str("word", word).
		Int("tokens", len(analysis)).
		Msg("highlighting")

	h.registry.Clear(ctx, container)

	loc, err := LocateSentence(container, sentence)
	if err != nil {
		return nil, err
	}

	selected := token.Select(analysis, word)
	if len(selected) == 0 {
		return nil, errors.Errorf("selecting %q: %w", word, ErrNoMatchingToken)
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].Start < selected[j].Start })

	result := &Result{Location: loc, Tokens: selected}
	for _, tok := range selected {
		frags, err := h.projector.Project(ctx, container, loc.Offset, tok)
		if err != nil {
			zerolog.Ctx(ctx).Warn().
				Err(err).
				Str("token", tok.Text).
				Msg("token partially wrapped")
		}
		for _, frag := range frags {
			if frag.Element != nil {
				result.Markers = append(result.Markers, frag.Element)
			}
		}
		result.Fragments = append(result.Fragments, frags...)
	}

	h.registry.Track(container, result.Markers)

	zerolog.Ctx(ctx).Debug().
		Int("markers", len(result.Markers)).
		Int("fragments", len(result.Fragments)).
		Msg("highlight complete")
	return result, nil
}

// Clear removes every marker inside container and resets the bookkeeping.
func (h *Highlighter) Clear(ctx context.Context, container *html.Node) int {
	return h.registry.Clear(ctx, container)
}
