package highlight

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/net/html"

	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/dom"
	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/token"
)

// WrapOutcome says how one text-node fragment was handled.
type WrapOutcome int

const (
	// WrapDirect: the fragment was wrapped atomically in place.
	WrapDirect WrapOutcome = iota

	// WrapRecovered: the atomic wrap was not possible and the fragment was
	// wrapped via the extract-and-reinsert fallback.
	WrapRecovered

	// WrapSkipped: the fragment was left untouched. Fragment.Err carries the
	// reason.
	WrapSkipped
)

func (o WrapOutcome) String() string {
	switch o {
	case WrapDirect:
		return "direct"
	case WrapRecovered:
		return "recovered"
	case WrapSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Fragment is the outcome of projecting a token onto one text node. A token
// whose range crosses markup produces several fragments, all stamped with the
// same token metadata but each with its own marker element.
type Fragment struct {
	Token   token.Token
	Element *html.Node // nil when skipped
	Outcome WrapOutcome
	Text    string // the covered text
	Err     error  // skip reason, nil otherwise
}

// Projector maps sentence-relative token ranges onto live text nodes and
// wraps them in markers. Stateless; segments are recomputed per call, so
// earlier wraps in the same highlight operation are always accounted for
// (wrapping changes the node structure but never the flattened text).
type Projector struct{}

// Project wraps the text covered by tok, whose offsets are relative to the
// sentence starting at base in container's flattened text.
//
// A token contained in a single text node is wrapped atomically. A token
// crossing node boundaries cannot be, so each intersecting node is wrapped
// separately via extraction. Nodes already inside a marker are skipped, as
// are nodes in raw-text elements. One bad fragment never aborts the rest;
// failures accumulate into the returned error while good fragments proceed.
func (p *Projector) Project(ctx context.Context, container *html.Node, base int, tok token.Token) ([]Fragment, error) {
	absStart, absEnd := base+tok.Start, base+tok.End
	if absEnd <= absStart {
		return nil, errors.Errorf("projecting %q: empty range [%d,%d)", tok.Text, absStart, absEnd)
	}

	var hits []dom.Segment
	for _, seg := range dom.Segments(container) {
		if seg.End <= absStart || seg.Start >= absEnd {
			continue
		}
		hits = append(hits, seg)
	}
	if len(hits) == 0 {
		return nil, errors.Errorf("projecting %q at [%d,%d): range covers no text: %w", tok.Text, absStart, absEnd, ErrWrapFailure)
	}

	zerolog.Ctx(ctx).Debug().
		Str("token", tok.Text).
		Int("start", absStart).
		Int("end", absEnd).
		Int("nodes", len(hits)).
		Msg("projecting token range")

	if len(hits) == 1 {
		frag := p.wrapWhole(ctx, hits[0], absStart, absEnd, tok)
		if frag.Outcome == WrapSkipped && frag.Err != nil && !errors.Is(frag.Err, ErrAlreadyHighlighted) {
			return []Fragment{frag}, frag.Err
		}
		return []Fragment{frag}, nil
	}

	// the range spans structural markup, wrap each intersecting node on its own
	zerolog.Ctx(ctx).Debug().
		Str("token", tok.Text).
		Int("nodes", len(hits)).
		Msg("range crosses node boundaries, extracting per node")

	var frags []Fragment
	var merr *multierror.Error
	for _, seg := range hits {
		lo, hi := localSpan(seg, absStart, absEnd)
		frag := p.recoverWrap(ctx, seg.Node, lo, hi, tok)
		if frag.Err != nil && !errors.Is(frag.Err, ErrAlreadyHighlighted) {
			merr = multierror.Append(merr, frag.Err)
		}
		frags = append(frags, frag)
	}
	return frags, merr.ErrorOrNil()
}

// wrapWhole handles the single-node case: atomic wrap first, extraction
// fallback when that fails for anything but a skip condition.
func (p *Projector) wrapWhole(ctx context.Context, seg dom.Segment, absStart, absEnd int, tok token.Token) Fragment {
	lo, hi := localSpan(seg, absStart, absEnd)
	if frag, skip := skipFragment(seg.Node, lo, hi, tok); skip {
		return frag
	}

	marker := NewMarker(tok)
	rng := dom.NewRange(seg.Node, lo, hi)
	covered := seg.Node.Data[lo:hi]
	err := rng.SurroundContents(marker)
	if err == nil {
		return Fragment{Token: tok, Element: marker, Outcome: WrapDirect, Text: covered}
	}
	zerolog.Ctx(ctx).Debug().
		Err(err).
		Str("token", tok.Text).
		Msg("atomic wrap failed, falling back to extraction")
	return p.recoverWrap(ctx, seg.Node, lo, hi, tok)
}

// recoverWrap wraps node[lo:hi] via the fallback strategy: extract the covered
// text, reparent it into a fresh marker, insert the marker at the former
// position.
func (p *Projector) recoverWrap(ctx context.Context, node *html.Node, lo, hi int, tok token.Token) Fragment {
	if frag, skip := skipFragment(node, lo, hi, tok); skip {
		return frag
	}

	rng := dom.NewRange(node, lo, hi)
	content, err := rng.ExtractContents()
	if err != nil {
		return Fragment{
			Token:   tok,
			Outcome: WrapSkipped,
			Err:     errors.Errorf("extracting %q fragment: %w", tok.Text, err),
		}
	}
	marker := NewMarker(tok)
	marker.AppendChild(content)
	if err := rng.InsertNode(marker); err != nil {
		return Fragment{
			Token:   tok,
			Outcome: WrapSkipped,
			Err:     errors.Errorf("reinserting %q fragment: %w", tok.Text, err),
		}
	}
	return Fragment{Token: tok, Element: marker, Outcome: WrapRecovered, Text: content.Data}
}

// skipFragment checks the conditions under which a node is left untouched:
// already inside a marker, or inside a raw-text element where markup would
// corrupt the document.
func skipFragment(node *html.Node, lo, hi int, tok token.Token) (Fragment, bool) {
	var text string
	if node.Type == html.TextNode && lo >= 0 && hi <= len(node.Data) && lo <= hi {
		text = node.Data[lo:hi]
	}
	if InsideMarker(node) {
		return Fragment{Token: tok, Outcome: WrapSkipped, Text: text, Err: ErrAlreadyHighlighted}, true
	}
	if dom.InRawText(node) {
		return Fragment{
			Token:   tok,
			Outcome: WrapSkipped,
			Text:    text,
			Err:     errors.Errorf("node sits in raw-text element: %w", ErrWrapFailure),
		}, true
	}
	return Fragment{}, false
}

func localSpan(seg dom.Segment, absStart, absEnd int) (int, int) {
	lo, hi := absStart, absEnd
	if lo < seg.Start {
		lo = seg.Start
	}
	if hi > seg.End {
		hi = seg.End
	}
	return lo - seg.Start, hi - seg.Start
}
