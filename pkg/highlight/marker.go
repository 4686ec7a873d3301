package highlight

import (
	"fmt"
	"strings"

	"github.com/rs/xid"
	"golang.org/x/net/html"

	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/dom"
	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/token"
)

// MarkerClass identifies marker elements in the tree. Clearing scans for it,
// so it is the ground truth over any in-memory bookkeeping.
const MarkerClass = "deutsch-spectrum-highlight"

// Marker attributes expose the owning token's metadata for inspection and for
// the tooltip, which renders purely from these.
const (
	AttrID        = "data-ds-id"
	AttrPOS       = "data-ds-pos"
	AttrLemma     = "data-ds-lemma"
	AttrLabel     = "data-ds-label"
	AttrSeparable = "data-ds-separable"
	AttrReflexive = "data-ds-reflexive"
	AttrPreps     = "data-ds-preps"
	AttrCase      = "data-ds-case"
)

// NewMarker builds a detached marker element stamped with tok's metadata.
// Fragments of one token each get their own marker, so ids are per-fragment.
func NewMarker(tok token.Token) *html.Node {
	m := dom.NewElement("span")
	dom.SetAttr(m, "class", MarkerClass)
	dom.SetAttr(m, AttrID, xid.New().String())
	dom.SetAttr(m, AttrPOS, string(tok.POS))
	dom.SetAttr(m, AttrLemma, tok.Lemma)
	dom.SetAttr(m, AttrLabel, tok.POS.Label())
	if tok.IsSeparable {
		dom.SetAttr(m, AttrSeparable, "true")
	}
	if tok.IsReflexive {
		dom.SetAttr(m, AttrReflexive, "true")
	}
	if len(tok.VerbPrepositions) > 0 {
		dom.SetAttr(m, AttrPreps, token.JoinPrepositions(tok.VerbPrepositions))
	}
	if tok.GovernsCase != "" {
		dom.SetAttr(m, AttrCase, tok.GovernsCase)
	}
	dom.SetAttr(m, "style", markerStyle(tok.POS))
	return m
}

func markerStyle(pos token.POS) string {
	c := pos.Color()
	return fmt.Sprintf("background-color:%s33;border-bottom:2px solid %s", c, c)
}

// IsMarker reports whether n is a marker element.
func IsMarker(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	class, ok := dom.Attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(class) {
		if c == MarkerClass {
			return true
		}
	}
	return false
}

// InsideMarker reports whether n sits inside a marker element, itself
// included. Text nodes inside markers are never wrapped again.
func InsideMarker(n *html.Node) bool {
	return dom.HasAncestor(n, IsMarker)
}

// Markers returns every marker element under root in document order.
func Markers(root *html.Node) []*html.Node {
	var found []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if IsMarker(n) {
			found = append(found, n)
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

// FindMarker returns the marker with the given id, or nil.
func FindMarker(root *html.Node, id string) *html.Node {
	n := dom.FindByAttr(root, AttrID, id)
	if !IsMarker(n) {
		return nil
	}
	return n
}

// MarkerInfo is a marker's stamped metadata read back from its attributes.
type MarkerInfo struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	POS          string `json:"pos"`
	Lemma        string `json:"lemma"`
	Label        string `json:"label"`
	Separable    bool   `json:"separable,omitempty"`
	Reflexive    bool   `json:"reflexive,omitempty"`
	Prepositions string `json:"prepositions,omitempty"`
	GovernsCase  string `json:"governs_case,omitempty"`
}

// InfoFromMarker reads a marker's metadata back. Reports false when n is not
// a marker.
func InfoFromMarker(n *html.Node) (MarkerInfo, bool) {
	if !IsMarker(n) {
		return MarkerInfo{}, false
	}
	attr := func(key string) string {
		v, _ := dom.Attr(n, key)
		return v
	}
	return MarkerInfo{
		ID:           attr(AttrID),
		Text:         dom.Flatten(n),
		POS:          attr(AttrPOS),
		Lemma:        attr(AttrLemma),
		Label:        attr(AttrLabel),
		Separable:    attr(AttrSeparable) == "true",
		Reflexive:    attr(AttrReflexive) == "true",
		Prepositions: attr(AttrPreps),
		GovernsCase:  attr(AttrCase),
	}, true
}
