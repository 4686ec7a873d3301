// Package token defines the analyzed-token data model shared by the highlight
// engine, the analyzer client, and the HTTP service. Tokens are produced by an
// external analysis service and are read-only here; the JSON field names match
// that service's wire format.
package token

import (
	"fmt"
	"strings"
)

// VerbPreposition is a preposition the analyzer linked to a verb, together
// with the grammatical case it governs in that combination.
type VerbPreposition struct {
	Text string `json:"text"`
	// Case is the governed case, e.g. "Akkusativ", "Dativ" or the two-way
	// "Akkusativ/Dativ".
	Case     string `json:"case"`
	Position int    `json:"position"`
}

// Token is one analyzed unit of a sentence. Start and End are byte offsets
// into the UTF-8 sentence string that produced the token, half-open [Start,End).
type Token struct {
	Text  string `json:"text"`
	POS   POS    `json:"pos"`
	Lemma string `json:"lemma"`
	Start int    `json:"start"`
	End   int    `json:"end"`

	// IsSeparable marks both halves of a separable verb; SeparableParts then
	// holds the surface forms of the pair.
	IsSeparable    bool     `json:"is_separable,omitempty"`
	SeparableParts []string `json:"separable_parts,omitempty"`

	// PairedWith lists the Start offsets of the tokens grammatically linked to
	// this one (separable prefix <-> verb, reflexive pronoun <-> verb,
	// verb <-> linked preposition). Pairs reference each other mutually.
	PairedWith []int `json:"paired_with,omitempty"`

	IsReflexive bool `json:"is_reflexive,omitempty"`

	// VerbPrepositions is set on verbs that govern one or more prepositions.
	VerbPrepositions []VerbPreposition `json:"verb_prepositions,omitempty"`

	// LinkedVerb is set on prepositions: the Start offset of the verb they
	// belong to. GovernsCase is the case such a preposition governs.
	LinkedVerb  *int   `json:"linked_verb,omitempty"`
	GovernsCase string `json:"governs_case,omitempty"`
}

// Len returns the token's range length in bytes.
func (t Token) Len() int {
	return t.End - t.Start
}

// String renders the token as text@start for logs.
func (t Token) String() string {
	return fmt.Sprintf("%s@%d", t.Text, t.Start)
}

// Analysis is the ordered token sequence the analyzer produced for exactly one
// sentence string.
type Analysis []Token

// ByStart returns the token whose range begins at the given offset.
func (a Analysis) ByStart(offset int) (Token, bool) {
	for _, t := range a {
		if t.Start == offset {
			return t, true
		}
	}
	return Token{}, false
}

// Validate reports the first structural defect in the analysis relative to the
// sentence it was produced from: a token whose range does not lie inside the
// sentence, or whose range does not reproduce its surface text.
func (a Analysis) Validate(sentence string) error {
	for i, t := range a {
		if t.Start < 0 || t.End < t.Start || t.End > len(sentence) {
			return fmt.Errorf("token %d (%s): range [%d,%d) outside sentence of length %d",
				i, t.Text, t.Start, t.End, len(sentence))
		}
		if got := sentence[t.Start:t.End]; got != t.Text {
			return fmt.Errorf("token %d: sentence[%d:%d] = %q, token text = %q",
				i, t.Start, t.End, got, t.Text)
		}
	}
	return nil
}

// Words returns the surface forms of all tokens, mostly for logging.
func (a Analysis) Words() []string {
	words := make([]string, len(a))
	for i, t := range a {
		words[i] = t.Text
	}
	return words
}

// JoinPrepositions renders a token's preposition list as "auf (Akkusativ), an
// (Dativ)" for display and marker attributes.
func JoinPrepositions(preps []VerbPreposition) string {
	if len(preps) == 0 {
		return ""
	}
	parts := make([]string, len(preps))
	for i, p := range preps {
		parts[i] = fmt.Sprintf("%s (%s)", p.Text, p.Case)
	}
	return strings.Join(parts, ", ")
}
