package token

// POS is a part-of-speech tag as emitted by the analyzer service. The values
// follow the Universal Dependencies tag set, plus VERB_PARTICLE which the
// analyzer substitutes for the detached prefix of a separable verb.
type POS string

const (
	Noun         POS = "NOUN"
	Verb         POS = "VERB"
	VerbParticle POS = "VERB_PARTICLE"
	Adjective    POS = "ADJ"
	Adverb       POS = "ADV"
	Determiner   POS = "DET"
	Pronoun      POS = "PRON"
	Adposition   POS = "ADP"
	Conjunction  POS = "CONJ"
	CoordConj    POS = "CCONJ"
	SubordConj   POS = "SCONJ"
	Numeral      POS = "NUM"
	ProperNoun   POS = "PROPN"
	Auxiliary    POS = "AUX"
	Particle     POS = "PART"
	Interjection POS = "INTJ"
	Punctuation  POS = "PUNCT"
	Other        POS = "X"
)

var posLabels = map[POS]string{
	Noun:         "Noun (Substantiv)",
	Verb:         "Verb",
	VerbParticle: "Separable Verb Particle",
	Adjective:    "Adjective (Adjektiv)",
	Adverb:       "Adverb",
	Determiner:   "Determiner (Artikel)",
	Pronoun:      "Pronoun (Pronomen)",
	Adposition:   "Preposition (Präposition)",
	Conjunction:  "Conjunction (Konjunktion)",
	CoordConj:    "Coordinating Conjunction",
	SubordConj:   "Subordinating Conjunction",
	Numeral:      "Number (Zahl)",
	ProperNoun:   "Proper Noun (Eigenname)",
	Auxiliary:    "Auxiliary Verb (Hilfsverb)",
	Particle:     "Particle (Partikel)",
	Interjection: "Interjection (Interjektion)",
	Punctuation:  "Punctuation",
	Other:        "Other",
}

var posColors = map[POS]string{
	Noun:         "#FFB3BA",
	Verb:         "#BAFFC9",
	VerbParticle: "#90EE90",
	Adjective:    "#BAE1FF",
	Adverb:       "#FFFFBA",
	Determiner:   "#E0BBE4",
	Pronoun:      "#FFDAB9",
	Adposition:   "#D4A5A5",
	Conjunction:  "#B5EAD7",
	CoordConj:    "#B5EAD7",
	SubordConj:   "#A8D8EA",
	Numeral:      "#FFD9B3",
	ProperNoun:   "#FFABAB",
	Auxiliary:    "#C7CEEA",
	Particle:     "#D5AAFF",
	Interjection: "#FFE5B4",
	Punctuation:  "#E8E8E8",
	Other:        "#CCCCCC",
}

// Label returns the human-readable description for a tag. Tags the analyzer
// may emit that are not in the table fall back to the raw tag text.
func (p POS) Label() string {
	if label, ok := posLabels[p]; ok {
		return label
	}
	return string(p)
}

// Color returns the highlight color for a tag as a #RRGGBB hex string.
// Unknown tags share the color of X.
func (p POS) Color() string {
	if color, ok := posColors[p]; ok {
		return color
	}
	return posColors[Other]
}

// Category pairs a tag with its display metadata, mirroring one entry of the
// analyzer's pos-categories endpoint.
type Category struct {
	POS   POS    `json:"pos"`
	Color string `json:"color"`
	Label string `json:"label"`
}

// Categories returns every known tag with its color and label, ordered the way
// the analyzer lists them.
func Categories() []Category {
	order := []POS{
		Noun, Verb, VerbParticle, Adjective, Adverb, Determiner, Pronoun,
		Adposition, Conjunction, CoordConj, SubordConj, Numeral, ProperNoun,
		Auxiliary, Particle, Interjection, Punctuation, Other,
	}
	categories := make([]Category, len(order))
	for i, p := range order {
		categories[i] = Category{POS: p, Color: p.Color(), Label: p.Label()}
	}
	return categories
}
