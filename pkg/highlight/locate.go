package highlight

import (
	"strings"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/net/html"

	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/dom"
)

// Location is a sentence's position in a container's flattened text.
type Location struct {
	// Offset is the byte offset of the sentence's first character.
	Offset int

	// Text is the sentence as supplied.
	Text string
}

// End returns the offset one past the sentence's last byte.
func (l Location) End() int {
	return l.Offset + len(l.Text)
}

// LocateSentence finds the first occurrence of sentence in container's
// flattened text. Pure and stateless; the tree is only read.
//
// Token offsets are sentence-relative, so Location.Offset is the base every
// projected range is shifted by.
func LocateSentence(container *html.Node, sentence string) (Location, error) {
	if sentence == "" {
		return Location{}, errors.Errorf("locating empty sentence: %w", ErrSentenceNotFound)
	}
	idx := strings.Index(dom.Flatten(container), sentence)
	if idx < 0 {
		return Location{}, errors.Errorf("locating %q: %w", abbreviate(sentence, 40), ErrSentenceNotFound)
	}
	return Location{Offset: idx, Text: sentence}, nil
}

func abbreviate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8Start(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// utf8Start reports whether b can begin a UTF-8 encoded rune.
func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}
