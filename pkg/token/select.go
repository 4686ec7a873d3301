package token

import "golang.org/x/text/cases"

var fold = cases.Fold()

// matches reports whether two surface forms are the same word ignoring case.
// Full Unicode case folding keeps German pairs like "Straße"/"STRASSE" equal.
func matches(a, b string) bool {
	return fold.String(a) == fold.String(b)
}

// Select resolves the set of tokens to highlight for a clicked word: the first
// token whose surface text matches targetWord case-insensitively, plus every
// token its PairedWith offsets point at. Expansion is one level only, since
// pairs carry mutual back-references and chasing links transitively would only
// amplify malformed data. A token paired both ways (reflexive and separable)
// contributes all of its one-level pairs.
//
// Returns nil when no token matches; token order is target first, then pairs
// in the order the analyzer listed them.
func Select(tokens Analysis, targetWord string) []Token {
	var target *Token
	for i := range tokens {
		if matches(tokens[i].Text, targetWord) {
			target = &tokens[i]
			break
		}
	}
	if target == nil {
		return nil
	}

	selected := []Token{*target}
	seen := map[int]bool{target.Start: true}
	for _, offset := range target.PairedWith {
		if seen[offset] {
			continue
		}
		paired, ok := tokens.ByStart(offset)
		if !ok {
			// Dangling pair reference; ignore it rather than fail the click.
			continue
		}
		seen[offset] = true
		selected = append(selected, paired)
	}
	return selected
}
