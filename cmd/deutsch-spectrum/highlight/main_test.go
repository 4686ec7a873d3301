package highlight

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/token"
)

const (
	testSentence = "Ich stehe um 7 Uhr auf."
	testPage     = "<html><body><p>Ich stehe um 7 Uhr auf.</p></body></html>"
)

func writeTokensFile(t *testing.T, fsys afero.Fs, path string) {
	t.Helper()
	tokens := token.Analysis{
		{Text: "Ich", POS: token.Pronoun, Lemma: "ich", Start: 0, End: 3},
		{Text: "stehe", POS: token.Verb, Lemma: "aufstehen", Start: 4, End: 9,
			IsSeparable: true, PairedWith: []int{19}},
		{Text: "auf", POS: token.VerbParticle, Lemma: "aufstehen", Start: 19, End: 22,
			IsSeparable: true, PairedWith: []int{4}},
	}
	raw, err := json.Marshal(tokens)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fsys, path, raw, 0o644))
}

func TestRunWritesHighlightedFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "page.html", []byte(testPage), 0o644))
	writeTokensFile(t, fsys, "tokens.json")

	me := &Handler{
		sentence:   testSentence,
		word:       "stehe",
		tokensPath: "tokens.json",
		write:      true,
		fsys:       fsys,
	}
	var buf bytes.Buffer
	require.NoError(t, me.Run(context.Background(), &buf, []string{"page.html"}))

	out, err := afero.ReadFile(fsys, "page.highlighted.html")
	require.NoError(t, err)
	assert.Contains(t, string(out), "deutsch-spectrum-highlight")
	assert.Contains(t, string(out), `data-ds-lemma="aufstehen"`)
	assert.Empty(t, buf.String())
}

func TestRunGlobSelectsFiles(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "docs/a.html", []byte(testPage), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "docs/sub/b.html", []byte(testPage), 0o644))
	writeTokensFile(t, fsys, "tokens.json")

	me := &Handler{
		sentence:   testSentence,
		word:       "auf",
		tokensPath: "tokens.json",
		glob:       "docs/**/*.html",
		write:      true,
		fsys:       fsys,
	}
	var buf bytes.Buffer
	require.NoError(t, me.Run(context.Background(), &buf, nil))

	for _, path := range []string{"docs/a.highlighted.html", "docs/sub/b.highlighted.html"} {
		out, err := afero.ReadFile(fsys, path)
		require.NoError(t, err, "missing %s", path)
		assert.Contains(t, string(out), "deutsch-spectrum-highlight")
	}
}

func TestRunPrintsToStdoutByDefault(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "page.html", []byte(testPage), 0o644))
	writeTokensFile(t, fsys, "tokens.json")

	me := &Handler{
		sentence:   testSentence,
		word:       "stehe",
		tokensPath: "tokens.json",
		fsys:       fsys,
	}
	var buf bytes.Buffer
	require.NoError(t, me.Run(context.Background(), &buf, []string{"page.html"}))
	assert.Contains(t, buf.String(), "deutsch-spectrum-highlight")
}

func TestRunDiffShowsChangedLinesOnly(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "page.html", []byte(testPage), 0o644))
	writeTokensFile(t, fsys, "tokens.json")

	me := &Handler{
		sentence:   testSentence,
		word:       "stehe",
		tokensPath: "tokens.json",
		showDiff:   true,
		fsys:       fsys,
	}
	var buf bytes.Buffer
	require.NoError(t, me.Run(context.Background(), &buf, []string{"page.html"}))

	assert.Contains(t, buf.String(), "-")
	assert.Contains(t, buf.String(), "+")
	assert.Contains(t, buf.String(), "deutsch-spectrum-highlight")
}

func TestRunPreviewListsMarkers(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "page.html", []byte(testPage), 0o644))
	writeTokensFile(t, fsys, "tokens.json")

	me := &Handler{
		sentence:   testSentence,
		word:       "stehe",
		tokensPath: "tokens.json",
		preview:    true,
		write:      true,
		fsys:       fsys,
	}
	var buf bytes.Buffer
	require.NoError(t, me.Run(context.Background(), &buf, []string{"page.html"}))

	assert.Contains(t, buf.String(), "stehe")
	assert.Contains(t, buf.String(), "aufstehen")
	assert.Contains(t, buf.String(), "trennbar")
}

func TestRunSkipsFileWithoutSentence(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "other.html",
		[]byte("<html><body><p>Ganz anderer Text.</p></body></html>"), 0o644))
	writeTokensFile(t, fsys, "tokens.json")

	me := &Handler{
		sentence:   testSentence,
		word:       "stehe",
		tokensPath: "tokens.json",
		write:      true,
		fsys:       fsys,
	}
	var buf bytes.Buffer
	require.NoError(t, me.Run(context.Background(), &buf, []string{"other.html"}))

	exists, err := afero.Exists(fsys, "other.highlighted.html")
	require.NoError(t, err)
	assert.False(t, exists, "skipped file should produce no output")
}

func TestRunErrors(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "page.html", []byte(testPage), 0o644))

	t.Run("no token source", func(t *testing.T) {
		me := &Handler{sentence: testSentence, word: "stehe", fsys: fsys}
		err := me.Run(context.Background(), &bytes.Buffer{}, []string{"page.html"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--tokens or --analyzer")
	})

	t.Run("no inputs", func(t *testing.T) {
		me := &Handler{sentence: testSentence, word: "stehe", tokensPath: "tokens.json", fsys: fsys}
		err := me.Run(context.Background(), &bytes.Buffer{}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no input files")
	})

	t.Run("tokens reject mismatched sentence", func(t *testing.T) {
		mismatched, err := json.Marshal(token.Analysis{{Text: "falsch", Start: 0, End: 6}})
		require.NoError(t, err)
		require.NoError(t, afero.WriteFile(fsys, "bad.json", mismatched, 0o644))

		me := &Handler{sentence: testSentence, word: "stehe", tokensPath: "bad.json", fsys: fsys}
		err = me.Run(context.Background(), &bytes.Buffer{}, []string{"page.html"})
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "do not match"), "got: %s", err)
	})
}
