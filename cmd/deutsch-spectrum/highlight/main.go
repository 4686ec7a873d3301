package highlight

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/net/html"

	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/analysis"
	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/diff"
	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/dom"
	engine "github.com/Amr-Mustafa/deutsch-spectrum/pkg/highlight"
	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/token"
)

type Handler struct {
	sentence    string
	word        string
	tokensPath  string
	analyzerURL string
	glob        string
	write       bool
	showDiff    bool
	preview     bool

	fsys afero.Fs
}

func NewHighlightCommand() *cobra.Command {
	me := &Handler{fsys: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "highlight [files...]",
		Short: "highlight a word's token group inside HTML files",
		Long: "highlight locates a sentence in each HTML file, wraps the target word and its " +
			"grammatically paired tokens in marker elements, and emits the modified document. " +
			"Tokens come from a JSON file (--tokens) or from a running analyzer (--analyzer).",
	}

	cmd.Flags().StringVar(&me.sentence, "sentence", "", "the sentence containing the word (required)")
	cmd.Flags().StringVar(&me.word, "word", "", "the clicked word to highlight (required)")
	cmd.Flags().StringVar(&me.tokensPath, "tokens", "", "JSON file with the sentence's token analysis")
	cmd.Flags().StringVar(&me.analyzerURL, "analyzer", "", "analyzer base URL to fetch the analysis from")
	cmd.Flags().StringVar(&me.glob, "glob", "", "doublestar pattern selecting input files, e.g. 'docs/**/*.html'")
	cmd.Flags().BoolVar(&me.write, "write", false, "write <name>.highlighted.html next to each input instead of stdout")
	cmd.Flags().BoolVar(&me.showDiff, "diff", false, "print the changed lines instead of the whole document")
	cmd.Flags().BoolVar(&me.preview, "preview", false, "print a colored summary of the created markers")

	_ = cmd.MarkFlagRequired("sentence")
	_ = cmd.MarkFlagRequired("word")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return me.Run(cmd.Context(), cmd.OutOrStdout(), args)
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context, out io.Writer, args []string) error {
	paths, err := me.inputs(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no input files: pass paths or --glob")
	}

	tokens, err := me.loadTokens(ctx)
	if err != nil {
		return err
	}

	for _, path := range paths {
		if err := me.highlightFile(ctx, out, path, tokens); err != nil {
			return errors.Errorf("highlighting %s: %w", path, err)
		}
	}
	return nil
}

func (me *Handler) inputs(args []string) ([]string, error) {
	paths := append([]string(nil), args...)
	if me.glob != "" {
		matches, err := doublestar.Glob(afero.NewIOFS(me.fsys), me.glob)
		if err != nil {
			return nil, errors.Errorf("expanding glob %q: %w", me.glob, err)
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}

// loadTokens resolves the sentence's analysis: a local JSON file wins over a
// remote analyzer.
func (me *Handler) loadTokens(ctx context.Context) (token.Analysis, error) {
	switch {
	case me.tokensPath != "":
		raw, err := afero.ReadFile(me.fsys, me.tokensPath)
		if err != nil {
			return nil, errors.Errorf("reading tokens file: %w", err)
		}
		var tokens token.Analysis
		if err := json.Unmarshal(raw, &tokens); err != nil {
			return nil, errors.Errorf("parsing tokens file: %w", err)
		}
		if err := tokens.Validate(me.sentence); err != nil {
			return nil, errors.Errorf("tokens do not match the sentence: %w", err)
		}
		return tokens, nil
	case me.analyzerURL != "":
		position := strings.Index(me.sentence, me.word)
		if position < 0 {
			position = 0
		}
		tokens, err := analysis.NewClient(me.analyzerURL, nil).Analyze(ctx, me.sentence, me.word, position)
		if err != nil {
			return nil, errors.Errorf("fetching analysis: %w", err)
		}
		return tokens, nil
	default:
		return nil, errors.New("either --tokens or --analyzer is required")
	}
}

func (me *Handler) highlightFile(ctx context.Context, out io.Writer, path string, tokens token.Analysis) error {
	raw, err := afero.ReadFile(me.fsys, path)
	if err != nil {
		return errors.Errorf("reading file: %w", err)
	}

	root, err := dom.ParseString(string(raw))
	if err != nil {
		return errors.Errorf("parsing HTML: %w", err)
	}
	original, err := dom.Render(root)
	if err != nil {
		return errors.Errorf("rendering original: %w", err)
	}

	result, err := engine.NewHighlighter().Highlight(ctx, container(root), tokens, me.sentence, me.word)
	if err != nil {
		if errors.Is(err, engine.ErrSentenceNotFound) {
			zerolog.Ctx(ctx).Warn().Str("file", path).Msg("sentence not found, skipping")
			return nil
		}
		return err
	}

	rendered, err := dom.Render(root)
	if err != nil {
		return errors.Errorf("rendering result: %w", err)
	}

	zerolog.Ctx(ctx).Info().
		Str("file", path).
		Int("markers", len(result.Markers)).
		Msg("highlighted")

	if me.preview {
		printPreview(out, result)
	}

	switch {
	case me.write:
		if err := afero.WriteFile(me.fsys, outputPath(path), []byte(rendered), 0o644); err != nil {
			return errors.Errorf("writing output: %w", err)
		}
	case me.showDiff:
		for _, line := range diff.Lines(original, rendered) {
			fmt.Fprintln(out, line)
		}
	default:
		fmt.Fprintln(out, rendered)
	}
	return nil
}

func outputPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".highlighted.html"
}

func container(root *html.Node) *html.Node {
	if body := dom.Body(root); body != nil {
		return body
	}
	return root
}

var previewColors = map[token.POS]*color.Color{
	token.Verb:         color.New(color.FgGreen, color.Bold),
	token.VerbParticle: color.New(color.FgHiGreen, color.Bold),
	token.Noun:         color.New(color.FgRed),
	token.Pronoun:      color.New(color.FgYellow),
	token.Adposition:   color.New(color.FgMagenta),
}

// printPreview lists the created markers with terminal colors roughly
// matching the in-document highlight colors.
func printPreview(out io.Writer, result *engine.Result) {
	for _, m := range result.Markers {
		info, ok := engine.InfoFromMarker(m)
		if !ok {
			continue
		}
		c, found := previewColors[token.POS(info.POS)]
		if !found {
			c = color.New(color.FgCyan)
		}

		var notes []string
		if info.Separable {
			notes = append(notes, "trennbar")
		}
		if info.Reflexive {
			notes = append(notes, "reflexiv")
		}
		if info.Prepositions != "" {
			notes = append(notes, info.Prepositions)
		}
		suffix := ""
		if len(notes) > 0 {
			suffix = " [" + strings.Join(notes, ", ") + "]"
		}
		fmt.Fprintf(out, "%s  %s, %s%s\n", c.Sprint(info.Text), info.Lemma, info.Label, suffix)
	}
}
