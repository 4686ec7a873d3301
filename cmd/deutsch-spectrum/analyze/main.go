package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/analysis"
)

type Handler struct {
	analyzerURL string
	word        string
	dump        bool
}

func NewAnalyzeCommand() *cobra.Command {
	me := &Handler{}

	cmd := &cobra.Command{
		Use:   "analyze <sentence>",
		Short: "ask the analyzer service for a sentence's token analysis",
		Args:  cobra.ExactArgs(1),
	}

	cmd.Flags().StringVar(&me.analyzerURL, "analyzer", "http://localhost:8000", "analyzer base URL")
	cmd.Flags().StringVar(&me.word, "word", "", "target word, defaults to the first word of the sentence")
	cmd.Flags().BoolVar(&me.dump, "dump", false, "pretty-print the token structs instead of JSON")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return me.Run(cmd.Context(), cmd.OutOrStdout(), args[0])
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context, out io.Writer, sentence string) error {
	word := me.word
	if word == "" {
		fields := strings.Fields(sentence)
		if len(fields) == 0 {
			return errors.New("empty sentence")
		}
		word = fields[0]
	}

	position := strings.Index(sentence, word)
	if position < 0 {
		position = 0
	}

	tokens, err := analysis.NewClient(me.analyzerURL, nil).Analyze(ctx, sentence, word, position)
	if err != nil {
		return errors.Errorf("analyzing: %w", err)
	}

	if me.dump {
		printer := pp.New()
		printer.SetExportedOnly(true)
		printer.SetOutput(out)
		printer.Println(tokens)
		return nil
	}

	encoded, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return errors.Errorf("encoding tokens: %w", err)
	}
	fmt.Fprintln(out, string(encoded))
	return nil
}
