package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/analysis"
	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/config"
	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/server"
)

type Handler struct {
	configPath  string
	listen      string
	analyzerURL string
	noAnalyzer  bool
}

func NewServeCommand() *cobra.Command {
	me := &Handler{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the highlight HTTP service",
	}

	cmd.Flags().StringVar(&me.configPath, "config", config.DefaultPath, "config file path")
	cmd.Flags().StringVar(&me.listen, "listen", "", "listen address, overrides the config")
	cmd.Flags().StringVar(&me.analyzerURL, "analyzer", "", "analyzer base URL, overrides the config")
	cmd.Flags().BoolVar(&me.noAnalyzer, "no-analyzer", false, "serve without an analyzer backend, requests must carry tokens")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return me.Run(cmd.Context())
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context) error {
	cfg, err := config.Load(ctx, afero.NewOsFs(), me.configPath)
	if err != nil {
		return errors.Errorf("loading config: %w", err)
	}
	settings, _ := cfg.Resolve(ctx)
	if me.listen != "" {
		settings.Listen = me.listen
	}
	if me.analyzerURL != "" {
		settings.AnalyzerURL = me.analyzerURL
	}

	opts := server.Options{Settings: settings}
	if !me.noAnalyzer && settings.AnalyzerURL != "" {
		client := analysis.NewClient(settings.AnalyzerURL, nil)
		opts.Analyzer = client
		opts.Health = client
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New(opts).ListenAndServe(ctx); err != nil {
		return errors.Errorf("running server: %w", err)
	}
	return nil
}
