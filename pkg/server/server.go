// Package server exposes the highlight engine over HTTP. Clients open an
// HTML document, then drive highlight, hover and clear operations against it;
// the server mutates the held tree and returns the resulting state. One
// tooltip controller is shared across all documents, so at most one tooltip
// exists process-wide no matter how many documents are open.
package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/analysis"
	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/config"
	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/tooltip"
)

// HealthChecker reports the analyzer backend's health. *analysis.Client
// implements it; tests substitute fakes.
type HealthChecker interface {
	Health(ctx context.Context) (analysis.Health, error)
}

// Options configures a Server. Zero-value fields fall back to defaults.
type Options struct {
	Settings config.Settings

	// Analyzer produces token analyses for sentences that arrive without
	// pre-computed tokens. May be nil, in which case such requests are
	// rejected.
	Analyzer analysis.Analyzer

	// Health checks the analyzer backend for the health endpoint. Usually
	// the same *analysis.Client as Analyzer.
	Health HealthChecker

	// Clock and Metrics feed the tooltip controller. Nil picks the real
	// clock and fixed default geometry.
	Clock   tooltip.Clock
	Metrics tooltip.Metrics
}

// Server owns the document store, the analyzer pipeline and the shared
// tooltip controller behind the HTTP API.
type Server struct {
	settings config.Settings
	docs     *DocumentStore
	analyzer analysis.Analyzer
	cache    *analysis.Cache
	health   HealthChecker
	tooltip  *tooltip.Controller

	// mu serializes all tree access across documents. The tooltip's deferred
	// hide fires on a timer goroutine and detaches a node from whichever tree
	// currently holds the tooltip, so per-document locks alone cannot cover it.
	mu sync.Mutex
}

func New(opts Options) *Server {
	settings := opts.Settings
	if settings == (config.Settings{}) {
		settings = config.Defaults()
	}

	s := &Server{
		settings: settings,
		docs:     NewDocumentStore(),
		cache:    analysis.NewCache(settings.CacheSize, settings.CacheTTL()),
		health:   opts.Health,
	}
	if opts.Analyzer != nil {
		s.analyzer = analysis.NewCached(opts.Analyzer, s.cache)
	}

	clock := opts.Clock
	if clock == nil {
		clock = tooltip.RealClock()
	}
	metrics := opts.Metrics
	if metrics == nil {
		fixed := tooltip.DefaultMetrics()
		fixed.Screen = tooltip.Box{W: settings.ViewportWidth, H: settings.ViewportHeight}
		metrics = fixed
	}
	s.tooltip = tooltip.NewController(lockedClock{mu: &s.mu, inner: clock}, metrics)
	s.tooltip.SetHideDelay(settings.HideDelay())
	return s
}

// lockedClock runs deferred functions under the server's tree lock.
type lockedClock struct {
	mu    *sync.Mutex
	inner tooltip.Clock
}

func (c lockedClock) AfterFunc(d time.Duration, fn func()) tooltip.Timer {
	return c.inner.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		fn()
	})
}

// Documents exposes the store, mainly for tests and the CLI.
func (s *Server) Documents() *DocumentStore {
	return s.docs
}

// Tooltip exposes the shared controller.
func (s *Server) Tooltip() *tooltip.Controller {
	return s.tooltip
}

// ListenAndServe runs the HTTP server until ctx is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.settings.Listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		zerolog.Ctx(ctx).Info().Str("listen", s.settings.Listen).Msg("server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Errorf("shutting down: %w", err)
	}
	zerolog.Ctx(ctx).Info().Msg("server stopped")
	return nil
}
