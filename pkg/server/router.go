package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// maxRequestBody caps request bodies. Documents are full HTML pages, so the
// cap is generous.
const maxRequestBody = 8 << 20

// Router builds the HTTP API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(allowCORS)

	// Service meta
	r.Get("/api/v1/health", s.healthHandler)
	r.Get("/api/v1/pos-categories", s.posCategoriesHandler)

	// Analysis cache
	r.Get("/api/v1/cache/stats", s.cacheStatsHandler)
	r.Post("/api/v1/cache/clear", s.cacheClearHandler)

	// Documents and the highlight lifecycle
	r.Post("/api/v1/documents", s.openDocumentHandler)
	r.Get("/api/v1/documents/{documentID}", s.getDocumentHandler)
	r.Delete("/api/v1/documents/{documentID}", s.deleteDocumentHandler)
	r.Post("/api/v1/documents/{documentID}/highlight", s.highlightHandler)
	r.Post("/api/v1/documents/{documentID}/clear", s.clearHandler)
	r.Post("/api/v1/documents/{documentID}/hover", s.hoverHandler)
	r.Post("/api/v1/documents/{documentID}/unhover", s.unhoverHandler)
	r.Post("/api/v1/clear-all", s.clearAllHandler)

	return r
}

// requestLogger stamps each request with an id, scopes the context logger to
// it and logs the outcome.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := zerolog.Ctx(r.Context()).With().
			Str("request", xid.New().String()).
			Logger()
		ctx := logger.WithContext(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}

// allowCORS answers preflights and marks every response as cross-origin
// readable. The API serves browser extensions on arbitrary origins.
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("encoding response")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg})
}

// decodeJSON reads and decodes one JSON request body.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		return errors.Errorf("decoding request body: %w", err)
	}
	return nil
}
