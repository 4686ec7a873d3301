package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/net/html"

	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/analysis"
	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/dom"
	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/highlight"
	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/token"
	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/tooltip"
)

type documentResponse struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
}

type highlightRequest struct {
	Sentence   string `json:"sentence"`
	TargetWord string `json:"target_word"`

	// Tokens, when present, skips the analyzer round trip. The offsets must
	// be byte offsets into Sentence.
	Tokens token.Analysis `json:"tokens,omitempty"`
}

type fragmentPayload struct {
	Text     string `json:"text"`
	Outcome  string `json:"outcome"`
	MarkerID string `json:"marker_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type highlightResponse struct {
	DocumentID string                 `json:"document_id"`
	Offset     int                    `json:"offset"`
	Tokens     token.Analysis         `json:"tokens"`
	Markers    []highlight.MarkerInfo `json:"markers"`
	Fragments  []fragmentPayload      `json:"fragments"`
}

type clearResponse struct {
	Removed int `json:"removed"`
}

type clearAllResponse struct {
	Removed   int `json:"removed"`
	Documents int `json:"documents"`
}

type hoverRequest struct {
	MarkerID string `json:"marker_id"`
}

type hoverResponse struct {
	State    string           `json:"state"`
	Position tooltip.Position `json:"position"`
}

type unhoverRequest struct {
	// Immediate skips the hide debounce.
	Immediate bool `json:"immediate,omitempty"`
}

type stateResponse struct {
	State string `json:"state"`
}

type analyzerHealth struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Error       string `json:"error,omitempty"`
}

type healthResponse struct {
	Status    string          `json:"status"`
	Documents int             `json:"documents"`
	Tooltip   string          `json:"tooltip"`
	Cache     analysis.Stats  `json:"cache"`
	Analyzer  *analyzerHealth `json:"analyzer,omitempty"`
}

type categoriesResponse struct {
	Categories []token.Category `json:"categories"`
}

type purgeResponse struct {
	Purged int `json:"purged"`
}

func (s *Server) openDocumentHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HTML string `json:"html"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.HTML) == "" {
		writeError(w, r, http.StatusBadRequest, "html is required")
		return
	}

	doc, err := s.docs.Open(r.Context(), req.HTML)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, r, http.StatusCreated, documentResponse{ID: doc.ID, Created: doc.Created})
}

func (s *Server) getDocumentHandler(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.document(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	rendered, err := doc.Render()
	s.mu.Unlock()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(rendered))
}

func (s *Server) deleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.document(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	// the shared tooltip may sit inside the tree being dropped
	_ = doc.Update(func(root *html.Node, _ *highlight.Highlighter) error {
		if tip := s.tooltip.Node(); tip != nil && dom.Root(tip) == root {
			s.tooltip.HideNow(r.Context())
		}
		return nil
	})
	s.docs.Delete(r.Context(), doc.ID)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) highlightHandler(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.document(w, r)
	if !ok {
		return
	}

	var req highlightRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Sentence == "" || req.TargetWord == "" {
		writeError(w, r, http.StatusBadRequest, "sentence and target_word are required")
		return
	}

	tokens := req.Tokens
	if len(tokens) == 0 {
		var err error
		tokens, err = s.analyze(r.Context(), req.Sentence, req.TargetWord)
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, errNoAnalyzer) {
				status = http.StatusServiceUnavailable
			}
			writeError(w, r, status, err.Error())
			return
		}
	}

	var result *highlight.Result
	s.mu.Lock()
	err := doc.Update(func(root *html.Node, h *highlight.Highlighter) error {
		var herr error
		result, herr = h.Highlight(r.Context(), engineContainer(root), tokens, req.Sentence, req.TargetWord)
		return herr
	})
	s.mu.Unlock()
	if err != nil {
		switch {
		case errors.Is(err, highlight.ErrSentenceNotFound), errors.Is(err, highlight.ErrNoMatchingToken):
			writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, r, http.StatusInternalServerError, err.Error())
		}
		return
	}

	resp := highlightResponse{
		DocumentID: doc.ID,
		Offset:     result.Location.Offset,
		Tokens:     result.Tokens,
	}
	for _, m := range result.Markers {
		if info, ok := highlight.InfoFromMarker(m); ok {
			resp.Markers = append(resp.Markers, info)
		}
	}
	for _, frag := range result.Fragments {
		p := fragmentPayload{Text: frag.Text, Outcome: frag.Outcome.String()}
		if frag.Element != nil {
			p.MarkerID, _ = dom.Attr(frag.Element, highlight.AttrID)
		}
		if frag.Err != nil {
			p.Reason = frag.Err.Error()
		}
		resp.Fragments = append(resp.Fragments, p)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) clearHandler(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.document(w, r)
	if !ok {
		return
	}

	removed := 0
	s.mu.Lock()
	_ = doc.Update(func(root *html.Node, h *highlight.Highlighter) error {
		removed = h.Clear(r.Context(), engineContainer(root))
		return nil
	})
	s.mu.Unlock()
	writeJSON(w, r, http.StatusOK, clearResponse{Removed: removed})
}

func (s *Server) clearAllHandler(w http.ResponseWriter, r *http.Request) {
	removed, docs := 0, 0
	s.mu.Lock()
	s.docs.Range(func(doc *Document) bool {
		_ = doc.Update(func(root *html.Node, h *highlight.Highlighter) error {
			removed += h.Clear(r.Context(), engineContainer(root))
			return nil
		})
		docs++
		return true
	})
	s.tooltip.HideNow(r.Context())
	s.mu.Unlock()

	zerolog.Ctx(r.Context()).Debug().
		Int("markers", removed).
		Int("documents", docs).
		Msg("cleared all documents")
	writeJSON(w, r, http.StatusOK, clearAllResponse{Removed: removed, Documents: docs})
}

func (s *Server) hoverHandler(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.document(w, r)
	if !ok {
		return
	}

	var req hoverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.MarkerID == "" {
		writeError(w, r, http.StatusBadRequest, "marker_id is required")
		return
	}

	var pos tooltip.Position
	s.mu.Lock()
	err := doc.Update(func(root *html.Node, _ *highlight.Highlighter) error {
		marker := highlight.FindMarker(root, req.MarkerID)
		if marker == nil {
			return errMarkerNotFound
		}
		if _, err := s.tooltip.Show(r.Context(), marker); err != nil {
			return err
		}
		pos = s.tooltip.Position()
		return nil
	})
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, errMarkerNotFound) {
			writeError(w, r, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, hoverResponse{State: s.tooltip.State().String(), Position: pos})
}

func (s *Server) unhoverHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.document(w, r); !ok {
		return
	}

	var req unhoverRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	s.mu.Lock()
	if req.Immediate {
		s.tooltip.HideNow(r.Context())
	} else {
		s.tooltip.ScheduleHide(r.Context())
	}
	state := s.tooltip.State()
	s.mu.Unlock()
	writeJSON(w, r, http.StatusOK, stateResponse{State: state.String()})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "healthy",
		Documents: s.docs.Len(),
		Tooltip:   s.tooltip.State().String(),
		Cache:     s.cache.Stats(),
	}
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		h, err := s.health.Health(ctx)
		switch {
		case err != nil:
			resp.Status = "degraded"
			resp.Analyzer = &analyzerHealth{Status: "unreachable", Error: err.Error()}
		default:
			resp.Analyzer = &analyzerHealth{Status: h.Status, ModelLoaded: h.ModelLoaded}
			if h.Status != "healthy" || !h.ModelLoaded {
				resp.Status = "degraded"
			}
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) posCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, categoriesResponse{Categories: token.Categories()})
}

func (s *Server) cacheStatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.cache.Stats())
}

func (s *Server) cacheClearHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, purgeResponse{Purged: s.cache.Purge(r.Context())})
}

var (
	errMarkerNotFound = errors.New("marker not found")
	errNoAnalyzer     = errors.New("no analyzer configured")
)

// analyze fetches tokens for a sentence that arrived without any.
func (s *Server) analyze(ctx context.Context, sentence, word string) (token.Analysis, error) {
	if s.analyzer == nil {
		return nil, errNoAnalyzer
	}
	position := strings.Index(sentence, word)
	if position < 0 {
		position = 0
	}
	tokens, err := s.analyzer.Analyze(ctx, sentence, word, position)
	if err != nil {
		return nil, errors.Errorf("analyzing sentence: %w", err)
	}
	return tokens, nil
}

// document resolves the request's document or writes a 404.
func (s *Server) document(w http.ResponseWriter, r *http.Request) (*Document, bool) {
	id := chi.URLParam(r, "documentID")
	doc, ok := s.docs.Get(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "document not found")
		return nil, false
	}
	return doc, true
}

// engineContainer picks the subtree highlight operations run against. Parsed
// documents always have a body; hand-built fragments may not.
func engineContainer(root *html.Node) *html.Node {
	if body := dom.Body(root); body != nil {
		return body
	}
	return root
}
