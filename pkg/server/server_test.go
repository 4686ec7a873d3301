package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/analysis"
	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/server"
	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/token"
	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/tooltip"
)

const aufstehenSentence = "Ich stehe um 7 Uhr auf."

func aufstehenTokens() token.Analysis {
	return token.Analysis{
		{Text: "Ich", POS: token.Pronoun, Lemma: "ich", Start: 0, End: 3},
		{
			Text: "stehe", POS: token.Verb, Lemma: "aufstehen", Start: 4, End: 9,
			IsSeparable:    true,
			SeparableParts: []string{"auf", "stehen"},
			PairedWith:     []int{19},
		},
		{Text: "um", POS: token.Adposition, Lemma: "um", Start: 10, End: 12},
		{Text: "7", POS: token.Numeral, Lemma: "7", Start: 13, End: 14},
		{Text: "Uhr", POS: token.Noun, Lemma: "Uhr", Start: 15, End: 18},
		{
			Text: "auf", POS: token.VerbParticle, Lemma: "auf", Start: 19, End: 22,
			IsSeparable: true,
			PairedWith:  []int{4},
		},
		{Text: ".", POS: token.Punctuation, Lemma: ".", Start: 22, End: 23},
	}
}

// fakeClock hands out timers that only fire when the test says so.
type fakeClock struct {
	timers []*fakeTimer
}

type fakeTimer struct {
	fn      func()
	stopped bool
}

func (c *fakeClock) AfterFunc(_ time.Duration, fn func()) tooltip.Timer {
	t := &fakeTimer{fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	was := t.stopped
	t.stopped = true
	return !was
}

// fire runs the most recent timer that was not stopped.
func (c *fakeClock) fire() {
	for i := len(c.timers) - 1; i >= 0; i-- {
		if !c.timers[i].stopped {
			c.timers[i].stopped = true
			c.timers[i].fn()
			return
		}
	}
}

func newTestServer(opts server.Options) (*server.Server, http.Handler) {
	if opts.Clock == nil {
		opts.Clock = &fakeClock{}
	}
	s := server.New(opts)
	return s, s.Router()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "body: %s", rec.Body.String())
}

func openDocument(t *testing.T, h http.Handler, source string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/documents", map[string]string{"html": source})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	var doc struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &doc)
	require.NotEmpty(t, doc.ID)
	return doc.ID
}

func getDocument(t *testing.T, h http.Handler, id string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodGet, "/api/v1/documents/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

type highlightBody struct {
	Offset  int `json:"offset"`
	Markers []struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		Lemma     string `json:"lemma"`
		Separable bool   `json:"separable"`
	} `json:"markers"`
	Fragments []struct {
		Text    string `json:"text"`
		Outcome string `json:"outcome"`
	} `json:"fragments"`
}

func TestOpenAndGetDocument(t *testing.T) {
	_, h := newTestServer(server.Options{})

	id := openDocument(t, h, "<html><body><p>Ich stehe um 7 Uhr auf.</p></body></html>")
	rendered := getDocument(t, h, id)
	assert.Contains(t, rendered, "Ich stehe um 7 Uhr auf.")
	assert.Equal(t, "text/html; charset=utf-8",
		doJSON(t, h, http.MethodGet, "/api/v1/documents/"+id, nil).Header().Get("Content-Type"))

	rec := doJSON(t, h, http.MethodGet, "/api/v1/documents/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpenDocumentRequiresHTML(t *testing.T) {
	_, h := newTestServer(server.Options{})

	rec := doJSON(t, h, http.MethodPost, "/api/v1/documents", map[string]string{"html": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHighlightLifecycle(t *testing.T) {
	clock := &fakeClock{}
	_, h := newTestServer(server.Options{Clock: clock})

	id := openDocument(t, h, "<html><body><p>Ich stehe um 7 Uhr auf.</p></body></html>")
	baseline := getDocument(t, h, id)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/documents/"+id+"/highlight", map[string]any{
		"sentence":    aufstehenSentence,
		"target_word": "stehe",
		"tokens":      aufstehenTokens(),
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var body highlightBody
	decodeBody(t, rec, &body)
	assert.Equal(t, 0, body.Offset)
	require.Len(t, body.Markers, 2)
	assert.Equal(t, "stehe", body.Markers[0].Text)
	assert.Equal(t, "auf", body.Markers[1].Text)
	assert.Equal(t, "aufstehen", body.Markers[0].Lemma)
	assert.True(t, body.Markers[0].Separable)
	require.Len(t, body.Fragments, 2)
	assert.Equal(t, "direct", body.Fragments[0].Outcome)

	rendered := getDocument(t, h, id)
	assert.Contains(t, rendered, "deutsch-spectrum-highlight")
	assert.Contains(t, rendered, `data-ds-lemma="aufstehen"`)

	// hover the verb marker: tooltip appears in the document
	rec = doJSON(t, h, http.MethodPost, "/api/v1/documents/"+id+"/hover", map[string]string{
		"marker_id": body.Markers[0].ID,
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	var hover struct {
		State    string `json:"state"`
		Position struct {
			X int `json:"x"`
			Y int `json:"y"`
		} `json:"position"`
	}
	decodeBody(t, rec, &hover)
	assert.Equal(t, "visible", hover.State)
	assert.Contains(t, getDocument(t, h, id), tooltip.ID)

	// unhover debounces, firing the timer removes the tooltip
	rec = doJSON(t, h, http.MethodPost, "/api/v1/documents/"+id+"/unhover", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state struct {
		State string `json:"state"`
	}
	decodeBody(t, rec, &state)
	assert.Equal(t, "pending-hide", state.State)
	assert.Contains(t, getDocument(t, h, id), tooltip.ID)

	clock.fire()
	assert.NotContains(t, getDocument(t, h, id), tooltip.ID)

	// clear restores the exact original document
	rec = doJSON(t, h, http.MethodPost, "/api/v1/documents/"+id+"/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cleared struct {
		Removed int `json:"removed"`
	}
	decodeBody(t, rec, &cleared)
	assert.Equal(t, 2, cleared.Removed)
	assert.Equal(t, baseline, getDocument(t, h, id))
}

func TestHighlightErrors(t *testing.T) {
	_, h := newTestServer(server.Options{})
	id := openDocument(t, h, "<html><body><p>Ganz anderer Text.</p></body></html>")

	tests := []struct {
		name string
		req  map[string]any
		code int
	}{
		{
			name: "sentence not in document",
			req: map[string]any{
				"sentence":    aufstehenSentence,
				"target_word": "stehe",
				"tokens":      aufstehenTokens(),
			},
			code: http.StatusUnprocessableEntity,
		},
		{
			name: "word not in tokens",
			req: map[string]any{
				"sentence":    "Ganz anderer Text.",
				"target_word": "fehlt",
				"tokens":      aufstehenTokens(),
			},
			code: http.StatusUnprocessableEntity,
		},
		{
			name: "missing fields",
			req:  map[string]any{"sentence": ""},
			code: http.StatusBadRequest,
		},
		{
			name: "no analyzer for token-less request",
			req: map[string]any{
				"sentence":    "Ganz anderer Text.",
				"target_word": "Text",
			},
			code: http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/v1/documents/"+id+"/highlight", tt.req)
			assert.Equal(t, tt.code, rec.Code, "body: %s", rec.Body.String())
		})
	}

	rec := doJSON(t, h, http.MethodPost, "/api/v1/documents/nope/highlight", map[string]any{
		"sentence": "x", "target_word": "x",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHighlightThroughAnalyzer(t *testing.T) {
	var calls atomic.Int32
	analyzer := analysis.AnalyzerFunc(func(_ context.Context, text, word string, pos int) (token.Analysis, error) {
		calls.Add(1)
		if text != aufstehenSentence {
			return nil, fmt.Errorf("unexpected sentence %q", text)
		}
		return aufstehenTokens(), nil
	})
	_, h := newTestServer(server.Options{Analyzer: analyzer})

	id := openDocument(t, h, "<html><body><p>Ich stehe um 7 Uhr auf.</p></body></html>")

	for i := 0; i < 2; i++ {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/documents/"+id+"/highlight", map[string]any{
			"sentence":    aufstehenSentence,
			"target_word": "stehe",
		})
		require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	}

	// second request is served from the analysis cache
	assert.Equal(t, int32(1), calls.Load())

	var stats struct {
		Entries int   `json:"entries"`
		Hits    int64 `json:"hits"`
		Misses  int64 `json:"misses"`
	}
	rec := doJSON(t, h, http.MethodGet, "/api/v1/cache/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &stats)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/cache/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var purged struct {
		Purged int `json:"purged"`
	}
	decodeBody(t, rec, &purged)
	assert.Equal(t, 1, purged.Purged)
}

func TestClearAllAcrossDocuments(t *testing.T) {
	_, h := newTestServer(server.Options{})

	first := openDocument(t, h, "<html><body><p>Ich stehe um 7 Uhr auf.</p></body></html>")
	second := openDocument(t, h, "<html><body><div>Ich stehe um 7 Uhr auf.</div></body></html>")
	for _, id := range []string{first, second} {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/documents/"+id+"/highlight", map[string]any{
			"sentence":    aufstehenSentence,
			"target_word": "stehe",
			"tokens":      aufstehenTokens(),
		})
		require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	}

	rec := doJSON(t, h, http.MethodPost, "/api/v1/clear-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Removed   int `json:"removed"`
		Documents int `json:"documents"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, 4, resp.Removed)
	assert.Equal(t, 2, resp.Documents)

	for _, id := range []string{first, second} {
		assert.NotContains(t, getDocument(t, h, id), "deutsch-spectrum-highlight")
	}
}

func TestHoverUnknownMarker(t *testing.T) {
	_, h := newTestServer(server.Options{})
	id := openDocument(t, h, "<html><body><p>Text.</p></body></html>")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/documents/"+id+"/hover", map[string]string{
		"marker_id": "does-not-exist",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteDocumentHidesItsTooltip(t *testing.T) {
	s, h := newTestServer(server.Options{})

	id := openDocument(t, h, "<html><body><p>Ich stehe um 7 Uhr auf.</p></body></html>")
	rec := doJSON(t, h, http.MethodPost, "/api/v1/documents/"+id+"/highlight", map[string]any{
		"sentence":    aufstehenSentence,
		"target_word": "stehe",
		"tokens":      aufstehenTokens(),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var body highlightBody
	decodeBody(t, rec, &body)
	require.NotEmpty(t, body.Markers)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/documents/"+id+"/hover", map[string]string{
		"marker_id": body.Markers[0].ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, tooltip.StateVisible, s.Tooltip().State())

	rec = doJSON(t, h, http.MethodDelete, "/api/v1/documents/"+id, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, tooltip.StateIdle, s.Tooltip().State())

	rec = doJSON(t, h, http.MethodDelete, "/api/v1/documents/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	t.Run("no analyzer", func(t *testing.T) {
		_, h := newTestServer(server.Options{})
		rec := doJSON(t, h, http.MethodGet, "/api/v1/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Status    string `json:"status"`
			Documents int    `json:"documents"`
			Tooltip   string `json:"tooltip"`
		}
		decodeBody(t, rec, &resp)
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, 0, resp.Documents)
		assert.Equal(t, "idle", resp.Tooltip)
	})

	t.Run("analyzer degraded", func(t *testing.T) {
		_, h := newTestServer(server.Options{
			Health: fakeHealth{err: fmt.Errorf("connection refused")},
		})
		rec := doJSON(t, h, http.MethodGet, "/api/v1/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Status   string `json:"status"`
			Analyzer struct {
				Status string `json:"status"`
				Error  string `json:"error"`
			} `json:"analyzer"`
		}
		decodeBody(t, rec, &resp)
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "unreachable", resp.Analyzer.Status)
	})

	t.Run("analyzer healthy", func(t *testing.T) {
		_, h := newTestServer(server.Options{
			Health: fakeHealth{health: analysis.Health{Status: "healthy", ModelLoaded: true}},
		})
		rec := doJSON(t, h, http.MethodGet, "/api/v1/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Status string `json:"status"`
		}
		decodeBody(t, rec, &resp)
		assert.Equal(t, "healthy", resp.Status)
	})
}

type fakeHealth struct {
	health analysis.Health
	err    error
}

func (f fakeHealth) Health(context.Context) (analysis.Health, error) {
	return f.health, f.err
}

func TestPOSCategories(t *testing.T) {
	_, h := newTestServer(server.Options{})

	rec := doJSON(t, h, http.MethodGet, "/api/v1/pos-categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Categories []struct {
			POS   string `json:"pos"`
			Label string `json:"label"`
			Color string `json:"color"`
		} `json:"categories"`
	}
	decodeBody(t, rec, &resp)
	require.NotEmpty(t, resp.Categories)

	found := false
	for _, c := range resp.Categories {
		if c.POS == string(token.Verb) {
			found = true
			assert.Equal(t, "Verb", c.Label)
			assert.NotEmpty(t, c.Color)
		}
	}
	assert.True(t, found, "verb category missing")
}

func TestCORSPreflight(t *testing.T) {
	_, h := newTestServer(server.Options{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/documents", nil)
	req.Header.Set("Origin", "chrome-extension://abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "POST"))
}
