package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/net/html"

	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/dom"
	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/highlight"
)

// Document is one live HTML tree held in memory, mutated in place by
// highlight and hover operations. All access goes through Update so tree
// mutations serialize per document: a clear always completes before the next
// highlight touches the same tree.
type Document struct {
	ID      string
	Created time.Time

	mu          sync.Mutex
	root        *html.Node
	highlighter *highlight.Highlighter
}

// Update runs fn with exclusive access to the document's tree and
// highlighter.
func (d *Document) Update(fn func(root *html.Node, h *highlight.Highlighter) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d.root, d.highlighter)
}

// Render serializes the document's current state.
func (d *Document) Render() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return dom.Render(d.root)
}

// DocumentStore holds the open documents, keyed by their generated ids.
type DocumentStore struct {
	docs sync.Map
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{}
}

// Open parses source and stores it as a fresh document.
func (s *DocumentStore) Open(ctx context.Context, source string) (*Document, error) {
	root, err := dom.ParseString(source)
	if err != nil {
		return nil, errors.Errorf("opening document: %w", err)
	}
	doc := &Document{
		ID:          xid.New().String(),
		Created:     time.Now(),
		root:        root,
		highlighter: highlight.NewHighlighter(),
	}
	s.docs.Store(doc.ID, doc)
	zerolog.Ctx(ctx).Debug().
		Str("document", doc.ID).
		Int("bytes", len(source)).
		Msg("document opened")
	return doc, nil
}

// Get returns the document with the given id.
func (s *DocumentStore) Get(id string) (*Document, bool) {
	v, ok := s.docs.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Document), true
}

// Delete removes the document. Reports whether it existed.
func (s *DocumentStore) Delete(ctx context.Context, id string) bool {
	_, ok := s.docs.LoadAndDelete(id)
	if ok {
		zerolog.Ctx(ctx).Debug().Str("document", id).Msg("document deleted")
	}
	return ok
}

// Range calls fn for every open document until fn returns false.
func (s *DocumentStore) Range(fn func(*Document) bool) {
	s.docs.Range(func(_, v any) bool {
		return fn(v.(*Document))
	})
}

// Len counts the open documents.
func (s *DocumentStore) Len() int {
	n := 0
	s.docs.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
