// Package indexer keeps the in-memory journal index in step with the
// authoritative entry collection. It owns the document map and the postings
// store; the searcher reads both through View.
package indexer

import (
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer/index"
)

// SyncStats summarises one SyncFrom call.
type SyncStats struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Removed   int `json:"removed"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
}

// Mutations returns the number of documents that were written or dropped.
func (s SyncStats) Mutations() int {
	return s.Added + s.Updated + s.Removed
}

// Reader is the read-only view handed to View callbacks.
type Reader interface {
	DocCount() int
	Document(id string) (*document.Document, bool)
	Lookup(term string) (map[string]int, bool)
	DocFreq(term string) int
	PrefixScan(prefix string, limit int, fn func(term string, docs map[string]int))
}

// Engine is the journal index. All methods are safe for concurrent use.
type Engine struct {
	mu         sync.RWMutex
	docs       map[string]*document.Document
	postings   *index.Postings
	generation uint64
	logger     *slog.Logger
}

func NewEngine() *Engine {
	return &Engine{
		docs:     make(map[string]*document.Document),
		postings: index.NewPostings(),
		logger:   slog.Default().With("component", "indexer"),
	}
}

// SyncFrom reconciles the index with records, the complete authoritative
// collection. Indexed documents missing from records are removed, changed
// ones are re-indexed and unchanged ones are left alone. Records without an
// ID are skipped.
func (e *Engine) SyncFrom(records []document.Record) SyncStats {
	var stats SyncStats
	incoming := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if rec.ID != "" {
			incoming[rec.ID] = struct{}{}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for id := range e.docs {
		if _, keep := incoming[id]; !keep {
			e.removeLocked(id)
			stats.Removed++
		}
	}
	for _, rec := range records {
		if rec.ID == "" {
			stats.Skipped++
			continue
		}
		prev, exists := e.docs[rec.ID]
		switch {
		case !exists:
			e.insertLocked(rec)
			stats.Added++
		case prev.SameSource(rec):
			stats.Unchanged++
		default:
			e.removeLocked(rec.ID)
			e.insertLocked(rec)
			stats.Updated++
		}
	}

	if stats.Mutations() > 0 || stats.Skipped > 0 {
		e.logger.Info("index synced",
			"added", stats.Added,
			"updated", stats.Updated,
			"removed", stats.Removed,
			"unchanged", stats.Unchanged,
			"skipped", stats.Skipped,
			"docs", len(e.docs),
			"terms", e.postings.Len(),
		)
	}
	return stats
}

// Upsert indexes a single record, replacing any previous version. It reports
// whether the index changed.
func (e *Engine) Upsert(rec document.Record) bool {
	if rec.ID == "" {
		e.logger.Debug("skipping record without id")
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if prev, exists := e.docs[rec.ID]; exists {
		if prev.SameSource(rec) {
			return false
		}
		e.removeLocked(rec.ID)
	}
	e.insertLocked(rec)
	e.logger.Debug("document upserted", "doc_id", rec.ID, "docs", len(e.docs))
	return true
}

// RemoveByID drops a document. It reports whether the document was indexed.
func (e *Engine) RemoveByID(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.docs[id]; !exists {
		return false
	}
	e.removeLocked(id)
	e.logger.Debug("document removed", "doc_id", id, "docs", len(e.docs))
	return true
}

// Clear empties the index.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docs = make(map[string]*document.Document)
	e.postings.Reset()
	e.generation++
	e.logger.Info("index cleared")
}

// Size returns the number of indexed documents.
func (e *Engine) Size() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.docs)
}

// TermCount returns the number of distinct indexed terms.
func (e *Engine) TermCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.postings.Len()
}

// Generation is incremented by every mutation of the index. Equal
// generations imply identical index contents.
func (e *Engine) Generation() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

// Snapshot returns the postings store sorted by term.
func (e *Engine) Snapshot() []index.TermEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.postings.Snapshot()
}

// View runs fn with a consistent read-only view of the index. fn must not
// retain the Reader or call back into the Engine's mutating methods.
func (e *Engine) View(fn func(r Reader)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(reader{e})
}

func (e *Engine) insertLocked(rec document.Record) {
	doc := document.New(rec)
	e.docs[doc.ID] = doc
	e.postings.Add(doc.ID, doc.TermFrequencies)
	e.generation++
}

func (e *Engine) removeLocked(id string) {
	doc, exists := e.docs[id]
	if !exists {
		return
	}
	e.postings.Remove(id, doc.TermFrequencies)
	delete(e.docs, id)
	e.generation++
}

type reader struct {
	e *Engine
}

func (r reader) DocCount() int { return len(r.e.docs) }

func (r reader) Document(id string) (*document.Document, bool) {
	doc, ok := r.e.docs[id]
	return doc, ok
}

func (r reader) Lookup(term string) (map[string]int, bool) { return r.e.postings.Lookup(term) }

func (r reader) DocFreq(term string) int { return r.e.postings.DocFreq(term) }

func (r reader) PrefixScan(prefix string, limit int, fn func(string, map[string]int)) {
	r.e.postings.PrefixScan(prefix, limit, fn)
}
