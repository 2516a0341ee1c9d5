package executor

import (
	"log/slog"
	"slices"
	"time"

	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer/normalizer"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/searcher/snippet"
)

const (
	// DefaultLimit caps results when Options.Limit is not positive.
	DefaultLimit = 50

	maxPrefixTerms = 80
)

// Options narrows a search. Zero From or To leave that side of the window
// open; To is exclusive. Both are compared in the executor's location.
type Options struct {
	Limit         int
	Kinds         []document.Kind
	From          time.Time
	To            time.Time
	SnippetLength int
}

// Hit is one ranked search result.
type Hit struct {
	ID           string        `json:"id"`
	Score        float64       `json:"score"`
	Snippet      string        `json:"snippet"`
	Kind         document.Kind `json:"kind"`
	CreatedAt    time.Time     `json:"created_at"`
	MatchedTerms []string      `json:"matched_terms"`
}

type Executor struct {
	engine *indexer.Engine
	now    func() time.Time
	loc    *time.Location
	logger *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock replaces time.Now as the reference for recency.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithLocation sets the zone used for calendar days and date windows.
func WithLocation(loc *time.Location) Option {
	return func(e *Executor) { e.loc = loc }
}

func New(engine *indexer.Engine, opts ...Option) *Executor {
	e := &Executor{
		engine: engine,
		now:    time.Now,
		loc:    time.Local,
		logger: slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location returns the zone date windows are evaluated in.
func (e *Executor) Location() *time.Location {
	return e.loc
}

// Today returns the current calendar day in the executor's location.
// Recency boosts, and so cached rankings, change when it does.
func (e *Executor) Today() string {
	return e.now().In(e.loc).Format(time.DateOnly)
}

// Generation returns the engine's mutation counter.
func (e *Executor) Generation() uint64 {
	return e.engine.Generation()
}

type candidate struct {
	score   float64
	matched []string
}

// Search ranks the indexed documents against query. An empty query or an
// empty index yields an empty, non-nil slice.
func (e *Executor) Search(query string, opts Options) []Hit {
	terms := normalizer.QueryTerms(query)
	if len(terms) == 0 {
		return []Hit{}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var hits []Hit
	var candidates int
	e.engine.View(func(r indexer.Reader) {
		hits, candidates = e.search(r, terms, opts, limit)
	})
	e.logger.Debug("query executed",
		"query", query,
		"terms", terms,
		"candidates", candidates,
		"results", len(hits),
	)
	return hits
}

func (e *Executor) search(r indexer.Reader, terms []string, opts Options, limit int) ([]Hit, int) {
	n := r.DocCount()
	if n == 0 {
		return []Hit{}, 0
	}

	candidates := make(map[string]*candidate)
	credit := func(docID string, weight float64, term string) {
		c, ok := candidates[docID]
		if !ok {
			c = &candidate{}
			candidates[docID] = c
		}
		c.score += weight
		if len(c.matched) == 0 || c.matched[len(c.matched)-1] != term {
			c.matched = append(c.matched, term)
		}
	}

	for _, term := range terms {
		exact, hasExact := r.Lookup(term)
		for docID, tf := range exact {
			credit(docID, ranker.TermWeight(tf, len(exact), n), term)
		}
		scanLimit := maxPrefixTerms
		if hasExact {
			scanLimit++
		}
		var expanded []expansion
		r.PrefixScan(term, scanLimit, func(t string, docs map[string]int) {
			if t != term {
				expanded = append(expanded, expansion{term: t, docs: docs})
			}
		})
		for _, w := range prefixWeights(r, expanded, exact, n) {
			credit(w.docID, ranker.PrefixPenalty*w.weight, term)
		}
	}
	if len(candidates) == 0 {
		return []Hit{}, 0
	}

	now := e.now()
	scored := make([]ranker.ScoredDoc, 0, len(candidates))
	for docID, c := range candidates {
		doc, ok := r.Document(docID)
		if !ok || !e.accept(doc, opts) {
			continue
		}
		score := c.score *
			ranker.RecencyBoost(doc.CreatedAt, now, e.loc) *
			ranker.KindBoost(doc.Kind)
		scored = append(scored, ranker.ScoredDoc{
			DocID:     docID,
			Score:     score,
			CreatedAt: doc.CreatedAt,
		})
	}
	ranker.Sort(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}

	hits := make([]Hit, 0, len(scored))
	for _, s := range scored {
		doc, _ := r.Document(s.DocID)
		matched := candidates[s.DocID].matched
		hits = append(hits, Hit{
			ID:           doc.ID,
			Score:        s.Score,
			Snippet:      snippet.Build(doc, matched, opts.SnippetLength),
			Kind:         doc.Kind,
			CreatedAt:    doc.CreatedAt,
			MatchedTerms: matched,
		})
	}
	return hits, len(candidates)
}

type expansion struct {
	term string
	docs map[string]int
}

type wordWeight struct {
	docID  string
	weight float64
}

// prefixWeights scores the documents reached by a query term's expansions,
// skipping those that matched the term exactly. Distinct words add up, but
// the spellings of one word in a document (a primary term and its stripped
// form) are weighted once: with the larger frequency and with the number of
// documents holding either spelling.
func prefixWeights(r indexer.Reader, expanded []expansion, exact map[string]int, n int) []wordWeight {
	type word struct{ docID, term string }
	var order []word
	spellings := make(map[word][]int)
	for i, e := range expanded {
		for docID := range e.docs {
			if _, matched := exact[docID]; matched {
				continue
			}
			w := word{docID: docID, term: e.term}
			if doc, ok := r.Document(docID); ok {
				if primary, alt := doc.Spellings[e.term]; alt {
					w.term = primary
				}
			}
			if _, seen := spellings[w]; !seen {
				order = append(order, w)
			}
			spellings[w] = append(spellings[w], i)
		}
	}

	weights := make([]wordWeight, 0, len(order))
	for _, w := range order {
		idx := spellings[w]
		tf, df := 0, len(expanded[idx[0]].docs)
		for _, i := range idx {
			tf = max(tf, expanded[i].docs[w.docID])
		}
		if len(idx) > 1 {
			holders := make(map[string]struct{})
			for _, i := range idx {
				for docID := range expanded[i].docs {
					holders[docID] = struct{}{}
				}
			}
			df = len(holders)
		}
		weights = append(weights, wordWeight{docID: w.docID, weight: ranker.TermWeight(tf, df, n)})
	}
	return weights
}

// accept applies the kind filter and the [From, To) window.
func (e *Executor) accept(doc *document.Document, opts Options) bool {
	if len(opts.Kinds) > 0 && !slices.Contains(opts.Kinds, doc.Kind) {
		return false
	}
	local := doc.CreatedAt.In(e.loc)
	if !opts.From.IsZero() && local.Before(opts.From) {
		return false
	}
	if !opts.To.IsZero() && !local.Before(opts.To) {
		return false
	}
	return true
}
