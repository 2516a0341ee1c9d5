// Package journal connects the search engine to the places journal entries
// actually live. It decodes entries from their stored JSON form and defines
// the Source contract the entry stores implement.
package journal

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer/document"
)

// Source is an authoritative collection of journal entries. Entries returns
// the full current set; the engine reconciles itself against it.
type Source interface {
	Entries(ctx context.Context) ([]document.Record, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]document.Record, error)

func (f SourceFunc) Entries(ctx context.Context) ([]document.Record, error) {
	return f(ctx)
}
