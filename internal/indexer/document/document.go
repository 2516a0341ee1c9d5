// Package document defines the source records supplied by the journal store
// and the indexed representation the engine keeps for each of them.
package document

import (
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer/normalizer"
)

// Kind is the category of a journal entry.
type Kind string

const (
	KindJournal    Kind = "journal"
	KindReflection Kind = "reflection"
	KindStory      Kind = "story"
	KindNote       Kind = "note"
)

// ParseKind maps a kind name as stored or requested to a Kind. Names are
// case-insensitive and an empty name means a journal entry.
func ParseKind(name string) Kind {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return KindJournal
	}
	return Kind(name)
}

// Record is one entry as the journal store hands it over. Label and Prompt
// are optional and empty when absent.
type Record struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	Text      string    `json:"text"`
	Label     string    `json:"label,omitempty"`
	Prompt    string    `json:"prompt,omitempty"`
}

// Document is the indexed form of a Record.
type Document struct {
	ID              string
	Kind            Kind
	CreatedAt       time.Time
	RawText         string
	Label           string
	Prompt          string
	FullText        string
	NormalizedText  string
	TermFrequencies map[string]int
	// Spellings maps each stripped spelling in TermFrequencies to the
	// primary term it was derived from.
	Spellings map[string]string
}

// New builds the indexed form of rec. CreatedAt is stored in UTC.
func New(rec Record) *Document {
	full := joinNonEmpty(rec.Text, rec.Label, rec.Prompt)
	return &Document{
		ID:              rec.ID,
		Kind:            rec.Kind,
		CreatedAt:       rec.CreatedAt.UTC(),
		RawText:         rec.Text,
		Label:           rec.Label,
		Prompt:          rec.Prompt,
		FullText:        full,
		NormalizedText:  normalizer.Normalize(full),
		TermFrequencies: normalizer.TermFrequencies(full),
		Spellings:       normalizer.Spellings(full),
	}
}

// SameSource reports whether rec carries exactly the fields d was built
// from. Only then can re-indexing be skipped.
func (d *Document) SameSource(rec Record) bool {
	return d.Kind == rec.Kind &&
		d.CreatedAt.Equal(rec.CreatedAt) &&
		d.RawText == rec.Text &&
		d.Label == rec.Label &&
		d.Prompt == rec.Prompt
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
