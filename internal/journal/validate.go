package journal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer/document"
)

const (
	maxIDLength   = 255
	maxTextLength = 1 << 20
)

var knownKinds = []document.Kind{
	document.KindJournal,
	document.KindReflection,
	document.KindStory,
	document.KindNote,
}

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// Validate checks an entry before it is written to a store. The engine
// itself indexes whatever it is given; this guards what users can create.
func Validate(rec document.Record) error {
	errs := make(map[string]string)

	switch {
	case strings.TrimSpace(rec.ID) == "":
		errs["id"] = "id is required"
	case len(rec.ID) > maxIDLength:
		errs["id"] = fmt.Sprintf("id must be at most %d bytes", maxIDLength)
	}
	if !isKnownKind(rec.Kind) {
		errs["kind"] = fmt.Sprintf("kind must be one of %v", knownKinds)
	}
	if rec.CreatedAt.IsZero() {
		errs["created_at"] = "created_at is required"
	}
	if strings.TrimSpace(rec.Text) == "" && strings.TrimSpace(rec.Label) == "" && strings.TrimSpace(rec.Prompt) == "" {
		errs["text"] = "an entry needs text, a label, or a prompt"
	} else if len(rec.Text) > maxTextLength {
		errs["text"] = fmt.Sprintf("text must be at most %d bytes", maxTextLength)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func isKnownKind(k document.Kind) bool {
	for _, known := range knownKinds {
		if k == known {
			return true
		}
	}
	return false
}
