package journal

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/journal-search/pkg/errors"
)

var recordFields = []string{"id", "kind", "created_at", "text", "label", "prompt"}

// DecodeRecord reads one entry from JSON. It is lenient about shape: numeric
// ids are accepted, created_at may be RFC 3339 or unix seconds, a missing
// kind means journal, and aux fields that are null or absent become empty.
// A missing id or timestamp is ErrInvalidInput.
func DecodeRecord(data []byte) (document.Record, error) {
	if !gjson.ValidBytes(data) {
		return document.Record{}, fmt.Errorf("%w: malformed entry json", apperrors.ErrInvalidInput)
	}
	fields := gjson.GetManyBytes(data, recordFields...)
	return recordFrom(fields[0], fields[1], fields[2], fields[3], fields[4], fields[5])
}

// DecodeRecordResult decodes an entry embedded in a larger document.
func DecodeRecordResult(entry gjson.Result) (document.Record, error) {
	if !entry.IsObject() {
		return document.Record{}, fmt.Errorf("%w: entry is not an object", apperrors.ErrInvalidInput)
	}
	return recordFrom(
		entry.Get("id"), entry.Get("kind"), entry.Get("created_at"),
		entry.Get("text"), entry.Get("label"), entry.Get("prompt"),
	)
}

func recordFrom(id, kind, created, text, label, prompt gjson.Result) (document.Record, error) {
	rec := document.Record{
		ID:     scalar(id),
		Kind:   document.ParseKind(scalar(kind)),
		Text:   scalar(text),
		Label:  scalar(label),
		Prompt: scalar(prompt),
	}
	if rec.ID == "" {
		return document.Record{}, fmt.Errorf("%w: entry without id", apperrors.ErrInvalidInput)
	}
	ts, err := timestamp(created)
	if err != nil {
		return document.Record{}, fmt.Errorf("entry %s: %w", rec.ID, err)
	}
	rec.CreatedAt = ts
	return rec, nil
}

// EncodeRecord writes rec in the shape DecodeRecord reads.
func EncodeRecord(rec document.Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding entry %s: %w", rec.ID, err)
	}
	return data, nil
}

func scalar(r gjson.Result) string {
	switch r.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return r.Str
	default:
		return r.Raw
	}
}

func timestamp(r gjson.Result) (time.Time, error) {
	switch r.Type {
	case gjson.String:
		ts, err := time.Parse(time.RFC3339Nano, r.Str)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: created_at %q: %v", apperrors.ErrInvalidInput, r.Str, err)
		}
		return ts, nil
	case gjson.Number:
		sec, frac := math.Modf(r.Float())
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("%w: missing created_at", apperrors.ErrInvalidInput)
	}
}
