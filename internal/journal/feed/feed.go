// Package feed applies entry mutation notifications from Kafka to the
// in-memory index.
//
// Messages are JSON objects with an op field:
//
//	{"op":"upsert","entry":{"id":"...","created_at":"...","text":"..."}}
//	{"op":"upsert","id":"..."}        (entry fetched through the Lookup)
//	{"op":"delete","id":"..."}
//	{"op":"resync"}
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/journal"
	apperrors "github.com/Adithya-Monish-Kumar-K/journal-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/metrics"
)

const (
	OpUpsert = "upsert"
	OpDelete = "delete"
	OpResync = "resync"
)

// Lookup loads a single entry from the authoritative store.
type Lookup interface {
	Entry(ctx context.Context, id string) (document.Record, error)
}

// Feed dispatches mutation messages to a journal.Syncer.
type Feed struct {
	syncer  *journal.Syncer
	lookup  Lookup
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Feed.
type Option func(*Feed)

// WithLookup lets upserts name only an id; the entry is then read from l.
func WithLookup(l Lookup) Option {
	return func(f *Feed) { f.lookup = l }
}

// New creates a Feed; m may be nil.
func New(syncer *journal.Syncer, m *metrics.Metrics, opts ...Option) *Feed {
	f := &Feed{
		syncer:  syncer,
		metrics: m,
		logger:  slog.Default().With("component", "entry-feed"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Handler returns the Kafka callback for the mutation topic.
func (f *Feed) Handler() kafka.MessageHandler {
	return f.Handle
}

// Handle applies one message. Messages that cannot be understood are logged
// and acknowledged, since redelivering them cannot help. Only a failed
// resync is returned as an error.
func (f *Feed) Handle(ctx context.Context, key, value []byte) error {
	if !gjson.ValidBytes(value) {
		f.reject("unknown", "malformed json", key)
		return nil
	}
	msg := gjson.ParseBytes(value)
	op := msg.Get("op").String()

	switch op {
	case OpUpsert:
		if entry := msg.Get("entry"); !entry.Exists() && f.lookup != nil {
			return f.refresh(ctx, msg.Get("id").String(), key)
		}
		rec, err := journal.DecodeRecordResult(msg.Get("entry"))
		if err != nil {
			f.reject(op, err.Error(), key)
			return nil
		}
		changed := f.syncer.Upsert(rec)
		f.count(op, "ok")
		f.logger.Debug("entry upserted", "id", rec.ID, "changed", changed)
	case OpDelete:
		id := msg.Get("id").String()
		if id == "" {
			f.reject(op, "missing id", key)
			return nil
		}
		removed := f.syncer.Remove(id)
		f.count(op, "ok")
		f.logger.Debug("entry deleted", "id", id, "removed", removed)
	case OpResync:
		stats, err := f.syncer.Resync(ctx)
		if err != nil {
			f.count(op, "error")
			return fmt.Errorf("feed resync: %w", err)
		}
		f.count(op, "ok")
		f.logger.Info("resync requested by feed",
			"added", stats.Added,
			"updated", stats.Updated,
			"removed", stats.Removed,
		)
	default:
		f.reject(op, "unknown op", key)
	}
	return nil
}

// refresh re-reads one entry from the store. An entry that no longer exists
// is removed from the index; a failing store is returned for redelivery.
func (f *Feed) refresh(ctx context.Context, id string, key []byte) error {
	if id == "" {
		f.reject(OpUpsert, "missing id", key)
		return nil
	}
	rec, err := f.lookup.Entry(ctx, id)
	switch {
	case errors.Is(err, apperrors.ErrEntryNotFound):
		removed := f.syncer.Remove(id)
		f.count(OpUpsert, "ok")
		f.logger.Debug("upserted entry no longer exists", "id", id, "removed", removed)
		return nil
	case err != nil:
		f.count(OpUpsert, "error")
		return fmt.Errorf("loading entry %s: %w", id, err)
	}
	changed := f.syncer.Upsert(rec)
	f.count(OpUpsert, "ok")
	f.logger.Debug("entry refreshed", "id", id, "changed", changed)
	return nil
}

func (f *Feed) reject(op, reason string, key []byte) {
	f.count(op, "rejected")
	f.logger.Warn("dropping feed message", "op", op, "reason", reason, "key", string(key))
}

func (f *Feed) count(op, status string) {
	if f.metrics == nil {
		return
	}
	switch op {
	case OpUpsert, OpDelete, OpResync:
	default:
		op = "unknown"
	}
	f.metrics.FeedEventsTotal.WithLabelValues(op, status).Inc()
}
