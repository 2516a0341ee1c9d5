package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/journal"
	apperrors "github.com/Adithya-Monish-Kumar-K/journal-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/metrics"
)

type fixture struct {
	feed    *Feed
	engine  *indexer.Engine
	metrics *metrics.Metrics
	source  []document.Record
	fail    bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{engine: indexer.NewEngine(), metrics: metrics.NewWithRegistry(prometheus.NewRegistry())}
	src := journal.SourceFunc(func(context.Context) ([]document.Record, error) {
		if fx.fail {
			return nil, errors.New("source down")
		}
		return fx.source, nil
	})
	fx.feed = New(journal.NewSyncer(src, fx.engine, time.Second, fx.metrics), fx.metrics)
	return fx
}

func (fx *fixture) handle(t *testing.T, msg string) error {
	t.Helper()
	return fx.feed.Handler()(context.Background(), []byte("k"), []byte(msg))
}

func TestUpsertAndDelete(t *testing.T) {
	fx := newFixture(t)
	if err := fx.handle(t, `{"op":"upsert","entry":{"id":"e1","kind":"note","created_at":"2024-06-30T10:00:00Z","text":"Müdigkeit"}}`); err != nil {
		t.Fatal(err)
	}
	if fx.engine.Size() != 1 {
		t.Fatalf("size = %d", fx.engine.Size())
	}
	if err := fx.handle(t, `{"op":"delete","id":"e1"}`); err != nil {
		t.Fatal(err)
	}
	if fx.engine.Size() != 0 || fx.engine.TermCount() != 0 {
		t.Fatalf("size = %d terms = %d", fx.engine.Size(), fx.engine.TermCount())
	}
	if got := testutil.ToFloat64(fx.metrics.FeedEventsTotal.WithLabelValues("upsert", "ok")); got != 1 {
		t.Errorf("upsert ok = %v", got)
	}
}

func TestResync(t *testing.T) {
	fx := newFixture(t)
	fx.engine.Upsert(document.Record{ID: "stale", CreatedAt: time.Now(), Text: "alt"})
	fx.source = []document.Record{{ID: "fresh", Kind: document.KindJournal, CreatedAt: time.Now(), Text: "neu"}}

	if err := fx.handle(t, `{"op":"resync"}`); err != nil {
		t.Fatalf("resync: %v", err)
	}
	snap := fx.engine.Snapshot()
	if fx.engine.Size() != 1 || len(snap) != 1 || snap[0].Term != "neu" {
		t.Fatalf("size = %d snapshot = %+v", fx.engine.Size(), snap)
	}

	fx.fail = true
	if err := fx.handle(t, `{"op":"resync"}`); err == nil {
		t.Fatal("failed resync should be reported so the message is retried")
	}
	if fx.engine.Size() != 1 {
		t.Fatal("failed resync changed the index")
	}
}

func TestRejectedMessagesAreAcknowledged(t *testing.T) {
	fx := newFixture(t)
	for _, msg := range []string{
		`not json`,
		`{"op":"upsert","entry":{"text":"no id"}}`,
		`{"op":"upsert"}`,
		`{"op":"delete"}`,
		`{"op":"compact"}`,
		`{"op":"compact-7f3a"}`,
		`{}`,
	} {
		if err := fx.handle(t, msg); err != nil {
			t.Errorf("%s: err = %v", msg, err)
		}
	}
	if fx.engine.Size() != 0 {
		t.Fatalf("rejected messages changed the index")
	}
	if got := testutil.ToFloat64(fx.metrics.FeedEventsTotal.WithLabelValues("unknown", "rejected")); got != 4 {
		t.Errorf("unknown rejected = %v", got)
	}
	if got := testutil.CollectAndCount(fx.metrics.FeedEventsTotal); got != 3 {
		t.Errorf("feed label sets = %d, want upsert, delete and unknown only", got)
	}
}

type lookupFunc func(ctx context.Context, id string) (document.Record, error)

func (l lookupFunc) Entry(ctx context.Context, id string) (document.Record, error) {
	return l(ctx, id)
}

func TestUpsertByIDUsesLookup(t *testing.T) {
	fx := newFixture(t)
	created := time.Date(2024, 6, 30, 10, 0, 0, 0, time.UTC)
	store := map[string]document.Record{
		"e1": {ID: "e1", Kind: document.KindJournal, CreatedAt: created, Text: "Spaziergang am See"},
	}
	storeDown := false
	fx.feed = New(fx.feed.syncer, fx.metrics, WithLookup(lookupFunc(func(_ context.Context, id string) (document.Record, error) {
		if storeDown {
			return document.Record{}, errors.New("connection reset")
		}
		rec, ok := store[id]
		if !ok {
			return document.Record{}, apperrors.ErrEntryNotFound
		}
		return rec, nil
	})))

	if err := fx.handle(t, `{"op":"upsert","id":"e1"}`); err != nil {
		t.Fatal(err)
	}
	if fx.engine.Size() != 1 {
		t.Fatalf("size = %d", fx.engine.Size())
	}

	storeDown = true
	if err := fx.handle(t, `{"op":"upsert","id":"e1"}`); err == nil {
		t.Fatal("store failure should be returned for redelivery")
	}

	storeDown = false
	delete(store, "e1")
	if err := fx.handle(t, `{"op":"upsert","id":"e1"}`); err != nil {
		t.Fatal(err)
	}
	if fx.engine.Size() != 0 {
		t.Fatalf("vanished entry still indexed, size = %d", fx.engine.Size())
	}

	if err := fx.handle(t, `{"op":"upsert"}`); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(fx.metrics.FeedEventsTotal.WithLabelValues("upsert", "rejected")); got != 1 {
		t.Errorf("upsert rejected = %v", got)
	}
}
