package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/journal-search/pkg/kafka"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (p *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (p *fakePublisher) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestCollectorFlushesFullBatches(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, config.AnalyticsConfig{BufferSize: 16, BatchSize: 3, FlushInterval: time.Hour})
	c.Start(context.Background())

	for i := 0; i < 7; i++ {
		c.Track(NewSearchEvent("dankbar", []string{"dankbar"}, 1, time.Millisecond))
	}
	c.Close()

	if got := pub.total(); got != 7 {
		t.Fatalf("published %d events, want 7", got)
	}
	if len(pub.batches) != 3 || len(pub.batches[0]) != 3 {
		t.Fatalf("batches = %d, first = %d", len(pub.batches), len(pub.batches[0]))
	}
	if pub.batches[0][0].Key != eventKey {
		t.Errorf("key = %q", pub.batches[0][0].Key)
	}

	c.Track(NewSearchEvent("late", nil, 0, 0))
	c.Close()
}

func TestCollectorFlushesOnCancel(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, config.AnalyticsConfig{BatchSize: 100, FlushInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	c.Track(NewSearchEvent("a", nil, 0, 0))
	c.Track(NewSearchEvent("b", nil, 0, 0))
	cancel()
	<-c.done
	if got := pub.total(); got != 2 {
		t.Fatalf("published %d events, want 2", got)
	}
	c.Close()
}

func TestCollectorDropsWhenFull(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	c := NewCollector(pub, config.AnalyticsConfig{BufferSize: 2})
	for i := 0; i < 5; i++ {
		c.Track(NewSearchEvent("x", nil, 0, 0))
	}
	if len(c.eventCh) != 2 {
		t.Fatalf("buffered %d, want 2", len(c.eventCh))
	}
	c.Close()
}

func TestNewSearchEventType(t *testing.T) {
	if e := NewSearchEvent("x", nil, 0, 1500*time.Microsecond); e.Type != EventZeroResult || e.LatencyMicros != 1500 {
		t.Fatalf("event = %+v", e)
	}
	if e := NewSearchEvent("x", nil, 3, 0); e.Type != EventSearch {
		t.Fatalf("event = %+v", e)
	}
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	start := agg.startTime
	agg.now = func() time.Time { return start.Add(2 * time.Minute) }

	agg.Record(SearchEvent{Query: "dankbar", Terms: []string{"dankbar"}, Returned: 2, LatencyMicros: 100, CacheHit: true})
	agg.Record(SearchEvent{Query: "dankbar grenzen", Terms: []string{"dankbar", "grenzen"}, Returned: 1, LatencyMicros: 300})
	agg.Record(SearchEvent{Query: "xyz", Terms: []string{"xyz"}, Returned: 0, LatencyMicros: 200})
	agg.Record(SearchEvent{Query: "xyz", Terms: []string{"xyz"}, Returned: 0, LatencyMicros: 400})

	stats := agg.Stats()
	if stats.TotalSearches != 4 || stats.CacheHits != 1 || stats.CacheMisses != 3 || stats.ZeroResultCount != 2 {
		t.Fatalf("counts = %+v", stats)
	}
	if stats.AvgLatencyMicros != 250 || stats.P50LatencyMicros != 300 || stats.P99LatencyMicros != 400 {
		t.Fatalf("latency = %v/%v/%v", stats.AvgLatencyMicros, stats.P50LatencyMicros, stats.P99LatencyMicros)
	}
	if len(stats.TopTerms) != 3 || stats.TopTerms[0] != (TermCount{"dankbar", 2}) || stats.TopTerms[1] != (TermCount{"xyz", 2}) {
		t.Fatalf("top terms = %+v", stats.TopTerms)
	}
	if len(stats.ZeroResultQueries) != 1 || stats.ZeroResultQueries[0] != (QueryCount{"xyz", 2}) {
		t.Fatalf("zero result queries = %+v", stats.ZeroResultQueries)
	}
	if stats.QueriesPerMinute != 2 {
		t.Fatalf("qpm = %v", stats.QueriesPerMinute)
	}
}

func TestAggregatorLatencyWindow(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < maxLatencySamples+10; i++ {
		agg.Record(SearchEvent{LatencyMicros: int64(i)})
	}
	if len(agg.latencies) != maxLatencySamples {
		t.Fatalf("kept %d samples", len(agg.latencies))
	}
	if agg.latencies[0] != maxLatencySamples {
		t.Fatalf("oldest sample not overwritten: %d", agg.latencies[0])
	}
}

func TestHandleEventAndHandler(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)
	value, _ := json.Marshal(SearchEvent{Query: "see", Terms: []string{"see"}, Returned: 0})
	if err := handle(context.Background(), nil, value); err != nil {
		t.Fatal(err)
	}
	if err := handle(context.Background(), nil, []byte("garbage")); err != nil {
		t.Fatalf("undecodable events should be acknowledged, got %v", err)
	}

	rec := httptest.NewRecorder()
	agg.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	var stats AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalSearches != 1 || stats.ZeroResultCount != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}
