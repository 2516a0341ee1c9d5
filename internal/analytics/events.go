package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
)

// SearchEvent describes one answered search request.
type SearchEvent struct {
	Type          EventType `json:"type"`
	Query         string    `json:"query"`
	Terms         []string  `json:"terms"`
	Kinds         []string  `json:"kinds,omitempty"`
	Returned      int       `json:"returned"`
	LatencyMicros int64     `json:"latency_us"`
	CacheHit      bool      `json:"cache_hit"`
	Generation    uint64    `json:"generation"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id,omitempty"`
}

// NewSearchEvent fills in the type from the result count.
func NewSearchEvent(query string, terms []string, returned int, latency time.Duration) SearchEvent {
	typ := EventSearch
	if returned == 0 {
		typ = EventZeroResult
	}
	return SearchEvent{
		Type:          typ,
		Query:         query,
		Terms:         terms,
		Returned:      returned,
		LatencyMicros: latency.Microseconds(),
		Timestamp:     time.Now().UTC(),
	}
}
