package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSync(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	m.ObserveSync(3, 1, 0)
	m.ObserveSync(0, 1, 2)

	tests := map[string]float64{"add": 3, "update": 2, "remove": 2}
	for op, want := range tests {
		if got := testutil.ToFloat64(m.SyncMutationsTotal.WithLabelValues(op)); got != want {
			t.Errorf("%s = %v, want %v", op, got, want)
		}
	}
}

func TestSetIndexSize(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	m.SetIndexSize(12, 340)
	if got := testutil.ToFloat64(m.IndexedDocuments); got != 12 {
		t.Errorf("documents = %v", got)
	}
	if got := testutil.ToFloat64(m.IndexedTerms); got != 340 {
		t.Errorf("terms = %v", got)
	}
}
