package ranker

import (
	"math"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer/document"
)

const (
	// PrefixPenalty scales the weight of terms reached by prefix expansion.
	PrefixPenalty = 0.66
	// RecencyWeight is the boost a same-day entry receives.
	RecencyWeight = 0.30
	// RecencyWindowDays is the age at which the recency boost reaches zero.
	RecencyWindowDays = 30
	// ReflectionBoost favours reflections over every other kind.
	ReflectionBoost = 1.05
)

// ScoredDoc is a candidate document with its accumulated score.
type ScoredDoc struct {
	DocID     string
	Score     float64
	CreatedAt time.Time
}

// TermWeight is the tf-idf weight of a term occurring tf times in a document,
// where df of the n indexed documents contain the term.
func TermWeight(tf, df, n int) float64 {
	return math.Sqrt(float64(tf)) * math.Log(1+float64(n)/float64(1+df))
}

// RecencyBoost returns the multiplier for a document created at created,
// measured in whole calendar days of loc. Entries from today get
// 1+RecencyWeight, entries RecencyWindowDays or more days old get 1.
func RecencyBoost(created, now time.Time, loc *time.Location) float64 {
	age := AgeInDays(created, now, loc)
	if age < 0 {
		age = 0
	}
	recency := math.Max(0, 1-float64(age)/RecencyWindowDays)
	return 1 + RecencyWeight*recency
}

// AgeInDays is the number of calendar days between created and now in loc.
func AgeInDays(created, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	return int(civilDay(now.In(loc)).Sub(civilDay(created.In(loc))).Hours() / 24)
}

// KindBoost returns the fixed per-kind multiplier.
func KindBoost(kind document.Kind) float64 {
	if kind == document.KindReflection {
		return ReflectionBoost
	}
	return 1
}

// Sort orders docs by descending score, newer documents first on ties.
func Sort(docs []ScoredDoc) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].DocID < docs[j].DocID
	})
}

// civilDay maps t to midnight UTC of its calendar date so that day
// differences ignore DST transitions.
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
