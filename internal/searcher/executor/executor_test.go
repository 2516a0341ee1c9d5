package executor

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer/document"
)

var now = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func newExecutor(t testing.TB, records ...document.Record) (*Executor, *indexer.Engine) {
	t.Helper()
	engine := indexer.NewEngine()
	engine.SyncFrom(records)
	exec := New(engine,
		WithClock(func() time.Time { return now }),
		WithLocation(time.UTC),
	)
	return exec, engine
}

func entry(id string, kind document.Kind, created time.Time, text string) document.Record {
	return document.Record{ID: id, Kind: kind, CreatedAt: created, Text: text}
}

func ids(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

var (
	gratefulJournal = entry("1", document.KindJournal, now, "Ich fühle mich heute dankbar für die kleinen Dinge")
	boundariesRefl  = entry("2", document.KindReflection, now, "Dankbarkeit hilft mir, Grenzen zu setzen")
)

func TestSearchExactAndPrefixWithReflectionBoost(t *testing.T) {
	exec, _ := newExecutor(t, gratefulJournal, boundariesRefl)

	hits := exec.Search("dankbar", Options{})
	if got := ids(hits); !slices.Equal(got, []string{"1", "2"}) {
		t.Fatalf("hits = %v, want [1 2]", got)
	}

	base := math.Log(2)
	wantJournal := base * 1.30
	wantReflection := 0.66 * base * 1.30 * 1.05
	if !approx(hits[0].Score, wantJournal) {
		t.Errorf("journal score = %v, want %v", hits[0].Score, wantJournal)
	}
	if !approx(hits[1].Score, wantReflection) {
		t.Errorf("reflection score = %v, want %v", hits[1].Score, wantReflection)
	}
	for _, h := range hits {
		if !slices.Equal(h.MatchedTerms, []string{"dankbar"}) {
			t.Errorf("hit %s matched %v", h.ID, h.MatchedTerms)
		}
		if !strings.Contains(strings.ToLower(h.Snippet), "dankbar") {
			t.Errorf("hit %s snippet %q", h.ID, h.Snippet)
		}
	}
	if hits[1].Kind != document.KindReflection || !hits[1].CreatedAt.Equal(now) {
		t.Errorf("hit metadata = %+v", hits[1])
	}
}

func TestSearchReflectionBoostBreaksEvenScores(t *testing.T) {
	exec, _ := newExecutor(t,
		entry("j", document.KindJournal, now, "Grenzen setzen"),
		entry("r", document.KindReflection, now, "Grenzen setzen"),
	)
	hits := exec.Search("grenzen", Options{})
	if got := ids(hits); !slices.Equal(got, []string{"r", "j"}) {
		t.Fatalf("hits = %v, want [r j]", got)
	}
	if !approx(hits[0].Score/hits[1].Score, 1.05) {
		t.Fatalf("score ratio = %v, want 1.05", hits[0].Score/hits[1].Score)
	}
}

func TestSearchSnippetAroundMatch(t *testing.T) {
	exec, _ := newExecutor(t, boundariesRefl)
	hits := exec.Search("Grenzen", Options{})
	if len(hits) != 1 {
		t.Fatalf("hits = %v", ids(hits))
	}
	s := hits[0].Snippet
	if !strings.Contains(s, "Grenzen") || utf8.RuneCountInString(s) > 160 {
		t.Fatalf("snippet = %q", s)
	}
	if s == "Grenzen" {
		t.Fatalf("snippet %q has no context", s)
	}
}

func TestSearchEmptyInputs(t *testing.T) {
	exec, _ := newExecutor(t, gratefulJournal)
	for _, q := range []string{"", "   ", "?!,."} {
		hits := exec.Search(q, Options{})
		if hits == nil || len(hits) != 0 {
			t.Errorf("Search(%q) = %v, want empty non-nil", q, hits)
		}
	}

	empty, _ := newExecutor(t)
	if hits := empty.Search("dankbar", Options{}); hits == nil || len(hits) != 0 {
		t.Errorf("empty index returned %v", hits)
	}
	if hits := exec.Search("unbekannt", Options{}); len(hits) != 0 {
		t.Errorf("unknown term returned %v", ids(hits))
	}
}

func TestSearchDiacriticFolding(t *testing.T) {
	exec, _ := newExecutor(t, entry("m", document.KindJournal, now, "Müdigkeit"))
	for _, q := range []string{"mudigkeit", "muedigkeit", "Müdigkeit", "MÜDIGKEIT"} {
		hits := exec.Search(q, Options{})
		if got := ids(hits); !slices.Equal(got, []string{"m"}) {
			t.Errorf("Search(%q) = %v", q, got)
			continue
		}
		if hits[0].Snippet != "Müdigkeit" {
			t.Errorf("Search(%q) snippet = %q", q, hits[0].Snippet)
		}
	}
}

func TestSearchPrefixCountsSpellingsOnce(t *testing.T) {
	exec, _ := newExecutor(t,
		gratefulJournal,
		boundariesRefl,
		entry("3", document.KindJournal, now, "Müdigkeit"),
		entry("4", document.KindJournal, now, "Mudigkeit"),
	)
	want := 0.66 * math.Log(1+4.0/3) * 1.30
	for _, q := range []string{"mu", "mud"} {
		hits := exec.Search(q, Options{})
		if len(hits) != 2 {
			t.Fatalf("Search(%q) = %v", q, ids(hits))
		}
		for _, h := range hits {
			if !approx(h.Score, want) {
				t.Errorf("Search(%q) hit %s score = %v, want %v", q, h.ID, h.Score, want)
			}
		}
	}
}

func TestSearchPrefixSumsDistinctWords(t *testing.T) {
	exec, _ := newExecutor(t,
		entry("a", document.KindJournal, now, "Dankbarkeit und Dankesbrief"),
		entry("b", document.KindJournal, now, "Dankbarkeit"),
	)
	hits := exec.Search("dank", Options{})
	if got := ids(hits); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("hits = %v, want [a b]", got)
	}
	want := 0.66 * (math.Log(1+2.0/3) + math.Log(1+2.0/2)) * 1.30
	if !approx(hits[0].Score, want) {
		t.Fatalf("score = %v, want %v", hits[0].Score, want)
	}
}

func TestSearchCandidacyPreservedForSupersetQuery(t *testing.T) {
	exec, _ := newExecutor(t,
		gratefulJournal,
		boundariesRefl,
		entry("3", document.KindStory, now, "Eine Geschichte über Grenzen"),
		entry("4", document.KindNote, now, "Einkaufsliste"),
	)
	single := exec.Search("grenzen", Options{})
	superset := exec.Search("grenzen dankbar morgen", Options{})
	got := ids(superset)
	for _, id := range ids(single) {
		if !slices.Contains(got, id) {
			t.Errorf("doc %s matched %q but not the superset query", id, "grenzen")
		}
	}
}

func TestSearchRecencyBoost(t *testing.T) {
	text := "Spaziergang am See"
	exec, _ := newExecutor(t,
		entry("old", document.KindJournal, now.AddDate(0, 0, -31), text),
		entry("new", document.KindJournal, now, text),
		entry("mid", document.KindJournal, now.AddDate(0, 0, -15), text),
	)
	hits := exec.Search("see", Options{})
	if got := ids(hits); !slices.Equal(got, []string{"new", "mid", "old"}) {
		t.Fatalf("hits = %v", got)
	}
	if r := hits[0].Score / hits[2].Score; !approx(r, 1.30) {
		t.Errorf("new/old ratio = %v, want 1.30", r)
	}
	if r := hits[1].Score / hits[2].Score; !approx(r, 1.15) {
		t.Errorf("mid/old ratio = %v, want 1.15", r)
	}
}

func TestSearchTieBreakNewerFirst(t *testing.T) {
	exec, _ := newExecutor(t,
		entry("a", document.KindJournal, now.AddDate(-1, 0, 0), "Regen"),
		entry("b", document.KindJournal, now.AddDate(0, -6, 0), "Regen"),
	)
	hits := exec.Search("regen", Options{})
	if got := ids(hits); !slices.Equal(got, []string{"b", "a"}) {
		t.Fatalf("hits = %v, want [b a]", got)
	}
}

func TestSearchKindFilter(t *testing.T) {
	exec, _ := newExecutor(t, gratefulJournal, boundariesRefl)
	hits := exec.Search("dankbar", Options{Kinds: []document.Kind{document.KindReflection}})
	if got := ids(hits); !slices.Equal(got, []string{"2"}) {
		t.Fatalf("hits = %v, want [2]", got)
	}
	hits = exec.Search("dankbar", Options{Kinds: []document.Kind{document.KindStory}})
	if len(hits) != 0 {
		t.Fatalf("story filter returned %v", ids(hits))
	}
}

func TestSearchDateWindowInLocalTime(t *testing.T) {
	loc := time.FixedZone("CEST", 2*3600)
	engine := indexer.NewEngine()
	engine.SyncFrom([]document.Record{
		// 01:30 local on June 30th.
		entry("late", document.KindJournal, time.Date(2024, 6, 29, 23, 30, 0, 0, time.UTC), "Sterne"),
		entry("early", document.KindJournal, time.Date(2024, 6, 28, 10, 0, 0, 0, time.UTC), "Sterne"),
	})
	exec := New(engine, WithClock(func() time.Time { return now }), WithLocation(loc))

	june30 := time.Date(2024, 6, 30, 0, 0, 0, 0, loc)
	july1 := june30.AddDate(0, 0, 1)

	hits := exec.Search("sterne", Options{From: june30, To: july1})
	if got := ids(hits); !slices.Equal(got, []string{"late"}) {
		t.Fatalf("[30th, 1st) = %v, want [late]", got)
	}
	hits = exec.Search("sterne", Options{To: june30})
	if got := ids(hits); !slices.Equal(got, []string{"early"}) {
		t.Fatalf("[-inf, 30th) = %v, want [early]", got)
	}
	hits = exec.Search("sterne", Options{From: july1})
	if len(hits) != 0 {
		t.Fatalf("[1st, +inf) = %v, want none", ids(hits))
	}
}

func TestSearchLimit(t *testing.T) {
	records := make([]document.Record, 60)
	for i := range records {
		records[i] = entry(fmt.Sprintf("d%02d", i), document.KindJournal, now.Add(-time.Duration(i)*time.Minute), "Kaffee")
	}
	exec, _ := newExecutor(t, records...)

	for _, limit := range []int{0, -3} {
		if got := len(exec.Search("kaffee", Options{Limit: limit})); got != DefaultLimit {
			t.Errorf("limit %d returned %d hits, want %d", limit, got, DefaultLimit)
		}
	}
	hits := exec.Search("kaffee", Options{Limit: 5})
	if got := ids(hits); !slices.Equal(got, []string{"d00", "d01", "d02", "d03", "d04"}) {
		t.Errorf("limit 5 = %v", got)
	}
}

func TestSearchPrefixScanIsCapped(t *testing.T) {
	records := make([]document.Record, 100)
	for i := range records {
		records[i] = entry(fmt.Sprintf("d%03d", i), document.KindNote, now, fmt.Sprintf("wort%03d", i))
	}
	exec, engine := newExecutor(t, records...)

	hits := exec.Search("wort", Options{Limit: 500})
	if len(hits) != 80 {
		t.Fatalf("prefix hits = %d, want 80", len(hits))
	}
	for _, h := range hits {
		if h.ID >= "d080" {
			t.Fatalf("hit %s is beyond the first 80 terms", h.ID)
		}
	}

	engine.Upsert(entry("exact", document.KindNote, now, "wort"))
	hits = exec.Search("wort", Options{Limit: 500})
	if len(hits) != 81 {
		t.Fatalf("hits with exact term = %d, want 81", len(hits))
	}
	if hits[0].ID != "exact" {
		t.Fatalf("exact match ranked %s first", hits[0].ID)
	}
}

func TestSearchExactMatchSuppressesPrefixCredit(t *testing.T) {
	exec, _ := newExecutor(t,
		entry("both", document.KindJournal, now, "dankbar und voller Dankbarkeit"),
		entry("other", document.KindJournal, now, "nichts"),
	)
	hits := exec.Search("dankbar", Options{})
	if len(hits) != 1 {
		t.Fatalf("hits = %v", ids(hits))
	}
	want := math.Log(1+2.0/2) * 1.30
	if !approx(hits[0].Score, want) {
		t.Fatalf("score = %v, want exact-only %v", hits[0].Score, want)
	}
}

func TestSearchMatchedTermsInQueryOrder(t *testing.T) {
	exec, _ := newExecutor(t, boundariesRefl)
	hits := exec.Search("setzen Dankbarkeit setzen fehlt", Options{})
	if len(hits) != 1 {
		t.Fatalf("hits = %v", ids(hits))
	}
	if want := []string{"setzen", "dankbarkeit"}; !slices.Equal(hits[0].MatchedTerms, want) {
		t.Fatalf("matched = %v, want %v", hits[0].MatchedTerms, want)
	}
}

func TestSearchSnippetLengthOption(t *testing.T) {
	long := strings.Repeat("Wolken ziehen vorbei ", 20)
	exec, _ := newExecutor(t, entry("w", document.KindJournal, now, long))
	hits := exec.Search("wolken", Options{SnippetLength: 60})
	if n := utf8.RuneCountInString(hits[0].Snippet); n > 60 {
		t.Fatalf("snippet length %d > 60", n)
	}
}

func BenchmarkSearch(b *testing.B) {
	words := []string{"dankbar", "müde", "grenzen", "familie", "arbeit", "sonne", "regen", "freunde"}
	records := make([]document.Record, 5000)
	for i := range records {
		records[i] = entry(
			fmt.Sprintf("e%d", i),
			document.KindJournal,
			now.Add(-time.Duration(i)*time.Hour),
			fmt.Sprintf("Heute %s und %s, später %s", words[i%len(words)], words[(i+3)%len(words)], words[(i+5)%len(words)]),
		)
	}
	exec, _ := newExecutor(b, records...)
	queries := []string{"dankbar", "fam", "regen sonne", "mude"}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exec.Search(queries[i%len(queries)], Options{})
	}
}
