package normalizer

import (
	"maps"
	"slices"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"ascii lower", "Hello   World", "hello world"},
		{"trim and newlines", "  one\n\ttwo  ", "one two"},
		{"umlauts", "Ich fühle mich müde", "ich fuehle mich muede"},
		{"eszett", "Straße", "strasse"},
		{"upper umlaut", "ÜBER", "ueber"},
		{"latin accents", "Café crème à la façon", "cafe creme a la facon"},
		{"nfd fallback", "Ŝtono", "stono"},
		{"punctuation kept", "Hallo, Welt!", "hallo, welt!"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestStrip(t *testing.T) {
	tests := map[string]string{
		"Müdigkeit": "mudigkeit",
		"Straße":    "strasse",
		"Søren":     "soren",
		"plain":     "plain",
	}
	for in, want := range tests {
		if got := Strip(in); got != want {
			t.Errorf("Strip(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"!!! ... ???", nil},
		{"dankbarkeit hilft mir, grenzen zu setzen", []string{"dankbarkeit", "hilft", "mir", "grenzen", "zu", "setzen"}},
		{"tag 12 von 30", []string{"tag", "12", "von", "30"}},
		{"a-b_c", []string{"a", "b", "c"}},
	}
	for _, tc := range tests {
		got := slices.Collect(Tokenize(tc.in))
		if !slices.Equal(got, tc.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestTokenizeRestartable(t *testing.T) {
	seq := Tokenize("eins zwei drei")
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if !slices.Equal(first, second) {
		t.Fatalf("second pass = %v, want %v", second, first)
	}

	var got []string
	for term := range seq {
		got = append(got, term)
		if len(got) == 2 {
			break
		}
	}
	if !slices.Equal(got, []string{"eins", "zwei"}) {
		t.Fatalf("early stop = %v", got)
	}
}

func TestQueryTerms(t *testing.T) {
	got := QueryTerms("Grenzen setzen, grenzen!")
	want := []string{"grenzen", "setzen"}
	if !slices.Equal(got, want) {
		t.Fatalf("QueryTerms = %v, want %v", got, want)
	}
	if terms := QueryTerms("   "); len(terms) != 0 {
		t.Fatalf("QueryTerms(blank) = %v, want empty", terms)
	}
}

func TestTermFrequencies(t *testing.T) {
	tf := TermFrequencies("Heute heute HEUTE morgen")
	want := map[string]int{"heute": 3, "morgen": 1}
	if !maps.Equal(tf, want) {
		t.Fatalf("TermFrequencies = %v, want %v", tf, want)
	}
}

func TestTermFrequenciesOrderIndependent(t *testing.T) {
	a := TermFrequencies("gut besser gut")
	b := TermFrequencies("GUT gut Besser")
	if !maps.Equal(a, b) {
		t.Fatalf("frequencies differ: %v vs %v", a, b)
	}
}

func TestTermFrequenciesAlternateFold(t *testing.T) {
	tf := TermFrequencies("Müdigkeit und Mut")
	want := map[string]int{"muedigkeit": 1, "mudigkeit": 1, "und": 1, "mut": 1}
	if !maps.Equal(tf, want) {
		t.Fatalf("TermFrequencies = %v, want %v", tf, want)
	}
}

func TestSpellings(t *testing.T) {
	got := Spellings("Müdigkeit, Grüße und Mut. Übermut/Über")
	want := map[string]string{
		"mudigkeit": "muedigkeit",
		"grusse":    "gruesse",
		"ubermut":   "uebermut",
		"uber":      "ueber",
	}
	if !maps.Equal(got, want) {
		t.Fatalf("Spellings = %v, want %v", got, want)
	}
	if got := Spellings("nur ascii"); got != nil {
		t.Fatalf("ASCII text spellings = %v", got)
	}
	if got := Spellings("Muedigkeit und mudigkeit Müdigkeit"); len(got) != 0 {
		t.Fatalf("spellings that are primary terms = %v", got)
	}
}

func TestFoldRune(t *testing.T) {
	if got := FoldRune('ü'); got != "ue" {
		t.Errorf("FoldRune(ü) = %q", got)
	}
	if got := StripRune('ü'); got != "u" {
		t.Errorf("StripRune(ü) = %q", got)
	}
	if got := FoldRune('x'); got != "x" {
		t.Errorf("FoldRune(x) = %q", got)
	}
}

func BenchmarkNormalize(b *testing.B) {
	texts := map[string]string{
		"ascii":  strings.Repeat("today I am grateful for the small things ", 10),
		"german": strings.Repeat("Ich fühle mich heute dankbar für die kleinen Dinge ", 10),
	}
	for name, text := range texts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = TermFrequencies(text)
			}
		})
	}
}
