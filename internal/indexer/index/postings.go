// Package index holds the inverted index of the journal engine: for every
// term, the documents containing it and the term's frequency in each.
package index

import (
	"sort"
	"strings"

	"github.com/tidwall/btree"
)

// Posting is one (document, frequency) pair of a postings list.
type Posting struct {
	DocID     string
	Frequency int
}

// PostingList is a postings list ordered by DocID.
type PostingList []Posting

// TermEntry pairs a term with its postings list.
type TermEntry struct {
	Term     string
	Postings PostingList
}

// Postings maps term -> doc ID -> term frequency. A btree of the terms is
// kept alongside the map so prefix scans walk terms in lexicographic order.
//
// Postings is not safe for concurrent use; the engine owning it serialises
// access.
type Postings struct {
	lists map[string]map[string]int
	terms *btree.BTreeG[string]
}

func NewPostings() *Postings {
	return &Postings{
		lists: make(map[string]map[string]int),
		terms: newTermTree(),
	}
}

// Add records every term of tfs for docID.
func (p *Postings) Add(docID string, tfs map[string]int) {
	for term, freq := range tfs {
		docs, exists := p.lists[term]
		if !exists {
			docs = make(map[string]int)
			p.lists[term] = docs
			p.terms.Set(term)
		}
		docs[docID] = freq
	}
}

// Remove deletes docID from the postings list of every term in tfs and
// drops lists that become empty.
func (p *Postings) Remove(docID string, tfs map[string]int) {
	for term := range tfs {
		docs, exists := p.lists[term]
		if !exists {
			continue
		}
		delete(docs, docID)
		if len(docs) == 0 {
			delete(p.lists, term)
			p.terms.Delete(term)
		}
	}
}

// Lookup returns the postings of term. The returned map must not be
// modified.
func (p *Postings) Lookup(term string) (map[string]int, bool) {
	docs, ok := p.lists[term]
	return docs, ok
}

// DocFreq returns the number of documents containing term.
func (p *Postings) DocFreq(term string) int {
	return len(p.lists[term])
}

// PrefixScan calls fn for up to limit terms that start with prefix, in
// lexicographic order. The prefix itself is included when it is a term.
func (p *Postings) PrefixScan(prefix string, limit int, fn func(term string, docs map[string]int)) {
	if limit <= 0 {
		return
	}
	seen := 0
	p.terms.Ascend(prefix, func(term string) bool {
		if !strings.HasPrefix(term, prefix) {
			return false
		}
		fn(term, p.lists[term])
		seen++
		return seen < limit
	})
}

// Len returns the number of distinct terms.
func (p *Postings) Len() int {
	return len(p.lists)
}

// Reset drops every postings list.
func (p *Postings) Reset() {
	p.lists = make(map[string]map[string]int)
	p.terms = newTermTree()
}

// Snapshot returns all postings sorted by term, each list sorted by doc ID.
func (p *Postings) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(p.lists))
	p.terms.Scan(func(term string) bool {
		docs := p.lists[term]
		postings := make(PostingList, 0, len(docs))
		for docID, freq := range docs {
			postings = append(postings, Posting{DocID: docID, Frequency: freq})
		}
		sort.Slice(postings, func(i, j int) bool {
			return postings[i].DocID < postings[j].DocID
		})
		entries = append(entries, TermEntry{Term: term, Postings: postings})
		return true
	})
	return entries
}

func newTermTree() *btree.BTreeG[string] {
	return btree.NewBTreeG[string](func(a, b string) bool { return a < b })
}
