// Package prefix maps canonicalized instruction prefixes to the tasks
// that declared them.
//
// The index is the lookup half of hierarchy reconstruction: parents
// insert their delegation fragments, children look up their own
// instruction text. Lookups walk a fixed ladder of decreasing prefix
// lengths, stopping at the longest length that still matches — real
// instruction text varies near its tail (trailing punctuation, light
// paraphrase), and shortening the compared prefix trades specificity
// for recall in a controlled way.
package prefix

import (
	"strings"

	"github.com/trellis-dev/trellis/internal/canon"
)

// searchLengths is the lookup ladder, longest first. 192 is the full
// canonical key length; 16 is the floor below which matches stop being
// meaningful.
var searchLengths = []int{192, 176, 160, 144, 128, 112, 96, 80, 64, 48, 32, 16}

// Match is one index hit: the declaring task and the number of
// canonical characters that matched.
type Match struct {
	TaskID              string
	MatchedPrefixLength int
}

// Stats holds index counters.
type Stats struct {
	TotalInstructions int
}

type entry struct {
	taskID string
	// order is the fragment's insertion position within its parent,
	// preserved for ordering siblings by declaration order.
	order int
}

// Index is the canonicalizing prefix index. It is not safe for
// concurrent mutation; the resolver builds and queries it from a single
// goroutine over an immutable snapshot.
type Index struct {
	byPrefix  map[string][]entry
	perParent map[string]int
	total     int
	k         int
}

// New creates an empty index with canonical key length k
// (canon.DefaultPrefixLen when k <= 0).
func New(k int) *Index {
	if k <= 0 {
		k = canon.DefaultPrefixLen
	}
	return &Index{
		byPrefix:  make(map[string][]entry),
		perParent: make(map[string]int),
		k:         k,
	}
}

// Insert canonicalizes the full fragment text and records its prefix at
// every ladder length against the declaring task. Fragments that
// canonicalize to nothing are dropped. Insertion order per parent is
// preserved.
func (ix *Index) Insert(taskID, fragmentText string) {
	key := canon.Canonicalize(fragmentText, ix.k)
	if key == "" {
		return
	}
	order := ix.perParent[taskID]
	ix.perParent[taskID] = order + 1
	e := entry{taskID: taskID, order: order}

	// A key shorter than a ladder rung truncates to itself; dedupe so
	// it is stored once, not once per rung.
	stored := make(map[string]bool, len(searchLengths))
	for _, l := range searchLengths {
		if l > ix.k {
			continue
		}
		p := truncateTo(key, l)
		if p == "" || stored[p] {
			continue
		}
		stored[p] = true
		ix.byPrefix[p] = append(ix.byPrefix[p], e)
	}
	ix.total++
}

// SearchExactPrefix canonicalizes the child's own instruction text and
// looks it up at decreasing ladder lengths, returning all hits at the
// first (longest) length that yields any. Absence of a match is an
// empty slice, never an error.
func (ix *Index) SearchExactPrefix(childText string) []Match {
	key := canon.Canonicalize(childText, ix.k)
	if key == "" {
		return nil
	}
	keyLen := len([]rune(key))

	tried := make(map[string]bool, len(searchLengths))
	for _, l := range searchLengths {
		if l > ix.k {
			continue
		}
		p := truncateTo(key, l)
		if p == "" || tried[p] {
			continue
		}
		tried[p] = true
		entries, ok := ix.byPrefix[p]
		if !ok {
			continue
		}
		matched := l
		if keyLen < matched {
			matched = keyLen
		}
		matches := make([]Match, 0, len(entries))
		seen := make(map[string]bool, len(entries))
		for _, e := range entries {
			// One hit per declaring parent: a parent declaring the
			// same text twice is still one candidate.
			if seen[e.taskID] {
				continue
			}
			seen[e.taskID] = true
			matches = append(matches, Match{TaskID: e.taskID, MatchedPrefixLength: matched})
		}
		if len(matches) > 0 {
			return matches
		}
	}
	return nil
}

// FragmentOrder returns the declaration position of the first fragment
// parentID declared that matches childText at any ladder length, and
// whether one exists. Used to order resolved siblings.
func (ix *Index) FragmentOrder(parentID, childText string) (int, bool) {
	key := canon.Canonicalize(childText, ix.k)
	if key == "" {
		return 0, false
	}
	for _, l := range searchLengths {
		if l > ix.k {
			continue
		}
		for _, e := range ix.byPrefix[truncateTo(key, l)] {
			if e.taskID == parentID {
				return e.order, true
			}
		}
	}
	return 0, false
}

// GetStats returns index counters.
func (ix *Index) GetStats() Stats {
	return Stats{TotalInstructions: ix.total}
}

// truncateTo bounds an already-canonical string to l characters,
// trimming trailing whitespace from the cut, mirroring the canonical
// truncation rule so inserted and looked-up prefixes agree at every
// ladder length.
func truncateTo(s string, l int) string {
	runes := []rune(s)
	if len(runes) <= l {
		return s
	}
	return strings.TrimRight(string(runes[:l]), " \t\n")
}
