// Package resolver reconstructs the parent/child forest over a snapshot
// of task skeletons.
//
// Resolution is two-phase and single-threaded: Phase 1 indexes every
// skeleton's delegation fragments into a prefix index, Phase 2 resolves
// each skeleton's parent independently. Ambiguity is not an error — it
// is an explicit outcome carried in the resolution method and
// confidence, and one corrupt record can never abort reconstruction of
// the rest of the corpus.
package resolver

import (
	"sort"

	"github.com/trellis-dev/trellis/internal/canon"
	"github.com/trellis-dev/trellis/internal/prefix"
	"github.com/trellis-dev/trellis/internal/skeleton"
)

// Method tags how a parent assignment was made.
type Method string

const (
	MethodExplicit                 Method = "explicit"
	MethodExactPrefixUnique        Method = "exact_prefix_unique"
	MethodExactPrefixDisambiguated Method = "exact_prefix_disambiguated"
	MethodRootFallback             Method = "root_fallback"
)

// Confidence per method. Explicit references are the only fully
// unambiguous case.
const (
	ConfidenceExplicit      = 1.0
	ConfidenceUnique        = 0.85
	ConfidenceDisambiguated = 0.65
	ConfidenceRootFallback  = 0.3
)

// ResolutionRecord is the per-task outcome. ParentTaskID is empty for a
// declared root.
type ResolutionRecord struct {
	ParentTaskID string  `json:"parent_task_id,omitempty"`
	Method       Method  `json:"method"`
	Confidence   float64 `json:"confidence"`
}

// Options tunes a resolution pass.
type Options struct {
	// PrefixLen is the canonical key length K (canon.DefaultPrefixLen
	// when <= 0).
	PrefixLen int
	// StrictMode accepts only explicit references and unique prefix
	// matches; everything else becomes root_fallback. It trades recall
	// for precision and is a deliberate operating point, not a fix for
	// the fuzzy path. Default off.
	StrictMode bool
}

// Result is a complete resolution pass over one snapshot.
type Result struct {
	Records  map[string]ResolutionRecord
	Children map[string][]string // parent -> child IDs, declaration-ordered
	Roots    []string
	Indexed  int // delegation fragments indexed in Phase 1
}

// delegationToolNames are tool invocations that delegate to a child
// task; their recorded input is a delegation fragment.
var delegationToolNames = map[string]bool{
	"new_task": true,
	"task":     true,
	"message":  true,
}

// Resolve runs both phases over the given skeletons. It never mutates
// the skeletons and is deterministic: two passes over the same snapshot
// yield identical results.
func Resolve(skeletons []*skeleton.TaskSkeleton, opts Options) *Result {
	byID := make(map[string]*skeleton.TaskSkeleton, len(skeletons))
	ordered := make([]*skeleton.TaskSkeleton, 0, len(skeletons))
	for _, sk := range skeletons {
		if sk == nil || sk.TaskID == "" {
			continue
		}
		byID[sk.TaskID] = sk
		ordered = append(ordered, sk)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].TaskID < ordered[j].TaskID })

	// Phase 1: index every parent's delegation fragments, in outline
	// order. The full fragment is inserted — the index canonicalizes.
	ix := prefix.New(opts.PrefixLen)
	for _, sk := range ordered {
		for _, frag := range delegationFragments(sk) {
			ix.Insert(sk.TaskID, frag)
		}
	}

	res := &Result{
		Records:  make(map[string]ResolutionRecord, len(ordered)),
		Children: make(map[string][]string),
		Indexed:  ix.GetStats().TotalInstructions,
	}

	// Phase 2: resolve each skeleton independently.
	for _, sk := range ordered {
		res.Records[sk.TaskID] = resolveOne(sk, byID, ix, opts)
	}

	// Derived views: invert the record map; order siblings by the
	// parent's declaration order, then by creation time.
	for id, rec := range res.Records {
		if rec.ParentTaskID == "" {
			res.Roots = append(res.Roots, id)
			continue
		}
		res.Children[rec.ParentTaskID] = append(res.Children[rec.ParentTaskID], id)
	}
	sort.Strings(res.Roots)
	for parentID, kids := range res.Children {
		sortSiblings(parentID, kids, byID, ix)
	}
	return res
}

// resolveOne decides one skeleton's parent.
func resolveOne(sk *skeleton.TaskSkeleton, byID map[string]*skeleton.TaskSkeleton, ix *prefix.Index, opts Options) ResolutionRecord {
	// Step 1: an explicit reference to a known skeleton wins outright.
	// A dangling or self-referential parent ID carries no information
	// and falls through to prefix matching.
	if pid := sk.ParentTaskID; pid != "" && pid != sk.TaskID {
		if _, ok := byID[pid]; ok {
			return ResolutionRecord{ParentTaskID: pid, Method: MethodExplicit, Confidence: ConfidenceExplicit}
		}
	}

	// Step 2: match the skeleton's own instruction text against all
	// declared delegation fragments.
	hits := ix.SearchExactPrefix(instructionText(sk))
	cands := make([]candidate, 0, len(hits))
	for _, h := range hits {
		if h.TaskID == sk.TaskID {
			continue // a task never parents itself
		}
		p, ok := byID[h.TaskID]
		if !ok {
			continue
		}
		cands = append(cands, candidate{match: h, parent: p})
	}

	switch {
	case len(cands) == 1:
		return ResolutionRecord{
			ParentTaskID: cands[0].parent.TaskID,
			Method:       MethodExactPrefixUnique,
			Confidence:   ConfidenceUnique,
		}
	case len(cands) > 1 && !opts.StrictMode:
		if win, ok := disambiguate(sk, cands); ok {
			return ResolutionRecord{
				ParentTaskID: win.parent.TaskID,
				Method:       MethodExactPrefixDisambiguated,
				Confidence:   ConfidenceDisambiguated,
			}
		}
	}

	// Step 3: no resolvable parent — the task is the root of its own
	// subtree, reported as an outcome rather than an error.
	return ResolutionRecord{Method: MethodRootFallback, Confidence: ConfidenceRootFallback}
}

type candidate struct {
	match  prefix.Match
	parent *skeleton.TaskSkeleton
}

// disambiguate picks one winner from multiple candidates with a pure,
// total ranking. Candidates created after the child are eliminated
// first (a parent must exist before its child); if none survive, the
// caller falls back to root. Survivors are then ranked: same workspace,
// longest matched prefix, earliest creation, lexical task ID.
func disambiguate(child *skeleton.TaskSkeleton, cands []candidate) (candidate, bool) {
	alive := make([]candidate, 0, len(cands))
	for _, c := range cands {
		if !c.parent.CreatedAt.After(child.CreatedAt) {
			alive = append(alive, c)
		}
	}
	if len(alive) == 0 {
		return candidate{}, false
	}

	sort.SliceStable(alive, func(i, j int) bool {
		a, b := alive[i], alive[j]
		aws := a.parent.Workspace != "" && a.parent.Workspace == child.Workspace
		bws := b.parent.Workspace != "" && b.parent.Workspace == child.Workspace
		if aws != bws {
			return aws
		}
		if a.match.MatchedPrefixLength != b.match.MatchedPrefixLength {
			return a.match.MatchedPrefixLength > b.match.MatchedPrefixLength
		}
		if !a.parent.CreatedAt.Equal(b.parent.CreatedAt) {
			return a.parent.CreatedAt.Before(b.parent.CreatedAt)
		}
		return a.parent.TaskID < b.parent.TaskID
	})
	return alive[0], true
}

// delegationFragments extracts the fragments a skeleton declares, in
// outline order.
func delegationFragments(sk *skeleton.TaskSkeleton) []string {
	var frags []string
	for _, e := range sk.Outline {
		switch e.Kind {
		case skeleton.EntryAssistant:
			frags = append(frags, canon.ExtractDelegations(e.Text)...)
		case skeleton.EntryToolCall:
			if delegationToolNames[e.ToolName] && e.Text != "" {
				frags = append(frags, e.Text)
			}
		case skeleton.EntryUser, skeleton.EntryToolResult:
			// User text is the task's own instruction, not a
			// delegation; tool results echo output, not intent.
		}
	}
	return frags
}

// instructionText is the skeleton's own leading instruction: the
// Instruction field when the scanner filled it, else the first user
// outline entry.
func instructionText(sk *skeleton.TaskSkeleton) string {
	if sk.Instruction != "" {
		return sk.Instruction
	}
	for _, e := range sk.Outline {
		if e.Kind == skeleton.EntryUser {
			return e.Text
		}
	}
	return ""
}

// sortSiblings orders one parent's children by the parent's fragment
// declaration order, then creation time, then task ID.
func sortSiblings(parentID string, kids []string, byID map[string]*skeleton.TaskSkeleton, ix *prefix.Index) {
	sort.SliceStable(kids, func(i, j int) bool {
		a, b := byID[kids[i]], byID[kids[j]]
		ao, aok := ix.FragmentOrder(parentID, instructionText(a))
		bo, bok := ix.FragmentOrder(parentID, instructionText(b))
		if aok && bok && ao != bo {
			return ao < bo
		}
		if aok != bok {
			return aok
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.TaskID < b.TaskID
	})
}
