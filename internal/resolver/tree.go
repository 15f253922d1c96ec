package resolver

import (
	"github.com/trellis-dev/trellis/internal/skeleton"
)

// Node is one task in a resolved tree view, with its children nested to
// the requested depth.
type Node struct {
	Task     *skeleton.TaskSkeleton `json:"task"`
	Record   ResolutionRecord       `json:"resolution"`
	Children []*Node                `json:"children,omitempty"`
}

// Tree is a read-only view over one resolution pass, answering the
// browse queries callers ask of the reconstructed forest.
type Tree struct {
	res  *Result
	byID map[string]*skeleton.TaskSkeleton
}

// NewTree pairs a resolution result with the snapshot it was computed
// from.
func NewTree(skeletons []*skeleton.TaskSkeleton, res *Result) *Tree {
	byID := make(map[string]*skeleton.TaskSkeleton, len(skeletons))
	for _, sk := range skeletons {
		if sk != nil && sk.TaskID != "" {
			byID[sk.TaskID] = sk
		}
	}
	return &Tree{res: res, byID: byID}
}

// Parent returns the resolved parent of taskID. An empty parent ID with
// ok=true means the task is a root.
func (t *Tree) Parent(taskID string) (string, ResolutionRecord, bool) {
	rec, ok := t.res.Records[taskID]
	if !ok {
		return "", ResolutionRecord{}, false
	}
	return rec.ParentTaskID, rec, true
}

// ChildrenOf returns taskID's children in declaration order.
func (t *Tree) ChildrenOf(taskID string) []string {
	return t.res.Children[taskID]
}

// Roots returns all declared roots and root fallbacks, sorted by ID.
func (t *Tree) Roots() []string {
	return t.res.Roots
}

// Record returns the resolution record for taskID.
func (t *Tree) Record(taskID string) (ResolutionRecord, bool) {
	rec, ok := t.res.Records[taskID]
	return rec, ok
}

// Task returns the skeleton for taskID from the snapshot this tree was
// built over.
func (t *Tree) Task(taskID string) (*skeleton.TaskSkeleton, bool) {
	sk, ok := t.byID[taskID]
	return sk, ok
}

// Subtree materializes the tree rooted at taskID down to maxDepth
// levels of children (clamped to [1, 10], default 3 when <= 0).
func (t *Tree) Subtree(taskID string, maxDepth int) (*Node, bool) {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	if maxDepth > 10 {
		maxDepth = 10
	}
	sk, ok := t.byID[taskID]
	if !ok {
		return nil, false
	}
	return t.build(sk, maxDepth), true
}

func (t *Tree) build(sk *skeleton.TaskSkeleton, depth int) *Node {
	n := &Node{Task: sk, Record: t.res.Records[sk.TaskID]}
	if depth <= 0 {
		return n
	}
	for _, childID := range t.res.Children[sk.TaskID] {
		child, ok := t.byID[childID]
		if !ok {
			continue
		}
		n.Children = append(n.Children, t.build(child, depth-1))
	}
	return n
}
