package resolver

import (
	"context"

	"github.com/trellis-dev/trellis/internal/skeleton"
)

// Service is the read-side facade the tools use: it refreshes the
// skeleton cache on demand and resolves the hierarchy over the current
// snapshot. Resolution is recomputed per call; the cache makes that
// cheap and resolution itself is deterministic, so two calls over the
// same snapshot agree.
type Service struct {
	cache *skeleton.Cache
	opts  Options
}

// NewService creates a Service over cache with the given resolution
// options.
func NewService(cache *skeleton.Cache, opts Options) *Service {
	return &Service{cache: cache, opts: opts}
}

// Tree refreshes the cache (scoped to workspace when non-empty) and
// resolves the full hierarchy.
func (s *Service) Tree(ctx context.Context, workspace string) *Tree {
	s.cache.EnsureFresh(ctx, workspace)
	skeletons := s.cache.All()
	return NewTree(skeletons, Resolve(skeletons, s.opts))
}

// StrictTree is Tree with heuristic disambiguation forced off for this
// call: ambiguous prefix matches resolve to root_fallback instead of a
// ranked winner.
func (s *Service) StrictTree(ctx context.Context, workspace string) *Tree {
	s.cache.EnsureFresh(ctx, workspace)
	skeletons := s.cache.All()
	opts := s.opts
	opts.StrictMode = true
	return NewTree(skeletons, Resolve(skeletons, opts))
}

// Task returns one task's skeleton after a refresh.
func (s *Service) Task(ctx context.Context, taskID string) (*skeleton.TaskSkeleton, bool) {
	s.cache.EnsureFresh(ctx, "")
	return s.cache.Get(taskID)
}

// ParentsOf resolves (parentID, rootID) for one task over the current
// snapshot, for payload enrichment. A task that is its own root reports
// an empty root ID.
func (s *Service) ParentsOf(taskID string) (string, string) {
	skeletons := s.cache.All()
	tree := NewTree(skeletons, Resolve(skeletons, s.opts))
	parent, _, ok := tree.Parent(taskID)
	if !ok {
		return "", ""
	}
	root := rootOf(tree, taskID)
	if root == taskID {
		root = ""
	}
	return parent, root
}

// rootOf walks parents until a root; cycles cannot occur because
// disambiguation only links children to earlier-created tasks and
// explicit self-references are rejected during resolution.
func rootOf(t *Tree, taskID string) string {
	cur := taskID
	for i := 0; i < len(t.res.Records)+1; i++ {
		parent, _, ok := t.Parent(cur)
		if !ok || parent == "" {
			return cur
		}
		cur = parent
	}
	return cur
}
