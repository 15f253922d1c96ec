package resolver

import (
	"testing"
	"time"

	"github.com/trellis-dev/trellis/internal/skeleton"
)

var (
	t0 = time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
	t2 = t0.Add(2 * time.Hour)
)

// task builds a skeleton that declares the given delegation fragments as
// new_task tool calls, in order.
func task(id, workspace, instruction string, created time.Time, frags ...string) *skeleton.TaskSkeleton {
	sk := &skeleton.TaskSkeleton{
		TaskID:      id,
		Workspace:   workspace,
		Instruction: instruction,
		CreatedAt:   created,
	}
	if instruction != "" {
		sk.Outline = append(sk.Outline, skeleton.OutlineEntry{Kind: skeleton.EntryUser, Text: instruction})
	}
	for _, f := range frags {
		sk.Outline = append(sk.Outline, skeleton.OutlineEntry{
			Kind:     skeleton.EntryToolCall,
			ToolName: "new_task",
			Text:     f,
		})
	}
	return sk
}

func record(t *testing.T, res *Result, id string) ResolutionRecord {
	t.Helper()
	rec, ok := res.Records[id]
	if !ok {
		t.Fatalf("no record for %s", id)
	}
	return rec
}

func TestResolve_ExplicitWins(t *testing.T) {
	parent := task("parent", "ws", "top level work", t0, "do the child work")
	child := task("child", "ws", "do the child work", t1)
	child.ParentTaskID = "parent"

	res := Resolve([]*skeleton.TaskSkeleton{parent, child}, Options{})

	rec := record(t, res, "child")
	if rec.Method != MethodExplicit || rec.Confidence != ConfidenceExplicit {
		t.Errorf("method = %s (%.2f), want explicit (1.00)", rec.Method, rec.Confidence)
	}
	if rec.ParentTaskID != "parent" {
		t.Errorf("ParentTaskID = %s, want parent", rec.ParentTaskID)
	}
	if kids := res.Children["parent"]; len(kids) != 1 || kids[0] != "child" {
		t.Errorf("Children[parent] = %v, want [child]", kids)
	}
}

func TestResolve_SelfReferenceIgnored(t *testing.T) {
	sk := task("loner", "ws", "standalone work", t0)
	sk.ParentTaskID = "loner"

	res := Resolve([]*skeleton.TaskSkeleton{sk}, Options{})

	rec := record(t, res, "loner")
	if rec.Method != MethodRootFallback || rec.ParentTaskID != "" {
		t.Errorf("self-referential parent resolved to %+v, want root_fallback", rec)
	}
}

func TestResolve_DanglingExplicitFallsThroughToPrefix(t *testing.T) {
	parent := task("parent", "ws", "top level work", t0, "investigate the flaky test")
	child := task("child", "ws", "investigate the flaky test", t1)
	child.ParentTaskID = "ghost" // not in the snapshot

	res := Resolve([]*skeleton.TaskSkeleton{parent, child}, Options{})

	rec := record(t, res, "child")
	if rec.Method != MethodExactPrefixUnique {
		t.Errorf("method = %s, want exact_prefix_unique", rec.Method)
	}
	if rec.ParentTaskID != "parent" {
		t.Errorf("ParentTaskID = %s, want parent", rec.ParentTaskID)
	}
}

func TestResolve_ExactPrefixUnique(t *testing.T) {
	parent := task("parent", "ws", "orchestrate the release", t0, "Update the CHANGELOG for v2")
	child := task("child", "ws", "update the changelog for v2", t1)

	res := Resolve([]*skeleton.TaskSkeleton{parent, child}, Options{})

	rec := record(t, res, "child")
	if rec.Method != MethodExactPrefixUnique || rec.Confidence != ConfidenceUnique {
		t.Errorf("method = %s (%.2f), want exact_prefix_unique (0.85)", rec.Method, rec.Confidence)
	}
	if rec.ParentTaskID != "parent" {
		t.Errorf("ParentTaskID = %s, want parent", rec.ParentTaskID)
	}
	if res.Indexed != 1 {
		t.Errorf("Indexed = %d, want 1", res.Indexed)
	}
}

func TestResolve_Disambiguation_SameWorkspaceWins(t *testing.T) {
	frag := "refactor the payment module"
	a := task("parent-a", "other-ws", "work a", t0, frag)
	b := task("parent-b", "ws", "work b", t0, frag)
	child := task("child", "ws", frag, t1)

	res := Resolve([]*skeleton.TaskSkeleton{a, b, child}, Options{})

	rec := record(t, res, "child")
	if rec.Method != MethodExactPrefixDisambiguated || rec.Confidence != ConfidenceDisambiguated {
		t.Errorf("method = %s (%.2f), want exact_prefix_disambiguated (0.65)", rec.Method, rec.Confidence)
	}
	if rec.ParentTaskID != "parent-b" {
		t.Errorf("ParentTaskID = %s, want parent-b (workspace match)", rec.ParentTaskID)
	}
}

func TestResolve_Disambiguation_EarlierCreationWins(t *testing.T) {
	frag := "write integration tests"
	a := task("parent-a", "ws", "work a", t1, frag)
	b := task("parent-b", "ws", "work b", t0, frag)
	child := task("child", "ws", frag, t2)

	res := Resolve([]*skeleton.TaskSkeleton{a, b, child}, Options{})

	if rec := record(t, res, "child"); rec.ParentTaskID != "parent-b" {
		t.Errorf("ParentTaskID = %s, want parent-b (earlier creation)", rec.ParentTaskID)
	}
}

func TestResolve_Disambiguation_LexicalTiebreak(t *testing.T) {
	frag := "draft the design doc"
	a := task("parent-a", "ws", "work a", t0, frag)
	b := task("parent-b", "ws", "work b", t0, frag)
	child := task("child", "ws", frag, t1)

	res := Resolve([]*skeleton.TaskSkeleton{a, b, child}, Options{})

	if rec := record(t, res, "child"); rec.ParentTaskID != "parent-a" {
		t.Errorf("ParentTaskID = %s, want parent-a (lexical tiebreak)", rec.ParentTaskID)
	}
}

func TestResolve_CandidatesCreatedAfterChildEliminated(t *testing.T) {
	frag := "migrate the database schema"
	late1 := task("late-1", "ws", "work", t2, frag)
	late2 := task("late-2", "ws", "work", t2, frag)
	child := task("child", "ws", frag, t0)

	res := Resolve([]*skeleton.TaskSkeleton{late1, late2, child}, Options{})

	rec := record(t, res, "child")
	if rec.Method != MethodRootFallback {
		t.Errorf("method = %s, want root_fallback (all candidates postdate the child)", rec.Method)
	}
}

func TestResolve_StrictMode(t *testing.T) {
	frag := "audit the dependency tree"
	a := task("parent-a", "ws", "work a", t0, frag)
	b := task("parent-b", "ws", "work b", t0, frag)
	ambiguous := task("ambiguous", "ws", frag, t1)

	unique := task("unique-parent", "ws", "other work", t0, "sweep the logs for errors")
	uniqueChild := task("unique-child", "ws", "sweep the logs for errors", t1)

	res := Resolve([]*skeleton.TaskSkeleton{a, b, ambiguous, unique, uniqueChild}, Options{StrictMode: true})

	if rec := record(t, res, "ambiguous"); rec.Method != MethodRootFallback {
		t.Errorf("ambiguous method = %s, want root_fallback in strict mode", rec.Method)
	}
	if rec := record(t, res, "unique-child"); rec.Method != MethodExactPrefixUnique {
		t.Errorf("unique-child method = %s, want exact_prefix_unique in strict mode", rec.Method)
	}
}

func TestResolve_RootFallback(t *testing.T) {
	parent := task("parent", "ws", "work", t0, "something unrelated")
	orphan := task("orphan", "ws", "nothing declared this", t1)

	res := Resolve([]*skeleton.TaskSkeleton{parent, orphan}, Options{})

	rec := record(t, res, "orphan")
	if rec.Method != MethodRootFallback || rec.Confidence != ConfidenceRootFallback {
		t.Errorf("method = %s (%.2f), want root_fallback (0.30)", rec.Method, rec.Confidence)
	}
	if rec.ParentTaskID != "" {
		t.Errorf("ParentTaskID = %s, want empty", rec.ParentTaskID)
	}
	found := false
	for _, r := range res.Roots {
		if r == "orphan" {
			found = true
		}
	}
	if !found {
		t.Errorf("Roots = %v, missing orphan", res.Roots)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	frag := "classify the incoming tickets"
	sks := []*skeleton.TaskSkeleton{
		task("parent-a", "ws", "work a", t0, frag),
		task("parent-b", "ws", "work b", t0, frag),
		task("child", "ws", frag, t1),
		task("orphan", "ws", "unmatched", t1),
	}

	first := Resolve(sks, Options{})
	second := Resolve(sks, Options{})

	for id, rec := range first.Records {
		if second.Records[id] != rec {
			t.Errorf("record for %s differs between passes: %+v vs %+v", id, rec, second.Records[id])
		}
	}
	if len(first.Roots) != len(second.Roots) {
		t.Errorf("Roots differ: %v vs %v", first.Roots, second.Roots)
	}
}

func TestResolve_SiblingsInDeclarationOrder(t *testing.T) {
	parent := task("parent", "ws", "orchestrate", t0,
		"first delegated job",
		"second delegated job",
	)
	// IDs chosen so lexical order disagrees with declaration order.
	childA := task("child-a", "ws", "second delegated job", t1)
	childB := task("child-b", "ws", "first delegated job", t1)

	res := Resolve([]*skeleton.TaskSkeleton{parent, childA, childB}, Options{})

	kids := res.Children["parent"]
	if len(kids) != 2 || kids[0] != "child-b" || kids[1] != "child-a" {
		t.Errorf("Children[parent] = %v, want [child-b child-a] (declaration order)", kids)
	}
}

func TestTree_ParentAndSubtree(t *testing.T) {
	root := task("root", "ws", "orchestrate", t0, "level one work")
	mid := task("mid", "ws", "level one work", t1, "level two work")
	leaf := task("leaf", "ws", "level two work", t2)
	sks := []*skeleton.TaskSkeleton{root, mid, leaf}

	tree := NewTree(sks, Resolve(sks, Options{}))

	pid, rec, ok := tree.Parent("leaf")
	if !ok || pid != "mid" || rec.Method != MethodExactPrefixUnique {
		t.Errorf("Parent(leaf) = (%s, %+v, %v), want mid via exact_prefix_unique", pid, rec, ok)
	}
	if _, _, ok := tree.Parent("unknown"); ok {
		t.Error("Parent(unknown) reported ok")
	}
	if roots := tree.Roots(); len(roots) != 1 || roots[0] != "root" {
		t.Errorf("Roots = %v, want [root]", roots)
	}

	// Depth 1 stops below mid.
	n, ok := tree.Subtree("root", 1)
	if !ok {
		t.Fatal("Subtree(root) not found")
	}
	if len(n.Children) != 1 || n.Children[0].Task.TaskID != "mid" {
		t.Fatalf("root children = %+v, want [mid]", n.Children)
	}
	if len(n.Children[0].Children) != 0 {
		t.Error("depth 1 subtree expanded grandchildren")
	}

	// Default depth reaches the leaf.
	n, _ = tree.Subtree("root", 0)
	if len(n.Children) != 1 || len(n.Children[0].Children) != 1 {
		t.Error("default depth did not reach the leaf")
	}
	if _, ok := tree.Subtree("unknown", 0); ok {
		t.Error("Subtree(unknown) reported ok")
	}
}
