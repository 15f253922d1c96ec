package skeleton

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeScanner returns scripted results and records the cutoffs it was
// called with.
type fakeScanner struct {
	results [][]*TaskSkeleton
	err     error
	calls   int
	sinces  []time.Time
}

func (f *fakeScanner) Scan(ctx context.Context, workspace string, since time.Time) ([]*TaskSkeleton, error) {
	f.calls++
	f.sinces = append(f.sinces, since)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	res := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return res, nil
}

func sk(id string) *TaskSkeleton {
	return &TaskSkeleton{TaskID: id}
}

func fakeClock(start time.Time) (func() time.Time, func(time.Duration)) {
	cur := start
	return func() time.Time { return cur }, func(d time.Duration) { cur = cur.Add(d) }
}

func TestEnsureFresh_PopulatesEmptyCache(t *testing.T) {
	fs := &fakeScanner{results: [][]*TaskSkeleton{{sk("a"), sk("b")}}}
	c := NewCache(fs)

	c.EnsureFresh(context.Background(), "")

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("task a missing after rebuild")
	}
	// An empty cache triggers a full scan: zero cutoff.
	if !fs.sinces[0].IsZero() {
		t.Errorf("first scan cutoff = %v, want zero (full scan)", fs.sinces[0])
	}
}

func TestEnsureFresh_SkipsWithinStalenessWindow(t *testing.T) {
	now, advance := fakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	fs := &fakeScanner{results: [][]*TaskSkeleton{{sk("a")}}}
	c := NewCache(fs, WithClock(now), WithStaleness(time.Minute))

	c.EnsureFresh(context.Background(), "")
	advance(30 * time.Second)
	c.EnsureFresh(context.Background(), "")

	if fs.calls != 1 {
		t.Errorf("scan calls = %d, want 1 (second call inside staleness window)", fs.calls)
	}
}

func TestEnsureFresh_RescansAfterStaleness(t *testing.T) {
	now, advance := fakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	fs := &fakeScanner{results: [][]*TaskSkeleton{{sk("a")}, {sk("b")}}}
	c := NewCache(fs, WithClock(now), WithStaleness(time.Minute))

	c.EnsureFresh(context.Background(), "")
	advance(2 * time.Minute)
	c.EnsureFresh(context.Background(), "")

	if fs.calls != 2 {
		t.Fatalf("scan calls = %d, want 2", fs.calls)
	}
	// Differential rescan merges: both tasks present.
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2 (merge, not replace)", c.Len())
	}
	// The second scan is differential: non-zero cutoff.
	if fs.sinces[1].IsZero() {
		t.Error("second scan cutoff is zero, want the last scan time")
	}
}

func TestEnsureFresh_MarkDirtyForcesRescan(t *testing.T) {
	now, _ := fakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	fs := &fakeScanner{results: [][]*TaskSkeleton{{sk("a")}, {sk("b")}}}
	c := NewCache(fs, WithClock(now), WithStaleness(time.Hour))

	c.EnsureFresh(context.Background(), "")
	c.MarkDirty()
	c.EnsureFresh(context.Background(), "")

	if fs.calls != 2 {
		t.Errorf("scan calls = %d, want 2 (dirty flag bypasses staleness)", fs.calls)
	}
}

func TestEnsureFresh_InvalidateDropsDeletedRecords(t *testing.T) {
	fs := &fakeScanner{results: [][]*TaskSkeleton{{sk("a"), sk("b")}, {sk("a")}}}
	c := NewCache(fs)

	c.EnsureFresh(context.Background(), "")
	if c.Len() != 2 {
		t.Fatalf("Len = %d after initial scan, want 2", c.Len())
	}

	// A remove/rename event invalidates the cache: the next rebuild is
	// full and replaces the snapshot, so b drops out.
	c.Invalidate()
	c.EnsureFresh(context.Background(), "")

	if !fs.sinces[1].IsZero() {
		t.Errorf("rebuild after Invalidate used cutoff %v, want zero (full scan)", fs.sinces[1])
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d after invalidated rebuild, want 1", c.Len())
	}
	if _, ok := c.Get("b"); ok {
		t.Error("task b still present after its record disappeared from a full rebuild")
	}
}

func TestEnsureFresh_InvalidateScopedReplacesOnlyThatWorkspace(t *testing.T) {
	alpha1 := &TaskSkeleton{TaskID: "a1", Workspace: "alpha"}
	alpha2 := &TaskSkeleton{TaskID: "a2", Workspace: "alpha"}
	beta1 := &TaskSkeleton{TaskID: "b1", Workspace: "beta"}
	fs := &fakeScanner{results: [][]*TaskSkeleton{{alpha1, alpha2, beta1}, {alpha1}}}
	c := NewCache(fs)

	c.EnsureFresh(context.Background(), "")
	c.Invalidate()
	c.EnsureFresh(context.Background(), "alpha")

	if _, ok := c.Get("a2"); ok {
		t.Error("deleted alpha record survived a scoped full rebuild")
	}
	if _, ok := c.Get("b1"); !ok {
		t.Error("beta record dropped by a rebuild scoped to alpha")
	}
}

func TestEnsureFresh_DifferentialCutoffOverlapsPreviousScan(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now, advance := fakeClock(start)
	fs := &fakeScanner{results: [][]*TaskSkeleton{{sk("a")}, {sk("b")}}}
	c := NewCache(fs, WithClock(now), WithStaleness(time.Minute))

	c.EnsureFresh(context.Background(), "")
	advance(2 * time.Minute)
	c.EnsureFresh(context.Background(), "")

	// A file written while the first scan ran has a modtime at or before
	// the scan's start; the next cutoff must sit strictly before it.
	want := start.Add(-scanOverlap)
	if !fs.sinces[1].Equal(want) {
		t.Errorf("second scan cutoff = %v, want %v (previous scan start minus overlap)", fs.sinces[1], want)
	}
}

func TestEnsureFresh_ScanFailureKeepsLastKnownGood(t *testing.T) {
	now, advance := fakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	fs := &fakeScanner{results: [][]*TaskSkeleton{{sk("a"), sk("b")}}}
	c := NewCache(fs, WithClock(now), WithStaleness(time.Minute))

	c.EnsureFresh(context.Background(), "")
	fs.err = errors.New("disk unavailable")
	advance(2 * time.Minute)
	c.EnsureFresh(context.Background(), "")

	if c.Len() != 2 {
		t.Errorf("Len = %d after failed rescan, want 2 (last-known-good retained)", c.Len())
	}
}

func TestEnsureFresh_UpdatedRecordReplaces(t *testing.T) {
	now, advance := fakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	old := &TaskSkeleton{TaskID: "a", Instruction: "old"}
	updated := &TaskSkeleton{TaskID: "a", Instruction: "new"}
	fs := &fakeScanner{results: [][]*TaskSkeleton{{old}, {updated}}}
	c := NewCache(fs, WithClock(now), WithStaleness(time.Minute))

	c.EnsureFresh(context.Background(), "")
	advance(2 * time.Minute)
	c.EnsureFresh(context.Background(), "")

	got, ok := c.Get("a")
	if !ok {
		t.Fatal("task a missing")
	}
	if got.Instruction != "new" {
		t.Errorf("Instruction = %q, want %q", got.Instruction, "new")
	}
}

func TestAll_SortedByTaskID(t *testing.T) {
	fs := &fakeScanner{results: [][]*TaskSkeleton{{sk("c"), sk("a"), sk("b")}}}
	c := NewCache(fs)
	c.EnsureFresh(context.Background(), "")

	all := c.All()
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	for i, want := range []string{"a", "b", "c"} {
		if all[i].TaskID != want {
			t.Errorf("All()[%d] = %s, want %s", i, all[i].TaskID, want)
		}
	}
}

func TestAll_StableAgainstConcurrentRebuild(t *testing.T) {
	fs := &fakeScanner{results: [][]*TaskSkeleton{{sk("a")}, {sk("b")}}}
	c := NewCache(fs, WithStaleness(0))
	c.EnsureFresh(context.Background(), "")

	view := c.All()
	c.MarkDirty()
	c.EnsureFresh(context.Background(), "")

	if len(view) != 1 || view[0].TaskID != "a" {
		t.Errorf("earlier view mutated by rebuild: %v", view)
	}
}
