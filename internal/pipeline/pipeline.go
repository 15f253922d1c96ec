// Package pipeline turns a task's content into vector-store points:
// extract chunks, embed them, validate the vectors, sanitize payloads,
// and upsert the batch through the shared rate limiter.
//
// The pipeline never mutates the skeleton cache and never claims
// success for work it did not do: a zero-chunk outcome always carries a
// diagnostic reason saying which stage produced nothing.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/trellis-dev/trellis/internal/chunker"
	"github.com/trellis-dev/trellis/internal/embedding"
	"github.com/trellis-dev/trellis/internal/skeleton"
	"github.com/trellis-dev/trellis/internal/vectorstore"
)

// Embedder is the embedding service boundary.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Upserter is the retrying, rate-limited write path to the store.
type Upserter interface {
	Upsert(ctx context.Context, points []vectorstore.Point) error
}

// Journal records completed indexing runs. Optional; a nil journal
// disables bookkeeping.
type Journal interface {
	RecordIndexed(taskID string, pointIDs []string, vectorDim int) error
}

// ParentLookup resolves a task's parent and root IDs for the payload's
// relationship fields. Empty strings mean unknown/root.
type ParentLookup func(taskID string) (parentID, rootID string)

// Result is one IndexTask outcome. Reason is non-empty whenever
// ChunkIDs is empty — an empty result is never silent.
type Result struct {
	ChunkIDs []string `json:"chunk_ids"`
	Skipped  int      `json:"skipped,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// Pipeline wires the indexing stages together.
type Pipeline struct {
	extractor *chunker.Extractor
	cache     *skeleton.Cache
	embedder  Embedder
	upserter  Upserter
	journal   Journal
	parents   ParentLookup
	now       func() time.Time
}

// New creates a Pipeline. journal and parents may be nil.
func New(extractor *chunker.Extractor, cache *skeleton.Cache, embedder Embedder, upserter Upserter, journal Journal, parents ParentLookup) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		cache:     cache,
		embedder:  embedder,
		upserter:  upserter,
		journal:   journal,
		parents:   parents,
		now:       time.Now,
	}
}

// IndexTask extracts, embeds, and upserts one task's chunks. Multiple
// IndexTask calls may run concurrently; their store writes are
// serialized by the shared limiter inside the Upserter.
func (p *Pipeline) IndexTask(ctx context.Context, taskID string) (*Result, error) {
	chunks := p.extractor.Extract(taskID)
	if len(chunks) == 0 {
		reason := fmt.Sprintf("no content chunks extracted for task %s (missing record or empty outline)", taskID)
		log.Printf("pipeline: %s", reason)
		return &Result{Reason: reason}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d chunks for task %s: %w", len(chunks), taskID, err)
	}

	// Relationship fields are identical across one task's chunks;
	// resolve them once per run.
	parentID, rootID := "", ""
	if p.parents != nil {
		parentID, rootID = p.parents(taskID)
	}

	// Validate per chunk: a bad vector drops that chunk, not the batch.
	dim := p.embedder.Dimension()
	var points []vectorstore.Point
	var ids []string
	skipped := 0
	for i, c := range chunks {
		if err := embedding.ValidateVector(vectors[i], dim); err != nil {
			skipped++
			log.Printf("WARNING: pipeline: task %s chunk %d dropped: %v", taskID, c.Seq, err)
			continue
		}
		points = append(points, vectorstore.Point{
			ID:      c.ChunkID,
			Vector:  vectors[i],
			Payload: vectorstore.SanitizePayload(p.payload(c, parentID, rootID)),
		})
		ids = append(ids, c.ChunkID)
	}
	if len(points) == 0 {
		reason := fmt.Sprintf("%d chunks extracted for task %s but none indexable (all vectors failed validation)", len(chunks), taskID)
		log.Printf("WARNING: pipeline: %s", reason)
		return &Result{Skipped: skipped, Reason: reason}, nil
	}

	if err := p.upserter.Upsert(ctx, points); err != nil {
		return nil, fmt.Errorf("upserting %d points for task %s: %w", len(points), taskID, err)
	}

	if p.journal != nil {
		if err := p.journal.RecordIndexed(taskID, ids, dim); err != nil {
			log.Printf("WARNING: pipeline: journal write for task %s: %v", taskID, err)
		}
	}
	return &Result{ChunkIDs: ids, Skipped: skipped}, nil
}

// payload builds the point payload for one chunk. Relationship fields
// are explicitly nil when unknown; the sanitizer keeps those nulls and
// drops everything else that is empty.
func (p *Pipeline) payload(c chunker.Chunk, parentID, rootID string) map[string]any {
	pl := map[string]any{
		"task_id":        c.TaskID,
		"chunk_seq":      c.Seq,
		"text":           c.Text,
		"token_count":    c.TokenCount,
		"indexed_at":     p.now().UTC().Format(time.RFC3339),
		"parent_task_id": nil,
		"root_task_id":   nil,
	}
	if sk, ok := p.cache.Get(c.TaskID); ok {
		pl["workspace"] = sk.Workspace
		pl["instruction"] = sk.Instruction
	}
	if parentID != "" {
		pl["parent_task_id"] = parentID
	}
	if rootID != "" {
		pl["root_task_id"] = rootID
	}
	return pl
}
