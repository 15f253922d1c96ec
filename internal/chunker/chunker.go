// Package chunker splits a task's content outline into bounded chunks
// ready for embedding.
//
// Chunks prefer outline-entry boundaries and never span tasks. A
// missing or malformed record yields an empty result and a logged
// diagnostic — extraction failure is a data-quality signal, not a
// reason to abort unrelated indexing work.
package chunker

import (
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/trellis-dev/trellis/internal/skeleton"
)

// Bounds per chunk; whichever trips first ends the chunk.
const (
	DefaultMaxChars  = 4000
	DefaultMaxTokens = 1800
)

// chunkNamespace seeds deterministic chunk IDs: re-extracting the same
// task yields the same IDs, so re-indexing overwrites previous points
// instead of accumulating duplicates.
var chunkNamespace = uuid.MustParse("7b09cf4e-3dbb-4a9f-9e5e-6f2f3f1c9a42")

// Chunk is one bounded slice of a task's content.
type Chunk struct {
	ChunkID    string
	TaskID     string
	Seq        int
	Text       string
	TokenCount int
	Entries    int
}

// Extractor builds chunks from cached skeletons.
type Extractor struct {
	cache     *skeleton.Cache
	maxChars  int
	maxTokens int
	tokens    *TokenCounter
}

// NewExtractor creates an Extractor over the cache with default bounds.
func NewExtractor(cache *skeleton.Cache) *Extractor {
	return &Extractor{
		cache:     cache,
		maxChars:  DefaultMaxChars,
		maxTokens: DefaultMaxTokens,
		tokens:    NewTokenCounter("cl100k_base"),
	}
}

// ChunkID returns the deterministic ID for a task's nth chunk.
func ChunkID(taskID string, seq int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s#%d", taskID, seq))).String()
}

// Extract splits taskID's outline into chunks. An unknown task or a
// task with no content yields an empty slice, never an error.
func (x *Extractor) Extract(taskID string) []Chunk {
	sk, ok := x.cache.Get(taskID)
	if !ok {
		log.Printf("WARNING: chunker: task %s not in skeleton cache, nothing to extract", taskID)
		return nil
	}
	if len(sk.Outline) == 0 {
		log.Printf("WARNING: chunker: task %s has an empty content outline", taskID)
		return nil
	}

	var chunks []Chunk
	var b strings.Builder
	entries := 0
	flush := func() {
		text := strings.TrimSpace(b.String())
		b.Reset()
		n := entries
		entries = 0
		if text == "" {
			return
		}
		seq := len(chunks)
		chunks = append(chunks, Chunk{
			ChunkID:    ChunkID(sk.TaskID, seq),
			TaskID:     sk.TaskID,
			Seq:        seq,
			Text:       text,
			TokenCount: x.tokens.Count(text),
			Entries:    n,
		})
	}

	for _, e := range sk.Outline {
		for i, piece := range x.split(render(e)) {
			if b.Len() > 0 && x.overflows(b.String(), piece) {
				flush()
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(piece)
			// Entries counts outline entries, not split pieces: a
			// continuation piece only counts when it opens a new chunk.
			if i == 0 || entries == 0 {
				entries++
			}
		}
	}
	flush()
	return chunks
}

// overflows reports whether appending piece to cur would breach either
// bound.
func (x *Extractor) overflows(cur, piece string) bool {
	if len(cur)+1+len(piece) > x.maxChars {
		return true
	}
	return x.tokens.Count(cur)+x.tokens.Count(piece) > x.maxTokens
}

// split hard-splits a single rendered entry that is itself larger than
// the chunk bound. Splitting mid-entry is the fallback, not the rule.
func (x *Extractor) split(text string) []string {
	if len(text) <= x.maxChars {
		return []string{text}
	}
	var out []string
	for len(text) > x.maxChars {
		cut := x.maxChars
		// Back up to a whitespace boundary when one is near.
		if i := strings.LastIndexAny(text[:cut], " \n\t"); i > x.maxChars/2 {
			cut = i
		}
		out = append(out, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// render flattens one outline entry to embeddable text with a role
// marker.
func render(e skeleton.OutlineEntry) string {
	switch e.Kind {
	case skeleton.EntryUser:
		return "[user] " + e.Text
	case skeleton.EntryAssistant:
		return "[assistant] " + e.Text
	case skeleton.EntryToolCall:
		return "[tool:" + e.ToolName + "] " + e.Text
	case skeleton.EntryToolResult:
		return "[result:" + e.ToolName + "] " + e.Text
	default:
		return e.Text
	}
}
