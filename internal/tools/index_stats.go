package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/trellis-dev/trellis/internal/health"
	"github.com/trellis-dev/trellis/internal/journal"
)

// IndexStatsTool handles the index_stats MCP tool. It combines the
// journal's view of completed runs with the store's live point count.
type IndexStatsTool struct {
	journal *journal.Journal
	monitor *health.Monitor
}

// NewIndexStatsTool creates an IndexStatsTool.
func NewIndexStatsTool(j *journal.Journal, m *health.Monitor) *IndexStatsTool {
	return &IndexStatsTool{journal: j, monitor: m}
}

// Definition returns the MCP tool definition for registration.
func (t *IndexStatsTool) Definition() mcp.Tool {
	return mcp.NewTool("index_stats",
		mcp.WithDescription(
			"Show indexing statistics: tasks indexed, total chunks, last run time, "+
				"and the live point count in the vector store. Optionally inspect one "+
				"task's recorded run with `task_id`.",
		),
		mcp.WithString("task_id",
			mcp.Description("Show the recorded run for one task instead of aggregates."),
		),
	)
}

// Handle processes the index_stats tool call.
func (t *IndexStatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if taskID := req.GetString("task_id", ""); taskID != "" {
		entry, err := t.journal.Get(taskID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("No indexing run recorded for task %q.", taskID)), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "# Index run for `%s`\n\n", entry.TaskID)
		fmt.Fprintf(&b, "**Chunks:** %d\n**Vector dimension:** %d\n**Indexed at:** %s\n\nPoint IDs:\n",
			entry.ChunkCount, entry.VectorDim, entry.IndexedAt)
		for _, id := range entry.PointIDs {
			fmt.Fprintf(&b, "- `%s`\n", id)
		}
		return mcp.NewToolResultText(b.String()), nil
	}

	stats, err := t.journal.Stats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Reading journal stats failed: %v", err)), nil
	}

	var b strings.Builder
	b.WriteString("# Index statistics\n\n")
	fmt.Fprintf(&b, "**Tasks indexed:** %d\n**Total chunks:** %d\n", stats.TasksIndexed, stats.TotalChunks)
	if stats.LastIndexedAt != "" {
		fmt.Fprintf(&b, "**Last indexed:** %s\n", stats.LastIndexedAt)
	}

	// Live store view is best-effort: a store outage degrades the
	// answer, not the tool.
	exists, points, err := t.monitor.GetCollectionStatus(ctx)
	switch {
	case err != nil:
		fmt.Fprintf(&b, "\nStore unavailable: %v\n", err)
	case !exists:
		b.WriteString("\nCollection does not exist yet — nothing indexed.\n")
	default:
		fmt.Fprintf(&b, "**Points in store:** %d\n", points)
	}
	return mcp.NewToolResultText(b.String()), nil
}
