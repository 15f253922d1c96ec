package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/trellis-dev/trellis/internal/pipeline"
	"github.com/trellis-dev/trellis/internal/resolver"
)

// TaskIndexTool handles the task_index MCP tool. It runs the indexing
// pipeline for one task: chunk, embed, validate, upsert.
type TaskIndexTool struct {
	pipe *pipeline.Pipeline
	hier *resolver.Service
}

// NewTaskIndexTool creates a TaskIndexTool.
func NewTaskIndexTool(pipe *pipeline.Pipeline, hier *resolver.Service) *TaskIndexTool {
	return &TaskIndexTool{pipe: pipe, hier: hier}
}

// Definition returns the MCP tool definition for registration.
func (t *TaskIndexTool) Definition() mcp.Tool {
	return mcp.NewTool("task_index",
		mcp.WithDescription(
			"Index one task's content into the vector store: extract chunks, embed "+
				"them, and upsert. Re-indexing replaces the task's previous points. "+
				"The result always states how many chunks were indexed and why when "+
				"the answer is zero.",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The task to index."),
		),
		mcp.WithString("workspace",
			mcp.Description("Limit the rescan to one workspace. Omit to refresh everything."),
		),
	)
}

// Handle processes the task_index tool call.
func (t *TaskIndexTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	if taskID == "" {
		return mcp.NewToolResultError("task_id is required"), nil
	}
	workspace := req.GetString("workspace", "")

	// Refresh before extraction so the pipeline sees current content.
	t.hier.Tree(ctx, workspace)

	res, err := t.pipe.IndexTask(ctx, taskID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Indexing task %q failed: %v", taskID, err)), nil
	}
	if len(res.ChunkIDs) == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("No chunks indexed for task %q: %s", taskID, res.Reason)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Indexed **%d** chunks for task `%s`", len(res.ChunkIDs), taskID)
	if res.Skipped > 0 {
		fmt.Fprintf(&b, " (%d skipped by vector validation)", res.Skipped)
	}
	b.WriteString(".\n\nPoint IDs:\n")
	for _, id := range res.ChunkIDs {
		fmt.Fprintf(&b, "- `%s`\n", id)
	}
	return mcp.NewToolResultText(b.String()), nil
}
