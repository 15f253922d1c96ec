package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/trellis-dev/trellis/internal/pipeline"
	"github.com/trellis-dev/trellis/internal/vectorstore"
)

// TaskSearchTool handles the task_search MCP tool. It embeds the query
// and runs a similarity search over the indexed chunks.
type TaskSearchTool struct {
	embedder pipeline.Embedder
	store    *vectorstore.Client
}

// NewTaskSearchTool creates a TaskSearchTool.
func NewTaskSearchTool(embedder pipeline.Embedder, store *vectorstore.Client) *TaskSearchTool {
	return &TaskSearchTool{embedder: embedder, store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *TaskSearchTool) Definition() mcp.Tool {
	return mcp.NewTool("task_search",
		mcp.WithDescription(
			"Semantic search over indexed task content. Returns matching chunks with "+
				"their task IDs and similarity scores. Only tasks previously indexed "+
				"with task_index are searchable.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural-language search query."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default 10)."),
		),
		mcp.WithString("task_id",
			mcp.Description("Restrict results to one task."),
		),
		mcp.WithString("workspace",
			mcp.Description("Restrict results to one workspace."),
		),
	)
}

// Handle processes the task_search tool call.
func (t *TaskSearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	limit := req.GetInt("limit", 10)

	vectors, err := t.embedder.Embed(ctx, []string{query})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Embedding the query failed: %v", err)), nil
	}

	filters := map[string]string{}
	if id := req.GetString("task_id", ""); id != "" {
		filters["task_id"] = id
	}
	if ws := req.GetString("workspace", ""); ws != "" {
		filters["workspace"] = ws
	}

	hits, err := t.store.Search(ctx, vectors[0], limit, filters)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Search failed: %v", err)), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("No matches."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Search results (%d)\n\n", len(hits))
	for i, h := range hits {
		taskID, _ := h.Payload["task_id"].(string)
		text, _ := h.Payload["text"].(string)
		if len(text) > 300 {
			text = text[:300] + "…"
		}
		fmt.Fprintf(&b, "## %d. task `%s` (score %.3f)\n\n%s\n\n", i+1, taskID, h.Score, text)
	}
	return mcp.NewToolResultText(b.String()), nil
}
