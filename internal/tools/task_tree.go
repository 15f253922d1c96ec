package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/trellis-dev/trellis/internal/resolver"
)

// TaskTreeTool handles the task_tree MCP tool. It renders the resolved
// hierarchy as an indented outline, rooted at one task or at every
// root.
type TaskTreeTool struct {
	hier *resolver.Service
}

// NewTaskTreeTool creates a TaskTreeTool.
func NewTaskTreeTool(hier *resolver.Service) *TaskTreeTool {
	return &TaskTreeTool{hier: hier}
}

// Definition returns the MCP tool definition for registration.
func (t *TaskTreeTool) Definition() mcp.Tool {
	return mcp.NewTool("task_tree",
		mcp.WithDescription(
			"Render the resolved task hierarchy as an outline. With `task_id` the outline "+
				"is rooted at that task; without it, every root is rendered. Depth is "+
				"clamped to at most 10 levels.",
		),
		mcp.WithString("task_id",
			mcp.Description("Root of the subtree. Omit to render the whole forest."),
		),
		mcp.WithNumber("depth",
			mcp.Description("Levels of children to include (default 3, max 10)."),
		),
		mcp.WithString("workspace",
			mcp.Description("Limit the rescan to one workspace. Omit to refresh everything."),
		),
		mcp.WithBoolean("strict",
			mcp.Description("Accept only explicit references and unique prefix matches; ambiguous matches become roots."),
		),
	)
}

// Handle processes the task_tree tool call.
func (t *TaskTreeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	depth := req.GetInt("depth", 0)
	workspace := req.GetString("workspace", "")

	var tree *resolver.Tree
	if req.GetBool("strict", false) {
		tree = t.hier.StrictTree(ctx, workspace)
	} else {
		tree = t.hier.Tree(ctx, workspace)
	}

	var b strings.Builder
	if taskID != "" {
		node, ok := tree.Subtree(taskID, depth)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("Task %q not found in the current snapshot.", taskID)), nil
		}
		fmt.Fprintf(&b, "# Tree rooted at `%s`\n\n", taskID)
		renderSubtree(&b, node, 0)
		return mcp.NewToolResultText(b.String()), nil
	}

	roots := tree.Roots()
	if len(roots) == 0 {
		return mcp.NewToolResultText("No tasks in the current snapshot."), nil
	}
	fmt.Fprintf(&b, "# Task forest (%d roots)\n\n", len(roots))
	for _, rootID := range roots {
		node, ok := tree.Subtree(rootID, depth)
		if !ok {
			continue
		}
		renderSubtree(&b, node, 0)
	}
	return mcp.NewToolResultText(b.String()), nil
}
