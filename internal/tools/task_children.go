package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/trellis-dev/trellis/internal/resolver"
)

// TaskChildrenTool handles the task_children MCP tool. It lists the
// resolved child tasks of one task, in delegation order.
type TaskChildrenTool struct {
	hier *resolver.Service
}

// NewTaskChildrenTool creates a TaskChildrenTool.
func NewTaskChildrenTool(hier *resolver.Service) *TaskChildrenTool {
	return &TaskChildrenTool{hier: hier}
}

// Definition returns the MCP tool definition for registration.
func (t *TaskChildrenTool) Definition() mcp.Tool {
	return mcp.NewTool("task_children",
		mcp.WithDescription(
			"List the child tasks of a task, ordered by the parent's delegation order. "+
				"Each child carries its resolution method and confidence.",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The parent task ID."),
		),
		mcp.WithString("workspace",
			mcp.Description("Limit the rescan to one workspace. Omit to refresh everything."),
		),
	)
}

// Handle processes the task_children tool call.
func (t *TaskChildrenTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	if taskID == "" {
		return mcp.NewToolResultError("task_id is required"), nil
	}
	workspace := req.GetString("workspace", "")

	tree := t.hier.Tree(ctx, workspace)
	if _, ok := tree.Record(taskID); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Task %q not found in the current snapshot.", taskID)), nil
	}

	kids := tree.ChildrenOf(taskID)
	if len(kids) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Task `%s` has no resolved children.", taskID)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Children of `%s`\n\n", taskID)
	for _, childID := range kids {
		sk, ok := tree.Task(childID)
		if !ok {
			continue
		}
		rec, _ := tree.Record(childID)
		b.WriteString(formatTaskLine(sk, rec))
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}
