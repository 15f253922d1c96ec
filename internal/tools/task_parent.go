package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/trellis-dev/trellis/internal/resolver"
)

// TaskParentTool handles the task_parent MCP tool. It reports the
// resolved parent of one task with the method and confidence behind
// the assignment.
type TaskParentTool struct {
	hier *resolver.Service
}

// NewTaskParentTool creates a TaskParentTool.
func NewTaskParentTool(hier *resolver.Service) *TaskParentTool {
	return &TaskParentTool{hier: hier}
}

// Definition returns the MCP tool definition for registration.
func (t *TaskParentTool) Definition() mcp.Tool {
	return mcp.NewTool("task_parent",
		mcp.WithDescription(
			"Show the resolved parent of a task, including how the link was established "+
				"(explicit reference, prefix match, or root fallback) and its confidence.",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The task whose parent to resolve."),
		),
		mcp.WithString("workspace",
			mcp.Description("Limit the rescan to one workspace. Omit to refresh everything."),
		),
	)
}

// Handle processes the task_parent tool call.
func (t *TaskParentTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	if taskID == "" {
		return mcp.NewToolResultError("task_id is required"), nil
	}
	workspace := req.GetString("workspace", "")

	tree := t.hier.Tree(ctx, workspace)
	parentID, rec, ok := tree.Parent(taskID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Task %q not found in the current snapshot.", taskID)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Parent of `%s`\n\n", taskID)
	if parentID == "" {
		fmt.Fprintf(&b, "Task `%s` is a root (method: %s, confidence %.2f).\n", taskID, rec.Method, rec.Confidence)
		return mcp.NewToolResultText(b.String()), nil
	}

	fmt.Fprintf(&b, "**Parent:** `%s`\n**Method:** %s\n**Confidence:** %.2f\n", parentID, rec.Method, rec.Confidence)
	if sk, ok := tree.Task(parentID); ok && sk.Instruction != "" {
		fmt.Fprintf(&b, "**Instruction:** %s\n", clip(sk.Instruction, 120))
	}
	return mcp.NewToolResultText(b.String()), nil
}
