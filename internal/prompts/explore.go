// Package prompts implements MCP prompt handlers.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// ExplorePrompt handles the trellis-explore MCP prompt. It guides the
// AI through reconstructing and browsing a task hierarchy.
type ExplorePrompt struct{}

// NewExplorePrompt creates an ExplorePrompt.
func NewExplorePrompt() *ExplorePrompt {
	return &ExplorePrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ExplorePrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("trellis-explore",
		mcp.WithPromptDescription(
			"Explore the reconstructed task hierarchy: render the forest, drill into "+
				"a subtree, and inspect how each parent link was resolved.",
		),
		mcp.WithArgument("workspace",
			mcp.ArgumentDescription("Workspace to explore. Omit to cover every workspace."),
		),
	)
}

// Handle processes the trellis-explore prompt request.
func (p *ExplorePrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	workspace := ""
	if args := req.Params.Arguments; args != nil {
		workspace = args["workspace"]
	}

	scope := "across all workspaces"
	wsArg := ""
	if workspace != "" {
		scope = fmt.Sprintf("in workspace '%s'", workspace)
		wsArg = fmt.Sprintf(" with workspace='%s'", workspace)
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Explore the task hierarchy %s", scope),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to explore the reconstructed task hierarchy %s.\n\n"+
						"Please:\n"+
						"1. Run `task_tree`%s to render the full forest\n"+
						"2. Point out any tasks resolved with low confidence (root_fallback or disambiguated)\n"+
						"3. For tasks I ask about, use `task_parent` and `task_children` to show how their links were established\n"+
						"4. If I want to find a task by content, use `task_search` (tasks must be indexed with `task_index` first)",
					scope, wsArg,
				)),
			},
		},
	}, nil
}
