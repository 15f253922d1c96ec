package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/trellis-dev/trellis/internal/journal"
	"github.com/trellis-dev/trellis/internal/vectorstore"
)

// IndexResetTool handles the index_reset MCP tool. It drops and
// recreates the collection and clears the journal.
type IndexResetTool struct {
	store     *vectorstore.Client
	journal   *journal.Journal
	dimension int
}

// NewIndexResetTool creates an IndexResetTool.
func NewIndexResetTool(store *vectorstore.Client, j *journal.Journal, dimension int) *IndexResetTool {
	return &IndexResetTool{store: store, journal: j, dimension: dimension}
}

// Definition returns the MCP tool definition for registration.
func (t *IndexResetTool) Definition() mcp.Tool {
	return mcp.NewTool("index_reset",
		mcp.WithDescription(
			"Drop the vector collection, recreate it empty, and clear the index "+
				"journal. Destructive — requires confirm=true.",
		),
		mcp.WithBoolean("confirm",
			mcp.Required(),
			mcp.Description("Must be true. Guards against accidental resets."),
		),
	)
}

// Handle processes the index_reset tool call.
func (t *IndexResetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !req.GetBool("confirm", false) {
		return mcp.NewToolResultError("Reset not confirmed. Pass confirm=true to drop the index."), nil
	}

	if err := t.store.DeleteCollection(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Dropping collection %q failed: %v", t.store.Collection(), err)), nil
	}
	if err := t.store.EnsureCollection(ctx, t.dimension); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Recreating collection %q failed: %v", t.store.Collection(), err)), nil
	}

	dropped := int64(0)
	if t.journal != nil {
		n, err := t.journal.Reset()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Collection recreated, but clearing the journal failed: %v", err)), nil
		}
		dropped = n
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Collection `%s` reset (dimension %d). Journal cleared: %d task records dropped.",
		t.store.Collection(), t.dimension, dropped,
	)), nil
}
