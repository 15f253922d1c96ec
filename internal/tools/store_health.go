package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/trellis-dev/trellis/internal/health"
)

// StoreHealthTool handles the store_health MCP tool. It reports the
// vector collection's status as seen by the store itself.
type StoreHealthTool struct {
	monitor *health.Monitor
}

// NewStoreHealthTool creates a StoreHealthTool.
func NewStoreHealthTool(m *health.Monitor) *StoreHealthTool {
	return &StoreHealthTool{monitor: m}
}

// Definition returns the MCP tool definition for registration.
func (t *StoreHealthTool) Definition() mcp.Tool {
	return mcp.NewTool("store_health",
		mcp.WithDescription(
			"Check the vector store collection's health: status, point count, "+
				"segment count, and optimizer state.",
		),
	)
}

// Handle processes the store_health tool call.
func (t *StoreHealthTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h, err := t.monitor.CheckCollectionHealth(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Health check failed: %v", err)), nil
	}

	var b strings.Builder
	b.WriteString("# Store health\n\n")
	fmt.Fprintf(&b, "**Status:** %s\n", h.Status)
	fmt.Fprintf(&b, "**Points:** %d\n", h.PointCount)
	fmt.Fprintf(&b, "**Indexed vectors:** %d\n", h.IndexedVectorCount)
	fmt.Fprintf(&b, "**Segments:** %d\n", h.SegmentCount)
	fmt.Fprintf(&b, "**Optimizer:** %s\n", h.OptimizerStatus)
	return mcp.NewToolResultText(b.String()), nil
}
