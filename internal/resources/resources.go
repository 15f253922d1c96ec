// Package resources implements MCP resource handlers.
//
// Resources provide read-only data that the host can consume for
// context. They use URI-based addressing (trellis://...) following MCP
// conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/trellis-dev/trellis/internal/journal"
	"github.com/trellis-dev/trellis/internal/skeleton"
)

// Handler manages the index status resource.
type Handler struct {
	cache   *skeleton.Cache
	journal *journal.Journal
}

// NewHandler creates a resource Handler. journal may be nil when the
// indexing subsystem is disabled.
func NewHandler(cache *skeleton.Cache, j *journal.Journal) *Handler {
	return &Handler{cache: cache, journal: j}
}

// StatusResource returns the MCP resource definition for index status.
func (h *Handler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		"trellis://index/status",
		"Trellis Index Status",
		mcp.WithResourceDescription("Cached task count and indexing statistics"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStatus returns the current status as JSON.
func (h *Handler) HandleStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	status := map[string]any{
		"cached_tasks":     h.cache.Len(),
		"indexing_enabled": h.journal != nil,
	}
	if h.journal != nil {
		stats, err := h.journal.Stats()
		if err != nil {
			status["journal_error"] = err.Error()
		} else {
			status["tasks_indexed"] = stats.TasksIndexed
			status["total_chunks"] = stats.TotalChunks
			if stats.LastIndexedAt != "" {
				status["last_indexed_at"] = stats.LastIndexedAt
			}
		}
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling status: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
