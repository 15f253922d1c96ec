// Package tools implements the MCP tool handlers.
//
// Each tool is a struct that receives dependencies via its constructor
// and exposes a Definition for registration plus a Handle compatible
// with mcp-go's CallToolRequest signature. One file per tool.
package tools

import (
	"fmt"
	"strings"

	"github.com/trellis-dev/trellis/internal/resolver"
	"github.com/trellis-dev/trellis/internal/skeleton"
)

// clip shortens s to at most max runes, appending an ellipsis when it
// cut anything. Rune-based so the cut never splits a multi-byte
// character.
func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

// formatTaskLine renders one task as a markdown bullet with its
// resolution provenance.
func formatTaskLine(sk *skeleton.TaskSkeleton, rec resolver.ResolutionRecord) string {
	title := clip(sk.Instruction, 80)
	if title == "" {
		title = "(no instruction)"
	}
	return fmt.Sprintf("- `%s` — %s _(via %s, confidence %.2f)_", sk.TaskID, title, rec.Method, rec.Confidence)
}

// renderSubtree renders a resolved subtree as an indented markdown
// outline.
func renderSubtree(b *strings.Builder, n *resolver.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	title := clip(n.Task.Instruction, 80)
	if title == "" {
		title = "(no instruction)"
	}
	fmt.Fprintf(b, "%s- `%s` — %s _(%.2f)_\n", indent, n.Task.TaskID, title, n.Record.Confidence)
	for _, c := range n.Children {
		renderSubtree(b, c, depth+1)
	}
}
