// Package skeleton holds the in-memory summary records for tasks and
// the freshness-aware cache the resolver and indexing pipeline read
// from.
package skeleton

import (
	"context"
	"time"
)

// EntryKind tags one content-outline entry.
type EntryKind string

const (
	EntryUser       EntryKind = "user"
	EntryAssistant  EntryKind = "assistant"
	EntryToolCall   EntryKind = "tool_call"
	EntryToolResult EntryKind = "tool_result"
)

// OutlineEntry is one typed entry of a task's content outline.
type OutlineEntry struct {
	Kind      EntryKind `json:"kind"`
	Text      string    `json:"text"`
	ToolName  string    `json:"tool_name,omitempty"`
	Size      int       `json:"size"`
	Truncated bool      `json:"truncated,omitempty"`
}

// TaskSkeleton is the summary record for one task. Skeletons are owned
// by the Cache and treated as immutable once published in a snapshot;
// a rescan replaces the whole record rather than mutating it in place.
type TaskSkeleton struct {
	TaskID       string    `json:"task_id"`
	ParentTaskID string    `json:"parent_task_id,omitempty"`
	Workspace    string    `json:"workspace,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
	ActionCount  int       `json:"action_count"`
	TotalSize    int64     `json:"total_size"`

	// Instruction is the task's own leading instruction text — the
	// string a declaring parent would have embedded as a delegation
	// fragment.
	Instruction string `json:"instruction"`

	Outline []OutlineEntry `json:"outline"`
}

// Scanner is the external record-scanning collaborator: given a
// workspace scope ("" for all) and a cutoff, it returns summary records
// for every task record changed or added since the cutoff. A zero
// cutoff means everything. Implementations must be idempotent and
// side-effect free.
type Scanner interface {
	Scan(ctx context.Context, workspace string, since time.Time) ([]*TaskSkeleton, error)
}
