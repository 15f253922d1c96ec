// Package scanner reads recorded task transcripts from disk and turns
// them into task skeletons.
//
// Layout: one directory per workspace under the scan root, one JSONL
// file per task. The file stem is the task ID; each line is one
// transcript event. Scanning is idempotent and side-effect free, and a
// single malformed record never fails a scan — bad data is zero
// information, not an error.
package scanner

import (
	"bufio"
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/trellis-dev/trellis/internal/skeleton"
)

// MaxEntryText bounds the text kept per outline entry. Longer text is
// cut and flagged; Size always records the original length.
const MaxEntryText = 2000

// event is one transcript line. The first "meta" line, when present,
// carries task identity; other lines are content events.
type event struct {
	Type         string    `json:"type"`
	TaskID       string    `json:"task_id,omitempty"`
	ParentTaskID string    `json:"parent_task_id,omitempty"`
	Workspace    string    `json:"workspace,omitempty"`
	Content      string    `json:"content,omitempty"`
	Tool         string    `json:"tool,omitempty"`
	Timestamp    time.Time `json:"timestamp,omitempty"`
}

// FileScanner implements skeleton.Scanner over a transcript root
// directory.
type FileScanner struct {
	root string
}

// NewFileScanner creates a scanner over root.
func NewFileScanner(root string) *FileScanner {
	return &FileScanner{root: root}
}

var _ skeleton.Scanner = (*FileScanner)(nil)

// Scan returns skeletons for every task record in scope changed since
// the cutoff (zero cutoff means everything). workspace, when non-empty,
// restricts the scan to that workspace directory.
func (s *FileScanner) Scan(ctx context.Context, workspace string, since time.Time) ([]*skeleton.TaskSkeleton, error) {
	workspaces, err := s.workspaces(workspace)
	if err != nil {
		return nil, err
	}

	var out []*skeleton.TaskSkeleton
	for _, ws := range workspaces {
		dir := filepath.Join(s.root, ws)
		entries, err := os.ReadDir(dir)
		if err != nil {
			log.Printf("WARNING: scanner: reading workspace %q: %v", ws, err)
			continue
		}
		for _, ent := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".jsonl") {
				continue
			}
			info, err := ent.Info()
			if err != nil {
				continue
			}
			if !since.IsZero() && !info.ModTime().After(since) {
				continue
			}
			sk := s.parseFile(filepath.Join(dir, ent.Name()), ws)
			if sk != nil {
				out = append(out, sk)
			}
		}
	}
	return out, nil
}

// workspaces lists the workspace directories in scope.
func (s *FileScanner) workspaces(only string) ([]string, error) {
	if only != "" {
		return []string{only}, nil
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// parseFile builds one skeleton from a transcript file. Returns nil
// when the file holds no usable events; parse failures on individual
// lines are skipped.
func (s *FileScanner) parseFile(path, workspace string) *skeleton.TaskSkeleton {
	f, err := os.Open(path)
	if err != nil {
		log.Printf("WARNING: scanner: open %s: %v", path, err)
		return nil
	}
	defer f.Close()

	sk := &skeleton.TaskSkeleton{
		TaskID:    strings.TrimSuffix(filepath.Base(path), ".jsonl"),
		Workspace: workspace,
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lines := 0
	for sc.Scan() {
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var ev event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			continue // malformed line: zero information
		}
		lines++
		s.apply(sk, ev)
	}
	if err := sc.Err(); err != nil {
		log.Printf("WARNING: scanner: reading %s: %v", path, err)
	}
	if lines == 0 {
		return nil
	}
	if sk.LastActivity.IsZero() {
		if info, err := os.Stat(path); err == nil {
			sk.LastActivity = info.ModTime()
		}
	}
	if sk.CreatedAt.IsZero() {
		sk.CreatedAt = sk.LastActivity
	}
	return sk
}

// apply folds one event into the skeleton.
func (s *FileScanner) apply(sk *skeleton.TaskSkeleton, ev event) {
	if !ev.Timestamp.IsZero() {
		if sk.CreatedAt.IsZero() || ev.Timestamp.Before(sk.CreatedAt) {
			sk.CreatedAt = ev.Timestamp
		}
		if ev.Timestamp.After(sk.LastActivity) {
			sk.LastActivity = ev.Timestamp
		}
	}

	switch ev.Type {
	case "meta":
		if ev.TaskID != "" {
			sk.TaskID = ev.TaskID
		}
		if ev.ParentTaskID != "" {
			sk.ParentTaskID = ev.ParentTaskID
		}
		if ev.Workspace != "" {
			sk.Workspace = ev.Workspace
		}
		return
	case "user":
		sk.MessageCount++
		if sk.Instruction == "" {
			sk.Instruction = ev.Content
		}
		sk.Outline = append(sk.Outline, outlineEntry(skeleton.EntryUser, ev.Content, ""))
	case "assistant":
		sk.MessageCount++
		sk.Outline = append(sk.Outline, outlineEntry(skeleton.EntryAssistant, ev.Content, ""))
	case "tool_call":
		sk.ActionCount++
		sk.Outline = append(sk.Outline, outlineEntry(skeleton.EntryToolCall, ev.Content, ev.Tool))
	case "tool_result":
		sk.ActionCount++
		sk.Outline = append(sk.Outline, outlineEntry(skeleton.EntryToolResult, ev.Content, ev.Tool))
	default:
		return // unknown event kinds are skipped, not fatal
	}
	sk.TotalSize += int64(len(ev.Content))
}

func outlineEntry(kind skeleton.EntryKind, text, tool string) skeleton.OutlineEntry {
	e := skeleton.OutlineEntry{Kind: kind, ToolName: tool, Size: len(text)}
	if len(text) > MaxEntryText {
		// Back off to a rune boundary so truncation never leaves a
		// partial multi-byte sequence at the cut.
		cut := MaxEntryText
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		e.Text = text[:cut]
		e.Truncated = true
	} else {
		e.Text = text
	}
	return e
}
