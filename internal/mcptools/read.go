package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xonecas/etch/internal/hashline"
	"github.com/xonecas/etch/internal/mcp"
)

// ReadArgs represents arguments for the Read tool.
type ReadArgs struct {
	File  string `json:"file"`
	Start int    `json:"start,omitempty"` // optional: start line (1-indexed)
	End   int    `json:"end,omitempty"`   // optional: end line (1-indexed)
}

// NewReadTool creates the Read tool definition.
func NewReadTool() mcp.Tool {
	return mcp.Tool{
		Name:        "read",
		Description: `Reads a file and returns hashline-tagged content. Each line is returned as "LINE#HASH:content". You MUST read a file before editing it — the LINE#HASH references are how edits address lines. Use start/end for line ranges.`,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"file":  {"type": "string", "description": "Path to the file to read"},
				"start": {"type": "integer", "description": "Optional: starting line number (1-indexed, inclusive)"},
				"end":   {"type": "integer", "description": "Optional: ending line number (1-indexed, inclusive)"}
			},
			"required": ["file"]
		}`),
	}
}

// ReadHandler handles Read tool calls.
type ReadHandler struct {
	tracker *FileReadTracker
	rootDir string
}

// NewReadHandler creates a handler for the Read tool rooted at rootDir.
func NewReadHandler(tracker *FileReadTracker, rootDir string) *ReadHandler {
	return &ReadHandler{tracker: tracker, rootDir: rootDir}
}

// Handle implements the tool.
func (h *ReadHandler) Handle(_ context.Context, arguments json.RawMessage) (*mcp.ToolResult, error) {
	var args ReadArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}
	if args.File == "" {
		return toolError("file path cannot be empty"), nil
	}

	absPath, err := resolvePath(h.rootDir, args.File)
	if err != nil {
		return toolError("%v", err), nil
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return toolError("failed to read file: %v", err), nil
	}

	h.tracker.MarkRead(absPath)

	lines := strings.Split(string(content), "\n")
	selected, startLine, err := extractRange(lines, string(content), args.Start, args.End)
	if err != nil {
		return toolError("%v", err), nil
	}

	rangeInfo := ""
	if args.Start > 0 || args.End > 0 {
		end := args.End
		if end <= 0 || end > len(lines) {
			end = len(lines)
		}
		rangeInfo = fmt.Sprintf(" (lines %d-%d)", startLine, end)
	}

	tagged := hashline.FormatHashLines(selected, startLine)
	lineCount := strings.Count(selected, "\n") + 1

	return toolText(fmt.Sprintf("Read %s%s (%d lines):\n\n%s", args.File, rangeInfo, lineCount, tagged)), nil
}

// extractRange returns the selected content and start line number for a line range.
func extractRange(lines []string, full string, start, end int) (string, int, error) {
	if start <= 0 && end <= 0 {
		return full, 1, nil
	}
	if start <= 0 {
		start = 1
	}
	if start > len(lines) {
		return "", 0, fmt.Errorf("start line %d out of range (file has %d lines)", start, len(lines))
	}
	if end <= 0 || end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return "", 0, fmt.Errorf("invalid range: start (%d) > end (%d)", start, end)
	}
	return strings.Join(lines[start-1:end], "\n"), start, nil
}
