package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/xonecas/etch/internal/hashline"
	"github.com/xonecas/etch/internal/journal"
	"github.com/xonecas/etch/internal/mcp"
)

// UndoArgs represents arguments for the Undo tool.
type UndoArgs struct {
	File string `json:"file"`
}

// NewUndoTool creates the Undo tool definition.
func NewUndoTool() mcp.Tool {
	return mcp.Tool{
		Name:        "undo",
		Description: `Reverts the most recent edit to a file, restoring the content from before that edit. Repeated calls step further back. Returns the restored file with fresh LINE#HASH references.`,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"file": {"type": "string", "description": "Path to the file to revert"}
			},
			"required": ["file"]
		}`),
	}
}

// UndoHandler handles Undo tool calls.
type UndoHandler struct {
	journal *journal.Journal
	rootDir string
}

// NewUndoHandler creates a handler for the Undo tool rooted at rootDir.
func NewUndoHandler(jrn *journal.Journal, rootDir string) *UndoHandler {
	return &UndoHandler{journal: jrn, rootDir: rootDir}
}

// Handle implements the tool.
func (h *UndoHandler) Handle(_ context.Context, arguments json.RawMessage) (*mcp.ToolResult, error) {
	var args UndoArgs
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

	content, err := h.journal.Undo(absPath)
	if errors.Is(err, journal.ErrNoSnapshot) {
		return toolError("nothing to undo for %s", args.File), nil
	}
	if err != nil {
		return toolError("undo failed: %v", err), nil
	}

	if err := os.WriteFile(absPath, content, 0600); err != nil {
		return toolError("failed to restore file: %v", err), nil
	}

	log.Info().Str("file", absPath).Msg("restored file from snapshot")

	restored := string(content)
	lineCount := strings.Count(restored, "\n") + 1
	return toolText(fmt.Sprintf("Restored %s (%d lines):\n\n%s",
		args.File, lineCount, hashline.FormatHashLines(restored, 1))), nil
}
