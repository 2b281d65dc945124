package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/etch/internal/hashline"
	"github.com/xonecas/etch/internal/journal"
	"github.com/xonecas/etch/internal/mcp"
)

const (
	// windowThreshold is the minimum line count to trigger windowed output.
	windowThreshold = 50
	// windowContext is the number of lines shown above/below the edit region.
	windowContext = 20
	// lockTimeout bounds the wait for the per-file advisory lock.
	lockTimeout = 2 * time.Second
	// lockPollInterval is the interval to poll for the lock.
	lockPollInterval = 10 * time.Millisecond
)

// EditArgs represents arguments for the Edit tool: a batch of hashline edits
// against a single file.
type EditArgs struct {
	File  string     `json:"file"`
	Edits []EditSpec `json:"edits"`
}

// EditSpec is one edit operation as sent by the model. Which reference fields
// apply depends on Op; all references are "LINE#HASH" strings from read output.
type EditSpec struct {
	Op      string    `json:"op"`
	Tag     string    `json:"tag,omitempty"`    // set
	First   string    `json:"first,omitempty"`  // replace
	Last    string    `json:"last,omitempty"`   // replace
	After   string    `json:"after,omitempty"`  // append (optional), insert
	Before  string    `json:"before,omitempty"` // prepend (optional), insert
	Content LineBlock `json:"content"`
}

// LineBlock is a list of lines that also accepts a single JSON string.
type LineBlock []string

// UnmarshalJSON treats a bare string as a one-element list.
func (l *LineBlock) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = LineBlock{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("content must be a string or a list of strings")
	}
	*l = LineBlock(many)
	return nil
}

// NewEditTool creates the Edit tool definition.
func NewEditTool() mcp.Tool {
	return mcp.Tool{
		Name: "edit",
		Description: `Edit a file using a batch of hashline operations. You MUST read the file first to get LINE#HASH references.
Operations (content may be a string or a list of strings):
  {"op":"set","tag":"5#ZP","content":["new line"]}            replace one line
  {"op":"replace","first":"5#ZP","last":"7#QM","content":[]}  replace an inclusive range
  {"op":"append","after":"5#ZP","content":["x"]}              insert after a line ("after" optional: end of file)
  {"op":"prepend","before":"6#QM","content":["x"]}            insert before a line ("before" optional: start of file)
  {"op":"insert","after":"5#ZP","before":"6#QM","content":["x"]}  insert between two lines
All references are validated against the current file before anything is applied.
If any hash no longer matches, no edit lands and you receive corrected LINE#HASH references to retry with.`,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"file": {"type": "string", "description": "Path to the file to edit"},
				"edits": {
					"type": "array",
					"description": "Edit operations, applied as one atomic batch",
					"items": {
						"type": "object",
						"properties": {
							"op":      {"type": "string", "enum": ["set", "replace", "append", "prepend", "insert"]},
							"tag":     {"type": "string", "description": "LINE#HASH of the line to set"},
							"first":   {"type": "string", "description": "LINE#HASH of the first line to replace"},
							"last":    {"type": "string", "description": "LINE#HASH of the last line to replace"},
							"after":   {"type": "string", "description": "LINE#HASH of the line to insert after"},
							"before":  {"type": "string", "description": "LINE#HASH of the line to insert before"},
							"content": {"description": "New line(s): a string or a list of strings"}
						},
						"required": ["op"]
					}
				}
			},
			"required": ["file", "edits"]
		}`),
	}
}

// EditHandler handles Edit tool calls.
type EditHandler struct {
	tracker *FileReadTracker
	journal *journal.Journal
	rootDir string
}

// NewEditHandler creates a handler for the Edit tool rooted at rootDir.
// jrn may be nil; edits then simply leave no undo trail.
func NewEditHandler(tracker *FileReadTracker, jrn *journal.Journal, rootDir string) *EditHandler {
	return &EditHandler{tracker: tracker, journal: jrn, rootDir: rootDir}
}

// Handle implements the tool.
func (h *EditHandler) Handle(ctx context.Context, arguments json.RawMessage) (*mcp.ToolResult, error) {
	var args EditArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}
	if args.File == "" {
		return toolError("file path cannot be empty"), nil
	}
	if len(args.Edits) == 0 {
		return toolError("no edits provided"), nil
	}

	edits, err := parseEdits(args.Edits)
	if err != nil {
		return toolError("%v", err), nil
	}

	absPath, err := resolvePath(h.rootDir, args.File)
	if err != nil {
		return toolError("%v", err), nil
	}

	if !h.tracker.WasRead(absPath) {
		return toolError("you must read the file before editing it. Use read on %s first — you need the LINE#HASH references.", args.File), nil
	}

	// Concurrent edits to the same file race at the filesystem level; the
	// advisory lock serializes us against other etch processes. Staleness
	// detection still catches external writers that don't take the lock.
	fl := flock.New(absPath + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := fl.TryLockContext(lockCtx, lockPollInterval)
	if err != nil || !locked {
		return toolError("timed out waiting for lock on %s", args.File), nil
	}
	defer fl.Unlock()

	original, err := os.ReadFile(absPath)
	if err != nil {
		return toolError("failed to read file: %v", err), nil
	}

	result, err := hashline.Apply(string(original), edits)
	if err != nil {
		return h.editFailure(args.File, err), nil
	}

	if result.Content == string(original) {
		return toolText(fmt.Sprintf("No changes made to %s - edits produced identical content.", args.File)), nil
	}

	h.journal.RecordModify(absPath, original)

	if err := os.WriteFile(absPath, []byte(result.Content), 0600); err != nil {
		return toolError("failed to write file: %v", err), nil
	}

	log.Info().
		Str("file", absPath).
		Int("edits", len(edits)).
		Int("first_changed_line", result.FirstChangedLine).
		Msg("applied hashline edits")

	return toolText(formatEditResponse(args.File, string(original), result)), nil
}

// editFailure converts an engine error into a tool result. Staleness errors
// carry the full correction report plus the old→new reference map so the model
// can substitute tags mechanically.
func (h *EditHandler) editFailure(displayPath string, err error) *mcp.ToolResult {
	if mErr, ok := err.(*hashline.MismatchError); ok {
		var b strings.Builder
		b.WriteString(mErr.Error())
		b.WriteString("\n\nCorrected references:")

		keys := make([]string, 0, len(mErr.Remaps))
		for old := range mErr.Remaps {
			keys = append(keys, old)
		}
		sort.Strings(keys)
		for _, old := range keys {
			fmt.Fprintf(&b, "\n  %s -> %s", old, mErr.Remaps[old])
		}
		return toolError("%s", b.String())
	}
	return toolError("edit %s: %v", displayPath, err)
}

// formatEditResponse builds the response text: fresh hashline tags (windowed
// around the first change for large files) plus a unified diff.
func formatEditResponse(displayPath, before string, result hashline.EditResult) string {
	lines := strings.Split(result.Content, "\n")
	total := len(lines)

	var tagged string
	var rangeInfo string
	if total <= windowThreshold {
		tagged = hashline.FormatHashLines(result.Content, 1)
	} else {
		winStart := result.FirstChangedLine - windowContext
		if winStart < 1 {
			winStart = 1
		}
		winEnd := result.FirstChangedLine + windowContext
		if winEnd > total {
			winEnd = total
		}
		tagged = hashline.FormatHashLines(strings.Join(lines[winStart-1:winEnd], "\n"), winStart)
		rangeInfo = fmt.Sprintf(", showing %d-%d", winStart, winEnd)
	}

	diffEdits := myers.ComputeEdits(span.URIFromPath(displayPath), before, result.Content)
	diff := fmt.Sprint(gotextdiff.ToUnified(displayPath+" (before)", displayPath+" (after)", before, diffEdits))

	return fmt.Sprintf("Edited %s (%d lines%s):\n\n%s\n\nDiff:\n%s", displayPath, total, rangeInfo, tagged, diff)
}

// parseEdits converts wire-format edit specs into engine edits.
func parseEdits(specs []EditSpec) ([]hashline.Edit, error) {
	edits := make([]hashline.Edit, 0, len(specs))
	for i, spec := range specs {
		edit, err := parseEdit(spec)
		if err != nil {
			return nil, fmt.Errorf("edit %d: %w", i+1, err)
		}
		edits = append(edits, edit)
	}
	return edits, nil
}

func parseEdit(spec EditSpec) (hashline.Edit, error) {
	switch spec.Op {
	case "set":
		if spec.Tag == "" {
			return nil, fmt.Errorf("set requires a tag")
		}
		tag, err := hashline.ParseTag(spec.Tag)
		if err != nil {
			return nil, err
		}
		return hashline.SetEdit{Tag: tag, Content: spec.Content}, nil

	case "replace":
		if spec.First == "" || spec.Last == "" {
			return nil, fmt.Errorf("replace requires first and last")
		}
		first, err := hashline.ParseTag(spec.First)
		if err != nil {
			return nil, err
		}
		last, err := hashline.ParseTag(spec.Last)
		if err != nil {
			return nil, err
		}
		return hashline.ReplaceEdit{First: first, Last: last, Content: spec.Content}, nil

	case "append":
		var after *hashline.Tag
		if spec.After != "" {
			tag, err := hashline.ParseTag(spec.After)
			if err != nil {
				return nil, err
			}
			after = &tag
		}
		return hashline.AppendEdit{After: after, Content: spec.Content}, nil

	case "prepend":
		var before *hashline.Tag
		if spec.Before != "" {
			tag, err := hashline.ParseTag(spec.Before)
			if err != nil {
				return nil, err
			}
			before = &tag
		}
		return hashline.PrependEdit{Before: before, Content: spec.Content}, nil

	case "insert":
		if spec.After == "" || spec.Before == "" {
			return nil, fmt.Errorf("insert requires after and before")
		}
		after, err := hashline.ParseTag(spec.After)
		if err != nil {
			return nil, err
		}
		before, err := hashline.ParseTag(spec.Before)
		if err != nil {
			return nil, err
		}
		return hashline.InsertEdit{After: after, Before: before, Content: spec.Content}, nil

	default:
		return nil, fmt.Errorf("unknown edit operation: %q", spec.Op)
	}
}
