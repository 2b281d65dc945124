package hashline

import (
	"fmt"
	"sort"
	"strings"
)

// Apply applies a batch of edits to file content and returns the new content
// plus the first changed line.
//
// Every reference is validated against the original, unmodified line array
// before any mutation: malformed ranges and out-of-range lines fail fast with
// a plain error, stale hashes are collected into a single *MismatchError
// carrying corrected references. Either the whole batch lands or none of it.
//
// Edits are applied bottom-up (highest anchor line first) so a splice near the
// end of the file never shifts the meaning of a still-pending reference above
// it. Ties on the same anchor are broken by variant precedence.
func Apply(content string, edits []Edit) (EditResult, error) {
	if len(edits) == 0 {
		return EditResult{Content: content}, nil
	}

	lines := strings.Split(content, "\n")
	origLen := len(lines)

	// Cheap structural pre-check before any hash work.
	for _, e := range edits {
		switch e := e.(type) {
		case ReplaceEdit:
			if e.First.Line > e.Last.Line {
				return EditResult{}, fmt.Errorf("range start line %d must be <= end line %d", e.First.Line, e.Last.Line)
			}
		case InsertEdit:
			if e.Before.Line <= e.After.Line {
				return EditResult{}, fmt.Errorf("insert requires after (%d) < before (%d)", e.After.Line, e.Before.Line)
			}
		}
	}

	// Validate every reference, collecting hash drift instead of stopping at
	// the first stale tag. A reference to a nonexistent line is not staleness,
	// it is a malformed request and aborts immediately.
	var mismatches []Mismatch
	for _, e := range edits {
		for _, ref := range e.refs() {
			if ref.Line < 1 || ref.Line > origLen {
				return EditResult{}, fmt.Errorf("line %d does not exist (file has %d lines)", ref.Line, origLen)
			}
			actual := LineHash(lines[ref.Line-1])
			if actual != ref.Hash {
				mismatches = append(mismatches, Mismatch{Line: ref.Line, Expected: ref.Hash, Actual: actual})
			}
		}
	}
	if len(mismatches) > 0 {
		return EditResult{}, newMismatchError(mismatches, lines)
	}

	// Bottom-up: sort by anchor line descending, precedence ascending.
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		li, pi := sorted[i].anchor(origLen)
		lj, pj := sorted[j].anchor(origLen)
		if li != lj {
			return li > lj
		}
		return pi < pj
	})

	firstChanged := 0
	touch := func(line int) {
		if firstChanged == 0 || line < firstChanged {
			firstChanged = line
		}
	}

	for _, e := range sorted {
		switch e := e.(type) {
		case SetEdit:
			lines = splice(lines, e.Tag.Line-1, 1, e.Content)
			touch(e.Tag.Line)

		case ReplaceEdit:
			lines = splice(lines, e.First.Line-1, e.Last.Line-e.First.Line+1, e.Content)
			touch(e.First.Line)

		case AppendEdit:
			switch {
			case e.After != nil:
				lines = splice(lines, e.After.Line, 0, e.Content)
				touch(e.After.Line + 1)
			case emptyFile(lines):
				lines = e.Content
				touch(1)
			default:
				lines = append(lines, e.Content...)
				touch(origLen + 1)
			}

		case PrependEdit:
			switch {
			case e.Before != nil:
				lines = splice(lines, e.Before.Line-1, 0, e.Content)
				touch(e.Before.Line)
			case emptyFile(lines):
				lines = e.Content
				touch(1)
			default:
				lines = splice(lines, 0, 0, e.Content)
				touch(1)
			}

		case InsertEdit:
			lines = splice(lines, e.Before.Line-1, 0, e.Content)
			touch(e.Before.Line)
		}
	}

	return EditResult{Content: strings.Join(lines, "\n"), FirstChangedLine: firstChanged}, nil
}

// splice replaces deleteCount elements at start (0-indexed) with insert.
// Indices are clamped to the current length: anchors are resolved against the
// original file, so a higher-anchored edit that deletes lines can leave a
// still-pending edit pointing past the shrunken array, and that edit then
// lands at the end instead of crashing.
func splice(lines []string, start, deleteCount int, insert []string) []string {
	if start > len(lines) {
		start = len(lines)
	}
	end := start + deleteCount
	if end > len(lines) {
		end = len(lines)
	}
	out := make([]string, 0, len(lines)-(end-start)+len(insert))
	out = append(out, lines[:start]...)
	out = append(out, insert...)
	out = append(out, lines[end:]...)
	return out
}

// emptyFile reports whether the line array represents empty content: splitting
// "" on "\n" yields a single empty line, and anchorless append/prepend should
// replace that phantom line wholesale instead of keeping it.
func emptyFile(lines []string) bool {
	return len(lines) == 1 && lines[0] == ""
}
