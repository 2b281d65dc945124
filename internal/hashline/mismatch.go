package hashline

import (
	"fmt"
	"sort"
	"strings"
)

// contextLines is the window of unchanged lines shown around each mismatch in
// the formatted report.
const contextLines = 2

// Mismatch records one stale reference: the caller's hash for a line no longer
// matches the file. A batch collects every mismatch, never just the first, so
// the caller gets all corrections in one round trip.
type Mismatch struct {
	Line     int
	Expected string // hash provided by the caller
	Actual   string // hash computed from the file
}

// MismatchError aggregates every stale reference in a batch. It is the
// expected "recoverable" failure: the file changed since the caller's last
// read, and the error carries everything needed to retry without re-reading.
type MismatchError struct {
	// Mismatches lists every stale reference, in batch order.
	Mismatches []Mismatch
	// Remaps maps each stale "line#oldhash" string to the corrected
	// "line#newhash" string, so an automated caller can substitute tags
	// mechanically.
	Remaps map[string]string

	message string
}

func newMismatchError(mismatches []Mismatch, fileLines []string) *MismatchError {
	remaps := make(map[string]string, len(mismatches))
	for _, m := range mismatches {
		old := Tag{Line: m.Line, Hash: m.Expected}
		remaps[old.String()] = Tag{Line: m.Line, Hash: m.Actual}.String()
	}

	return &MismatchError{
		Mismatches: mismatches,
		Remaps:     remaps,
		message:    formatMismatchReport(mismatches, fileLines),
	}
}

func (e *MismatchError) Error() string {
	return e.message
}

// formatMismatchReport renders each mismatched line with its corrected tag and
// a window of context, ">>>" marking the lines that changed and "..." marking
// gaps between non-contiguous regions.
func formatMismatchReport(mismatches []Mismatch, fileLines []string) string {
	changed := make(map[int]bool, len(mismatches))
	display := make(map[int]bool)
	for _, m := range mismatches {
		changed[m.Line] = true
		lo := m.Line - contextLines
		if lo < 1 {
			lo = 1
		}
		hi := m.Line + contextLines
		if hi > len(fileLines) {
			hi = len(fileLines)
		}
		for i := lo; i <= hi; i++ {
			display[i] = true
		}
	}

	nums := make([]int, 0, len(display))
	for n := range display {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	noun := "line has"
	if len(mismatches) > 1 {
		noun = "lines have"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s changed since last read. Use the updated LINE#ID references shown below (>>> marks changed lines).\n",
		len(mismatches), noun)

	prev := -1
	for _, n := range nums {
		if prev != -1 && n > prev+1 {
			b.WriteString("\n    ...")
		}
		prev = n

		content := fileLines[n-1]
		marker := "    "
		if changed[n] {
			marker = ">>> "
		}
		fmt.Fprintf(&b, "\n%s%d#%s:%s", marker, n, LineHash(content), content)
	}
	return b.String()
}
