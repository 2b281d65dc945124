package hashline

import (
	"errors"
	"strings"
	"testing"
)

// tagFor builds a valid tag for a line of content (1-indexed).
func tagFor(t *testing.T, content string, line int) Tag {
	t.Helper()
	lines := strings.Split(content, "\n")
	if line < 1 || line > len(lines) {
		t.Fatalf("tagFor: line %d out of range", line)
	}
	return Tag{Line: line, Hash: LineHash(lines[line-1])}
}

func mustApply(t *testing.T, content string, edits []Edit) EditResult {
	t.Helper()
	res, err := Apply(content, edits)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return res
}

func TestApplySet(t *testing.T) {
	content := "line1\nline2\nline3"

	res := mustApply(t, content, []Edit{
		SetEdit{Tag: tagFor(t, content, 2), Content: []string{"replaced"}},
	})

	if res.Content != "line1\nreplaced\nline3" {
		t.Errorf("content = %q", res.Content)
	}
	if res.FirstChangedLine != 2 {
		t.Errorf("first changed = %d, want 2", res.FirstChangedLine)
	}
}

func TestApplySetMultipleLines(t *testing.T) {
	content := "a\nb\nc"

	res := mustApply(t, content, []Edit{
		SetEdit{Tag: tagFor(t, content, 2), Content: []string{"b1", "b2", "b3"}},
	})

	if res.Content != "a\nb1\nb2\nb3\nc" {
		t.Errorf("content = %q", res.Content)
	}
}

func TestApplySetDeletesLine(t *testing.T) {
	content := "a\nb\nc"

	res := mustApply(t, content, []Edit{
		SetEdit{Tag: tagFor(t, content, 2), Content: nil},
	})

	if res.Content != "a\nc" {
		t.Errorf("content = %q", res.Content)
	}
}

func TestApplyReplace(t *testing.T) {
	content := "line1\nline2\nline3\nline4"

	res := mustApply(t, content, []Edit{
		ReplaceEdit{
			First:   tagFor(t, content, 2),
			Last:    tagFor(t, content, 3),
			Content: []string{"new line"},
		},
	})

	if res.Content != "line1\nnew line\nline4" {
		t.Errorf("content = %q", res.Content)
	}
	if res.FirstChangedLine != 2 {
		t.Errorf("first changed = %d, want 2", res.FirstChangedLine)
	}
}

func TestApplyReplaceInvertedRange(t *testing.T) {
	content := "a\nb\nc"

	_, err := Apply(content, []Edit{
		ReplaceEdit{
			First:   tagFor(t, content, 3),
			Last:    tagFor(t, content, 1),
			Content: []string{"x"},
		},
	})
	if err == nil {
		t.Fatal("inverted range should fail")
	}
	var mErr *MismatchError
	if errors.As(err, &mErr) {
		t.Error("inverted range should be a structural error, not a mismatch")
	}
}

func TestApplyAppendAfter(t *testing.T) {
	content := "line1\nline2\nline3"
	after := tagFor(t, content, 2)

	res := mustApply(t, content, []Edit{
		AppendEdit{After: &after, Content: []string{"appended"}},
	})

	if res.Content != "line1\nline2\nappended\nline3" {
		t.Errorf("content = %q", res.Content)
	}
	if res.FirstChangedLine != 3 {
		t.Errorf("first changed = %d, want 3", res.FirstChangedLine)
	}
}

func TestApplyAppendAtEOF(t *testing.T) {
	content := "line1\nline2\nline3"

	res := mustApply(t, content, []Edit{
		AppendEdit{Content: []string{"at end"}},
	})

	if res.Content != "line1\nline2\nline3\nat end" {
		t.Errorf("content = %q", res.Content)
	}
	if res.FirstChangedLine != 4 {
		t.Errorf("first changed = %d, want 4", res.FirstChangedLine)
	}
}

func TestApplyAppendToEmptyFile(t *testing.T) {
	res := mustApply(t, "", []Edit{
		AppendEdit{Content: []string{"first", "second"}},
	})

	// No phantom empty line left behind.
	if res.Content != "first\nsecond" {
		t.Errorf("content = %q", res.Content)
	}
	if res.FirstChangedLine != 1 {
		t.Errorf("first changed = %d, want 1", res.FirstChangedLine)
	}
}

func TestApplyPrependBefore(t *testing.T) {
	content := "line1\nline2\nline3"
	before := tagFor(t, content, 2)

	res := mustApply(t, content, []Edit{
		PrependEdit{Before: &before, Content: []string{"prepended"}},
	})

	if res.Content != "line1\nprepended\nline2\nline3" {
		t.Errorf("content = %q", res.Content)
	}
	if res.FirstChangedLine != 2 {
		t.Errorf("first changed = %d, want 2", res.FirstChangedLine)
	}
}

func TestApplyPrependAtBOF(t *testing.T) {
	content := "line1\nline2\nline3"

	res := mustApply(t, content, []Edit{
		PrependEdit{Content: []string{"at start"}},
	})

	if res.Content != "at start\nline1\nline2\nline3" {
		t.Errorf("content = %q", res.Content)
	}
	if res.FirstChangedLine != 1 {
		t.Errorf("first changed = %d, want 1", res.FirstChangedLine)
	}
}

func TestApplyPrependToEmptyFile(t *testing.T) {
	res := mustApply(t, "", []Edit{
		PrependEdit{Content: []string{"only"}},
	})

	if res.Content != "only" {
		t.Errorf("content = %q", res.Content)
	}
}

func TestApplyInsertBetween(t *testing.T) {
	content := "line1\nline2\nline3"

	res := mustApply(t, content, []Edit{
		InsertEdit{
			After:   tagFor(t, content, 1),
			Before:  tagFor(t, content, 2),
			Content: []string{"inserted"},
		},
	})

	if res.Content != "line1\ninserted\nline2\nline3" {
		t.Errorf("content = %q", res.Content)
	}
	if res.FirstChangedLine != 2 {
		t.Errorf("first changed = %d, want 2", res.FirstChangedLine)
	}
}

func TestApplyInsertBadOrdering(t *testing.T) {
	content := "a\nb\nc"

	_, err := Apply(content, []Edit{
		InsertEdit{
			After:   tagFor(t, content, 2),
			Before:  tagFor(t, content, 2),
			Content: []string{"x"},
		},
	})
	if err == nil {
		t.Fatal("insert with before <= after should fail")
	}
}

func TestApplyMultiEditBottomUp(t *testing.T) {
	content := "line1\nline2\nline3\nline4"

	edits := []Edit{
		SetEdit{Tag: tagFor(t, content, 1), Content: []string{"first changed", "extra"}},
		SetEdit{Tag: tagFor(t, content, 4), Content: []string{"last changed"}},
	}

	want := "first changed\nextra\nline2\nline3\nlast changed"

	// The line-1 edit grows the file by a line; the line-4 edit must still hit
	// original line 4 regardless of request order.
	res := mustApply(t, content, edits)
	if res.Content != want {
		t.Errorf("content = %q, want %q", res.Content, want)
	}
	if res.FirstChangedLine != 1 {
		t.Errorf("first changed = %d, want 1", res.FirstChangedLine)
	}

	res = mustApply(t, content, []Edit{edits[1], edits[0]})
	if res.Content != want {
		t.Errorf("reversed order: content = %q, want %q", res.Content, want)
	}
}

func TestApplyOverlappingDeleteAndAppend(t *testing.T) {
	content := "line1\nline2\nline3\nline4\nline5\nline6\nline7\nline8\nline9\nline10"
	after := tagFor(t, content, 5)

	// The range replace lands first (anchor 10) and shrinks the file to two
	// lines; the append's anchor now points past the end and degrades to an
	// append at the tail instead of failing.
	res := mustApply(t, content, []Edit{
		ReplaceEdit{First: tagFor(t, content, 3), Last: tagFor(t, content, 10)},
		AppendEdit{After: &after, Content: []string{"x"}},
	})

	if res.Content != "line1\nline2\nx" {
		t.Errorf("content = %q", res.Content)
	}
	if res.FirstChangedLine != 3 {
		t.Errorf("first changed = %d, want 3", res.FirstChangedLine)
	}
}

func TestApplyOverlappingReplaceRanges(t *testing.T) {
	content := "line1\nline2\nline3\nline4\nline5\nline6"

	// The outer range swallows the inner one's lines; the inner replacement
	// still lands, clamped to the end of the shrunken file.
	res := mustApply(t, content, []Edit{
		ReplaceEdit{First: tagFor(t, content, 4), Last: tagFor(t, content, 5), Content: []string{"C"}},
		ReplaceEdit{First: tagFor(t, content, 2), Last: tagFor(t, content, 6), Content: []string{"B"}},
	})

	if res.Content != "line1\nB\nC" {
		t.Errorf("content = %q", res.Content)
	}
	if res.FirstChangedLine != 2 {
		t.Errorf("first changed = %d, want 2", res.FirstChangedLine)
	}
}

func TestApplySameAnchorPrecedence(t *testing.T) {
	content := "a\nb\nc"
	after := tagFor(t, content, 2)

	// Set of line 2 and append-after-line-2 anchor to the same line; the set
	// must land before the append so both resolve against original line 2.
	res := mustApply(t, content, []Edit{
		AppendEdit{After: &after, Content: []string{"appended"}},
		SetEdit{Tag: tagFor(t, content, 2), Content: []string{"B"}},
	})

	if res.Content != "a\nB\nappended\nc" {
		t.Errorf("content = %q", res.Content)
	}
}

func TestApplyStaleness(t *testing.T) {
	content := "line1\nline2\nline3"

	_, err := Apply(content, []Edit{
		SetEdit{Tag: Tag{Line: 2, Hash: "XX"}, Content: []string{"should fail"}},
	})
	if err == nil {
		t.Fatal("stale hash should fail")
	}

	var mErr *MismatchError
	if !errors.As(err, &mErr) {
		t.Fatalf("expected *MismatchError, got %T: %v", err, err)
	}
	if len(mErr.Mismatches) != 1 {
		t.Fatalf("expected 1 mismatch, got %d", len(mErr.Mismatches))
	}
	m := mErr.Mismatches[0]
	if m.Line != 2 || m.Expected != "XX" {
		t.Errorf("mismatch = %+v", m)
	}
	if m.Actual != LineHash("line2") {
		t.Errorf("actual = %s, want %s", m.Actual, LineHash("line2"))
	}

	corrected, ok := mErr.Remaps["2#XX"]
	if !ok {
		t.Fatalf("remaps missing key 2#XX: %v", mErr.Remaps)
	}
	if want := "2#" + LineHash("line2"); corrected != want {
		t.Errorf("remap = %s, want %s", corrected, want)
	}

	msg := err.Error()
	if !strings.Contains(msg, "changed since last read") {
		t.Errorf("message should mention staleness: %s", msg)
	}
	if !strings.Contains(msg, ">>>") {
		t.Errorf("message should carry the change marker: %s", msg)
	}
}

func TestApplyStalenessCollectsAll(t *testing.T) {
	content := "line1\nline2\nline3\nline4\nline5"

	_, err := Apply(content, []Edit{
		SetEdit{Tag: Tag{Line: 1, Hash: "XX"}, Content: []string{"a"}},
		SetEdit{Tag: tagFor(t, content, 3), Content: []string{"b"}},
		SetEdit{Tag: Tag{Line: 5, Hash: "YY"}, Content: []string{"c"}},
	})

	var mErr *MismatchError
	if !errors.As(err, &mErr) {
		t.Fatalf("expected *MismatchError, got %v", err)
	}
	if len(mErr.Mismatches) != 2 {
		t.Fatalf("expected both stale tags collected, got %d", len(mErr.Mismatches))
	}
	if mErr.Mismatches[0].Line != 1 || mErr.Mismatches[1].Line != 5 {
		t.Errorf("mismatches = %+v", mErr.Mismatches)
	}
	if len(mErr.Remaps) != 2 {
		t.Errorf("remaps = %v", mErr.Remaps)
	}
}

func TestApplyStalenessReportGap(t *testing.T) {
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "content " + string(rune('a'+i))
	}
	content := strings.Join(lines, "\n")

	_, err := Apply(content, []Edit{
		SetEdit{Tag: Tag{Line: 2, Hash: "XX"}, Content: []string{"a"}},
		SetEdit{Tag: Tag{Line: 18, Hash: "XX"}, Content: []string{"b"}},
	})
	if err == nil {
		t.Fatal("expected staleness error")
	}
	if !strings.Contains(err.Error(), "...") {
		t.Errorf("non-contiguous regions should be separated by a gap marker:\n%s", err)
	}
}

func TestApplyOutOfRange(t *testing.T) {
	content := "a\nb\nc"

	_, err := Apply(content, []Edit{
		SetEdit{Tag: Tag{Line: 10, Hash: "ZP"}, Content: []string{"x"}},
	})
	if err == nil {
		t.Fatal("out-of-range line should fail")
	}
	var mErr *MismatchError
	if errors.As(err, &mErr) {
		t.Error("out-of-range is a malformed request, not staleness")
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("error = %v", err)
	}
}

func TestApplyEmptyBatch(t *testing.T) {
	res := mustApply(t, "a\nb", nil)
	if res.Content != "a\nb" {
		t.Errorf("content = %q", res.Content)
	}
	if res.FirstChangedLine != 0 {
		t.Errorf("first changed = %d, want 0", res.FirstChangedLine)
	}
}

func TestApplyIdempotentNoop(t *testing.T) {
	content := "a\nb\nc"

	// Replacing a line with itself reproduces the input byte for byte; the
	// applier still reports the touched line, skipping the write is the
	// caller's call.
	res := mustApply(t, content, []Edit{
		SetEdit{Tag: tagFor(t, content, 2), Content: []string{"b"}},
	})

	if res.Content != content {
		t.Errorf("content = %q, want unchanged", res.Content)
	}
	if res.FirstChangedLine != 2 {
		t.Errorf("first changed = %d, want 2", res.FirstChangedLine)
	}
}

func TestApplyNoMutationOnFailure(t *testing.T) {
	content := "a\nb\nc"

	// One valid edit plus one stale edit: nothing may land.
	_, err := Apply(content, []Edit{
		SetEdit{Tag: tagFor(t, content, 1), Content: []string{"changed"}},
		SetEdit{Tag: Tag{Line: 3, Hash: "XX"}, Content: []string{"stale"}},
	})
	if err == nil {
		t.Fatal("expected staleness error")
	}

	// The original content revalidates cleanly, so no copy was mutated.
	res := mustApply(t, content, []Edit{
		SetEdit{Tag: tagFor(t, content, 3), Content: []string{"c"}},
	})
	if res.Content != content {
		t.Errorf("content = %q, want %q", res.Content, content)
	}
}
