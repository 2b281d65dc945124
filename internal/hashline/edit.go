package hashline

// Edit is one operation in a batch. The five variants form a closed set; each
// knows which tags it depends on and where it anchors for bottom-up ordering.
type Edit interface {
	// refs returns every tag the edit must validate against the original file.
	refs() []Tag
	// anchor returns the effective anchor line and same-line precedence used
	// to order edits within a batch. numLines is the original line count.
	anchor(numLines int) (line, precedence int)
}

// Same-anchor precedence: when several edits anchor to the same line, content
// replacement lands before append, append before prepend, prepend before insert.
const (
	precSet     = 0
	precAppend  = 1
	precPrepend = 2
	precInsert  = 3
)

// SetEdit replaces exactly the referenced line with zero or more new lines.
type SetEdit struct {
	Tag     Tag
	Content []string
}

func (e SetEdit) refs() []Tag { return []Tag{e.Tag} }

func (e SetEdit) anchor(int) (int, int) { return e.Tag.Line, precSet }

// ReplaceEdit replaces the inclusive range [First, Last] with new content.
type ReplaceEdit struct {
	First   Tag
	Last    Tag
	Content []string
}

func (e ReplaceEdit) refs() []Tag { return []Tag{e.First, e.Last} }

func (e ReplaceEdit) anchor(int) (int, int) { return e.Last.Line, precSet }

// AppendEdit inserts lines after the referenced line, or at EOF when After is nil.
type AppendEdit struct {
	After   *Tag
	Content []string
}

func (e AppendEdit) refs() []Tag {
	if e.After == nil {
		return nil
	}
	return []Tag{*e.After}
}

func (e AppendEdit) anchor(numLines int) (int, int) {
	if e.After == nil {
		return numLines + 1, precAppend
	}
	return e.After.Line, precAppend
}

// PrependEdit inserts lines before the referenced line, or at BOF when Before is nil.
type PrependEdit struct {
	Before  *Tag
	Content []string
}

func (e PrependEdit) refs() []Tag {
	if e.Before == nil {
		return nil
	}
	return []Tag{*e.Before}
}

func (e PrependEdit) anchor(int) (int, int) {
	if e.Before == nil {
		return 0, precPrepend
	}
	return e.Before.Line, precPrepend
}

// InsertEdit inserts lines strictly between two referenced lines.
// Requires After.Line < Before.Line; positioning is relative to Before.
type InsertEdit struct {
	After   Tag
	Before  Tag
	Content []string
}

func (e InsertEdit) refs() []Tag { return []Tag{e.After, e.Before} }

func (e InsertEdit) anchor(int) (int, int) { return e.Before.Line, precInsert }

// EditResult is the outcome of applying a batch.
type EditResult struct {
	// Content is the full new file text, lines rejoined with "\n".
	Content string
	// FirstChangedLine is the lowest original line number touched by any edit,
	// or 0 when the batch was empty. Callers use it to start diff output at a
	// sensible point.
	FirstChangedLine int
}
