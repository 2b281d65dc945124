package hashline

import (
	"fmt"
	"regexp"
	"strconv"
)

// Tag is a line reference: "line N currently has content whose hash is H".
type Tag struct {
	Line int    // 1-indexed line number
	Hash string // 2-character hash from the nibble alphabet
}

// String renders the tag in reference form, e.g. "5#ZP".
func (t Tag) String() string {
	return fmt.Sprintf("%d#%s", t.Line, t.Hash)
}

// tagRe captures:
//  1. optional leading markers (">", "+", "-" and whitespace), so a tag quoted
//     from a diff line still parses
//  2. the line number
//  3. the hash, with optional spaces around "#"
//
// Anything after the hash (a ":content" display suffix) is ignored.
var tagRe = regexp.MustCompile(`^\s*[>+\-]*\s*(\d+)\s*#\s*([` + nibbleAlphabet + `]{` + strconv.Itoa(HashLen) + `})`)

// ParseTag parses a line reference string like "5#ZP" into a Tag.
func ParseTag(ref string) (Tag, error) {
	m := tagRe.FindStringSubmatch(ref)
	if m == nil {
		return Tag{}, fmt.Errorf("invalid line reference %q: expected format \"LINE#ID\" (e.g. \"5#ZP\")", ref)
	}

	line, err := strconv.Atoi(m[1])
	if err != nil {
		return Tag{}, fmt.Errorf("invalid line reference %q: bad line number", ref)
	}
	if line < 1 {
		return Tag{}, fmt.Errorf("invalid line reference %q: line number must be >= 1", ref)
	}

	return Tag{Line: line, Hash: m[2]}, nil
}
