// Package hashline provides content-addressed line tagging for reliable file editing.
//
// Each line is identified by its 1-indexed line number plus a short hash of the
// whitespace-normalized line content. The combined "LINE#HASH" reference acts as
// both an address and a staleness check: the LLM quotes tags it has seen, and if
// the file changed since that read, hashes stop matching and the edit batch is
// rejected with corrected references before anything gets corrupted.
//
// Displayed format: "LINE#HASH:CONTENT"
// Reference format: "LINE#HASH" (e.g. "5#ZP")
package hashline

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/OneOfOne/xxhash"
)

// nibbleAlphabet is the 16-symbol alphabet used for hash encoding. The symbols
// avoid the '#' delimiter and visually confusable pairs.
const nibbleAlphabet = "ZPMQVRWSNKTXJBYH"

// HashLen is the number of characters per line hash (one byte, 4 bits per char).
const HashLen = 2

// hashDict maps every byte value to its 2-character encoding.
var hashDict = func() [256]string {
	var d [256]string
	for i := range d {
		d[i] = string(nibbleAlphabet[i>>4]) + string(nibbleAlphabet[i&0x0f])
	}
	return d
}()

// LineHash computes the short content hash for a single line.
//
// All whitespace is removed before hashing (not just trimmed), so reindentation
// or inline spacing changes don't invalidate a tag. This also normalizes away a
// trailing carriage return from CRLF files. Two lines that normalize to the
// same bytes share a hash; with one byte of entropy that is an accepted
// tradeoff for a tag short enough to display inline.
func LineHash(line string) string {
	normalized := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, line)
	return hashDict[xxhash.Checksum32([]byte(normalized))&0xff]
}

// FormatHashLines renders content as "LINE#HASH:content", one per input line.
// This is the annotated view the LLM reads before constructing edit references.
// If startLine > 0, numbering begins at startLine (1-indexed).
func FormatHashLines(content string, startLine int) string {
	if startLine <= 0 {
		startLine = 1
	}

	lines := strings.Split(content, "\n")
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d#%s:%s", startLine+i, LineHash(line), line)
	}
	return b.String()
}
