// Package chunker splits extracted document text into bounded-size pieces
// suitable for embedding. The splitter is character-based: it prefers to
// break at the last newline inside the window, then the last space, and only
// cuts mid-word when a single token exceeds the window. It is a pure
// function of its input and safe to call from multiple goroutines.
package chunker

import (
	"strings"
	"unicode"
)

// DefaultMaxChars is the default maximum number of characters per chunk.
// Matches the embedding batch sizing the service is tuned for; override via
// MAX_CHARS_PER_CHUNK.
const DefaultMaxChars = 1000

// Chunk splits text into ordered, trimmed, non-empty chunks of at most
// maxChars characters each. Counting is done on runes so multi-byte input
// does not split inside a code point.
//
// Within each window the break point is chosen as:
//  1. the last newline in the window, else
//  2. the last space in the window, else
//  3. exactly maxChars (hard break, may split a word).
//
// The scan resumes at the break point itself, so no characters between
// chunks are ever skipped. Whitespace-only input yields no chunks.
func Chunk(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := min(start+maxChars, len(runes))

		breakPos := lastIndexRune(runes, start, end, '\n')
		if breakPos == -1 {
			breakPos = lastIndexRune(runes, start, end, ' ')
		}
		if breakPos == -1 || breakPos <= start {
			breakPos = end
		}

		piece := strings.TrimFunc(string(runes[start:breakPos]), unicode.IsSpace)
		if piece != "" {
			chunks = append(chunks, piece)
		}
		start = breakPos
	}

	return chunks
}

// lastIndexRune returns the index of the last occurrence of r in
// runes[start:end], or -1 if r does not occur in that window.
func lastIndexRune(runes []rune, start, end int, r rune) int {
	for i := end - 1; i >= start; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
