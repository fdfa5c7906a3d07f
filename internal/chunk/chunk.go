// Package chunk splits document text into fixed-size windows with overlap,
// preferring paragraph and sentence boundaries over hard cuts.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// sentence boundary characters accepted when no paragraph break is found.
const sentenceBoundaries = ".!?"

// Split cuts text into chunks of at most size bytes, each chunk
// overlapping the previous one by overlap bytes. Boundary search walks
// backwards from the window end and accepts a paragraph break first, then a
// sentence end, but only when the boundary lies past the window midpoint;
// otherwise the cut is hard. Chunk start offsets are strictly increasing.
func Split(text string, size, overlap int) []string {
	if text == "" || size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		end = boundary(text, start, end)
		chunks = append(chunks, text[start:end])

		next := end - overlap
		// Overlap must never push the walk backwards or stall it.
		if next <= start {
			next = start + 1
		}
		// The overlap is a byte count; advance to the next rune start so no
		// chunk begins inside a UTF-8 sequence.
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		start = next
	}
	return chunks
}

// boundary searches backwards from end for a natural break, accepting it only
// past the midpoint of the window so chunks never degenerate.
func boundary(text string, start, end int) int {
	mid := start + (end-start)/2

	if idx := strings.LastIndex(text[start:end], "\n\n"); idx >= 0 {
		cut := start + idx + 2
		if cut > mid {
			return cut
		}
	}
	for i := end - 1; i > mid; i-- {
		if strings.IndexByte(sentenceBoundaries, text[i]) >= 0 {
			return i + 1
		}
	}
	// Hard cut: back off to a rune start so no UTF-8 sequence is split.
	for end > start+1 && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}
