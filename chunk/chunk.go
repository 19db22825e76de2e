// Package chunk splits markdown into retrieval-sized passages that respect
// code fences, paragraphs and sentences.
package chunk

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/docrag"
)

// DefaultSize is the chunk size used when a non-positive size is requested.
const DefaultSize = 5000

// floorRatio is the fraction of the size below which a boundary is not
// accepted. It keeps preferred boundaries from producing tiny chunks.
const floorRatio = 0.3

// fence is the byte span of a fenced code block, from the start of the
// opening marker line to the end of the closing marker line.
type fence struct {
	start, end int
}

// Split divides markdown into ordered chunks of at most maxSize bytes.
//
// Within the window [maxSize*0.3, maxSize] of the remaining text it prefers,
// in order: the end of a code fence, a paragraph break, and a period followed
// by whitespace. Otherwise it cuts at maxSize. A chunk boundary never falls
// inside a code fence; a fence longer than maxSize becomes one oversized chunk.
//
// Chunk content is trimmed of surrounding whitespace and Start/End are the
// offsets of the trimmed content, so markdown[Start:End] == Content.
// Empty or whitespace-only input yields no chunks.
func Split(markdown string, maxSize int) []*docrag.Chunk {
	return SplitPage("", markdown, maxSize)
}

// SplitPage is like Split but sets SourceURL on every chunk.
func SplitPage(sourceURL, markdown string, maxSize int) []*docrag.Chunk {
	if maxSize <= 0 {
		maxSize = DefaultSize
	}
	if strings.TrimSpace(markdown) == "" {
		return nil
	}

	fences := findFences(markdown)
	floor := int(float64(maxSize) * floorRatio)

	var chunks []*docrag.Chunk
	emit := func(start, end int) {
		s, e := trimSpan(markdown, start, end)
		if s >= e {
			return
		}
		content := markdown[s:e]
		chunks = append(chunks, &docrag.Chunk{
			SourceURL: sourceURL,
			Index:     len(chunks),
			Content:   content,
			Start:     s,
			End:       e,
			Hash:      Hash(content),
		})
	}

	for start := 0; start < len(markdown); {
		if len(markdown)-start <= maxSize {
			emit(start, len(markdown))
			break
		}
		end := splitPoint(markdown, fences, start, floor, maxSize)
		emit(start, end)
		start = end
	}

	return chunks
}

// Hash returns the hex xxhash of content.
func Hash(content string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(content))
}

// splitPoint returns the end of the chunk beginning at start.
// The result is always greater than start.
func splitPoint(text string, fences []fence, start, floor, maxSize int) int {
	lo, hi := start+floor, start+maxSize
	if lo <= start {
		lo = start + 1
	}

	// 1. End of a code fence.
	for i := len(fences) - 1; i >= 0; i-- {
		f := fences[i]
		if f.end >= lo && f.end <= hi {
			return f.end
		}
	}

	// 2. Paragraph break.
	for p := strings.LastIndex(text[:hi], "\n\n"); p >= lo; p = strings.LastIndex(text[:p], "\n\n") {
		if !insideFence(fences, p) {
			return p
		}
	}

	// 3. Sentence end.
	for p := hi - 1; p >= lo; p-- {
		if text[p-1] == '.' && isSpace(text[p]) && !insideFence(fences, p) {
			return p
		}
	}

	// 4. Hard cut, never inside a fence or a rune.
	if f, ok := enclosingFence(fences, hi); ok {
		if f.start > start {
			return f.start
		}
		return f.end
	}
	end := hi
	for end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	if end == start {
		_, size := utf8.DecodeRuneInString(text[start:])
		end = start + size
	}
	return end
}

// findFences returns the spans of all fenced code blocks in document order.
// A fence opens on a line starting with up to three spaces followed by ```
// or ~~~ and closes on the next line starting with the same marker.
// An unclosed fence extends to the end of the text.
func findFences(text string) []fence {
	var fences []fence
	var open bool
	var marker string
	var cur fence

	for lineStart := 0; lineStart < len(text); {
		lineEnd := len(text)
		next := len(text)
		if i := strings.IndexByte(text[lineStart:], '\n'); i >= 0 {
			lineEnd = lineStart + i
			next = lineEnd + 1
		}

		if m := fenceMarker(text[lineStart:lineEnd]); m != "" {
			switch {
			case !open:
				open, marker = true, m
				cur = fence{start: lineStart}
			case m == marker:
				open = false
				cur.end = next
				fences = append(fences, cur)
			}
		}
		lineStart = next
	}

	if open {
		cur.end = len(text)
		fences = append(fences, cur)
	}
	return fences
}

// fenceMarker returns "```" or "~~~" if line opens or closes a fence.
func fenceMarker(line string) string {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 {
		return ""
	}
	for _, m := range []string{"```", "~~~"} {
		if strings.HasPrefix(trimmed, m) {
			return m
		}
	}
	return ""
}

// insideFence reports whether a boundary at offset p would split a fence.
func insideFence(fences []fence, p int) bool {
	_, ok := enclosingFence(fences, p)
	return ok
}

func enclosingFence(fences []fence, p int) (fence, bool) {
	for _, f := range fences {
		if f.start < p && p < f.end {
			return f, true
		}
		if f.start >= p {
			break
		}
	}
	return fence{}, false
}

// trimSpan narrows [start, end) to exclude surrounding whitespace.
func trimSpan(text string, start, end int) (int, int) {
	for start < end {
		r, size := utf8.DecodeRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	return start, end
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}
