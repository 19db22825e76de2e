package docrag

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	headingRe   = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
	codeBlockRe = regexp.MustCompile("(?s)(```|~~~).*?(```|~~~)")
)

// Section represents a heading in a markdown document.
type Section struct {
	Level  int    `json:"level"`
	Title  string `json:"title"`
	Anchor string `json:"anchor"`
}

// Heading returns the section as a markdown heading line (e.g., "## Setup").
func (s Section) Heading() string {
	return strings.Repeat("#", s.Level) + " " + s.Title
}

// ExtractSections parses markdown and returns all headings (H1-H6).
// It generates URL-safe anchors and handles duplicates with numeric suffixes.
// Lines inside fenced code blocks are ignored.
func ExtractSections(markdown string) []Section {
	if markdown == "" {
		return nil
	}

	matches := headingRe.FindAllStringSubmatch(codeBlockRe.ReplaceAllString(markdown, ""), -1)
	if len(matches) == 0 {
		return nil
	}

	sections := make([]Section, 0, len(matches))
	anchorCounts := make(map[string]int)

	for _, match := range matches {
		title := strings.TrimSpace(match[2])
		base := generateAnchor(title)

		anchor := base
		if count, exists := anchorCounts[base]; exists {
			anchor = base + "-" + strconv.Itoa(count)
			anchorCounts[base]++
		} else {
			anchorCounts[base] = 1
		}

		sections = append(sections, Section{
			Level:  len(match[1]),
			Title:  title,
			Anchor: anchor,
		})
	}

	return sections
}

// ChunkInfo summarizes the structure of a chunk for record metadata.
type ChunkInfo struct {
	Headers   []string `json:"headers,omitempty"`
	CharCount int      `json:"charCount"`
	WordCount int      `json:"wordCount"`
}

// DescribeChunk returns the headings, character count and word count of a chunk.
// Character count is measured in bytes, matching chunk offsets.
func DescribeChunk(content string) ChunkInfo {
	info := ChunkInfo{
		CharCount: len(content),
		WordCount: len(strings.Fields(content)),
	}
	for _, s := range ExtractSections(content) {
		info.Headers = append(info.Headers, s.Heading())
	}
	return info
}

// generateAnchor creates a URL-safe anchor from a title.
func generateAnchor(title string) string {
	var sb strings.Builder
	prevHyphen := false

	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			prevHyphen = false
		} else if unicode.IsSpace(r) || r == '-' {
			if !prevHyphen && sb.Len() > 0 {
				sb.WriteRune('-')
				prevHyphen = true
			}
		}
	}

	return strings.TrimSuffix(sb.String(), "-")
}
