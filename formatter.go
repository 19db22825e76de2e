package docrag

import (
	"fmt"
	"strings"
)

// FormatResults formats query results for display or LLM context.
// Uses the page title if available, falls back to source URL.
// Results are separated by blank lines.
func FormatResults(results []*QueryResult) string {
	if len(results) == 0 {
		return ""
	}

	parts := make([]string, 0, len(results))
	for _, res := range results {
		rec := res.Record
		header := rec.Title
		if header == "" {
			header = rec.SourceURL
		}
		parts = append(parts, fmt.Sprintf("## %d. %s (chunk %d, score %.3f)\n%s",
			res.Rank, header, rec.ChunkIndex, res.Score, rec.Content))
	}

	return strings.Join(parts, "\n\n")
}
