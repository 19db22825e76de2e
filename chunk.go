package docrag

// Chunk represents a bounded, boundary-respecting passage of a page.
// Chunks are never mutated after creation; re-crawling a page produces
// new chunks that replace the previous ones for that URL.
type Chunk struct {
	SourceURL string `json:"sourceUrl"`

	// Zero-based position within the page. Indices are contiguous.
	Index int `json:"index"`

	Content string `json:"content"`

	// Byte span [Start, End) of Content in the source markdown.
	Start int `json:"start"`
	End   int `json:"end"`

	// Hash of Content for change detection.
	Hash string `json:"hash"`
}
