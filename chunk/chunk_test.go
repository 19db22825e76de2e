package chunk_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/fwojciec/docrag/chunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMarkdown = "# Test Document\n\nThis is a test document with multiple sections.\n\n## Section 1\n\nSome content here with **bold** and *italic* text.\n\n```python\ndef hello_world():\n    print(\"Hello, World!\")\n```\n\n## Section 2\n\nMore content here.\n\n### Subsection\n\nEven more content.\n"

// fenceParity counts fence marker lines before offset.
func fenceParity(text string, offset int) int {
	var n int
	for _, line := range strings.Split(text[:offset], "\n") {
		if strings.HasPrefix(strings.TrimLeft(line, " "), "```") {
			n++
		}
	}
	return n % 2
}

func assertChunkInvariants(t *testing.T, markdown string, size int) {
	t.Helper()

	chunks := chunk.Split(markdown, size)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index, "indices are contiguous")
		assert.Equal(t, markdown[c.Start:c.End], c.Content, "offsets match content")
		assert.Equal(t, strings.TrimSpace(c.Content), c.Content, "content is trimmed")
		assert.NotEmpty(t, c.Content)
		assert.Equal(t, chunk.Hash(c.Content), c.Hash)
		assert.Equal(t, 0, fenceParity(markdown, c.Start), "chunk %d starts inside a fence", i)
		if i < len(chunks)-1 {
			assert.Equal(t, 0, fenceParity(markdown, c.End), "chunk %d ends inside a fence", i)
		}
		if i > 0 {
			assert.GreaterOrEqual(t, c.Start, chunks[i-1].End, "chunks are ordered")
		}
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	t.Run("returns no chunks for empty input", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, chunk.Split("", 100))
		assert.Empty(t, chunk.Split(" \n\t\n ", 100))
	})

	t.Run("returns trimmed input as single chunk when shorter than size", func(t *testing.T) {
		t.Parallel()

		chunks := chunk.Split("\n\n  # Title\n\nBody text.  \n", 500)

		require.Len(t, chunks, 1)
		assert.Equal(t, "# Title\n\nBody text.", chunks[0].Content)
		assert.Equal(t, 0, chunks[0].Index)
		assert.Equal(t, 4, chunks[0].Start)
	})

	t.Run("splits sample markdown into bounded chunks", func(t *testing.T) {
		t.Parallel()

		chunks := chunk.Split(sampleMarkdown, 100)

		require.Greater(t, len(chunks), 1)
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c.Content), 150)
			assert.NotEmpty(t, strings.TrimSpace(c.Content))
		}
		assertChunkInvariants(t, sampleMarkdown, 100)
	})

	t.Run("keeps code block in one chunk", func(t *testing.T) {
		t.Parallel()

		text := "Some text\n\n```python\ndef function():\n    pass\n```\n\nMore text"

		chunks := chunk.Split(text, 30)

		require.Len(t, chunks, 3)
		assert.Equal(t, "Some text", chunks[0].Content)
		assert.Equal(t, "```python\ndef function():\n    pass\n```", chunks[1].Content)
		assert.Equal(t, "More text", chunks[2].Content)
		assertChunkInvariants(t, text, 30)
	})

	t.Run("breaks at paragraph boundaries", func(t *testing.T) {
		t.Parallel()

		text := "Paragraph 1.\n\nParagraph 2.\n\nParagraph 3."

		chunks := chunk.Split(text, 15)

		require.Len(t, chunks, 3)
		assert.Equal(t, "Paragraph 1.", chunks[0].Content)
		assert.Equal(t, "Paragraph 2.", chunks[1].Content)
		assert.Equal(t, "Paragraph 3.", chunks[2].Content)
	})

	t.Run("breaks after sentence when no paragraph break fits", func(t *testing.T) {
		t.Parallel()

		text := "The first sentence is here. The second sentence follows it. The third one ends."

		chunks := chunk.Split(text, 40)

		require.GreaterOrEqual(t, len(chunks), 2)
		assert.Equal(t, "The first sentence is here.", chunks[0].Content)
		assertChunkInvariants(t, text, 40)
	})

	t.Run("hard cuts text without boundaries", func(t *testing.T) {
		t.Parallel()

		text := strings.Repeat("a", 250)

		chunks := chunk.Split(text, 100)

		require.Len(t, chunks, 3)
		assert.Len(t, chunks[0].Content, 100)
		assert.Len(t, chunks[1].Content, 100)
		assert.Len(t, chunks[2].Content, 50)
	})

	t.Run("hard cut does not split multibyte runes", func(t *testing.T) {
		t.Parallel()

		text := strings.Repeat("é", 60) // 120 bytes

		chunks := chunk.Split(text, 51)

		var rebuilt strings.Builder
		for _, c := range chunks {
			assert.True(t, len(c.Content)%2 == 0, "chunk holds whole runes")
			rebuilt.WriteString(c.Content)
		}
		assert.Equal(t, text, rebuilt.String())
	})

	t.Run("paragraph break before a fence ends the first chunk", func(t *testing.T) {
		t.Parallel()

		// Paragraph break at 480, fence spanning 600-900, total 1200.
		var sb strings.Builder
		sb.WriteString(strings.Repeat("x", 480))
		sb.WriteString("\n\n")
		sb.WriteString(strings.Repeat("y", 600-482-1))
		sb.WriteString("\n")
		require.Equal(t, 600, sb.Len())
		sb.WriteString("```go\n")
		body := 900 - 600 - len("```go\n") - len("```\n")
		for sb.Len() < 600+len("```go\n")+body {
			line := "fmt.Println(1)\n\n"
			if remaining := 600 + len("```go\n") + body - sb.Len(); remaining < len(line) {
				line = strings.Repeat("z", remaining-1) + "\n"
			}
			sb.WriteString(line)
		}
		sb.WriteString("```\n")
		require.Equal(t, 900, sb.Len())
		sb.WriteString(strings.Repeat("w", 1200-900))
		text := sb.String()

		chunks := chunk.Split(text, 500)

		require.NotEmpty(t, chunks)
		assert.Equal(t, 480, chunks[0].End)
		var holders int
		for _, c := range chunks {
			if c.Start <= 600 && c.End >= 899 {
				holders++
				continue
			}
			assert.True(t, c.End <= 600 || c.Start >= 900, "chunk [%d, %d) splits the fence", c.Start, c.End)
		}
		assert.Equal(t, 1, holders)
		assertChunkInvariants(t, text, 500)
	})

	t.Run("keeps oversized fence whole", func(t *testing.T) {
		t.Parallel()

		text := "```\n" + strings.Repeat("line of code\n", 30) + "```\n\nAfter."

		chunks := chunk.Split(text, 100)

		require.Len(t, chunks, 2)
		assert.True(t, strings.HasPrefix(chunks[0].Content, "```"))
		assert.True(t, strings.HasSuffix(chunks[0].Content, "```"))
		assert.Equal(t, "After.", chunks[1].Content)
	})

	t.Run("treats unclosed fence as running to the end", func(t *testing.T) {
		t.Parallel()

		text := "Intro paragraph.\n\n```\n" + strings.Repeat("code\n\n", 40)

		chunks := chunk.Split(text, 60)

		require.Len(t, chunks, 2)
		assert.Equal(t, "Intro paragraph.", chunks[0].Content)
	})

	t.Run("uses default size when size is not positive", func(t *testing.T) {
		t.Parallel()

		text := strings.Repeat("word ", 1500) // 7500 bytes

		chunks := chunk.Split(text, 0)

		require.Len(t, chunks, 2)
		assert.LessOrEqual(t, len(chunks[0].Content), chunk.DefaultSize)
	})

	t.Run("preserves invariants across sizes", func(t *testing.T) {
		t.Parallel()

		doc := strings.Repeat(sampleMarkdown, 5) + "\n```\nunclosed\n\nstill code. yes\n"
		for _, size := range []int{1, 3, 10, 37, 64, 100, 250, 1000} {
			t.Run(fmt.Sprintf("size %d", size), func(t *testing.T) {
				assertChunkInvariants(t, doc, size)
			})
		}
	})
}

func TestSplitPage(t *testing.T) {
	t.Parallel()

	chunks := chunk.SplitPage("https://example.com/a", "First.\n\nSecond.", 10)

	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.Equal(t, "https://example.com/a", c.SourceURL)
	}
}

func TestHash(t *testing.T) {
	t.Parallel()

	assert.Equal(t, chunk.Hash("abc"), chunk.Hash("abc"))
	assert.NotEqual(t, chunk.Hash("abc"), chunk.Hash("abd"))
	assert.Len(t, chunk.Hash(""), 16)
}
