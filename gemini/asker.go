package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/fwojciec/docrag"
	"google.golang.org/genai"
)

const askModel = "gemini-2.5-flash"

// Ensure Asker implements docrag.Asker at compile time.
var _ docrag.Asker = (*Asker)(nil)

// Asker implements docrag.Asker using Google Gemini over retrieved passages.
type Asker struct {
	client *genai.Client
	search docrag.SearchService
}

// NewAsker creates a new Asker.
func NewAsker(client *genai.Client, search docrag.SearchService) *Asker {
	return &Asker{client: client, search: search}
}

// Ask retrieves the passages most similar to question and asks Gemini to
// answer from them.
func (a *Asker) Ask(ctx context.Context, question string, opts docrag.SearchOptions) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", docrag.Errorf(docrag.EINVALID, "question required")
	}

	results, err := a.search.Search(ctx, question, opts)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", docrag.Errorf(docrag.ENOTFOUND, "no passages found for question")
	}

	prompt := BuildUserPrompt(results, question)
	config := BuildConfig()

	result, err := a.client.Models.GenerateContent(ctx, askModel,
		[]*genai.Content{{
			Parts: []*genai.Part{{Text: prompt}},
		}},
		config,
	)
	if err != nil {
		return "", classify(err)
	}
	if result == nil {
		return "", docrag.Errorf(docrag.EINTERNAL, "gemini returned nil result")
	}

	return result.Text(), nil
}

// BuildConfig returns the GenerateContentConfig for Gemini API calls.
func BuildConfig() *genai.GenerateContentConfig {
	temp := float32(0.4)
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{
				Text: "You are a helpful assistant answering questions about documentation. Answer based only on the passages provided and cite their sources. If the answer is not in the passages, say so.",
			}},
		},
		Temperature: &temp,
	}
}

// BuildUserPrompt builds the user prompt containing the retrieved passages
// in rank order and the question.
func BuildUserPrompt(results []*docrag.QueryResult, question string) string {
	var sb strings.Builder
	sb.WriteString("<passages>\n")
	for _, r := range results {
		title := r.Record.Title
		if title == "" {
			title = r.Record.SourceURL
		}
		sb.WriteString("<passage>\n")
		fmt.Fprintf(&sb, "<rank>%d</rank>\n", r.Rank)
		fmt.Fprintf(&sb, "<title>%s</title>\n", title)
		fmt.Fprintf(&sb, "<source>%s</source>\n", r.Record.SourceURL)
		fmt.Fprintf(&sb, "<content>%s</content>\n", r.Record.Content)
		sb.WriteString("</passage>\n")
	}
	sb.WriteString("</passages>\n\n")
	fmt.Fprintf(&sb, "Question: %s", question)
	return sb.String()
}
