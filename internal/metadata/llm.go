package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lehigh-university-libraries/lccn-finder/internal/models"
	"github.com/lehigh-university-libraries/lccn-finder/internal/providers"
)

// LLM asks a language model for the metadata of books no catalog knows.
type LLM struct {
	provider providers.Provider
	name     string
	model    string
}

// NewLLM creates an LLM source. name is the provider name used in logs.
func NewLLM(name string, provider providers.Provider, model string) *LLM {
	return &LLM{provider: provider, name: name, model: model}
}

// Name implements Source.
func (l *LLM) Name() string {
	return l.name
}

// Lookup implements Source.
func (l *LLM) Lookup(ctx context.Context, book *models.Book) (*Record, error) {
	response, err := l.provider.ExtractText(ctx, providers.Config{
		Model:       l.model,
		Temperature: 0.1,
		Prompt:      buildPrompt(book),
	})
	if err != nil {
		return nil, err
	}

	record, err := parseRecord(response)
	if err != nil {
		slog.Warn("Failed to parse metadata response", "isbn", book.ISBN, "provider", l.name, "error", err)
		return nil, ErrNotFound
	}
	if record.Title == "" {
		return nil, ErrNotFound
	}
	slog.Info("Extracted metadata", "provider", l.name, "isbn", book.ISBN, "title", record.Title)
	return record, nil
}

func buildPrompt(book *models.Book) string {
	var known strings.Builder
	fmt.Fprintf(&known, "ISBN: %s\n", book.ISBN)
	if book.Name != "" {
		fmt.Fprintf(&known, "Scanned name: %s\n", book.Name)
	}
	if book.Text != "" && book.Text != book.ISBN {
		fmt.Fprintf(&known, "Scanned text: %s\n", book.Text)
	}

	return `You are an expert bibliographic metadata cataloger. Identify the book described below.

INSTRUCTIONS:
1. Use the ISBN and any scanned text to identify the published book
2. Extract the following fields:
   - title: Title proper of the work, without subtitle or statement of responsibility
   - author: Primary author written as "First Last"
   - publication_date: Year of publication
3. For unknown fields, use empty string ""
4. Do not invent a book: if you do not recognize it, leave every field empty

OUTPUT FORMAT:
Respond with ONLY a JSON object:

{
  "title": "...",
  "author": "...",
  "publication_date": "..."
}

BOOK:
` + known.String()
}

// parseRecord reads the JSON object from a model response, tolerating
// markdown code fences and surrounding prose.
func parseRecord(response string) (*Record, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var record Record
	if err := json.Unmarshal([]byte(response[start:end+1]), &record); err != nil {
		return nil, fmt.Errorf("failed to decode metadata JSON: %w", err)
	}
	record.Title = strings.TrimSpace(record.Title)
	record.Author = strings.TrimSpace(record.Author)
	record.Published = strings.TrimSpace(record.Published)
	return &record, nil
}
