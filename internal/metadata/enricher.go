package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lehigh-university-libraries/lccn-finder/internal/models"
)

// Enricher asks its sources in order until one knows the book.
type Enricher struct {
	sources []Source
}

// NewEnricher creates an enricher. Nil sources are skipped.
func NewEnricher(sources ...Source) *Enricher {
	e := &Enricher{}
	for _, s := range sources {
		if s != nil {
			e.sources = append(e.sources, s)
		}
	}
	return e
}

// Fill completes the title, author and publication date of book from the
// first source with a record. Fields that already hold a value are kept. It
// reports which source answered, or "" when none did.
func (e *Enricher) Fill(ctx context.Context, book *models.Book) (string, error) {
	if !book.NeedsMetadata() {
		return "", nil
	}
	slog.Info("Getting title and author", "isbn", book.ISBN)

	for _, source := range e.sources {
		record, err := source.Lookup(ctx, book)
		if errors.Is(err, ErrNotFound) {
			slog.Debug("No metadata record", "isbn", book.ISBN, "source", source.Name())
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed %s lookup for ISBN %s: %w", source.Name(), book.ISBN, err)
		}
		Apply(book, record)
		return source.Name(), nil
	}

	slog.Warn("No metadata found", "isbn", book.ISBN)
	return "", nil
}

// Apply copies record onto the empty fields of book. A trailing period is
// dropped from the title and the publication date is normalized.
func Apply(book *models.Book, record *Record) {
	if book.Title == "" {
		book.Title = strings.TrimSuffix(strings.TrimSpace(record.Title), ".")
	}
	if book.Author == "" && record.Author != "" {
		book.Author = strings.TrimSpace(record.Author)
	}
	if book.Published == "" {
		book.Published = NormalizeDate(record.Published)
	}
}
