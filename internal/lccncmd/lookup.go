package lccncmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/lccn-finder/internal/config"
	"github.com/lehigh-university-libraries/lccn-finder/internal/gemini"
	"github.com/lehigh-university-libraries/lccn-finder/internal/journal"
	"github.com/lehigh-university-libraries/lccn-finder/internal/lccn"
	"github.com/lehigh-university-libraries/lccn-finder/internal/metadata"
	"github.com/lehigh-university-libraries/lccn-finder/internal/models"
	"github.com/lehigh-university-libraries/lccn-finder/internal/ollama"
	"github.com/lehigh-university-libraries/lccn-finder/internal/openai"
	"github.com/lehigh-university-libraries/lccn-finder/internal/providers"
	"github.com/lehigh-university-libraries/lccn-finder/internal/report"
)

// newEnricher builds the metadata sources: Open Library, then the configured
// LLM provider if any.
func newEnricher(cfg *config.Config) (*metadata.Enricher, error) {
	sources := []metadata.Source{metadata.NewOpenLibrary(cfg.OpenLibraryURL, cfg.RequestsPerSecond)}

	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	if provider != nil {
		model := cfg.MetadataModel
		if model == "" {
			model = providers.DefaultModel(cfg.MetadataProvider)
		}
		sources = append(sources, metadata.NewLLM(cfg.MetadataProvider, provider, model))
	}
	return metadata.NewEnricher(sources...), nil
}

func newProvider(cfg *config.Config) (providers.Provider, error) {
	switch cfg.MetadataProvider {
	case "", "none":
		return nil, nil
	case "ollama":
		return ollama.New(cfg.OllamaURL), nil
	case "openai":
		return openai.New(cfg.OpenAIAPIKey, ""), nil
	case "gemini":
		return gemini.New(cfg.GeminiAPIKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.MetadataProvider)
	}
}

func executeLookup(ctx context.Context, cfg *config.Config, book *models.Book, out io.Writer) error {
	if book.ISBN == "" && book.Title == "" && book.Name == "" {
		return fmt.Errorf("nothing to search: pass --isbn, --title or --name")
	}

	if book.ISBN != "" && book.NeedsMetadata() {
		enricher, err := newEnricher(cfg)
		if err != nil {
			return err
		}
		if _, err := enricher.Fill(ctx, book); err != nil {
			return err
		}
	}

	session := newSession(cfg)
	res, err := lccn.NewResolver(session, cfg.Catalog(), cfg.ResolverOptions()).Enrich(ctx, book)
	if err != nil {
		p := &pipeline{cfg: cfg, snapshot: session, now: time.Now}
		p.saveSnapshot()
		return err
	}

	if len(res.Attempts) > 0 {
		fmt.Fprintln(out, report.RenderResolution(res))
	}
	if !res.Found() {
		fmt.Fprintf(out, "No LCCN found for %q\n", book.Title)
		return nil
	}
	fmt.Fprintf(out, "LCCN: %s\nLink: %s\nVerified: %s\nScore: %d\n", book.LCCN, book.Link, book.Verified, res.Score)
	return nil
}

func executeHistory(ctx context.Context, dbPath, isbn string, out io.Writer) error {
	j, err := journal.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer j.Close()

	entries, err := j.History(ctx, strings.TrimSpace(isbn))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(out, "No resolutions recorded for ISBN %s\n", isbn)
		return nil
	}
	fmt.Fprintln(out, report.RenderHistory(entries))
	return nil
}
