package lccncmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/lehigh-university-libraries/lccn-finder/internal/browser"
	"github.com/lehigh-university-libraries/lccn-finder/internal/browser/httpdom"
	"github.com/lehigh-university-libraries/lccn-finder/internal/config"
	"github.com/lehigh-university-libraries/lccn-finder/internal/journal"
	"github.com/lehigh-university-libraries/lccn-finder/internal/lccn"
	"github.com/lehigh-university-libraries/lccn-finder/internal/metadata"
	"github.com/lehigh-university-libraries/lccn-finder/internal/models"
	"github.com/lehigh-university-libraries/lccn-finder/internal/report"
	"github.com/lehigh-university-libraries/lccn-finder/internal/storage"
)

// bookResolver is the part of lccn.Resolver the pipeline drives.
type bookResolver interface {
	Enrich(ctx context.Context, book *models.Book) (*lccn.Resolution, error)
}

// pipeline enriches one table: metadata first, then LCCNs, saving the table
// after every book so an interrupted run resumes where it stopped.
type pipeline struct {
	cfg      *config.Config
	resolver bookResolver
	enricher *metadata.Enricher
	journal  *journal.Journal
	snapshot browser.Snapshotter
	now      func() time.Time
}

func executeEnrich(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	slog.Info("Enriching book table", "input", cfg.InputFile, "verify_isbn", cfg.Verify)

	lock := flock.New(cfg.InputFile + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", cfg.InputFile, err)
	}
	if !locked {
		return fmt.Errorf("another run is already enriching %s", cfg.InputFile)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("Failed to release lock", "path", lock.Path(), "error", err)
		}
	}()

	table, err := storage.Open(cfg.InputFile)
	if err != nil {
		return fmt.Errorf("failed to load books: %w", err)
	}

	enricher, err := newEnricher(cfg)
	if err != nil {
		return err
	}

	var j *journal.Journal
	if cfg.JournalDB != "" {
		j, err = journal.Open(cfg.JournalDB)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer j.Close()
	}

	session := newSession(cfg)
	p := &pipeline{
		cfg:      cfg,
		resolver: lccn.NewResolver(session, cfg.Catalog(), cfg.ResolverOptions()),
		enricher: enricher,
		journal:  j,
		snapshot: session,
		now:      time.Now,
	}

	rep, err := p.run(ctx, table)
	if rep != nil && len(rep.Results) > 0 {
		path, saveErr := rep.Save(cfg.ReportsDir, p.now())
		if saveErr != nil {
			slog.Error("Failed to save report", "error", saveErr)
		} else {
			fmt.Fprintf(out, "Report saved to: %s\n", path)
		}
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, report.RenderSummary(rep.Summary()))
	return nil
}

func newSession(cfg *config.Config) *httpdom.Session {
	return httpdom.New(
		httpdom.WithRateLimit(cfg.RequestsPerSecond),
		httpdom.WithUserAgent(cfg.UserAgent),
	)
}

// run processes the table. The report holds every book resolved so far, also
// when an error stops the run. The journal run is finished either way, with
// the totals reached.
func (p *pipeline) run(ctx context.Context, table *storage.Table) (rep *report.Report, err error) {
	runID := ""
	found := 0
	if p.journal != nil {
		runID, err = p.journal.StartRun(ctx, table.Path)
		if err != nil {
			return nil, err
		}
		defer func() {
			finishErr := p.journal.FinishRun(context.WithoutCancel(ctx), runID, len(rep.Results), found)
			if finishErr != nil && err == nil {
				err = finishErr
			}
		}()
	}
	rep = report.New(report.RunConfig{
		RunID:     runID,
		InputFile: table.Path,
		Verify:    p.cfg.Verify,
		SearchURL: p.cfg.SearchURL,
	})

	sources := make(map[*models.Book]string)
	for _, book := range table.Books {
		if book.HasLCCN() || !book.NeedsMetadata() {
			continue
		}
		source, err := p.enricher.Fill(ctx, book)
		if err != nil {
			return rep, err
		}
		sources[book] = source
		if err := table.Save(); err != nil {
			return rep, fmt.Errorf("failed to save books: %w", err)
		}
	}

	for i, book := range table.Books {
		if book.HasLCCN() {
			slog.Debug("Skipping book with LCCN", "isbn", book.ISBN, "lccn", book.LCCN)
			continue
		}
		slog.Info("Resolving book", "isbn", book.ISBN, "progress", fmt.Sprintf("%d/%d", i+1, len(table.Books)))

		res, err := p.resolver.Enrich(ctx, book)
		if err != nil {
			if errors.Is(err, lccn.ErrDeadlineExceeded) {
				slog.Error("Search page never settled", "isbn", book.ISBN, "timeout", p.cfg.SearchTimeout)
			}
			p.saveSnapshot()
			return rep, err
		}
		if res.Found() {
			found++
		}
		if err := table.Save(); err != nil {
			return rep, fmt.Errorf("failed to save books: %w", err)
		}
		if p.journal != nil {
			if err := p.journal.RecordResolution(ctx, runID, book, res); err != nil {
				return rep, fmt.Errorf("failed to journal resolution: %w", err)
			}
		}
		rep.Add(book, res, sources[book])
	}
	return rep, nil
}

// saveSnapshot keeps the page the browser was on when the run failed.
func (p *pipeline) saveSnapshot() {
	if p.snapshot == nil || p.cfg.ScreenshotsDir == "" {
		return
	}
	path, err := writeSnapshot(p.cfg.ScreenshotsDir, p.snapshot, p.now())
	if err != nil {
		slog.Warn("Failed to save page snapshot", "error", err)
		return
	}
	slog.Info("Saved page snapshot", "path", path)
}

func writeSnapshot(dir string, s browser.Snapshotter, ts time.Time) (string, error) {
	data, ext, err := s.Snapshot()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshots directory: %w", err)
	}
	name := strings.NewReplacer(":", "-", ".", "-").Replace(ts.UTC().Format("2006-01-02T15:04:05.000Z"))
	path := filepath.Join(dir, name+ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}
