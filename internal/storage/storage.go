// Package storage reads and writes book tables as CSV or Parquet files.
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/lccn-finder/internal/models"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor Parquet.
var ErrUnsupportedFormat = errors.New("unsupported table format")

// Format is the on-disk encoding of a table.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return FormatCSV, nil
	case ".parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("%w: %s (supported: .csv, .parquet)", ErrUnsupportedFormat, ext)
	}
}

// Table is a book table loaded from disk. Rows keep their file order.
type Table struct {
	Path    string
	Format  Format
	Columns []string
	Books   []*models.Book
}

// Open loads the table at path.
func Open(path string) (*Table, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	t := &Table{Path: path, Format: format}
	switch format {
	case FormatCSV:
		err = t.readCSV()
	case FormatParquet:
		err = t.readParquet()
	}
	if err != nil {
		return nil, err
	}

	for _, book := range t.Books {
		normalize(book)
	}
	slog.Debug("Loaded book table", "path", path, "format", format, "books", len(t.Books))
	return t, nil
}

// Save writes the table back to its path. The file is replaced atomically so
// an interrupted save never leaves a truncated table behind.
func (t *Table) Save() error {
	dir := filepath.Dir(t.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(t.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary table file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	switch t.Format {
	case FormatCSV:
		err = t.writeCSV(tmp)
	case FormatParquet:
		err = t.writeParquet(tmp)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, t.Format)
	}
	if err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary table file: %w", err)
	}
	if err := os.Rename(tmpPath, t.Path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", t.Path, err)
	}
	return nil
}

// outputColumns is the header order used when saving: the columns read from
// disk, followed by any known column that now holds a value.
func (t *Table) outputColumns() []string {
	columns := append([]string(nil), t.Columns...)
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	for _, c := range models.KnownColumns {
		if present[c] {
			continue
		}
		for _, book := range t.Books {
			if book.Get(c) != "" {
				columns = append(columns, c)
				present[c] = true
				break
			}
		}
	}
	return columns
}

var scanLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 3:04:05 PM",
	"2006-01-02 3:04 PM",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"Jan 2, 2006 3:04:05 PM",
	"January 2, 2006 3:04:05 PM",
	"January 2, 2006 3:04 PM",
}

// normalize fills derived fields: a missing ISBN comes from the scanned text
// and a missing Created timestamp from the scan date and time.
func normalize(book *models.Book) {
	if book.ISBN == "" {
		book.ISBN = book.Text
	}
	if book.Created == "" && book.Date != "" && book.Time != "" {
		if created, ok := ScanTime(book.Date, book.Time); ok {
			book.Created = created.UTC().Format("2006-01-02T15:04:05.000Z07:00")
		}
	}
}

// ScanTime parses a scanner app date and time in the local time zone.
func ScanTime(date, clock string) (time.Time, bool) {
	value := strings.TrimSpace(date) + " " + strings.TrimSpace(clock)
	for _, layout := range scanLayouts {
		if ts, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
