package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/lehigh-university-libraries/lccn-finder/internal/models"
)

// readParquet loads rows in batches. Columns outside the Book schema are not
// kept.
func (t *Table) readParquet() error {
	file, err := os.Open(t.Path)
	if err != nil {
		return fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return fmt.Errorf("failed to open parquet: %w", err)
	}
	slog.Debug("Parquet file opened", "path", t.Path, "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[models.Book](pf)
	defer reader.Close()

	rows := make([]models.Book, 128)
	for {
		n, err := reader.Read(rows)
		for i := 0; i < n; i++ {
			book := rows[i]
			t.Books = append(t.Books, &book)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	t.Columns = append([]string(nil), models.KnownColumns...)
	return nil
}

func (t *Table) writeParquet(w io.Writer) error {
	writer := parquet.NewGenericWriter[models.Book](w)
	rows := make([]models.Book, 0, len(t.Books))
	for _, book := range t.Books {
		rows = append(rows, *book)
	}
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}
