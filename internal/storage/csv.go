package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lehigh-university-libraries/lccn-finder/internal/models"
)

func (t *Table) readCSV() error {
	file, err := os.Open(t.Path)
	if err != nil {
		return fmt.Errorf("failed to open table: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read header of %s: %w", t.Path, err)
	}
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		t.Columns = append(t.Columns, name)
	}

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", t.Path, err)
		}
		if blank(record) {
			continue
		}

		book := &models.Book{}
		for i, value := range record {
			if i >= len(t.Columns) || t.Columns[i] == "" {
				continue
			}
			book.Set(t.Columns[i], strings.TrimSpace(value))
		}
		t.Books = append(t.Books, book)
	}
	return nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func (t *Table) writeCSV(w io.Writer) error {
	columns := t.outputColumns()
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	row := make([]string, len(columns))
	for _, book := range t.Books {
		for i, c := range columns {
			row[i] = book.Get(c)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush table: %w", err)
	}
	t.Columns = columns
	return nil
}
