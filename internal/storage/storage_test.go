package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/lccn-finder/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{path: "books.csv", want: FormatCSV},
		{path: "BOOKS.CSV", want: FormatCSV},
		{path: "books.parquet", want: FormatParquet},
		{path: "books.xlsx", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatOf(tt.path)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestOpenCSV(t *testing.T) {
	path := writeFile(t, "books.csv", "\ufeffName, Text ,ISBN,Shelf\n"+
		" Example Tale , 9780000000001 ,,A1\n"+
		"\n"+
		",,,\n"+
		"Short row,978-1\n")

	table, err := Open(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	wantColumns := []string{"Name", "Text", "ISBN", "Shelf"}
	if strings.Join(table.Columns, ",") != strings.Join(wantColumns, ",") {
		t.Errorf("Expected columns %v, got %v", wantColumns, table.Columns)
	}
	if len(table.Books) != 2 {
		t.Fatalf("Expected 2 books, got %d", len(table.Books))
	}

	first := table.Books[0]
	if first.Name != "Example Tale" {
		t.Errorf("Expected trimmed name, got %q", first.Name)
	}
	if first.ISBN != "9780000000001" {
		t.Errorf("Expected ISBN from Text, got %q", first.ISBN)
	}
	if first.Extra["Shelf"] != "A1" {
		t.Errorf("Expected extra column, got %v", first.Extra)
	}

	if table.Books[1].ISBN != "978-1" {
		t.Errorf("Expected ragged row ISBN from Text, got %q", table.Books[1].ISBN)
	}
}

func TestOpenCSVDerivesCreated(t *testing.T) {
	path := writeFile(t, "books.csv", "ISBN,Date,Time,Created\n"+
		"1,2024-03-05,14:30:00,\n"+
		"2,2024-03-05,14:30:00,kept\n"+
		"3,someday,noon,\n")

	table, err := Open(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	want := time.Date(2024, 3, 5, 14, 30, 0, 0, time.Local).UTC().Format("2006-01-02T15:04:05.000Z07:00")
	if table.Books[0].Created != want {
		t.Errorf("Expected %s, got %s", want, table.Books[0].Created)
	}
	if table.Books[1].Created != "kept" {
		t.Errorf("Expected existing Created kept, got %s", table.Books[1].Created)
	}
	if table.Books[2].Created != "" {
		t.Errorf("Expected unparseable scan time left empty, got %s", table.Books[2].Created)
	}
}

func TestSaveCSVRoundTrip(t *testing.T) {
	path := writeFile(t, "books.csv", "Name,ISBN,Shelf\nExample Tale,9780000000001,A1\nOther,123,B2\n")

	table, err := Open(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	table.Books[0].LCCN = "2001012345"
	table.Books[0].Verified = models.VerifiedYes
	table.Books[1].LCCN = models.NotAvailable

	if err := table.Save(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "Name,ISBN,Shelf,LCCN,Verified\n" +
		"Example Tale,9780000000001,A1,2001012345,Yes\n" +
		"Other,123,B2,N/A,\n"
	if string(data) != want {
		t.Errorf("Expected:\n%s\nGot:\n%s", want, string(data))
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("Expected temporary files to be cleaned up, found %d entries", len(entries))
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if reopened.Books[0].LCCN != "2001012345" || !reopened.Books[1].HasLCCN() {
		t.Error("Expected LCCNs to survive a reload")
	}
}

func TestParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.parquet")
	table := &Table{
		Path:   path,
		Format: FormatParquet,
		Books: []*models.Book{
			{ISBN: "9780000000001", Name: "Example Tale", Author: "Jane Doe", Published: "2001-01-01"},
			{Text: "123", Name: "Other"},
		},
	}
	if err := table.Save(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	loaded, err := Open(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(loaded.Books) != 2 {
		t.Fatalf("Expected 2 books, got %d", len(loaded.Books))
	}
	if loaded.Books[0].Author != "Jane Doe" || loaded.Books[0].Published != "2001-01-01" {
		t.Errorf("Expected fields to round trip, got %+v", loaded.Books[0])
	}
	if loaded.Books[1].ISBN != "123" {
		t.Errorf("Expected ISBN from Text, got %q", loaded.Books[1].ISBN)
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("Expected error for missing file")
	}
}
