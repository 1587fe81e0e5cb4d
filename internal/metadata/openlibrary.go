// Package metadata fills in missing title, author and publication date of
// books before they are searched on loc.gov.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/lehigh-university-libraries/lccn-finder/internal/models"
)

// DefaultOpenLibraryURL is the Open Library host.
const DefaultOpenLibraryURL = "https://openlibrary.org"

// ErrNotFound is returned when a source has no record for a book.
var ErrNotFound = errors.New("no metadata found")

// Record is the metadata a source knows about a book.
type Record struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Published string `json:"publication_date"`
}

// Source looks up metadata for a book.
type Source interface {
	Name() string
	Lookup(ctx context.Context, book *models.Book) (*Record, error)
}

// OpenLibrary queries the Open Library Books API by ISBN.
type OpenLibrary struct {
	BaseURL    string
	HTTPClient *http.Client
	limiter    *rate.Limiter
}

// NewOpenLibrary creates a client. Open Library allows 100 requests per five
// minutes, so rps should stay at or below 1; zero disables throttling.
func NewOpenLibrary(baseURL string, rps float64) *OpenLibrary {
	if baseURL == "" {
		baseURL = DefaultOpenLibraryURL
	}
	o := &OpenLibrary{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	if rps > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return o
}

// Name implements Source.
func (o *OpenLibrary) Name() string {
	return "openlibrary"
}

// booksResponse is the jscmd=data payload keyed by bibkey.
type booksResponse map[string]struct {
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"authors"`
	PublishDate string `json:"publish_date"`
}

// Lookup implements Source.
func (o *OpenLibrary) Lookup(ctx context.Context, book *models.Book) (*Record, error) {
	isbn := CleanISBN(book.ISBN)
	if isbn == "" {
		return nil, ErrNotFound
	}
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	key := "ISBN:" + isbn
	endpoint := fmt.Sprintf("%s/api/books?bibkeys=%s&format=json&jscmd=data", o.BaseURL, url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query Open Library: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("open Library API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result booksResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("could not parse ISBN '%s' response as JSON: %w", isbn, err)
	}

	data, ok := result[key]
	if !ok {
		return nil, ErrNotFound
	}

	record := &Record{
		Title:     data.Title,
		Published: data.PublishDate,
	}
	if len(data.Authors) > 0 {
		record.Author = data.Authors[0].Name
	}
	slog.Debug("Open Library record", "isbn", isbn, "title", record.Title, "author", record.Author, "published", record.Published)
	return record, nil
}

// CleanISBN removes hyphens and surrounding space from an ISBN.
func CleanISBN(isbn string) string {
	return strings.ReplaceAll(strings.TrimSpace(isbn), "-", "")
}

var publishLayouts = []string{
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"January 2006",
	"Jan 2006",
	"2006-01",
	"2006",
}

var yearPattern = regexp.MustCompile(`(?:^|\D)(\d{4})(?:\D|$)`)

// NormalizeDate converts a publication date to YYYY-MM-DD. Partial dates
// fall on the first of the month or year; dates with only a recognizable year
// such as "c1999" or "[1999?]" become that year's first day. Anything else is
// returned trimmed but unchanged.
func NormalizeDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	for _, layout := range publishLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.Format("2006-01-02")
		}
	}
	if m := yearPattern.FindStringSubmatch(value); m != nil {
		return m[1] + "-01-01"
	}
	return value
}
