package lccn

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/lehigh-university-libraries/lccn-finder/internal/browser"
	"github.com/lehigh-university-libraries/lccn-finder/internal/catalog"
	"github.com/lehigh-university-libraries/lccn-finder/internal/heuristic"
	"github.com/lehigh-university-libraries/lccn-finder/internal/models"
)

const contributorLabel = "Contributor: "

var yearPattern = regexp.MustCompile(`\d{4}`)

// Extractor scores a single search result against a book.
type Extractor struct {
	selectors catalog.Selectors
}

// NewExtractor creates an extractor reading results with the given selectors.
func NewExtractor(selectors catalog.Selectors) *Extractor {
	return &Extractor{selectors: selectors}
}

// Extract compares one result element with the book. It returns the match
// signals it observed and, when at least one matched and the result links to
// an LCCN, the candidate scored with the given tie-break index.
func (e *Extractor) Extract(item browser.Element, book *models.Book, query string, index int) (Candidate, heuristic.Signals, bool, error) {
	signals := heuristic.Signals{Index: index}

	titleLink, hasTitle, err := item.LocateOne(e.selectors.TitleLink)
	if err != nil {
		return Candidate{}, signals, false, fmt.Errorf("failed to locate result title: %w", err)
	}
	if hasTitle {
		name, err := titleLink.Text()
		if err != nil {
			return Candidate{}, signals, false, fmt.Errorf("failed to read result title: %w", err)
		}
		signals.Title = strings.EqualFold(cleanResultTitle(name), strings.TrimSpace(query))
	}

	if book.Author != "" {
		contributor, ok, err := item.LocateOne(e.selectors.Contributor)
		if err != nil {
			return Candidate{}, signals, false, fmt.Errorf("failed to locate result contributor: %w", err)
		}
		if ok {
			text, err := contributor.Text()
			if err != nil {
				return Candidate{}, signals, false, fmt.Errorf("failed to read result contributor: %w", err)
			}
			author := strings.TrimSpace(strings.Replace(text, contributorLabel, "", 1))
			signals.Author = author == FormatAuthor(book.Author)
		}
	}

	if year := PublishedYear(book.Published); year != "" {
		date, ok, err := item.LocateOne(e.selectors.Date)
		if err != nil {
			return Candidate{}, signals, false, fmt.Errorf("failed to locate result date: %w", err)
		}
		if ok {
			text, err := date.Text()
			if err != nil {
				return Candidate{}, signals, false, fmt.Errorf("failed to read result date: %w", err)
			}
			signals.Date = strings.TrimSpace(text) == year
		}
	}

	if !signals.Title && !signals.Author && !signals.Date {
		return Candidate{}, signals, false, nil
	}

	if !hasTitle {
		return Candidate{}, signals, false, nil
	}
	href, ok, err := titleLink.Attribute("href")
	if err != nil {
		return Candidate{}, signals, false, fmt.Errorf("failed to read result link: %w", err)
	}
	if !ok {
		return Candidate{}, signals, false, nil
	}
	id, ok := catalog.ParseLCCN(href)
	if !ok {
		slog.Debug("Matched result has no LCCN link", "isbn", book.ISBN, "href", href)
		return Candidate{}, signals, false, nil
	}

	slog.Debug("Matched LCCN candidate",
		"isbn", book.ISBN,
		"lccn", id,
		"title", signals.Title,
		"author", signals.Author,
		"date", signals.Date,
		"index", signals.Index)

	return Candidate{LCCN: id, Score: heuristic.Encode(signals)}, signals, true, nil
}

// cleanResultTitle strips the statement of responsibility that loc.gov
// renders after the title, e.g. "Example tale / Jane Doe" or "Example tale /".
func cleanResultTitle(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, " /"); i >= 0 {
		name = name[:i]
	} else {
		name = strings.TrimSuffix(name, "/")
	}
	return strings.TrimSpace(name)
}

// FormatAuthor converts "First Last" into the catalog's "Last, First" form.
// Names already containing ", " are returned unchanged.
func FormatAuthor(author string) string {
	author = strings.TrimSpace(author)
	if author == "" || strings.Contains(author, ", ") {
		return author
	}
	parts := strings.Split(author, " ")
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ", ")
}

// PublishedYear returns the first four digit run of a publication date.
func PublishedYear(published string) string {
	return yearPattern.FindString(published)
}
