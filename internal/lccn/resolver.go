// Package lccn resolves a book to its Library of Congress Control Number by
// searching loc.gov, scoring each result and verifying the best candidates
// against the book's ISBN.
package lccn

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/lccn-finder/internal/browser"
	"github.com/lehigh-university-libraries/lccn-finder/internal/catalog"
	"github.com/lehigh-university-libraries/lccn-finder/internal/heuristic"
	"github.com/lehigh-university-libraries/lccn-finder/internal/models"
)

// Candidate is a possible LCCN for a book with its confidence score.
type Candidate struct {
	LCCN  string          `json:"lccn" yaml:"lccn"`
	Score heuristic.Score `json:"score" yaml:"score"`
}

// Strategy names one search of the cascade.
type Strategy int

const (
	StrategyTitle Strategy = iota + 1
	StrategyName
	StrategyTitleWithoutByline
	StrategyNameWithoutByline
)

func (s Strategy) String() string {
	switch s {
	case StrategyTitle:
		return "title"
	case StrategyName:
		return "name"
	case StrategyTitleWithoutByline:
		return "title-without-byline"
	case StrategyNameWithoutByline:
		return "name-without-byline"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Attempt records one search of the cascade.
type Attempt struct {
	Strategy   Strategy
	Query      string
	Results    int
	Candidates []Candidate
}

// Resolution is the outcome of resolving one book. LCCN is empty when no
// candidate was found.
type Resolution struct {
	LCCN     string
	Link     string
	Verified bool
	Score    heuristic.Score
	Attempts []Attempt
}

// Found reports whether a candidate was adopted.
func (r *Resolution) Found() bool {
	return r != nil && r.LCCN != ""
}

// Options tune the resolver.
type Options struct {
	// Verify enables the ISBN check on the permalink page of each candidate.
	Verify          bool
	PageLoadTimeout time.Duration
	// SearchTimeout is the hard deadline of one search, retries included.
	SearchTimeout time.Duration
	PollInterval  time.Duration
}

// DefaultOptions returns the settings used against loc.gov.
func DefaultOptions() Options {
	return Options{
		Verify:          true,
		PageLoadTimeout: 20 * time.Second,
		SearchTimeout:   2 * time.Minute,
		PollInterval:    time.Second,
	}
}

// Resolver runs the search cascade for one book at a time. It owns no state
// between books; the browser session is shared and must not be used
// concurrently.
type Resolver struct {
	catalog    catalog.Catalog
	stabilizer *Stabilizer
	extractor  *Extractor
	verifier   *Verifier
	verify     bool
}

// NewResolver wires a resolver to a browser session.
func NewResolver(b browser.Browser, cat catalog.Catalog, opts Options) *Resolver {
	cat = cat.WithDefaults()
	return &Resolver{
		catalog:    cat,
		stabilizer: NewStabilizer(b, cat.Selectors, opts.PageLoadTimeout, opts.SearchTimeout, opts.PollInterval),
		extractor:  NewExtractor(cat.Selectors),
		verifier:   NewVerifier(b, cat, opts.PageLoadTimeout),
		verify:     opts.Verify,
	}
}

type plannedSearch struct {
	strategy Strategy
	query    string
}

var bylinePattern = regexp.MustCompile(`(?i)^(.*\S)\s+by\s+\S.*$`)

// StripByline removes a trailing "by <someone>" from a title, keeping the
// last occurrence so "Stand by Me by Stephen King" becomes "Stand by Me".
func StripByline(title string) (string, bool) {
	m := bylinePattern.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return "", false
	}
	return m[1], true
}

func plan(book *models.Book) []plannedSearch {
	var searches []plannedSearch
	seen := make(map[string]bool)
	add := func(s Strategy, query string) {
		query = strings.TrimSpace(query)
		if query == "" || seen[query] {
			return
		}
		seen[query] = true
		searches = append(searches, plannedSearch{strategy: s, query: query})
	}

	add(StrategyTitle, book.Title)
	add(StrategyName, book.Name)
	if q, ok := StripByline(book.Title); ok {
		add(StrategyTitleWithoutByline, q)
	}
	if q, ok := StripByline(book.Name); ok {
		add(StrategyNameWithoutByline, q)
	}
	return searches
}

// Resolve runs the search cascade for book and returns the best candidate.
// The cascade stops early once the top ranked candidate is verified.
// Errors are fatal to the run; an unresolvable book is a Resolution without
// an LCCN.
func (r *Resolver) Resolve(ctx context.Context, book *models.Book) (*Resolution, error) {
	res := &Resolution{}
	var ranked []Candidate
	verified := make(map[string]bool)

	for _, search := range plan(book) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slog.Info("Getting LCCN", "isbn", book.ISBN, "strategy", search.strategy.String(), "query", search.query)

		attempt, err := r.search(ctx, book, search, verified)
		if err != nil {
			return nil, fmt.Errorf("failed %s search for ISBN %s: %w", search.strategy, book.ISBN, err)
		}
		res.Attempts = append(res.Attempts, attempt)

		ranked = Merge(ranked, attempt.Candidates)
		if len(ranked) > 0 && ranked[0].Score.Verified() {
			slog.Info("Found verified LCCN", "isbn", book.ISBN, "lccn", ranked[0].LCCN, "strategy", search.strategy.String())
			break
		}
	}

	if len(ranked) == 0 {
		slog.Info("No LCCN candidates found", "isbn", book.ISBN)
		return res, nil
	}

	top := ranked[0]
	res.LCCN = top.LCCN
	res.Link = r.catalog.DetailLink(top.LCCN)
	res.Score = top.Score
	res.Verified = top.Score.Verified()
	return res, nil
}

// search runs one strategy: load the results page, score every result in
// page order, then verify the candidates. All elements are read before the
// verifier navigates away from the results page.
func (r *Resolver) search(ctx context.Context, book *models.Book, search plannedSearch, verified map[string]bool) (Attempt, error) {
	attempt := Attempt{Strategy: search.strategy, Query: search.query}

	items, err := r.stabilizer.Load(ctx, r.catalog.SearchLink(search.query))
	if err != nil {
		return attempt, err
	}
	attempt.Results = len(items)

	for i, item := range items {
		index := heuristic.ClampIndex(len(items) - i)
		candidate, _, ok, err := r.extractor.Extract(item, book, search.query, index)
		if err != nil {
			return attempt, err
		}
		if ok && candidate.Score > 0 {
			attempt.Candidates = append(attempt.Candidates, candidate)
		}
	}

	if !r.verify {
		return attempt, nil
	}

	for i, candidate := range attempt.Candidates {
		ok, seen := verified[candidate.LCCN]
		if !seen {
			ok, err = r.verifier.Verify(ctx, candidate.LCCN, book.ISBN)
			if err != nil {
				return attempt, err
			}
			verified[candidate.LCCN] = ok
		}
		if ok {
			attempt.Candidates[i].Score = heuristic.Update(candidate.Score, heuristic.Patch{Verified: heuristic.Bool(true)})
		}
	}
	return attempt, nil
}

// Enrich resolves book and writes the outcome onto it.
func (r *Resolver) Enrich(ctx context.Context, book *models.Book) (*Resolution, error) {
	res, err := r.Resolve(ctx, book)
	if err != nil {
		return nil, err
	}
	Apply(book, res)
	return res, nil
}

// Apply copies a resolution onto a book. Books without a candidate are
// marked not available.
func Apply(book *models.Book, res *Resolution) {
	if !res.Found() {
		book.LCCN = models.NotAvailable
		book.Link = ""
		book.Verified = ""
		return
	}
	book.LCCN = res.LCCN
	book.Link = res.Link
	if res.Verified {
		book.Verified = models.VerifiedYes
	} else {
		book.Verified = models.VerifiedNo
	}
}

// Merge appends next to prior and ranks the result by score, highest first.
// Equal scores keep their merge order.
func Merge(prior, next []Candidate) []Candidate {
	merged := make([]Candidate, 0, len(prior)+len(next))
	merged = append(merged, prior...)
	merged = append(merged, next...)
	slices.SortStableFunc(merged, func(a, b Candidate) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return merged
}
