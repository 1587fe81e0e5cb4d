package lccn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/lccn-finder/internal/catalog"
	"github.com/lehigh-university-libraries/lccn-finder/internal/heuristic"
	"github.com/lehigh-university-libraries/lccn-finder/internal/models"
)

func newTestResolver(b *fakeBrowser, verify bool) *Resolver {
	opts := DefaultOptions()
	opts.Verify = verify
	opts.SearchTimeout = 10 * time.Second
	r := NewResolver(b, catalog.New(), opts)
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	r.stabilizer.now = clock.Now
	r.stabilizer.sleep = clock.Sleep
	return r
}

func search(query string) string {
	return catalog.New().SearchLink(query)
}

func detail(lccn string) string {
	return catalog.New().DetailLink(lccn)
}

func exampleBook() *models.Book {
	return &models.Book{
		ISBN:      "9780000000001",
		Name:      "Example Tale (Paperback)",
		Title:     "Example Tale",
		Author:    "Jane Doe",
		Published: "2001-05-03",
	}
}

func TestResolveEndToEnd(t *testing.T) {
	b := newFakeBrowser()
	b.addPage(search("Example Tale"), readyState(
		result("Example Tale", "Doe, Jane", "1999", "2001012345"),
		result("Unrelated", "Roe, Richard", "1980", "80000001"),
		result("Another", "", "", "80000002"),
	))
	b.addPage(detail("2001012345"), detailState("9780000000001 (pbk.)"))
	r := newTestResolver(b, true)

	book := exampleBook()
	res, err := r.Enrich(context.Background(), book)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(res.Attempts) != 1 {
		t.Fatalf("Expected 1 attempt, got %d", len(res.Attempts))
	}
	if got := res.Attempts[0].Candidates; len(got) != 1 || got[0].Score != 1110003 {
		t.Errorf("Expected single candidate scored 1110003, got %+v", got)
	}
	if res.Score != 1110003 {
		t.Errorf("Expected score 1110003, got %d", res.Score)
	}
	if book.LCCN != "2001012345" {
		t.Errorf("Expected LCCN 2001012345, got %s", book.LCCN)
	}
	if book.Link != "https://lccn.loc.gov/2001012345" {
		t.Errorf("Expected permalink, got %s", book.Link)
	}
	if book.Verified != models.VerifiedYes {
		t.Errorf("Expected verified Yes, got %s", book.Verified)
	}
}

func TestResolveStopsAfterVerifiedTitleSearch(t *testing.T) {
	b := newFakeBrowser()
	b.addPage(search("Example Tale"), readyState(result("Example Tale", "", "", "2001012345")))
	b.addPage(detail("2001012345"), detailState("9780000000001"))
	r := newTestResolver(b, true)

	if _, err := r.Resolve(context.Background(), exampleBook()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := b.searches(); len(got) != 1 {
		t.Errorf("Expected only the title search, got %v", got)
	}
}

func TestResolveFallsBackToName(t *testing.T) {
	b := newFakeBrowser()
	b.addPage(search("Example Tale"), noResultsState())
	b.addPage(search("Example Tale (Paperback)"), readyState(result("Example Tale (Paperback)", "", "", "2001012345")))
	b.addPage(detail("2001012345"), detailState("9780000000001"))
	r := newTestResolver(b, true)

	book := exampleBook()
	res, err := r.Enrich(context.Background(), book)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(res.Attempts) != 2 || res.Attempts[1].Strategy != StrategyName {
		t.Fatalf("Expected title then name attempts, got %+v", res.Attempts)
	}
	if book.LCCN != "2001012345" || book.Verified != models.VerifiedYes {
		t.Errorf("Expected verified 2001012345, got %s/%s", book.LCCN, book.Verified)
	}
}

func TestResolveSkipsNameEqualToTitle(t *testing.T) {
	b := newFakeBrowser()
	b.addPage(search("Example Tale"), noResultsState())
	r := newTestResolver(b, true)

	book := exampleBook()
	book.Name = "Example Tale"
	res, err := r.Enrich(context.Background(), book)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(res.Attempts) != 1 {
		t.Errorf("Expected a single attempt, got %d", len(res.Attempts))
	}
	if book.LCCN != models.NotAvailable {
		t.Errorf("Expected N/A, got %s", book.LCCN)
	}
}

func TestResolveStripsByline(t *testing.T) {
	b := newFakeBrowser()
	b.addPage(search("Example Tale by Jane Doe"), noResultsState())
	b.addPage(search("Example Tale by Jane Doe (Paperback)"), noResultsState())
	b.addPage(search("Example Tale"), readyState(result("Example Tale", "Doe, Jane", "", "2001012345")))
	b.addPage(detail("2001012345"), detailState())
	r := newTestResolver(b, true)

	book := exampleBook()
	book.Title = "Example Tale by Jane Doe"
	book.Name = "Example Tale by Jane Doe (Paperback)"

	res, err := r.Enrich(context.Background(), book)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	expected := []Strategy{StrategyTitle, StrategyName, StrategyTitleWithoutByline}
	if len(res.Attempts) != len(expected) {
		t.Fatalf("Expected %d attempts, got %+v", len(expected), res.Attempts)
	}
	// The name without its byline is "Example Tale", already searched.
	for i, s := range expected {
		if res.Attempts[i].Strategy != s {
			t.Errorf("Attempt %d: expected %s, got %s", i, s, res.Attempts[i].Strategy)
		}
	}
	if book.LCCN != "2001012345" || book.Verified != models.VerifiedNo {
		t.Errorf("Expected unverified 2001012345, got %s/%s", book.LCCN, book.Verified)
	}
}

func TestResolveUnverifiedRunsWholeCascade(t *testing.T) {
	b := newFakeBrowser()
	b.addPage(search("Example Tale"), readyState(result("Example Tale", "", "", "2001012345")))
	b.addPage(search("Example Tale (Paperback)"), readyState(result("Other", "Doe, Jane", "2001", "99000001")))
	b.addPage(detail("2001012345"), detailState("1111111111"))
	b.addPage(detail("99000001"), detailState("2222222222"))
	r := newTestResolver(b, true)

	book := exampleBook()
	res, err := r.Enrich(context.Background(), book)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(res.Attempts) != 2 {
		t.Errorf("Expected 2 attempts, got %d", len(res.Attempts))
	}
	// Title match (100001) outranks author+date (11001).
	if book.LCCN != "2001012345" || book.Verified != models.VerifiedNo {
		t.Errorf("Expected unverified 2001012345, got %s/%s", book.LCCN, book.Verified)
	}
}

func TestResolveVerifiedOutranksBetterMatch(t *testing.T) {
	b := newFakeBrowser()
	b.addPage(search("Example Tale"), readyState(
		result("Example Tale", "Doe, Jane", "2001", "2001000001"),
		result("Example Tale", "", "", "2001000002"),
	))
	b.addPage(detail("2001000001"), detailState("5555555555"))
	b.addPage(detail("2001000002"), detailState("9780000000001"))
	r := newTestResolver(b, true)

	res, err := r.Resolve(context.Background(), exampleBook())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if res.LCCN != "2001000002" || !res.Verified {
		t.Errorf("Expected verified 2001000002, got %s verified=%v", res.LCCN, res.Verified)
	}
	expected := heuristic.Encode(heuristic.Signals{Verified: true, Title: true, Index: 1})
	if res.Score != expected {
		t.Errorf("Expected score %d, got %d", expected, res.Score)
	}
}

func TestResolveWithoutVerification(t *testing.T) {
	b := newFakeBrowser()
	b.addPage(search("Example Tale"), readyState(result("Example Tale", "", "", "2001012345")))
	b.addPage(search("Example Tale (Paperback)"), noResultsState())
	r := newTestResolver(b, false)

	book := exampleBook()
	if _, err := r.Enrich(context.Background(), book); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	for _, u := range b.navigations {
		if u == detail("2001012345") {
			t.Errorf("Expected no permalink navigation with verification off")
		}
	}
	if book.LCCN != "2001012345" || book.Verified != models.VerifiedNo {
		t.Errorf("Expected unverified 2001012345, got %s/%s", book.LCCN, book.Verified)
	}
}

func TestResolveNothingFound(t *testing.T) {
	b := newFakeBrowser()
	b.addPage(search("Example Tale"), readyState(result("Unrelated", "", "", "1")))
	b.addPage(search("Example Tale (Paperback)"), noResultsState())
	r := newTestResolver(b, true)

	book := exampleBook()
	book.LCCN = ""
	res, err := r.Enrich(context.Background(), book)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if res.Found() {
		t.Errorf("Expected no resolution, got %s", res.LCCN)
	}
	if book.LCCN != models.NotAvailable {
		t.Errorf("Expected N/A, got %s", book.LCCN)
	}
}

func TestResolveNoQueries(t *testing.T) {
	b := newFakeBrowser()
	r := newTestResolver(b, true)

	res, err := r.Resolve(context.Background(), &models.Book{ISBN: "9780000000001"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if res.Found() || len(b.navigations) != 0 {
		t.Errorf("Expected nothing searched, got %+v with %d navigations", res, len(b.navigations))
	}
}

func TestResolveDeadlineIsFatal(t *testing.T) {
	b := newFakeBrowser()
	b.addPage(search("Example Tale"), siteErrorState())
	r := newTestResolver(b, true)

	_, err := r.Resolve(context.Background(), exampleBook())
	if !errors.Is(err, ErrDeadlineExceeded) {
		t.Fatalf("Expected ErrDeadlineExceeded, got %v", err)
	}
	if got := b.searches(); len(got) == 0 || got[len(got)-1] != search("Example Tale") {
		t.Errorf("Expected the name search never to run, got %v", got)
	}
}

func TestResolveSameDataSameWinner(t *testing.T) {
	build := func() *fakeBrowser {
		b := newFakeBrowser()
		b.addPage(search("Example Tale"), readyState(
			result("Example Tale", "", "", "2001000001"),
			result("Example Tale", "", "", "2001000002"),
		))
		b.addPage(search("Example Tale (Paperback)"), noResultsState())
		return b
	}

	first, err := newTestResolver(build(), true).Resolve(context.Background(), exampleBook())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	second, err := newTestResolver(build(), true).Resolve(context.Background(), exampleBook())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if first.LCCN != "2001000001" || second.LCCN != first.LCCN {
		t.Errorf("Expected the earlier listed result to win both times, got %s and %s", first.LCCN, second.LCCN)
	}
}

func TestMergeKeepsTieOrder(t *testing.T) {
	merged := Merge(
		[]Candidate{{LCCN: "A", Score: 500}, {LCCN: "B", Score: 900}},
		[]Candidate{{LCCN: "C", Score: 900}},
	)

	expected := []string{"B", "C", "A"}
	for i, id := range expected {
		if merged[i].LCCN != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, merged[i].LCCN)
		}
	}
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	prior := []Candidate{{LCCN: "A", Score: 1}, {LCCN: "B", Score: 2}}
	_ = Merge(prior, nil)
	if prior[0].LCCN != "A" {
		t.Errorf("Expected prior to be left untouched, got %+v", prior)
	}
}

func TestStripByline(t *testing.T) {
	tests := []struct {
		in       string
		expected string
		ok       bool
	}{
		{in: "Example Tale by Jane Doe", expected: "Example Tale", ok: true},
		{in: "Stand by Me by Stephen King", expected: "Stand by Me", ok: true},
		{in: "Example Tale BY Jane Doe", expected: "Example Tale", ok: true},
		{in: "Bystander", ok: false},
		{in: "Example Tale", ok: false},
		{in: "by Jane Doe", ok: false},
	}
	for _, tt := range tests {
		got, ok := StripByline(tt.in)
		if ok != tt.ok || got != tt.expected {
			t.Errorf("StripByline(%q): expected (%q, %v), got (%q, %v)", tt.in, tt.expected, tt.ok, got, ok)
		}
	}
}
