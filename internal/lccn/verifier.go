package lccn

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/lccn-finder/internal/browser"
	"github.com/lehigh-university-libraries/lccn-finder/internal/catalog"
)

var digitRun = regexp.MustCompile(`\d+[Xx]?`)

// Verifier confirms a candidate by finding the book's ISBN on the LCCN
// permalink page.
type Verifier struct {
	browser         browser.Browser
	catalog         catalog.Catalog
	pageLoadTimeout time.Duration
}

// NewVerifier creates a verifier.
func NewVerifier(b browser.Browser, cat catalog.Catalog, pageLoadTimeout time.Duration) *Verifier {
	return &Verifier{browser: b, catalog: cat, pageLoadTimeout: pageLoadTimeout}
}

// Verify reports whether isbn is listed on the permalink page of lccn. A page
// without an ISBN section is unverified, not an error.
func (v *Verifier) Verify(ctx context.Context, lccn, isbn string) (bool, error) {
	target := NormalizeISBN(isbn)
	if target == "" {
		return false, nil
	}
	slog.Info("Verifying LCCN against ISBN", "lccn", lccn, "isbn", target)

	if err := navigate(ctx, v.browser, v.catalog.DetailLink(lccn), v.pageLoadTimeout); err != nil {
		return false, err
	}

	if _, ok, err := v.browser.LocateOne(v.catalog.Selectors.ISBNHeading); err != nil {
		return false, fmt.Errorf("failed to locate ISBN heading for LCCN %s: %w", lccn, err)
	} else if !ok {
		slog.Debug("LCCN page lists no ISBNs", "lccn", lccn)
		return false, nil
	}

	values, err := v.browser.LocateAll(v.catalog.Selectors.ISBNValues)
	if err != nil {
		return false, fmt.Errorf("failed to locate ISBNs for LCCN %s: %w", lccn, err)
	}
	for _, value := range values {
		text, err := value.Text()
		if err != nil {
			return false, fmt.Errorf("failed to read ISBN for LCCN %s: %w", lccn, err)
		}
		// "0385504209 (hardcover)" and "(pbk.) 9780385504201" both carry
		// their ISBN as the first digit run, with an ISBN-10 check digit X.
		if strings.ToUpper(digitRun.FindString(strings.TrimSpace(text))) == target {
			return true, nil
		}
	}

	slog.Info("Could not verify ISBN against LCCN", "lccn", lccn, "isbn", target)
	return false, nil
}

// NormalizeISBN trims an ISBN, drops hyphens and inner spaces and upper-cases
// a check digit x.
func NormalizeISBN(isbn string) string {
	return strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(isbn)))
}
