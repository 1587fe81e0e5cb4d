// Package catalog holds the loc.gov protocol details the resolver depends on:
// URL templates, page selectors and LCCN link parsing.
package catalog

import (
	"regexp"
	"strings"
)

const (
	// DefaultSearchURL is the loc.gov books search; the query is appended.
	DefaultSearchURL = "https://www.loc.gov/books/?all=true&q="
	// DefaultDetailURL is the LCCN permalink service; the LCCN is appended.
	DefaultDetailURL = "https://lccn.loc.gov/"
)

// Selectors locate the parts of loc.gov pages the resolver reads.
type Selectors struct {
	Results     string `yaml:"results"`      // Search results block
	ResultList  string `yaml:"result_list"`  // List inside Results
	ResultItem  string `yaml:"result_item"`  // One search result inside ResultList
	SiteError   string `yaml:"site_error"`   // Marker for a transient backend failure
	NoResults   string `yaml:"no_results"`   // Marker for a confirmed empty search
	Contributor string `yaml:"contributor"`  // Relative to ResultItem
	Date        string `yaml:"date"`         // Relative to ResultItem
	TitleLink   string `yaml:"title_link"`   // Relative to ResultItem
	ISBNHeading string `yaml:"isbn_heading"` // Detail page heading naming ISBNs
	ISBNValues  string `yaml:"isbn_values"`  // Detail page identifier spans
}

// Catalog describes where and how to query the Library of Congress.
type Catalog struct {
	SearchURL string    `yaml:"search_url"`
	DetailURL string    `yaml:"detail_url"`
	Selectors Selectors `yaml:"selectors"`
}

// New returns the live loc.gov configuration.
func New() Catalog {
	return Catalog{
		SearchURL: DefaultSearchURL,
		DetailURL: DefaultDetailURL,
		Selectors: DefaultSelectors(),
	}
}

// DefaultSelectors returns the selectors matching loc.gov markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Results:     "#results",
		ResultList:  "ul",
		ResultItem:  "li",
		SiteError:   "#error-page, .error-page, .search-error",
		NoResults:   "#no-results, .no-results, .noresults",
		Contributor: ".contributor",
		Date:        ".date span",
		TitleLink:   ".item-description-title a",
		ISBNHeading: `h2:containsOwn("ISBN"), h3:containsOwn("ISBN"), h4:containsOwn("ISBN"), dt:containsOwn("ISBN")`,
		ISBNValues:  `h2:containsOwn("ISBN") ~ ul li span, h3:containsOwn("ISBN") ~ ul li span, h4:containsOwn("ISBN") ~ ul li span, dt:containsOwn("ISBN") ~ dd ul li span`,
	}
}

// WithDefaults fills empty fields from New.
func (c Catalog) WithDefaults() Catalog {
	def := New()
	if c.SearchURL == "" {
		c.SearchURL = def.SearchURL
	}
	if c.DetailURL == "" {
		c.DetailURL = def.DetailURL
	}
	s, d := &c.Selectors, def.Selectors
	setDefault(&s.Results, d.Results)
	setDefault(&s.ResultList, d.ResultList)
	setDefault(&s.ResultItem, d.ResultItem)
	setDefault(&s.SiteError, d.SiteError)
	setDefault(&s.NoResults, d.NoResults)
	setDefault(&s.Contributor, d.Contributor)
	setDefault(&s.Date, d.Date)
	setDefault(&s.TitleLink, d.TitleLink)
	setDefault(&s.ISBNHeading, d.ISBNHeading)
	setDefault(&s.ISBNValues, d.ISBNValues)
	return c
}

func setDefault(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

// SearchLink builds the search URL for a title or name. Spaces become "+";
// nothing else is escaped, matching what the search form submits.
func (c Catalog) SearchLink(query string) string {
	return c.SearchURL + strings.ReplaceAll(query, " ", "+")
}

// DetailLink builds the permalink of an LCCN.
func (c Catalog) DetailLink(lccn string) string {
	return c.DetailURL + lccn
}

var itemLinkPattern = regexp.MustCompile(`/item/(\d+)/?(?:[?#].*)?$`)

// ParseLCCN extracts the LCCN from a search result link such as
// https://www.loc.gov/item/2001012345/.
func ParseLCCN(href string) (string, bool) {
	m := itemLinkPattern.FindStringSubmatch(strings.TrimSpace(href))
	if m == nil {
		return "", false
	}
	return m[1], true
}
