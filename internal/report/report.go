// Package report writes the YAML record of an enrichment run and renders
// its summary tables.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/lccn-finder/internal/heuristic"
	"github.com/lehigh-university-libraries/lccn-finder/internal/lccn"
	"github.com/lehigh-university-libraries/lccn-finder/internal/models"
)

// RunConfig represents the configuration section of the report YAML
type RunConfig struct {
	RunID     string `yaml:"runid"`
	InputFile string `yaml:"inputfile"`
	Verify    bool   `yaml:"verifyisbn"`
	SearchURL string `yaml:"searchurl"`
	Timestamp string `yaml:"timestamp"`
}

// Signals is the decoded score of the adopted candidate
type Signals struct {
	Verified bool `yaml:"verified"`
	Title    bool `yaml:"title"`
	Author   bool `yaml:"author"`
	Date     bool `yaml:"date"`
	Index    int  `yaml:"index"`
}

// Query represents one search of the cascade
type Query struct {
	Strategy   string `yaml:"strategy"`
	Query      string `yaml:"query"`
	Results    int    `yaml:"results"`
	Candidates int    `yaml:"candidates"`
}

// Entry represents a single processed book
type Entry struct {
	ISBN           string   `yaml:"isbn"`
	Title          string   `yaml:"title"`
	Author         string   `yaml:"author,omitempty"`
	Published      string   `yaml:"published,omitempty"`
	MetadataSource string   `yaml:"metadatasource,omitempty"`
	LCCN           string   `yaml:"lccn"`
	Link           string   `yaml:"link,omitempty"`
	Verified       bool     `yaml:"verified"`
	Score          int      `yaml:"score"`
	Signals        *Signals `yaml:"signals,omitempty"`
	Queries        []Query  `yaml:"queries"`
}

// Report represents the complete run record
type Report struct {
	Config  RunConfig `yaml:"config"`
	Results []Entry   `yaml:"results"`
}

// New starts an empty report.
func New(config RunConfig) *Report {
	return &Report{Config: config, Results: []Entry{}}
}

// Add records the outcome of one book. metadataSource names the source that
// completed the book's metadata, if any.
func (r *Report) Add(book *models.Book, res *lccn.Resolution, metadataSource string) {
	entry := Entry{
		ISBN:           book.ISBN,
		Title:          book.Title,
		Author:         book.Author,
		Published:      book.Published,
		MetadataSource: metadataSource,
		LCCN:           book.LCCN,
		Link:           book.Link,
		Queries:        []Query{},
	}
	if res != nil {
		entry.Verified = res.Verified
		entry.Score = int(res.Score)
		if res.Found() {
			s := heuristic.Decode(res.Score)
			entry.Signals = &Signals{
				Verified: s.Verified,
				Title:    s.Title,
				Author:   s.Author,
				Date:     s.Date,
				Index:    s.Index,
			}
		}
		for _, a := range res.Attempts {
			entry.Queries = append(entry.Queries, Query{
				Strategy:   a.Strategy.String(),
				Query:      a.Query,
				Results:    a.Results,
				Candidates: len(a.Candidates),
			})
		}
	}
	r.Results = append(r.Results, entry)
}

// Summary counts the outcomes of a run.
type Summary struct {
	Books        int
	Found        int
	Verified     int
	NotAvailable int
}

// Summary tallies the recorded entries.
func (r *Report) Summary() Summary {
	var s Summary
	for _, e := range r.Results {
		s.Books++
		switch {
		case e.LCCN == models.NotAvailable || e.LCCN == "":
			s.NotAvailable++
		case e.Verified:
			s.Found++
			s.Verified++
		default:
			s.Found++
		}
	}
	return s
}

// Save writes the report to dir/lccn-<timestamp>.yaml and returns the path.
func (r *Report) Save(dir string, ts time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	stamp := ts.Format("2006-01-02_15-04-05")
	if r.Config.Timestamp == "" {
		r.Config.Timestamp = stamp
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("lccn-%s.yaml", stamp))
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}
	return filename, nil
}

// Load reads a report written by Save.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &r, nil
}
