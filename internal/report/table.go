package report

import (
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/lehigh-university-libraries/lccn-finder/internal/journal"
	"github.com/lehigh-university-libraries/lccn-finder/internal/lccn"
)

// column is a table header. Numeric columns are right-aligned.
type column struct {
	title   string
	numeric bool
}

func textCol(title string) column { return column{title: title} }
func numCol(title string) column  { return column{title: title, numeric: true} }

// render draws rows under cols in the rounded style. Headers keep their case
// and short rows are padded with empty cells.
func render(cols []column, rows [][]string) string {
	if len(cols) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(cols))
	configs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		header[i] = c.title
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if c.numeric {
			configs[i].Align = text.AlignRight
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, values := range rows {
		row := make(table.Row, len(cols))
		for i := range row {
			row[i] = ""
			if i < len(values) {
				row[i] = values[i]
			}
		}
		tw.AppendRow(row)
	}
	return tw.Render()
}

// RenderSummary renders run totals as a table.
func RenderSummary(s Summary) string {
	rows := [][]string{
		{"Books", strconv.Itoa(s.Books)},
		{"LCCN found", strconv.Itoa(s.Found)},
		{"Verified by ISBN", strconv.Itoa(s.Verified)},
		{"Not available", strconv.Itoa(s.NotAvailable)},
	}
	return render([]column{textCol("Outcome"), numCol("Count")}, rows)
}

// RenderResolution renders the searches of a single lookup.
func RenderResolution(res *lccn.Resolution) string {
	rows := make([][]string, 0, len(res.Attempts))
	for _, a := range res.Attempts {
		best := ""
		if len(a.Candidates) > 0 {
			top := lccn.Merge(nil, a.Candidates)[0]
			best = top.LCCN + " (" + strconv.Itoa(int(top.Score)) + ")"
		}
		rows = append(rows, []string{a.Strategy.String(), a.Query, strconv.Itoa(a.Results), best})
	}
	return render([]column{textCol("Strategy"), textCol("Query"), numCol("Results"), textCol("Best candidate")}, rows)
}

// RenderHistory renders journal entries, newest first.
func RenderHistory(entries []journal.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		id := e.LCCN
		if id == "" {
			id = "N/A"
		}
		verified := "No"
		if e.Verified {
			verified = "Yes"
		}
		rows = append(rows, []string{
			e.CreatedAt.Local().Format("2006-01-02 15:04"),
			id,
			verified,
			strconv.Itoa(e.Score),
			strings.Join(e.Strategies, ", "),
		})
	}
	return render([]column{textCol("When"), textCol("LCCN"), textCol("Verified"), numCol("Score"), textCol("Strategies")}, rows)
}
