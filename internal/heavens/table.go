package heavens

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const rowSelector = "table.standardTable tbody tr"

// TableGetter is implemented by every named table source.
type TableGetter interface {
	Name() string
	GetTable(ctx context.Context) (*Table, error)
}

// Row is one parsed table row.
type Row struct {
	ID      string            `json:"id"`
	Link    string            `json:"link,omitempty"`
	Cells   map[string]string `json:"cells"`
	Seconds map[string]int    `json:"seconds,omitempty"`
}

// Table is a fetched heavens-above table. Beyond column names and cell text
// the content is passed through as-is.
type Table struct {
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	FetchedAt time.Time `json:"fetched_at"`
	Columns   []string  `json:"columns"`
	Rows      []Row     `json:"rows"`
}

// Digest fingerprints the table by its row IDs in order.
func (t *Table) Digest() string {
	ids := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		ids[i] = r.ID
	}
	return Hash(strings.Join(ids, "\n"))
}

// Column is one expected cell of a row. Clock columns are converted to
// elapsed seconds with ParseTimestamp.
type Column struct {
	Name  string
	Clock bool
}

// Schema describes how to turn a page into rows for one source.
type Schema struct {
	Source  string
	Columns []Column

	// Derive, when set, runs on each parsed row before it is kept.
	Derive func(*Row)
}

// ColumnNames returns the schema's column names in order.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Parse reads an HTML page from r and extracts rows from the standard
// heavens-above result table. Relative detail links are resolved against
// pageURL. Rows with the wrong cell count or a bad clock cell are skipped
// with a warning log.
func (s Schema) Parse(r io.Reader, pageURL string, logger *slog.Logger) ([]Row, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	base, _ := url.Parse(pageURL)

	var rows []Row
	doc.Find(rowSelector).Each(func(i int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			// Header rows carry only th cells.
			return
		}
		if cells.Length() != len(s.Columns) {
			logger.Warn("skipping table row with unexpected cell count",
				"source", s.Source, "row_index", i, "cells", cells.Length(), "want", len(s.Columns))
			return
		}

		row := Row{Cells: make(map[string]string, len(s.Columns))}
		values := make([]string, 0, len(s.Columns))
		ok := true
		cells.Each(func(j int, td *goquery.Selection) {
			if !ok {
				return
			}
			col := s.Columns[j]
			text := strings.Join(strings.Fields(td.Text()), " ")
			row.Cells[col.Name] = text
			values = append(values, text)

			if col.Clock {
				sec, err := ParseTimestamp(ClockField(text))
				if err != nil {
					logger.Warn("skipping table row with invalid clock",
						"source", s.Source, "row_index", i, "column", col.Name, "value", text, "error", err)
					ok = false
					return
				}
				if row.Seconds == nil {
					row.Seconds = make(map[string]int)
				}
				row.Seconds[col.Name] = sec
			}
		})
		if !ok {
			return
		}

		if href, exists := cells.First().Find("a").Attr("href"); exists && href != "" {
			row.Link = resolveLink(base, href)
		}
		if row.Link != "" {
			row.ID = Hash(row.Link)
		} else {
			row.ID = Hash(strings.Join(values, "|"))
		}

		if s.Derive != nil {
			s.Derive(&row)
		}
		rows = append(rows, row)
	})

	return rows, nil
}

func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
