// internal/browser/grid.go
package browser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ColumnMap maps a logical column name to its 1-based td position. Markup
// changes on the vendor side are absorbed by editing one map.
type ColumnMap map[string]int

// Grid is a parsed snapshot of a Kendo grid.
type Grid struct {
	doc     *goquery.Document
	rows    []*goquery.Selection
	columns ColumnMap
}

// ParseGrid parses the outer HTML of a Kendo grid container.
func ParseGrid(html string, columns ColumnMap) (*Grid, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse grid snapshot: %w", err)
	}
	g := &Grid{doc: doc, columns: columns}
	doc.Find(".k-grid-content table > tbody > tr").Each(func(_ int, s *goquery.Selection) {
		g.rows = append(g.rows, s)
	})
	// Grids without a scrollable content pane keep rows directly under the table.
	if len(g.rows) == 0 {
		doc.Find("table > tbody > tr").Not(".k-footer-template").Each(func(_ int, s *goquery.Selection) {
			g.rows = append(g.rows, s)
		})
	}
	return g, nil
}

// RowCount returns the number of row slots in the snapshot, empty or not.
func (g *Grid) RowCount() int { return len(g.rows) }

// Cell returns the trimmed text at 1-based row and column positions. The
// boolean is false when the row or cell does not exist.
func (g *Grid) Cell(row, col int) (string, bool) {
	if row < 1 || row > len(g.rows) || col < 1 {
		return "", false
	}
	cell := g.rows[row-1].Find(fmt.Sprintf("td:nth-child(%d)", col))
	if cell.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(cell.First().Text()), true
}

// Value returns the cell of the named column on a 1-based row.
func (g *Grid) Value(row int, column string) (string, bool) {
	pos, ok := g.columns[column]
	if !ok {
		return "", false
	}
	return g.Cell(row, pos)
}

// Footer returns the aggregate text of the footer cell at a 1-based position.
func (g *Grid) Footer(col int) (string, bool) {
	cell := g.doc.Find(fmt.Sprintf(".k-footer-template > td:nth-child(%d)", col))
	if cell.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(cell.First().Text()), true
}

// FooterValue returns the footer cell of the named column.
func (g *Grid) FooterValue(column string) (string, bool) {
	pos, ok := g.columns[column]
	if !ok {
		return "", false
	}
	return g.Footer(pos)
}
