package tabular

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/tablecrawl/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

// ErrNoTable is returned when the markup holds no <table> element.
var ErrNoTable = errors.New("no table element found")

// FromHTMLTable parses the first <table> in markup. The header is the text of
// every th in the table, data rows are the rows after the first that carry
// td cells. Header and rows are cut to the width of the first data row, and
// shorter rows are padded with empty cells. Elements hidden with
// display:none contribute no text and hidden cells are skipped.
func FromHTMLTable(markup string) (*models.Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return models.NewTable(), fmt.Errorf("failed to parse HTML: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return models.NewTable(), ErrNoTable
	}

	rows := ownRows(table)

	var header []string
	rows.Each(func(_ int, tr *goquery.Selection) {
		if hidden(tr) {
			return
		}
		visible(tr.ChildrenFiltered("th")).Each(func(_ int, th *goquery.Selection) {
			header = append(header, cellText(th))
		})
	})

	var data [][]string
	rows.Each(func(i int, tr *goquery.Selection) {
		if i == 0 || hidden(tr) {
			return
		}
		cells := visible(tr.ChildrenFiltered("td"))
		if cells.Length() == 0 {
			return
		}
		row := make([]string, 0, cells.Length())
		cells.Each(func(_ int, td *goquery.Selection) {
			row = append(row, cellText(td))
		})
		data = append(data, row)
	})

	result := models.NewTable()
	if len(data) == 0 {
		log.Warn().Int("header_cells", len(header)).Msg("Table has no data rows")
		return result, nil
	}

	width := len(data[0])
	if len(header) == 0 {
		header = make([]string, width)
		for i := range header {
			header[i] = fmt.Sprintf("Column %d", i+1)
		}
	}
	if len(header) < width {
		width = len(header)
	}
	if dropped := len(header) - width; dropped > 0 {
		log.Warn().
			Int("header_cells", len(header)).
			Int("width", width).
			Strs("dropped", header[width:]).
			Msg("Header wider than first data row, trailing columns dropped")
	}

	result.Columns = append(result.Columns, header[:width]...)
	for _, row := range data {
		result.Rows = append(result.Rows, fit(row, width))
	}
	return result, nil
}

func fit(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

// ownRows returns the tr elements that belong to table itself, not to a
// table nested inside one of its cells.
func ownRows(table *goquery.Selection) *goquery.Selection {
	return table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(table)
	})
}

func visible(sel *goquery.Selection) *goquery.Selection {
	return sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return !hidden(s)
	})
}

func hidden(s *goquery.Selection) bool {
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	style, ok := s.Attr("style")
	if !ok {
		return false
	}
	style = strings.ToLower(strings.Join(strings.Fields(style), ""))
	return strings.Contains(style, "display:none")
}

// cellText returns the rendered text of a cell with whitespace collapsed.
func cellText(s *goquery.Selection) string {
	c := s.Clone()
	c.Find("*").FilterFunction(func(_ int, e *goquery.Selection) bool {
		return hidden(e) || goquery.NodeName(e) == "style" || goquery.NodeName(e) == "script"
	}).Remove()
	c.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithNodes(&html.Node{Type: html.TextNode, Data: " "})
	})
	return strings.Join(strings.Fields(c.Text()), " ")
}
