package output

import (
	"os"
	"strings"

	"github.com/law-makers/tablecrawl/pkg/models"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// tablePolicy keeps table structure and drops everything else.
var tablePolicy = bluemonday.NewPolicy().
	AllowElements("table", "thead", "tbody", "tr", "th", "td").
	AllowAttrs("scope").OnElements("th")

// RenderTable builds an HTML <table> from the table. Cell text is escaped
// by the renderer and the result passes through a sanitizing policy.
func RenderTable(table *models.Table) (string, error) {
	root := element(atom.Table)

	thead := element(atom.Thead)
	headRow := element(atom.Tr)
	for _, col := range table.Columns {
		th := element(atom.Th)
		th.Attr = []html.Attribute{{Key: "scope", Val: "col"}}
		th.AppendChild(&html.Node{Type: html.TextNode, Data: col})
		headRow.AppendChild(th)
	}
	thead.AppendChild(headRow)
	root.AppendChild(thead)

	tbody := element(atom.Tbody)
	for _, row := range table.Rows {
		tr := element(atom.Tr)
		for _, cell := range row {
			td := element(atom.Td)
			td.AppendChild(&html.Node{Type: html.TextNode, Data: cell})
			tr.AppendChild(td)
		}
		tbody.AppendChild(tr)
	}
	root.AppendChild(tbody)

	var sb strings.Builder
	if err := html.Render(&sb, root); err != nil {
		return "", err
	}
	return tablePolicy.Sanitize(sb.String()), nil
}

// SaveHTML writes a standalone HTML document holding the table.
func SaveHTML(table *models.Table, filepath string) error {
	body, err := RenderTable(table)
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	sb.WriteString("<title>tablecrawl export</title>\n</head>\n<body>\n")
	sb.WriteString(body)
	sb.WriteString("\n</body>\n</html>\n")
	return os.WriteFile(filepath, []byte(sb.String()), 0644)
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}
