package output

import (
	"os"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/law-makers/tablecrawl/pkg/models"
)

// SaveMarkdown renders the table to HTML and converts it to a GitHub
// flavored Markdown table.
func SaveMarkdown(table *models.Table, filepath string) error {
	mdStr, err := RenderMarkdown(table)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath, []byte(mdStr+"\n"), 0644)
}

// RenderMarkdown returns the table as a GitHub flavored Markdown table.
func RenderMarkdown(table *models.Table) (string, error) {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	htmlStr, err := RenderTable(table)
	if err != nil {
		return "", err
	}
	return converter.ConvertString(htmlStr)
}
