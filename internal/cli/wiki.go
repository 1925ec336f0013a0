// internal/cli/wiki.go
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/law-makers/tablecrawl/internal/ui"
	urlutil "github.com/law-makers/tablecrawl/internal/utils/url"
	"github.com/law-makers/tablecrawl/pkg/models"
	"github.com/spf13/cobra"
)

var wikiOutput string

// wikiCmd represents the wiki command
var wikiCmd = &cobra.Command{
	Use:   "wiki [url]",
	Short: "Extract the first wikitable of a public page",
	Long: `Loads a public page in a headless browser, waits for the first table with
the "wikitable" class and saves it.

With no arguments the default population list is read and written to
docs/population_data.csv. The output format follows the file extension:
.csv, .json, .md or .html.`,
	Example: `  # Default page and output file
  tablecrawl wiki

  # Another page, saved as Markdown
  tablecrawl wiki https://en.wikipedia.org/wiki/List_of_largest_cities -o cities.md`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWiki,
}

func init() {
	rootCmd.AddCommand(wikiCmd)

	wikiCmd.Flags().StringVarP(&wikiOutput, "output", "o", "", "File to save the table to (default <output_dir>/<output_file>)")
}

func runWiki(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd)
	if err != nil {
		return err
	}

	url := a.Config.WikiURL
	if len(args) == 1 {
		url = args[0]
	}
	if err := urlutil.ValidateURL(url); err != nil {
		return err
	}

	out := wikiOutput
	if out == "" {
		out = filepath.Join(a.Config.OutputDir, a.Config.OutputFile)
	}

	fmt.Printf("\n%s\n", ui.Bold("📊 Public table extraction"))
	fmt.Println(divider)
	fmt.Printf("URL: %s\n", url)

	stop := startSpinner("Waiting for table...")
	result, err := a.Run(cmd.Context(), models.SourceWiki, url, out)
	stop()
	if err != nil {
		return fmt.Errorf("wiki extraction failed: %w", err)
	}

	printResult(os.Stdout, result)
	fmt.Println()
	return nil
}
