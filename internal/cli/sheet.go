// internal/cli/sheet.go
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/law-makers/tablecrawl/internal/engine"
	"github.com/law-makers/tablecrawl/internal/ui"
	urlutil "github.com/law-makers/tablecrawl/internal/utils/url"
	"github.com/law-makers/tablecrawl/pkg/models"
	"github.com/spf13/cobra"
)

var (
	sheetOutput  string
	sheetMaxRows int
)

// sheetCmd represents the sheet command
var sheetCmd = &cobra.Command{
	Use:   "sheet <url>",
	Short: "Extract an authenticated spreadsheet",
	Long: `Restores the saved browser session, opens the sheet headless and captures
the JSON data response the page requests while loading.

The records are flattened into a table and shown in the terminal. Use -o to
also save them; the format follows the file extension.`,
	Example: `  # Show the sheet in the terminal
  tablecrawl sheet https://docs.qq.com/sheet/DQk1abc

  # Save as CSV
  tablecrawl sheet https://docs.qq.com/sheet/DQk1abc -o docs/sheet.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runSheet,
}

func init() {
	rootCmd.AddCommand(sheetCmd)

	sheetCmd.Flags().StringVarP(&sheetOutput, "output", "o", "", "File to save the table to (.csv, .json, .md, .html)")
	sheetCmd.Flags().IntVar(&sheetMaxRows, "max-rows", 50, "Rows to show in the terminal (0 shows all)")
}

func runSheet(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd)
	if err != nil {
		return err
	}

	url := args[0]
	if err := urlutil.ValidateURL(url); err != nil {
		return err
	}

	stop := startSpinner("Fetching sheet data...")
	result, err := a.Run(cmd.Context(), models.SourceSheet, url, sheetOutput)
	stop()
	if err != nil {
		if errors.Is(err, engine.ErrSessionMissing) {
			fmt.Printf("\n%s\n", ui.Error("No saved session found."))
			fmt.Println("Create one with:")
			fmt.Println("  tablecrawl auth")
			fmt.Println()
		}
		return fmt.Errorf("sheet extraction failed: %w", err)
	}

	fmt.Println()
	renderTable(os.Stdout, result.Table, sheetMaxRows)
	printResult(os.Stdout, result)
	fmt.Println()
	return nil
}
