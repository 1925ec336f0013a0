// internal/cli/serve.go
package cli

import (
	"fmt"

	"github.com/law-makers/tablecrawl/internal/shell"
	"github.com/law-makers/tablecrawl/internal/ui"
	"github.com/spf13/cobra"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web shell",
	Long: `Serves a local page with a URL field, a "Fetch Data" button and a
"Run First-Time Authentication" button, plus the JSON API behind them.

Only one fetch or authentication runs at a time. Stop with Ctrl+C.`,
	Example: `  # Serve on the default address
  tablecrawl serve

  # Listen on another port
  tablecrawl serve --addr 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from shell_addr, 127.0.0.1:8765)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd)
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = a.Config.ShellAddr
	}

	srv := shell.New(cmd.Context(), shell.Deps{
		Runner:       a,
		Session:      a.Store,
		NewBootstrap: func() shell.Bootstrapper { return a.NewBootstrap() },
		Logger:       *a.Logger,
	})

	fmt.Printf("\n%s\n", ui.Bold("🌐 tablecrawl shell"))
	fmt.Println(divider)
	fmt.Printf("Open:    %s\n", ui.Success("http://"+addr))
	fmt.Printf("Session: %s\n", a.Store.Path)
	fmt.Printf("%s\n\n", ui.Dim("Press Ctrl+C to stop."))

	return srv.ListenAndServe(cmd.Context(), addr)
}
