// internal/cli/root.go
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/tablecrawl/internal/app"
	"github.com/law-makers/tablecrawl/internal/config"
	"github.com/law-makers/tablecrawl/internal/ui"
)

var (
	verbose    bool
	quiet      bool
	jsonOutput bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tablecrawl",
	Short: "Extract web tables into CSV, JSON, Markdown or HTML",
	Long: `Tablecrawl pulls tabular data out of web pages with a real browser.

It reads public HTML tables directly, and reads authenticated spreadsheets by
restoring a saved browser session and capturing the JSON the page loads.
Run "tablecrawl auth" once to create the session.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Commands receive a context that is cancelled on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.Error("Error:"), err)
		stop()
		os.Exit(1)
	}
}

func init() {
	// Lazily initialize the application before running commands (avoid starting app for -h/help)
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if GetAppFromCmd(cmd) != nil {
			return nil
		}

		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}

		verbose = strings.EqualFold(cfg.LogLevel, "debug")
		quiet = strings.EqualFold(cfg.LogLevel, "error")
		jsonOutput = cfg.JSONLog

		appCtx, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		SetApp(cmd, appCtx)
		log.Debug().Str("command", cmd.CommandPath()).Msg("Configuration loaded")
		return nil
	}

	// Ensure app is closed after command runs
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		appCtx := GetAppFromCmd(cmd)
		if appCtx == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), appCtx.Config.NavigationTimeout)
		defer cancel()
		_ = appCtx.Close(ctx)
		SetApp(cmd, nil)
	}
}

func init() {
	// Register centralized flags
	config.RegisterFlags(rootCmd)

	// Customize help and version flag descriptions
	rootCmd.Flags().BoolP("help", "h", false, "Help for Tablecrawl")
	rootCmd.Flags().Bool("version", false, "Version for Tablecrawl")
}

// mustApp returns the Application prepared by PersistentPreRunE.
func mustApp(cmd *cobra.Command) (*app.Application, error) {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return a, nil
}
