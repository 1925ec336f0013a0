package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Emit JSON logs")
	cmd.PersistentFlags().String("log-file", "", "Also write logs to this rotating file")
	cmd.PersistentFlags().String("proxy", "", "HTTP/SOCKS5 proxy for the browser; a comma-separated list rotates per launch")
	cmd.PersistentFlags().String("timeout", "", "Navigation timeout (e.g., 60s)")
	cmd.PersistentFlags().String("user-agent", "", "Custom user agent string")
	cmd.PersistentFlags().String("session-file", "", "Path to the saved browser session state")
	cmd.PersistentFlags().Bool("headful", false, "Show the browser window during extraction")
	cmd.PersistentFlags().String("config", "", "Path to YAML configuration file (optional)")
}
