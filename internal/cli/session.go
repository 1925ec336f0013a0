// internal/cli/session.go
package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/law-makers/tablecrawl/internal/auth"
	"github.com/law-makers/tablecrawl/internal/ui"
	urlutil "github.com/law-makers/tablecrawl/internal/utils/url"
	"github.com/spf13/cobra"
)

var (
	sessionDeleteYes    bool
	sessionDeleteSecret bool
	importURL           string
	importFormat        string
)

// sessionCmd represents the session command
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect, import or delete the saved browser session",
	Long: `Manage the browser session state used for authenticated sheet extraction.

The session is a JSON file holding cookies and localStorage. It is created by
"tablecrawl auth" or imported from cookies exported by another browser.`,
	Example: `  # Show the saved session
  tablecrawl session status

  # Import cookies exported in Netscape/curl format
  tablecrawl session import --url https://docs.qq.com --format netscape < cookies.txt

  # Delete the session and the stored OTP secret
  tablecrawl session delete --secret`,
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the saved session",
	Args:  cobra.NoArgs,
	RunE:  runSessionStatus,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the saved session",
	Args:  cobra.NoArgs,
	RunE:  runSessionDelete,
}

var sessionImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Create the session from exported browser cookies",
	Long: `Create the session state from cookies read on stdin.

This is useful in headless environments (Codespaces, dev containers) where the
visible authentication browser cannot open. Log in with your regular browser,
export the cookies, and pipe them into this command.`,
	Args: cobra.NoArgs,
	RunE: runSessionImport,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionStatusCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
	sessionCmd.AddCommand(sessionImportCmd)

	sessionDeleteCmd.Flags().BoolVarP(&sessionDeleteYes, "yes", "y", false, "Do not ask for confirmation")
	sessionDeleteCmd.Flags().BoolVar(&sessionDeleteSecret, "secret", false, "Also delete the stored OTP secret")

	sessionImportCmd.Flags().StringVar(&importURL, "url", "", "Site the cookies belong to (required)")
	sessionImportCmd.Flags().StringVar(&importFormat, "format", "json", "Import format: json, netscape")
	sessionImportCmd.MarkFlagRequired("url")
}

func runSessionStatus(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd)
	if err != nil {
		return err
	}

	fmt.Printf("\n%s\n", ui.Bold("🔍 Session"))
	fmt.Println(divider)
	fmt.Printf("File:     %s\n", a.Store.Path)

	modTime, size, ok := a.Store.Info()
	if !ok {
		fmt.Printf("Status:   %s\n", ui.Error("not found"))
		fmt.Println("\nCreate one with:")
		fmt.Println("  tablecrawl auth")
		fmt.Println()
		return nil
	}

	st, err := a.Store.Load()
	if err != nil {
		fmt.Printf("Status:   %s\n\n", ui.Error("unreadable"))
		return err
	}

	fmt.Printf("Saved:    %s (%d bytes)\n", modTime.Format(time.RFC1123), size)
	if st.URL != "" {
		fmt.Printf("URL:      %s\n", st.URL)
	}
	fmt.Printf("Cookies:  %d\n", len(st.Cookies))
	fmt.Printf("Origins:  %d\n", len(st.Origins))

	if expires := st.ExpiresAt(); !expires.IsZero() {
		if time.Now().After(expires) {
			fmt.Printf("Status:   ⚠️  Expired (%s ago)\n", time.Since(expires).Round(time.Hour))
		} else {
			fmt.Printf("Status:   ✓ Valid (first cookie expires in %s)\n", time.Until(expires).Round(time.Hour))
		}
	} else {
		fmt.Printf("Status:   ✓ Present (session cookies only)\n")
	}

	if _, err := auth.LoadSecret(auth.DefaultAccount); err == nil {
		fmt.Printf("OTP:      secret stored\n")
	} else if errors.Is(err, auth.ErrSecretNotFound) {
		fmt.Printf("OTP:      %s\n", ui.Info("no secret stored"))
	}
	fmt.Println()
	return nil
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd)
	if err != nil {
		return err
	}

	if _, _, ok := a.Store.Info(); !ok && !sessionDeleteSecret {
		fmt.Println("\nNo saved session found.")
		return nil
	}

	if !sessionDeleteYes && !confirm(os.Stdout, os.Stdin, fmt.Sprintf("Delete session '%s'?", a.Store.Path)) {
		fmt.Println("Cancelled.")
		return nil
	}

	if err := a.Store.Delete(); err != nil {
		return err
	}
	if sessionDeleteSecret {
		if err := auth.DeleteSecret(auth.DefaultAccount); err != nil && !errors.Is(err, auth.ErrSecretNotFound) {
			return fmt.Errorf("failed to delete OTP secret: %w", err)
		}
	}

	fmt.Printf("\n✓ Session '%s' deleted successfully.\n\n", a.Store.Path)
	return nil
}

func runSessionImport(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd)
	if err != nil {
		return err
	}

	if err := urlutil.ValidateURL(importURL); err != nil {
		return err
	}

	var cookies []auth.Cookie
	switch importFormat {
	case "json":
		cookies, err = auth.ParseCookiesJSON(cmd.InOrStdin())
	case "netscape":
		cookies, err = auth.ParseNetscapeCookies(cmd.InOrStdin())
	default:
		return fmt.Errorf("unsupported format: %s (use: json, netscape)", importFormat)
	}
	if err != nil {
		return fmt.Errorf("failed to import cookies: %w", err)
	}
	if len(cookies) == 0 {
		return fmt.Errorf("no cookies imported")
	}

	st := &auth.SessionState{
		URL:       importURL,
		Cookies:   cookies,
		Origins:   []auth.OriginStorage{},
		CreatedAt: time.Now(),
	}
	if err := a.Store.Save(st); err != nil {
		return err
	}

	fmt.Printf("\n✅ Session created: %s\n", a.Store.Path)
	fmt.Printf("   Cookies: %d\n", len(cookies))
	if expires := st.ExpiresAt(); !expires.IsZero() {
		fmt.Printf("   Expires: %s\n", expires.Format(time.RFC1123))
	}
	fmt.Printf("\nUse with:\n")
	fmt.Printf("  tablecrawl sheet <url>\n\n")
	return nil
}
