// internal/cli/auth.go
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/law-makers/tablecrawl/internal/auth"
	"github.com/law-makers/tablecrawl/internal/engine"
	"github.com/law-makers/tablecrawl/internal/ui"
	"github.com/spf13/cobra"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Run first-time authentication in a visible browser",
	Long: `Opens a visible browser on the login page and walks through the first-time
authentication one step at a time. Press Enter after finishing each step in
the browser:

- log in with your account
- open the two-factor setup so its QR code is on screen
- finish logging in with the code shown here

The QR code is decoded, its secret stored in the OS keyring, and the browser
session saved for headless sheet extraction. Requires a display.`,
	Example: `  # Authenticate and save the session
  tablecrawl auth

  # Save the session somewhere else
  tablecrawl auth --session-file ~/.tablecrawl/auth_state.json`,
	Args: cobra.NoArgs,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	boot := a.NewBootstrap()

	fmt.Printf("\n%s\n", ui.Bold("🔐 First-Time Authentication"))
	fmt.Println(divider)
	fmt.Printf("Login page: %s\n", a.Config.LoginURL)
	fmt.Printf("Session:    %s\n\n", a.Store.Path)

	if err := boot.Start(ctx); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	lines := readLines(os.Stdin)
	for !boot.Step().Terminal() {
		st := boot.Status()
		if st.Step == engine.StepAwaitingLoginConfirmation {
			printCode(boot, st)
		}
		fmt.Printf("%s %s\n", ui.Info("→"), st.Prompt)
		fmt.Print("Press Enter to continue (Ctrl+C to cancel)...")

		select {
		case <-ctx.Done():
			boot.Abort()
			fmt.Println()
			return ctx.Err()
		case _, ok := <-lines:
			if !ok {
				boot.Abort()
				return fmt.Errorf("input closed before authentication finished")
			}
		}
		fmt.Println()

		if err := boot.Advance(ctx); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}

	st := boot.Status()
	fmt.Printf("\n%s Session saved to %s\n", ui.Success("✓"), ui.Bold(st.SessionPath))
	fmt.Println("\nExtract a sheet with:")
	fmt.Println("  tablecrawl sheet <url>")
	fmt.Println()
	return nil
}

// printCode shows the one-time code captured from the QR image.
func printCode(boot *engine.Bootstrap, st engine.BootstrapStatus) {
	code, remaining, err := boot.CurrentCode()
	if err != nil {
		code, remaining = st.Code, 0
	}

	fmt.Println()
	fmt.Println(divider)
	fmt.Printf("  One-time code: %s", ui.Code(code))
	if remaining > 0 {
		fmt.Printf("  %s", ui.Dim(fmt.Sprintf("(valid %ds)", remaining)))
	}
	fmt.Println()
	if st.Issuer != "" || st.Account != "" {
		fmt.Printf("  Account:       %s %s\n", st.Issuer, st.Account)
	}
	fmt.Printf("  QR image:      %s\n", st.QRPath)
	switch st.SecretStore {
	case "":
		fmt.Printf("  %s\n", ui.Error("Secret could not be stored; set "+auth.SecretEnvVar+" to use the otp command."))
	default:
		fmt.Printf("  Secret stored: %s (run \"tablecrawl otp\" for later codes)\n", st.SecretStore)
	}
	fmt.Println(divider)
	fmt.Println()
}

// readLines delivers each line read from r until it is exhausted.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			ch <- scanner.Text()
		}
	}()
	return ch
}

// otpCmd represents the otp command
var otpCmd = &cobra.Command{
	Use:   "otp",
	Short: "Print the current one-time code from the stored secret",
	Long: `Computes the current time-based one-time code from the secret captured
during "tablecrawl auth". The ` + auth.SecretEnvVar + ` environment variable
overrides the stored secret.`,
	Example: `  # Show the current code
  tablecrawl otp

  # Keep printing codes as they rotate
  tablecrawl otp --watch`,
	Args: cobra.NoArgs,
	RunE: runOTP,
}

var otpWatch bool

func init() {
	rootCmd.AddCommand(otpCmd)

	otpCmd.Flags().BoolVar(&otpWatch, "watch", false, "Keep printing a new code each period until interrupted")
}

func runOTP(cmd *cobra.Command, args []string) error {
	secret, err := auth.LoadSecret(auth.DefaultAccount)
	if err != nil {
		return fmt.Errorf("no OTP secret available (run \"tablecrawl auth\" first): %w", err)
	}

	for {
		now := time.Now()
		code, err := auth.CurrentCode(secret, now)
		if err != nil {
			return err
		}
		remaining := auth.SecondsRemaining(now, 30)
		fmt.Printf("%s  %s\n", ui.Code(code), ui.Dim(fmt.Sprintf("(valid %ds)", remaining)))

		if !otpWatch {
			return nil
		}
		select {
		case <-cmd.Context().Done():
			return nil
		case <-time.After(time.Duration(remaining) * time.Second):
		}
	}
}
