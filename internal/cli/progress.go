package cli

import (
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// startSpinner shows an indeterminate spinner on stderr until the returned
// stop function is called. It stays silent when logs would share the terminal.
func startSpinner(description string) (stop func()) {
	if quiet || verbose || jsonOutput {
		return func() {}
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	return func() {
		close(done)
		<-finished
		_ = bar.Finish()
	}
}
