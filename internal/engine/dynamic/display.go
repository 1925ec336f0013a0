package dynamic

import (
	"errors"
	"os"
	"runtime"
)

// ErrNoDisplay is returned when a visible browser cannot be shown.
var ErrNoDisplay = errors.New("visible browser requires a display server (DISPLAY not set)")

// CheckDisplay reports whether a visible browser window can be opened.
// Only Linux and the BSDs need an X11 or Wayland display.
func CheckDisplay() error {
	switch runtime.GOOS {
	case "darwin", "windows":
		return nil
	}
	if os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" {
		return nil
	}
	return ErrNoDisplay
}
