// Package dynamic drives a Chrome instance over the DevTools protocol.
package dynamic

import (
	"context"
	"errors"

	"github.com/law-makers/tablecrawl/internal/auth"
	"github.com/law-makers/tablecrawl/internal/engine/capture"
)

var (
	// ErrNavigationTimeout is returned when a page does not reach network idle in time.
	ErrNavigationTimeout = errors.New("navigation timed out before network idle")
	// ErrElementTimeout is returned when an awaited element never appears.
	ErrElementTimeout = errors.New("timed out waiting for element")
	// ErrElementNotFound is returned when an element is absent or not visible.
	ErrElementNotFound = errors.New("element not found or not visible")
	// ErrPageClosed is returned for calls on a closed page.
	ErrPageClosed = errors.New("page is closed")
)

// LaunchOptions configures one browser instance.
type LaunchOptions struct {
	// Headless hides the browser window.
	Headless bool
	// State restores cookies and localStorage before the first navigation.
	State *auth.SessionState
}

// Page is one browser tab. Every method except OnResponse may block.
type Page interface {
	// OnResponse registers fn for every finished response. Handlers run on
	// the event goroutine and must not block.
	OnResponse(fn func(capture.Response))
	// Navigate loads url and waits until the network has been idle for the
	// configured quiet interval.
	Navigate(ctx context.Context, url string) error
	// WaitTable waits for the element matched by an XPath expression and
	// returns its outer HTML.
	WaitTable(ctx context.Context, xpath string) (string, error)
	// HTML returns the current document markup.
	HTML(ctx context.Context) (string, error)
	// ScreenshotElement captures the rendered pixels of the first element
	// matching a CSS selector as PNG.
	ScreenshotElement(ctx context.Context, selector string) ([]byte, error)
	// SessionState snapshots cookies and the current origin's localStorage.
	SessionState(ctx context.Context) (*auth.SessionState, error)
	// Close shuts the browser down.
	Close() error
}

// Launcher starts browsers.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Page, error)
}
