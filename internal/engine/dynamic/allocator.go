// internal/engine/dynamic/allocator.go
package dynamic

import (
	"time"

	"github.com/chromedp/chromedp"
	"github.com/law-makers/tablecrawl/internal/config"
)

// Options configures how Chrome is started. Proxy is one proxy server or a
// comma-separated list rotated per launch.
type Options struct {
	ChromePath   string
	UserAgent    string
	Proxy        string
	IdleQuiet    time.Duration
	WindowWidth  int
	WindowHeight int
}

// OptionsFromConfig maps application config onto browser options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ChromePath:   cfg.ChromePath,
		UserAgent:    cfg.UserAgent,
		Proxy:        cfg.Proxy,
		IdleQuiet:    cfg.NetworkIdleQuiet,
		WindowWidth:  1280,
		WindowHeight: 900,
	}
}

// allocatorOptions builds the Chrome command line for one launch.
func allocatorOptions(opts Options, headless bool) []chromedp.ExecAllocatorOption {
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultUserAgent
	}
	if opts.WindowWidth == 0 || opts.WindowHeight == 0 {
		opts.WindowWidth, opts.WindowHeight = 1280, 900
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("force-color-profile", "srgb"),
		chromedp.Flag("log-level", "3"),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("safebrowsing-disable-auto-update", true),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
		chromedp.UserAgent(opts.UserAgent),
	}

	if path := FindChrome(opts.ChromePath); path != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(path)}, allocOpts...)
	}

	if headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"), chromedp.Flag("disable-gpu", true))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}

	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}

	return allocOpts
}
