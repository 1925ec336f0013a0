// internal/engine/wiki.go
package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/law-makers/tablecrawl/internal/config"
	"github.com/law-makers/tablecrawl/internal/engine/dynamic"
	"github.com/law-makers/tablecrawl/internal/engine/tabular"
	"github.com/law-makers/tablecrawl/internal/reqctx"
	"github.com/law-makers/tablecrawl/pkg/models"
)

// WikiOptions configures the public table extractor.
type WikiOptions struct {
	// Selector is an XPath expression locating the table.
	Selector          string
	NavigationTimeout time.Duration
	TableWaitTimeout  time.Duration
	// DumpPath receives the page source when the table never appears.
	DumpPath string
	Headless bool
}

// WikiOptionsFromConfig maps application config onto wiki options.
func WikiOptionsFromConfig(cfg *config.Config) WikiOptions {
	return WikiOptions{
		Selector:          cfg.WikiSelector,
		NavigationTimeout: cfg.NavigationTimeout,
		TableWaitTimeout:  cfg.TableWaitTimeout,
		DumpPath:          filepath.Join(cfg.OutputDir, config.DefaultPageSourceDump),
		Headless:          cfg.BrowserHeadless,
	}
}

// WikiExtractor reads the first wikitable of a public page.
type WikiExtractor struct {
	launcher dynamic.Launcher
	opts     WikiOptions
}

// NewWikiExtractor creates a public table extractor.
func NewWikiExtractor(launcher dynamic.Launcher, opts WikiOptions) *WikiExtractor {
	if opts.Selector == "" {
		opts.Selector = config.DefaultWikiSelector
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = config.DefaultNavigationTimeout
	}
	if opts.TableWaitTimeout <= 0 {
		opts.TableWaitTimeout = config.DefaultTableWaitTimeout
	}
	return &WikiExtractor{launcher: launcher, opts: opts}
}

// Name returns the name of this extractor
func (w *WikiExtractor) Name() string {
	return "WikiExtractor"
}

// Extract opens the page without any session and parses the table.
func (w *WikiExtractor) Extract(ctx context.Context, opts models.RequestOptions) (*models.Table, error) {
	logger := reqctx.Logger(ctx)
	empty := models.NewTable()

	url := opts.URL
	if url == "" {
		url = config.DefaultWikiURL
	}

	page, err := w.launcher.Launch(ctx, dynamic.LaunchOptions{Headless: w.opts.Headless})
	if err != nil {
		return empty, NewEngineError(ErrCodeBrowser, "failed to launch browser", err)
	}
	defer page.Close()

	logger.Info().Str("url", url).Msg("Opening public page")

	navTimeout := w.opts.NavigationTimeout
	if opts.Timeout > 0 {
		navTimeout = opts.Timeout
	}
	navCtx, navCancel := context.WithTimeout(ctx, navTimeout)
	err = page.Navigate(navCtx, url)
	navCancel()
	if err != nil {
		if errors.Is(err, dynamic.ErrNavigationTimeout) || errors.Is(err, context.DeadlineExceeded) {
			// The table may still be present; fall through to the element wait.
			logger.Warn().Err(err).Msg("Page did not reach network idle, waiting for table anyway")
		} else {
			return empty, NewEngineError(ErrCodeBrowser, "navigation failed", err)
		}
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, w.opts.TableWaitTimeout)
	markup, err := page.WaitTable(waitCtx, w.opts.Selector)
	waitCancel()
	if err != nil {
		if errors.Is(err, dynamic.ErrElementTimeout) || errors.Is(err, context.DeadlineExceeded) {
			ee := NewEngineError(ErrCodeElementTimeout, "table did not appear", err).
				WithDetail("selector", w.opts.Selector).
				WithDetail("timeout", w.opts.TableWaitTimeout.String())
			if path := w.dumpSource(ctx, page); path != "" {
				ee.WithDetail("page_source", path)
			}
			return empty, ee
		}
		return empty, NewEngineError(ErrCodeBrowser, "failed to read table", err)
	}

	table, err := tabular.FromHTMLTable(markup)
	if err != nil {
		return empty, NewEngineError(ErrCodeParse, "failed to parse table", err)
	}

	logger.Info().
		Int("rows", table.Len()).
		Int("columns", len(table.Columns)).
		Dur("elapsed", reqctx.FromContext(ctx).Elapsed()).
		Msg("Table extracted")
	return table, nil
}

// dumpSource writes the current page markup for diagnosis and returns the
// path written, or "" when nothing could be saved.
func (w *WikiExtractor) dumpSource(ctx context.Context, page dynamic.Page) string {
	logger := reqctx.Logger(ctx)
	if w.opts.DumpPath == "" {
		return ""
	}

	dumpCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	html, err := page.HTML(dumpCtx)
	if err != nil {
		logger.Warn().Err(err).Msg("Could not read page source for diagnosis")
		return ""
	}
	if err := os.MkdirAll(filepath.Dir(w.opts.DumpPath), 0755); err != nil {
		logger.Warn().Err(err).Msg("Could not create page source directory")
		return ""
	}
	if err := os.WriteFile(w.opts.DumpPath, []byte(html), 0644); err != nil {
		logger.Warn().Err(err).Msg("Could not write page source")
		return ""
	}
	logger.Info().Str("path", w.opts.DumpPath).Msg("Page source saved for diagnosis")
	return w.opts.DumpPath
}
