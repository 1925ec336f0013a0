// internal/engine/sheet.go
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/law-makers/tablecrawl/internal/auth"
	"github.com/law-makers/tablecrawl/internal/config"
	"github.com/law-makers/tablecrawl/internal/engine/capture"
	"github.com/law-makers/tablecrawl/internal/engine/dynamic"
	"github.com/law-makers/tablecrawl/internal/engine/tabular"
	"github.com/law-makers/tablecrawl/internal/reqctx"
	"github.com/law-makers/tablecrawl/pkg/models"
)

// SheetOptions configures the authenticated sheet extractor.
type SheetOptions struct {
	Matcher           capture.Matcher
	RecordsPath       string
	NavigationTimeout time.Duration
	CaptureWindow     time.Duration
	Headless          bool
}

// SheetOptionsFromConfig maps application config onto sheet options.
func SheetOptionsFromConfig(cfg *config.Config) SheetOptions {
	return SheetOptions{
		Matcher:           capture.Matcher{Endpoint: cfg.TargetEndpoint, Method: cfg.TargetMethod},
		RecordsPath:       cfg.RecordsPath,
		NavigationTimeout: cfg.NavigationTimeout,
		CaptureWindow:     cfg.CaptureWindow,
		Headless:          cfg.BrowserHeadless,
	}
}

// SheetExtractor reads a spreadsheet page behind a saved session by
// capturing the JSON response that carries its rows.
type SheetExtractor struct {
	store    *auth.Store
	launcher dynamic.Launcher
	opts     SheetOptions
}

// NewSheetExtractor creates a sheet extractor.
func NewSheetExtractor(store *auth.Store, launcher dynamic.Launcher, opts SheetOptions) *SheetExtractor {
	if opts.RecordsPath == "" {
		opts.RecordsPath = config.DefaultRecordsPath
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = config.DefaultNavigationTimeout
	}
	if opts.CaptureWindow <= 0 {
		opts.CaptureWindow = config.DefaultCaptureWindow
	}
	return &SheetExtractor{store: store, launcher: launcher, opts: opts}
}

// Name returns the name of this extractor
func (s *SheetExtractor) Name() string {
	return "SheetExtractor"
}

// Extract loads the saved session, opens the page headless, and normalizes
// the first matching response captured within the capture window.
func (s *SheetExtractor) Extract(ctx context.Context, opts models.RequestOptions) (*models.Table, error) {
	logger := reqctx.Logger(ctx)
	empty := models.NewTable()

	state, err := s.store.Load()
	if err != nil {
		return empty, NewEngineError(ErrCodeSessionMissing, "run first-time authentication", err).
			WithDetail("path", s.store.Path)
	}

	slot := capture.NewSlot()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	interceptor := capture.NewInterceptor(runCtx, s.opts.Matcher, slot, logger)

	logger.Info().Str("url", opts.URL).Msg("Launching headless browser with saved session")
	page, err := s.launcher.Launch(ctx, dynamic.LaunchOptions{Headless: s.opts.Headless, State: state})
	if err != nil {
		return empty, NewEngineError(ErrCodeBrowser, "failed to launch browser", err)
	}
	var closeOnce sync.Once
	closePage := func() {
		closeOnce.Do(func() {
			if err := page.Close(); err != nil {
				logger.Debug().Err(err).Msg("Browser close reported an error")
			}
			cancel()
			interceptor.Drain()
		})
	}
	defer closePage()

	page.OnResponse(interceptor.Observe)

	navTimeout := s.opts.NavigationTimeout
	if opts.Timeout > 0 {
		navTimeout = opts.Timeout
	}
	navCtx, navCancel := context.WithTimeout(ctx, navTimeout)
	err = page.Navigate(navCtx, opts.URL)
	navCancel()
	if err != nil {
		if errors.Is(err, dynamic.ErrNavigationTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return empty, NewEngineError(ErrCodeNavigationTimeout, "page never reached network idle", err).
				WithDetail("timeout", navTimeout.String())
		}
		return empty, NewEngineError(ErrCodeBrowser, "navigation failed", err)
	}

	v, err := slot.Wait(ctx, s.opts.CaptureWindow)
	closePage()
	if err != nil {
		logger.Warn().
			Int("matched", interceptor.Matched()).
			Dur("window", s.opts.CaptureWindow).
			Msg("No target response captured")
		return empty, NewEngineError(ErrCodeNoDataCaptured, "no matching response within the capture window", err).
			WithDetail("endpoint", s.opts.Matcher.Endpoint)
	}
	if n := slot.Dropped(); n > 0 {
		logger.Warn().Int("dropped", n).Msg("Additional matching responses were ignored")
	}

	raw, ok := v.(json.RawMessage)
	if !ok {
		return empty, NewEngineError(ErrCodeParse, fmt.Sprintf("unexpected capture type %T", v), nil)
	}

	table, err := tabular.FromRecords(raw, s.opts.RecordsPath)
	if err != nil {
		if errors.Is(err, tabular.ErrSchemaMismatch) {
			return empty, NewEngineError(ErrCodeSchemaMismatch, "captured JSON has an unexpected shape", err).
				WithDetail("path", s.opts.RecordsPath)
		}
		return empty, NewEngineError(ErrCodeParse, "failed to normalize captured JSON", err)
	}

	logger.Info().
		Int("rows", table.Len()).
		Int("columns", len(table.Columns)).
		Dur("elapsed", reqctx.FromContext(ctx).Elapsed()).
		Msg("Sheet extraction completed")
	return table, nil
}
