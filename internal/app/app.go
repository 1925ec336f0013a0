// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/law-makers/tablecrawl/internal/auth"
	"github.com/law-makers/tablecrawl/internal/config"
	"github.com/law-makers/tablecrawl/internal/engine"
	"github.com/law-makers/tablecrawl/internal/engine/dynamic"
	"github.com/law-makers/tablecrawl/internal/history"
	"github.com/law-makers/tablecrawl/internal/ratelimit"
	"github.com/law-makers/tablecrawl/internal/reqctx"
	"github.com/law-makers/tablecrawl/internal/utils/output"
	"github.com/law-makers/tablecrawl/pkg/models"
	"github.com/rs/zerolog"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config   *config.Config
	Logger   *zerolog.Logger
	Store    *auth.Store
	Launcher dynamic.Launcher
	Wiki     engine.Extractor
	Sheet    engine.Extractor
	Throttle *ratelimit.HostLimiter

	history   *history.Store
	historyMu sync.Mutex
	logCloser io.Closer
	startTime time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It configures logging, the session store, the Chrome launcher and both
// extractors. Chrome is only started when an extraction or bootstrap runs,
// and the history ledger is opened on first use.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger, closer := SetupLogging(cfg, os.Stderr)

	store := auth.NewStore(cfg.SessionFile)
	launcher := dynamic.NewChrome(dynamic.OptionsFromConfig(cfg))
	logger.Debug().
		Str("session_file", store.Path).
		Bool("headless", cfg.BrowserHeadless).
		Msg("Browser launcher initialized")

	app := &Application{
		Config:    cfg,
		Logger:    &logger,
		Store:     store,
		Launcher:  launcher,
		Wiki:      engine.NewWikiExtractor(launcher, engine.WikiOptionsFromConfig(cfg)),
		Sheet:     engine.NewSheetExtractor(store, launcher, engine.SheetOptionsFromConfig(cfg)),
		Throttle:  ratelimit.NewHostLimiter(cfg.WatchEvery, 1),
		logCloser: closer,
		startTime: time.Now(),
	}

	logger.Debug().Msg("Application initialized successfully")
	return app, nil
}

// Extractor returns the extractor for a source.
func (a *Application) Extractor(source models.Source) (engine.Extractor, error) {
	switch source {
	case models.SourceWiki:
		return a.Wiki, nil
	case models.SourceSheet:
		return a.Sheet, nil
	}
	return nil, fmt.Errorf("unknown source %q", source)
}

// NewBootstrap creates a first-time authentication procedure bound to the
// application's session store.
func (a *Application) NewBootstrap() *engine.Bootstrap {
	return engine.NewBootstrap(a.Store, a.Launcher, engine.BootstrapOptionsFromConfig(a.Config))
}

// Run performs one extraction, saves the table to outPath when it is set,
// and records the run in the history ledger. The returned result is never nil.
func (a *Application) Run(ctx context.Context, source models.Source, url, outPath string) (*models.Result, error) {
	ctx = reqctx.WithRun(ctx, string(source))
	run := reqctx.FromContext(ctx)
	logger := reqctx.Logger(ctx)

	result := &models.Result{
		RunID:     run.ID,
		Source:    source,
		URL:       url,
		Table:     models.NewTable(),
		FetchedAt: run.StartTime,
	}

	ext, err := a.Extractor(source)
	if err != nil {
		result.Status = "ERROR"
		result.Error = err.Error()
		return result, err
	}

	table, err := ext.Extract(ctx, models.RequestOptions{URL: url, Source: source})
	if table != nil {
		result.Table = table
	}
	if err == nil && outPath != "" {
		switch saveErr := output.Save(table, outPath); {
		case saveErr == nil:
			result.OutputPath = outPath
		case errors.Is(saveErr, output.ErrEmptyTable):
		default:
			err = saveErr
		}
	}

	result.Duration = run.Elapsed()
	result.Status = history.StatusOK
	if err != nil {
		result.Status = "ERROR"
		if code := engine.CodeOf(err); code != "" {
			result.Status = string(code)
		}
		result.Error = err.Error()
		logger.Error().Err(err).Str("status", result.Status).Msg("Extraction failed")
	}

	a.record(ctx, result)
	return result, err
}

// record writes a result to the ledger. Ledger failures never fail a run.
func (a *Application) record(ctx context.Context, r *models.Result) {
	logger := reqctx.Logger(ctx)
	store, err := a.History()
	if err != nil {
		logger.Warn().Err(err).Msg("History unavailable, run not recorded")
		return
	}
	err = store.Record(context.WithoutCancel(ctx), history.Run{
		ID:         r.RunID,
		Source:     string(r.Source),
		URL:        r.URL,
		Status:     r.Status,
		Error:      r.Error,
		Rows:       r.Table.Len(),
		Columns:    len(r.Table.Columns),
		OutputPath: r.OutputPath,
		StartedAt:  r.FetchedAt,
		FinishedAt: r.FetchedAt.Add(r.Duration),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to record run")
	}
}

// History lazily opens the run ledger.
func (a *Application) History() (*history.Store, error) {
	if a == nil {
		return nil, fmt.Errorf("application is nil")
	}

	a.historyMu.Lock()
	defer a.historyMu.Unlock()

	if a.history != nil {
		return a.history, nil
	}

	store, err := history.Open(a.Config.HistoryDB)
	if err != nil {
		return nil, err
	}
	a.history = store
	a.Logger.Debug().Str("path", a.Config.HistoryDB).Msg("History ledger opened")
	return store, nil
}

// Close gracefully shuts down the application and all its resources.
//
// Any errors during shutdown are logged but do not prevent other shutdown steps.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Debug().Msg("Shutting down application")

	a.historyMu.Lock()
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing history ledger")
		}
		a.history = nil
	}
	a.historyMu.Unlock()

	a.Logger.Debug().Dur("uptime", a.Uptime()).Msg("Application shutdown complete")

	if a.logCloser != nil {
		return a.logCloser.Close()
	}
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
