package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/law-makers/tablecrawl/internal/ratelimit"
	"github.com/law-makers/tablecrawl/internal/utils/output"
	urlutil "github.com/law-makers/tablecrawl/internal/utils/url"
	"github.com/law-makers/tablecrawl/pkg/models"
)

// WatchOptions configures a periodic snapshot loop. Every spaces consecutive
// runs against the URL's host and defaults to the configured watch interval.
// A zero Count runs until the context ends.
type WatchOptions struct {
	Source models.Source
	URL    string
	Every  time.Duration
	Format output.Format
	Count  int
}

// SnapshotPath names the output file of one watch run, e.g.
// docs/wiki-zh.wikipedia.org-20261019T120000Z.csv.
func (a *Application) SnapshotPath(source models.Source, url string, format output.Format, at time.Time) string {
	name := fmt.Sprintf("%s-%s-%s.%s", source, urlutil.HostSlug(url), at.UTC().Format("20060102T150405Z"), format)
	return filepath.Join(a.Config.OutputDir, name)
}

// Watch runs the extraction repeatedly, writing each table to a timestamped
// file. Runs against one host are spaced by the shared throttle. A failed run
// is reported to onRun and the loop continues. Watch returns nil when ctx ends.
func (a *Application) Watch(ctx context.Context, opts WatchOptions, onRun func(*models.Result, error)) error {
	if _, err := a.Extractor(opts.Source); err != nil {
		return err
	}
	if opts.Every <= 0 {
		opts.Every = a.Config.WatchEvery
	}
	if opts.Format == "" {
		opts.Format = output.FormatCSV
	}
	if a.Throttle == nil {
		a.Throttle = ratelimit.NewHostLimiter(opts.Every, 1)
	}
	a.Throttle.SetInterval(ratelimit.HostKey(opts.URL), opts.Every, 1)

	logger := a.Logger.With().
		Str("source", string(opts.Source)).
		Str("url", opts.URL).
		Dur("every", opts.Every).
		Logger()
	logger.Info().Int("count", opts.Count).Msg("Watch started")

	for n := 0; opts.Count == 0 || n < opts.Count; n++ {
		if err := a.Throttle.Wait(ctx, opts.URL); err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("watch throttle: %w", err)
		}

		path := a.SnapshotPath(opts.Source, opts.URL, opts.Format, time.Now())
		result, err := a.Run(ctx, opts.Source, opts.URL, path)
		if onRun != nil {
			onRun(result, err)
		}
		if ctx.Err() != nil {
			break
		}
	}

	logger.Info().Msg("Watch stopped")
	return nil
}
