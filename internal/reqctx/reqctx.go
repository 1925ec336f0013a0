// Package reqctx carries per-run identity through a context.
package reqctx

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type key int

const runKey key = 0

// Run identifies one extraction or bootstrap run.
type Run struct {
	ID        string
	Source    string
	StartTime time.Time
}

// WithRun attaches a fresh run to ctx.
func WithRun(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, runKey, &Run{
		ID:        generateID(),
		Source:    source,
		StartTime: time.Now(),
	})
}

// FromContext returns the run attached to ctx, or a placeholder.
func FromContext(ctx context.Context) *Run {
	if r, ok := ctx.Value(runKey).(*Run); ok {
		return r
	}
	return &Run{ID: "unknown", StartTime: time.Now()}
}

// Elapsed returns the time since the run started.
func (r *Run) Elapsed() time.Duration {
	return time.Since(r.StartTime)
}

// Logger returns the global logger tagged with the run's id and source.
func Logger(ctx context.Context) zerolog.Logger {
	r := FromContext(ctx)
	c := log.Logger.With().Str("run_id", r.ID)
	if r.Source != "" {
		c = c.Str("source", r.Source)
	}
	return c.Logger()
}

func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// RunError wraps an error with the id of the run that produced it
type RunError struct {
	RunID string
	Err   error
}

// Error implements the error interface
func (e *RunError) Error() string {
	return fmt.Sprintf("[%s] %v", e.RunID, e.Err)
}

// Unwrap returns the underlying error
func (e *RunError) Unwrap() error {
	return e.Err
}

// NewRunError tags err with the run found in ctx.
func NewRunError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	return &RunError{RunID: FromContext(ctx).ID, Err: err}
}
