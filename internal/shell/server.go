// Package shell serves the local web page and JSON API that drive
// extraction and first-time authentication.
package shell

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/law-makers/tablecrawl/internal/engine"
	"github.com/law-makers/tablecrawl/pkg/models"
	"github.com/rs/zerolog"
)

//go:embed index.html
var indexHTML []byte

// Status lines shown on the page.
const (
	statusNoSession = "Authentication file not found. Please run first-time auth."
	statusReady     = "Ready. Enter URL and click Fetch."
	statusFetching  = "Fetching data... please wait."
	statusEmpty     = "Failed to fetch data or data is empty."
	statusAuthStart = "Authentication process started in a new browser..."
	statusAuthDone  = "Authentication successful! You can now fetch data."
)

const (
	jobFetch     = "fetch"
	jobBootstrap = "bootstrap"
)

// Runner performs one extraction.
type Runner interface {
	Run(ctx context.Context, source models.Source, url, outPath string) (*models.Result, error)
}

// SessionChecker reports whether a saved session exists.
type SessionChecker interface {
	Exists() bool
}

// Bootstrapper is a first-time authentication procedure.
type Bootstrapper interface {
	Start(ctx context.Context) error
	Advance(ctx context.Context) error
	Abort()
	Status() engine.BootstrapStatus
}

// Deps are the collaborators the shell drives.
type Deps struct {
	Runner       Runner
	Session      SessionChecker
	NewBootstrap func() Bootstrapper
	Logger       zerolog.Logger
}

// Server holds the shell state. At most one fetch or bootstrap job runs at
// a time.
type Server struct {
	deps   Deps
	logger zerolog.Logger
	ctx    context.Context

	mu       sync.Mutex
	busy     bool
	job      string
	status   string
	last     *models.Result
	boot     Bootstrapper
	stepping int
	aborted  bool

	wg sync.WaitGroup
}

// New creates a shell. Background jobs stop when ctx ends.
func New(ctx context.Context, deps Deps) *Server {
	s := &Server{
		deps:   deps,
		logger: deps.Logger.With().Str("component", "shell").Logger(),
		ctx:    ctx,
	}
	s.status = s.idleStatus()
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(s.logger))
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("tablecrawl shell API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write(indexHTML); err != nil {
			s.logger.Debug().Err(err).Msg("index response write failed")
		}
	})

	registerStatusHandlers(api, s)
	registerFetchHandlers(api, s)
	registerBootstrapHandlers(api, s)

	return router
}

// ListenAndServe serves until ctx ends, then shuts down gracefully and
// waits for a running job to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Shell listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("Shell shutdown incomplete")
	}

	s.mu.Lock()
	boot := s.boot
	s.mu.Unlock()
	if boot != nil {
		boot.Abort()
	}
	s.Wait()
	return nil
}

// Wait blocks until background jobs finish.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) idleStatus() string {
	if s.deps.Session != nil && s.deps.Session.Exists() {
		return statusReady
	}
	return statusNoSession
}

// acquire marks the shell busy with job. It fails when another job holds it.
func (s *Server) acquire(job, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	s.job = job
	s.status = status
	return true
}

// acquireBootstrap marks the shell busy with a new bootstrap owned by boot.
func (s *Server) acquireBootstrap(boot Bootstrapper) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	s.job = jobBootstrap
	s.status = statusAuthStart
	s.boot = boot
	s.aborted = false
	return true
}

// release clears the busy flag and sets the status line.
func (s *Server) release(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked(status)
}

func (s *Server) releaseLocked(status string) {
	s.busy = false
	s.job = ""
	s.status = status
}

func (s *Server) startFetch(url string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		result, err := s.deps.Runner.Run(s.ctx, models.SourceSheet, url, "")

		s.mu.Lock()
		s.last = result
		s.mu.Unlock()

		switch {
		case err != nil:
			s.release("Error: " + err.Error())
		case result.Table.Empty():
			s.release(statusEmpty)
		default:
			s.release(fmt.Sprintf("Success! Displaying %d rows.", result.Table.Len()))
		}
	}()
}

func (s *Server) snapshot() statusBody {
	s.mu.Lock()
	defer s.mu.Unlock()

	body := statusBody{
		Session: s.deps.Session != nil && s.deps.Session.Exists(),
		Busy:    s.busy,
		Job:     s.job,
		Status:  s.status,
	}
	if s.boot != nil {
		st := s.boot.Status()
		body.Bootstrap = &st
	}
	if s.last != nil {
		body.LastRun = s.last.RunID
	}
	return body
}

// finishBootstrap releases the busy flag once the procedure is over. It
// leaves the flag alone when boot no longer owns the job.
func (s *Server) finishBootstrap(boot Bootstrapper) {
	st := boot.Status()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.boot != boot || s.job != jobBootstrap || s.stepping > 0 {
		return
	}
	switch {
	case s.aborted:
		s.releaseLocked(s.idleStatus())
	case st.Step == engine.StepDone:
		s.releaseLocked(statusAuthDone)
	case st.Step == engine.StepFailed:
		s.releaseLocked("Error: " + st.Error)
	default:
		s.status = st.Prompt
	}
}

// abortBootstrap stops boot. The job is released here only when no step is
// running; otherwise the step releases it once it returns.
func (s *Server) abortBootstrap(boot Bootstrapper) {
	s.mu.Lock()
	s.aborted = true
	stepping := s.stepping > 0
	s.mu.Unlock()

	boot.Abort()
	if !stepping {
		s.finishBootstrap(boot)
	}
}

// mapErr turns engine errors into API errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return err
	}
	switch engine.CodeOf(err) {
	case engine.ErrCodeBootstrapState:
		return huma.Error409Conflict(err.Error())
	case engine.ErrCodeSessionMissing:
		return huma.Error412PreconditionFailed(err.Error())
	case engine.ErrCodeNavigationTimeout, engine.ErrCodeElementTimeout:
		return huma.Error504GatewayTimeout(err.Error())
	case engine.ErrCodeBrowser:
		return huma.Error502BadGateway(err.Error())
	case engine.ErrCodeElementNotFound, engine.ErrCodeDecode, engine.ErrCodeMalformedSecret:
		return huma.Error422UnprocessableEntity(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}
