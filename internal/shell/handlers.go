package shell

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/law-makers/tablecrawl/internal/engine"
	urlutil "github.com/law-makers/tablecrawl/internal/utils/url"
	"github.com/law-makers/tablecrawl/pkg/models"
)

type statusBody struct {
	Session   bool                    `json:"session"`
	Busy      bool                    `json:"busy"`
	Job       string                  `json:"job,omitempty"`
	Status    string                  `json:"status"`
	Bootstrap *engine.BootstrapStatus `json:"bootstrap,omitempty"`
	LastRun   string                  `json:"last_run,omitempty"`
}

type statusOutput struct {
	Body statusBody
}

func registerStatusHandlers(api huma.API, s *Server) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "status", Method: http.MethodGet, Path: "/api/v1/status", Summary: "Shell status line, busy flag and session presence", Tags: []string{"Shell"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			return &statusOutput{Body: s.snapshot()}, nil
		})
}

func registerFetchHandlers(api huma.API, s *Server) {
	type fetchInput struct {
		Body struct {
			URL string `json:"url,omitempty" doc:"Address of the sheet to extract"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "fetch", Method: http.MethodPost, Path: "/api/v1/fetch", Summary: "Start an authenticated sheet extraction", Tags: []string{"Extraction"}, DefaultStatus: http.StatusAccepted},
		func(ctx context.Context, input *fetchInput) (*statusOutput, error) {
			if input.Body.URL == "" {
				return nil, huma.Error400BadRequest("Please enter a URL.")
			}
			if err := urlutil.ValidateURL(input.Body.URL); err != nil {
				return nil, huma.Error400BadRequest(err.Error())
			}
			if s.deps.Session == nil || !s.deps.Session.Exists() {
				return nil, huma.Error412PreconditionFailed(statusNoSession)
			}
			if !s.acquire(jobFetch, statusFetching) {
				return nil, huma.Error409Conflict("another job is running")
			}
			s.startFetch(input.Body.URL)
			return &statusOutput{Body: s.snapshot()}, nil
		})

	type tableOutput struct {
		Body struct {
			Status string         `json:"status"`
			Result *models.Result `json:"result,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "table", Method: http.MethodGet, Path: "/api/v1/table", Summary: "Last extracted table", Tags: []string{"Extraction"}},
		func(ctx context.Context, input *struct{}) (*tableOutput, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			out := &tableOutput{}
			out.Body.Status = s.status
			out.Body.Result = s.last
			return out, nil
		})
}

func registerBootstrapHandlers(api huma.API, s *Server) {
	type bootstrapOutput struct {
		Body engine.BootstrapStatus
	}

	huma.Register(api, huma.Operation{OperationID: "bootstrap-start", Method: http.MethodPost, Path: "/api/v1/bootstrap", Summary: "Open a browser for first-time authentication", Tags: []string{"Bootstrap"}},
		func(ctx context.Context, input *struct{}) (*bootstrapOutput, error) {
			boot := s.deps.NewBootstrap()
			if !s.acquireBootstrap(boot) {
				return nil, huma.Error409Conflict("another job is running")
			}

			err := s.runStep(boot, boot.Start)
			if err != nil {
				return nil, mapErr(err)
			}
			return &bootstrapOutput{Body: boot.Status()}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "bootstrap-advance", Method: http.MethodPost, Path: "/api/v1/bootstrap/advance", Summary: "Signal that the current manual step is finished", Tags: []string{"Bootstrap"}},
		func(ctx context.Context, input *struct{}) (*bootstrapOutput, error) {
			s.mu.Lock()
			boot := s.boot
			active := s.job == jobBootstrap
			s.mu.Unlock()
			if boot == nil || !active {
				return nil, huma.Error409Conflict("no authentication in progress")
			}

			err := s.runStep(boot, boot.Advance)
			if err != nil {
				return nil, mapErr(err)
			}
			return &bootstrapOutput{Body: boot.Status()}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "bootstrap-abort", Method: http.MethodDelete, Path: "/api/v1/bootstrap", Summary: "Abandon the current authentication", Tags: []string{"Bootstrap"}},
		func(ctx context.Context, input *struct{}) (*bootstrapOutput, error) {
			s.mu.Lock()
			boot := s.boot
			active := s.job == jobBootstrap
			s.mu.Unlock()
			if boot == nil || !active {
				return nil, huma.Error404NotFound("no authentication in progress")
			}

			s.abortBootstrap(boot)
			return &bootstrapOutput{Body: boot.Status()}, nil
		})
}

// runStep runs one bootstrap step bound to the server lifetime rather than
// the request, so a dropped connection does not abandon the browser. The
// job stays busy until the step has returned, even if it was aborted.
func (s *Server) runStep(boot Bootstrapper, step func(context.Context) error) error {
	s.wg.Add(1)
	defer s.wg.Done()

	s.mu.Lock()
	if s.boot != boot || s.job != jobBootstrap {
		s.mu.Unlock()
		return huma.Error409Conflict("no authentication in progress")
	}
	s.stepping++
	s.mu.Unlock()

	err := step(s.ctx)

	s.mu.Lock()
	s.stepping--
	s.mu.Unlock()
	s.finishBootstrap(boot)
	return err
}
