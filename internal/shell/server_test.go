package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/law-makers/tablecrawl/internal/engine"
	"github.com/law-makers/tablecrawl/pkg/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubSession struct{ exists bool }

func (s stubSession) Exists() bool { return s.exists }

type stubRunner struct {
	release chan struct{}
	table   *models.Table
	err     error

	mu   sync.Mutex
	urls []string
}

func (r *stubRunner) Run(ctx context.Context, source models.Source, url, outPath string) (*models.Result, error) {
	r.mu.Lock()
	r.urls = append(r.urls, url)
	r.mu.Unlock()
	if r.release != nil {
		<-r.release
	}
	table := r.table
	if table == nil {
		table = models.NewTable()
	}
	return &models.Result{RunID: "run-1", Source: source, URL: url, Table: table}, r.err
}

type stubBootstrap struct {
	mu    sync.Mutex
	step  engine.Step
	err   error
	fails bool

	// entered and hold, when set, park Advance until hold is closed.
	entered chan struct{}
	hold    chan struct{}
}

func (b *stubBootstrap) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.step = engine.StepAwaitingManualLogin
	return nil
}

func (b *stubBootstrap) Advance(ctx context.Context) error {
	if b.hold != nil {
		close(b.entered)
		<-b.hold
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fails {
		b.step = engine.StepFailed
		b.err = engine.NewEngineError(engine.ErrCodeDecode, "no QR code", nil)
		return b.err
	}
	switch b.step {
	case engine.StepAwaitingManualLogin:
		b.step = engine.StepAwaitingQrVisible
	case engine.StepAwaitingQrVisible:
		b.step = engine.StepAwaitingLoginConfirmation
	case engine.StepAwaitingLoginConfirmation:
		b.step = engine.StepDone
	default:
		return engine.NewEngineError(engine.ErrCodeBootstrapState, "not resumable", nil)
	}
	return nil
}

func (b *stubBootstrap) Abort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.step = engine.StepFailed
}

func (b *stubBootstrap) Status() engine.BootstrapStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := engine.BootstrapStatus{Step: b.step, Prompt: b.step.Prompt(), Code: "123456"}
	if b.err != nil {
		st.Error = b.err.Error()
	}
	return st
}

func newTestServer(t *testing.T, runner Runner, session bool, boot *stubBootstrap) (*Server, http.Handler) {
	t.Helper()
	if boot == nil {
		boot = &stubBootstrap{step: engine.StepIdle}
	}
	s := New(context.Background(), Deps{
		Runner:       runner,
		Session:      stubSession{exists: session},
		NewBootstrap: func() Bootstrapper { return boot },
		Logger:       zerolog.Nop(),
	})
	return s, s.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	out := map[string]any{}
	if strings.Contains(w.Header().Get("Content-Type"), "json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestHealthAndIndex(t *testing.T) {
	_, h := newTestServer(t, &stubRunner{}, true, nil)

	w, body := do(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", body["status"])

	w, _ = do(t, h, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Fetch Data")
	require.Contains(t, w.Body.String(), "Run First-Time Authentication")
}

func TestStatus_NoSession(t *testing.T) {
	_, h := newTestServer(t, &stubRunner{}, false, nil)

	w, body := do(t, h, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, false, body["session"])
	require.Equal(t, statusNoSession, body["status"])
}

func TestFetch_EmptyURL(t *testing.T) {
	_, h := newTestServer(t, &stubRunner{}, true, nil)

	w, _ := do(t, h, http.MethodPost, "/api/v1/fetch", map[string]string{"url": ""})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFetch_InvalidURL(t *testing.T) {
	runner := &stubRunner{}
	_, h := newTestServer(t, runner, true, nil)

	w, _ := do(t, h, http.MethodPost, "/api/v1/fetch", map[string]string{"url": "docs.example.com/s"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, runner.urls)
}

func TestFetch_MissingSession(t *testing.T) {
	runner := &stubRunner{}
	_, h := newTestServer(t, runner, false, nil)

	w, _ := do(t, h, http.MethodPost, "/api/v1/fetch", map[string]string{"url": "https://docs.example.com/s"})
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	require.Empty(t, runner.urls)
}

func TestFetch_BusyThenSuccess(t *testing.T) {
	runner := &stubRunner{
		release: make(chan struct{}),
		table:   &models.Table{Columns: []string{"a"}, Rows: [][]string{{"1"}, {"2"}}},
	}
	s, h := newTestServer(t, runner, true, nil)

	w, body := do(t, h, http.MethodPost, "/api/v1/fetch", map[string]string{"url": "https://docs.example.com/s"})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, true, body["busy"])
	require.Equal(t, statusFetching, body["status"])

	w, _ = do(t, h, http.MethodPost, "/api/v1/fetch", map[string]string{"url": "https://docs.example.com/s"})
	require.Equal(t, http.StatusConflict, w.Code)

	w, _ = do(t, h, http.MethodPost, "/api/v1/bootstrap", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	close(runner.release)
	s.Wait()

	_, body = do(t, h, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, false, body["busy"])
	require.Equal(t, "Success! Displaying 2 rows.", body["status"])

	w, body = do(t, h, http.MethodGet, "/api/v1/table", nil)
	require.Equal(t, http.StatusOK, w.Code)
	result := body["result"].(map[string]any)
	table := result["table"].(map[string]any)
	require.Len(t, table["rows"], 2)
}

func TestFetch_FailureClearsBusy(t *testing.T) {
	runner := &stubRunner{err: errors.New("NO_DATA_CAPTURED: no matching response")}
	s, h := newTestServer(t, runner, true, nil)

	w, _ := do(t, h, http.MethodPost, "/api/v1/fetch", map[string]string{"url": "https://docs.example.com/s"})
	require.Equal(t, http.StatusAccepted, w.Code)
	s.Wait()

	_, body := do(t, h, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, false, body["busy"])
	require.True(t, strings.HasPrefix(body["status"].(string), "Error: "))
}

func TestFetch_EmptyTable(t *testing.T) {
	s, h := newTestServer(t, &stubRunner{}, true, nil)

	do(t, h, http.MethodPost, "/api/v1/fetch", map[string]string{"url": "https://docs.example.com/s"})
	s.Wait()

	_, body := do(t, h, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, statusEmpty, body["status"])
}

func TestBootstrap_Procedure(t *testing.T) {
	boot := &stubBootstrap{step: engine.StepIdle}
	_, h := newTestServer(t, &stubRunner{}, false, boot)

	w, body := do(t, h, http.MethodPost, "/api/v1/bootstrap", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, string(engine.StepAwaitingManualLogin), body["step"])

	_, st := do(t, h, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, true, st["busy"])
	require.Equal(t, "bootstrap", st["job"])

	w, _ = do(t, h, http.MethodPost, "/api/v1/fetch", map[string]string{"url": "https://docs.example.com/x"})
	require.NotEqual(t, http.StatusAccepted, w.Code)

	for _, want := range []engine.Step{engine.StepAwaitingQrVisible, engine.StepAwaitingLoginConfirmation, engine.StepDone} {
		w, body = do(t, h, http.MethodPost, "/api/v1/bootstrap/advance", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, string(want), body["step"])
	}

	_, st = do(t, h, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, false, st["busy"])
	require.Equal(t, statusAuthDone, st["status"])

	w, _ = do(t, h, http.MethodPost, "/api/v1/bootstrap/advance", nil)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestBootstrap_FailureClearsBusy(t *testing.T) {
	boot := &stubBootstrap{step: engine.StepIdle, fails: true}
	_, h := newTestServer(t, &stubRunner{}, false, boot)

	do(t, h, http.MethodPost, "/api/v1/bootstrap", nil)
	w, _ := do(t, h, http.MethodPost, "/api/v1/bootstrap/advance", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	_, st := do(t, h, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, false, st["busy"])
	require.Contains(t, st["status"], "DECODE_ERROR")
}

func TestBootstrap_Abort(t *testing.T) {
	boot := &stubBootstrap{step: engine.StepIdle}
	_, h := newTestServer(t, &stubRunner{}, false, boot)

	w, _ := do(t, h, http.MethodDelete, "/api/v1/bootstrap", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	do(t, h, http.MethodPost, "/api/v1/bootstrap", nil)
	w, body := do(t, h, http.MethodDelete, "/api/v1/bootstrap", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, string(engine.StepFailed), body["step"])

	_, st := do(t, h, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, false, st["busy"])
}

func TestBootstrap_AbortWhileStepRunning(t *testing.T) {
	boot := &stubBootstrap{step: engine.StepIdle, entered: make(chan struct{}), hold: make(chan struct{})}
	s, h := newTestServer(t, &stubRunner{}, true, boot)

	w, _ := do(t, h, http.MethodPost, "/api/v1/bootstrap", nil)
	require.Equal(t, http.StatusOK, w.Code)

	advanced := make(chan int, 1)
	go func() {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/bootstrap/advance", nil))
		advanced <- rec.Code
	}()
	<-boot.entered

	w, body := do(t, h, http.MethodDelete, "/api/v1/bootstrap", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, string(engine.StepFailed), body["step"])

	w, _ = do(t, h, http.MethodPost, "/api/v1/fetch", map[string]string{"url": "https://docs.example.com/s"})
	require.Equal(t, http.StatusConflict, w.Code)
	_, st := do(t, h, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, true, st["busy"])

	close(boot.hold)
	require.Equal(t, http.StatusConflict, <-advanced)

	_, st = do(t, h, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, false, st["busy"])
	require.Equal(t, statusReady, st["status"])

	w, _ = do(t, h, http.MethodPost, "/api/v1/fetch", map[string]string{"url": "https://docs.example.com/s"})
	require.Equal(t, http.StatusAccepted, w.Code)
	s.Wait()

	_, st = do(t, h, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, false, st["busy"])
}
