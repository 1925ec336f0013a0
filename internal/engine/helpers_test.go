// internal/engine/helpers_test.go
package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/law-makers/tablecrawl/internal/auth"
	"github.com/law-makers/tablecrawl/internal/engine/capture"
	"github.com/law-makers/tablecrawl/internal/engine/dynamic"
)

// fakeLauncher hands out a single scripted page.
type fakeLauncher struct {
	mu       sync.Mutex
	page     *fakePage
	err      error
	launches int
	lastOpts dynamic.LaunchOptions
}

func (l *fakeLauncher) Launch(ctx context.Context, opts dynamic.LaunchOptions) (dynamic.Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	l.lastOpts = opts
	if l.err != nil {
		return nil, l.err
	}
	return l.page, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

// fakePage replays responses to the registered handler during Navigate.
type fakePage struct {
	mu        sync.Mutex
	handler   func(capture.Response)
	responses []capture.Response
	navErr    error
	navURL    string
	table     string
	tableErr  error
	html      string
	shot      []byte
	shotErr   error
	state     *auth.SessionState
	stateErr  error
	closed    int
}

func (p *fakePage) OnResponse(fn func(capture.Response)) {
	p.mu.Lock()
	p.handler = fn
	p.mu.Unlock()
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	p.navURL = url
	fn := p.handler
	responses := p.responses
	p.mu.Unlock()

	if fn != nil {
		for _, r := range responses {
			fn(r)
		}
	}
	return p.navErr
}

func (p *fakePage) WaitTable(ctx context.Context, xpath string) (string, error) {
	if p.tableErr != nil {
		return "", p.tableErr
	}
	return p.table, nil
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	return p.html, nil
}

func (p *fakePage) ScreenshotElement(ctx context.Context, selector string) ([]byte, error) {
	return p.shot, p.shotErr
}

func (p *fakePage) SessionState(ctx context.Context) (*auth.SessionState, error) {
	return p.state, p.stateErr
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	p.closed++
	p.mu.Unlock()
	return nil
}

func (p *fakePage) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func jsonResponse(url, method, body string) capture.Response {
	return capture.Response{
		URL:    url,
		Method: method,
		Status: 200,
		Body: func(context.Context) ([]byte, error) {
			return []byte(body), nil
		},
	}
}

// writeSession stores a minimal valid session and returns its store.
func writeSession(t *testing.T) *auth.Store {
	t.Helper()
	store := auth.NewStore(t.TempDir() + "/auth_state.json")
	err := store.Save(&auth.SessionState{
		URL:       "https://docs.example.com",
		Cookies:   []auth.Cookie{{Name: "sid", Value: "abc", Domain: ".example.com", Path: "/"}},
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("save session: %v", err)
	}
	return store
}
