package dynamic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/law-makers/tablecrawl/internal/auth"
	"github.com/law-makers/tablecrawl/internal/engine/capture"
)

func requireChrome(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	if FindChrome("") == "" {
		t.Skip("Chrome not available")
	}
}

func TestCookieParam(t *testing.T) {
	c := cookieParam(auth.Cookie{Name: "sid", Value: "v", Domain: ".example.com", Path: "/", Expires: 1893456000, SameSite: "Lax", Secure: true})
	if c.Name != "sid" || c.Domain != ".example.com" || !c.Secure {
		t.Errorf("unexpected cookie param: %+v", c)
	}
	if c.Expires == nil {
		t.Fatal("expected expiry to be set")
	}
	if c.SameSite != network.CookieSameSiteLax {
		t.Errorf("expected Lax, got %q", c.SameSite)
	}

	session := cookieParam(auth.Cookie{Name: "tmp", Value: "x"})
	if session.Expires != nil {
		t.Error("session cookie should carry no expiry")
	}
}

func TestLocalStorageScript(t *testing.T) {
	script, err := localStorageScript(auth.OriginStorage{
		Origin:       "https://docs.example.com",
		LocalStorage: []auth.StorageEntry{{Name: "token", Value: `a"b`}},
	})
	if err != nil {
		t.Fatalf("localStorageScript failed: %v", err)
	}
	if !strings.Contains(script, `location.origin !== "https://docs.example.com"`) {
		t.Errorf("origin guard missing: %s", script)
	}
	if !strings.Contains(script, `"value":"a\"b"`) {
		t.Errorf("value not JSON escaped: %s", script)
	}
}

func TestRestoreActions(t *testing.T) {
	st := &auth.SessionState{
		Cookies: []auth.Cookie{{Name: "a", Value: "1"}},
		Origins: []auth.OriginStorage{
			{Origin: "https://a.example", LocalStorage: []auth.StorageEntry{{Name: "k", Value: "v"}}},
			{Origin: "https://b.example"},
		},
	}
	if got := len(restoreActions(st)); got != 2 {
		t.Errorf("expected 2 actions, got %d", got)
	}
	if got := len(restoreActions(&auth.SessionState{})); got != 0 {
		t.Errorf("expected no actions for empty state, got %d", got)
	}
}

func TestChrome_InterceptsPostResponse(t *testing.T) {
	requireChrome(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div id="root"></div><script>
fetch('/api/get_sheet_data', {method: 'POST'}).then(r => r.json()).then(d => {
	document.getElementById('root').textContent = d.data.records.length;
	localStorage.setItem('seen', 'yes');
});
</script></body></html>`)
	})
	mux.HandleFunc("/api/get_sheet_data", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":{"records":[{"a":1},{"a":2}]}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	page, err := NewChrome(Options{IdleQuiet: 300 * time.Millisecond}).Launch(ctx, LaunchOptions{Headless: true})
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	defer page.Close()

	var mu sync.Mutex
	var seen []capture.Response
	page.OnResponse(func(r capture.Response) {
		mu.Lock()
		seen = append(seen, r)
		mu.Unlock()
	})

	if err := page.Navigate(ctx, srv.URL); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}

	mu.Lock()
	var target *capture.Response
	for i := range seen {
		if strings.Contains(seen[i].URL, "api/get_sheet_data") && seen[i].Method == "POST" {
			target = &seen[i]
		}
	}
	mu.Unlock()
	if target == nil {
		t.Fatal("POST response not observed")
	}

	body, err := target.Body(ctx)
	if err != nil {
		t.Fatalf("Body failed: %v", err)
	}
	if !strings.Contains(string(body), `"records"`) {
		t.Errorf("unexpected body: %s", body)
	}

	st, err := page.SessionState(ctx)
	if err != nil {
		t.Fatalf("SessionState failed: %v", err)
	}
	if len(st.Origins) != 1 || len(st.Origins[0].LocalStorage) != 1 {
		t.Errorf("expected localStorage snapshot, got %+v", st.Origins)
	}
}

func TestChrome_ScreenshotMissingElement(t *testing.T) {
	requireChrome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><img alt="other" src="data:image/gif;base64,R0lGODlhAQABAAAAACw="></body></html>`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	page, err := NewChrome(Options{}).Launch(ctx, LaunchOptions{Headless: true})
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	defer page.Close()

	if err := page.Navigate(ctx, srv.URL); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}
	if _, err := page.ScreenshotElement(ctx, "img[alt='Scan QR code']"); !errors.Is(err, ErrElementNotFound) {
		t.Errorf("expected ErrElementNotFound, got %v", err)
	}
}

func TestChrome_StartupBoundByContext(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a shell script standing in for Chrome")
	}
	// Never prints a DevTools endpoint, so startup only ends when killed.
	fake := filepath.Join(t.TempDir(), "chrome")
	if err := os.WriteFile(fake, []byte("#!/bin/sh\nexec sleep 30\n"), 0755); err != nil {
		t.Fatalf("write fake browser: %v", err)
	}

	c := NewChrome(Options{ChromePath: fake, Proxy: "http://127.0.0.1:1,http://127.0.0.1:2"})
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	page, err := c.Launch(ctx, LaunchOptions{Headless: true})
	if page != nil {
		t.Fatal("expected no page")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected startup to end with the caller's deadline, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("startup took %v after the deadline", elapsed)
	}
	c.proxies.Next()
	if next := c.proxies.Next(); next != "http://127.0.0.1:1" {
		t.Errorf("cancelled startup should not mark the proxy failed, rotation gave %q", next)
	}
}
