package auth

import (
	"strings"
	"testing"
	"time"
)

func TestParseNetscapeCookies(t *testing.T) {
	jar := strings.Join([]string{
		"# Netscape HTTP Cookie File",
		"",
		".docs.qq.com\tTRUE\t/\tTRUE\t1893456000\tuid\tabc123",
		"#HttpOnly_.docs.qq.com\tTRUE\t/\tFALSE\t0\tskey\ts3cr3t",
		"broken line",
	}, "\n")

	cookies, err := ParseNetscapeCookies(strings.NewReader(jar))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(cookies))
	}

	uid := cookies[0]
	if uid.Name != "uid" || uid.Value != "abc123" || uid.Domain != ".docs.qq.com" || !uid.Secure || uid.HTTPOnly {
		t.Errorf("unexpected first cookie: %+v", uid)
	}
	if uid.Expires != 1893456000 {
		t.Errorf("expected expiry 1893456000, got %v", uid.Expires)
	}

	skey := cookies[1]
	if !skey.HTTPOnly || skey.Secure || skey.Expires != 0 {
		t.Errorf("unexpected second cookie: %+v", skey)
	}
}

func TestParseCookiesJSON(t *testing.T) {
	in := `[{"name":"uid","value":"1","domain":".qq.com","path":"/","expires":-1,"httpOnly":true,"secure":true}]`
	cookies, err := ParseCookiesJSON(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cookies) != 1 || cookies[0].Name != "uid" || !cookies[0].HTTPOnly {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}

	if _, err := ParseCookiesJSON(strings.NewReader("{not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestSessionState_ExpiresAt(t *testing.T) {
	st := &SessionState{Cookies: []Cookie{
		{Name: "session", Expires: -1},
		{Name: "late", Expires: 2000000000},
		{Name: "early", Expires: 1900000000},
	}}
	if got := st.ExpiresAt(); !got.Equal(time.Unix(1900000000, 0)) {
		t.Errorf("expected earliest expiry, got %v", got)
	}

	if got := (&SessionState{Cookies: []Cookie{{Name: "session"}}}).ExpiresAt(); !got.IsZero() {
		t.Errorf("expected zero time for session cookies, got %v", got)
	}
}
