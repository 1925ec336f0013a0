package auth

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ParseCookiesJSON reads a JSON array of cookies, as exported by browser
// extensions or a previous session file's "cookies" field.
func ParseCookiesJSON(r io.Reader) ([]Cookie, error) {
	var cookies []Cookie
	if err := json.NewDecoder(r).Decode(&cookies); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return cookies, nil
}

// ParseNetscapeCookies reads a Netscape/curl cookie jar. Comment lines and
// lines with fewer than seven tab or space separated fields are skipped.
// The "#HttpOnly_" domain prefix marks HTTP-only cookies.
func ParseNetscapeCookies(r io.Reader) ([]Cookie, error) {
	var cookies []Cookie
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		httpOnly := false
		if rest, ok := strings.CutPrefix(line, "#HttpOnly_"); ok {
			line = rest
			httpOnly = true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 7 {
			continue
		}

		cookie := Cookie{
			Domain:   fields[0],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			Name:     fields[5],
			Value:    fields[6],
			HTTPOnly: httpOnly,
		}
		if expiry, err := strconv.ParseInt(fields[4], 10, 64); err == nil && expiry > 0 {
			cookie.Expires = float64(expiry)
		}

		cookies = append(cookies, cookie)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cookies, nil
}

// ExpiresAt returns the earliest expiry among persistent cookies, or the zero
// time when every cookie lives for the browser session only.
func (st *SessionState) ExpiresAt() time.Time {
	var earliest time.Time
	for _, c := range st.Cookies {
		if c.Expires <= 0 {
			continue
		}
		expiry := time.Unix(int64(c.Expires), 0)
		if earliest.IsZero() || expiry.Before(earliest) {
			earliest = expiry
		}
	}
	return earliest
}
