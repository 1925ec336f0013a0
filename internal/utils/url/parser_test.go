package urlutil

import "testing"

func TestValidate(t *testing.T) {
	valid := []string{
		"http://example.com",
		"https://example.com/path",
		"https://docs.qq.com/sheet/DQk1abc?tab=BB08J2",
	}
	for _, u := range valid {
		if err := ValidateURL(u); err != nil {
			t.Fatalf("expected valid, got error: %v", err)
		}
	}

	invalid := []string{"ftp://example.com", "//example.com", "http:///", "docs.qq.com/sheet"}
	for _, u := range invalid {
		if err := ValidateURL(u); err == nil {
			t.Fatalf("expected invalid for %s", u)
		}
	}
}

func TestHostSlug(t *testing.T) {
	cases := map[string]string{
		"https://zh.wikipedia.org/wiki/X": "zh.wikipedia.org",
		"https://Docs.QQ.com:8443/sheet":  "docs.qq.com",
		"http://[::1]:8080/":              "--1",
		"not a url":                       "unknown",
		"":                                "unknown",
	}
	for in, want := range cases {
		if got := HostSlug(in); got != want {
			t.Errorf("HostSlug(%q) = %q, want %q", in, got, want)
		}
	}
}
