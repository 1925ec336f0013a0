package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be > 0")
	}
	if c.CaptureWindow <= 0 {
		return fmt.Errorf("capture window must be > 0")
	}
	if c.TableWaitTimeout <= 0 {
		return fmt.Errorf("table wait timeout must be > 0")
	}
	if c.SessionFile == "" {
		return fmt.Errorf("session file path is required")
	}
	if c.TargetEndpoint == "" {
		return fmt.Errorf("target endpoint is required")
	}
	if c.RecordsPath == "" || strings.HasPrefix(c.RecordsPath, ".") || strings.HasSuffix(c.RecordsPath, ".") {
		return fmt.Errorf("records path %q must be a dotted key path", c.RecordsPath)
	}
	if c.WatchEvery < MinWatchEvery {
		return fmt.Errorf("watch interval must be at least %s", MinWatchEvery)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}
