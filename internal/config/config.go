package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable the config reads.
const EnvPrefix = "TABLECRAWL_"

// DefaultConfigFile is read when present and no --config flag is given.
const DefaultConfigFile = "tablecrawl.yaml"

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel      string `yaml:"log_level"`
	JSONLog       bool   `yaml:"json_log"`
	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`

	// Browser
	BrowserHeadless   bool          `yaml:"browser_headless"`
	ChromePath        string        `yaml:"chrome_path"`
	UserAgent         string        `yaml:"user_agent"`
	Proxy             string        `yaml:"proxy"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	NetworkIdleQuiet  time.Duration `yaml:"network_idle_quiet"`

	// Authenticated sheet source
	SessionFile    string        `yaml:"session_file"`
	QRCodePath     string        `yaml:"qr_code_path"`
	LoginURL       string        `yaml:"login_url"`
	QRSelector     string        `yaml:"qr_selector"`
	TargetEndpoint string        `yaml:"target_endpoint"`
	TargetMethod   string        `yaml:"target_method"`
	RecordsPath    string        `yaml:"records_path"`
	CaptureWindow  time.Duration `yaml:"capture_window"`

	// Public table source
	WikiURL          string        `yaml:"wiki_url"`
	WikiSelector     string        `yaml:"wiki_selector"`
	TableWaitTimeout time.Duration `yaml:"table_wait_timeout"`
	OutputDir        string        `yaml:"output_dir"`
	OutputFile       string        `yaml:"output_file"`

	// Shell, history, scheduling
	ShellAddr  string        `yaml:"shell_addr"`
	HistoryDB  string        `yaml:"history_db"`
	WatchEvery time.Duration `yaml:"watch_every"`
}

// Defaults returns a Config populated with the package defaults.
func Defaults() *Config {
	return &Config{
		LogLevel:          DefaultLogLevel,
		JSONLog:           DefaultJSONLog,
		LogMaxSizeMB:      DefaultLogMaxSizeMB,
		LogMaxBackups:     DefaultLogMaxBackups,
		LogMaxAgeDays:     DefaultLogMaxAgeDays,
		BrowserHeadless:   DefaultBrowserHeadless,
		UserAgent:         DefaultUserAgent,
		NavigationTimeout: DefaultNavigationTimeout,
		NetworkIdleQuiet:  DefaultNetworkIdleQuiet,
		SessionFile:       DefaultSessionFile,
		QRCodePath:        DefaultQRCodePath,
		LoginURL:          DefaultLoginURL,
		QRSelector:        DefaultQRSelector,
		TargetEndpoint:    DefaultTargetEndpoint,
		TargetMethod:      DefaultTargetMethod,
		RecordsPath:       DefaultRecordsPath,
		CaptureWindow:     DefaultCaptureWindow,
		WikiURL:           DefaultWikiURL,
		WikiSelector:      DefaultWikiSelector,
		TableWaitTimeout:  DefaultTableWaitTimeout,
		OutputDir:         DefaultOutputDir,
		OutputFile:        DefaultOutputFile,
		ShellAddr:         DefaultShellAddr,
		HistoryDB:         DefaultHistoryDB,
		WatchEvery:        DefaultWatchEvery,
	}
}

// Load builds a Config by combining defaults, an optional YAML file, a .env file,
// environment variables, and CLI flags, in that order of precedence.
// Caller should pass the executing *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := Defaults()

	path := flagString(cmd, "config")
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if err := loadFile(cfg, path); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Debug().Err(err).Msg("failed to load .env file")
	}
	applyEnv(cfg)
	applyFlags(cfg, cmd)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadFile decodes a YAML config file over cfg. An empty path falls back to
// DefaultConfigFile, which may be absent.
func loadFile(cfg *Config, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("Config file loaded")
	return nil
}

func applyEnv(cfg *Config) {
	envString("LOG_LEVEL", &cfg.LogLevel)
	envString("LOG_FILE", &cfg.LogFile)
	envString("CHROME_PATH", &cfg.ChromePath)
	envString("USER_AGENT", &cfg.UserAgent)
	envString("PROXY", &cfg.Proxy)
	envString("SESSION_FILE", &cfg.SessionFile)
	envString("QR_CODE_PATH", &cfg.QRCodePath)
	envString("LOGIN_URL", &cfg.LoginURL)
	envString("QR_SELECTOR", &cfg.QRSelector)
	envString("TARGET_ENDPOINT", &cfg.TargetEndpoint)
	envString("TARGET_METHOD", &cfg.TargetMethod)
	envString("RECORDS_PATH", &cfg.RecordsPath)
	envString("WIKI_URL", &cfg.WikiURL)
	envString("OUTPUT_DIR", &cfg.OutputDir)
	envString("SHELL_ADDR", &cfg.ShellAddr)
	envString("HISTORY_DB", &cfg.HistoryDB)
	envDuration("NAVIGATION_TIMEOUT", &cfg.NavigationTimeout)
	envDuration("CAPTURE_WINDOW", &cfg.CaptureWindow)
	envDuration("TABLE_WAIT_TIMEOUT", &cfg.TableWaitTimeout)
	envDuration("WATCH_EVERY", &cfg.WatchEvery)
	envBool("JSON_LOG", &cfg.JSONLog)
	envBool("BROWSER_HEADLESS", &cfg.BrowserHeadless)
}

func applyFlags(cfg *Config, cmd *cobra.Command) {
	if cmd == nil {
		return
	}
	if s := flagString(cmd, "user-agent"); s != "" {
		cfg.UserAgent = s
	}
	if s := flagString(cmd, "proxy"); s != "" {
		cfg.Proxy = s
	}
	if s := flagString(cmd, "session-file"); s != "" {
		cfg.SessionFile = s
	}
	if s := flagString(cmd, "log-file"); s != "" {
		cfg.LogFile = s
	}
	if s := flagString(cmd, "timeout"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			cfg.NavigationTimeout = d
		} else {
			log.Warn().Str("timeout", s).Msg("Invalid timeout format, keeping configured value")
		}
	}
	if flagString(cmd, "json") == "true" {
		cfg.JSONLog = true
	}
	if flagString(cmd, "headful") == "true" {
		cfg.BrowserHeadless = false
	}
	if flagString(cmd, "quiet") == "true" {
		cfg.LogLevel = "error"
	}
	if flagString(cmd, "verbose") == "true" {
		cfg.LogLevel = "debug"
	}
}

// flagString looks a flag up on the command and its parents' persistent sets.
func flagString(cmd *cobra.Command, name string) string {
	if cmd == nil {
		return ""
	}
	var f *pflag.Flag
	if f = cmd.Flags().Lookup(name); f == nil {
		f = cmd.InheritedFlags().Lookup(name)
	}
	if f == nil {
		return ""
	}
	return f.Value.String()
}

func envString(key string, dst *string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func envDuration(key string, dst *time.Duration) {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", EnvPrefix+key).Str("value", v).Msg("Ignoring invalid duration")
		return
	}
	*dst = d
}

func envBool(key string, dst *bool) {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", EnvPrefix+key).Str("value", v).Msg("Ignoring invalid boolean")
		return
	}
	*dst = b
}
