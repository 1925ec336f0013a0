package app

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/law-makers/tablecrawl/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel maps a config level name onto zerolog.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetupLogging installs the global logger. Console output goes to stderr,
// or JSON when requested. With a log file configured every line is also
// written as JSON to a rotating file. The returned closer releases the file.
func SetupLogging(cfg *config.Config, stderr io.Writer) (zerolog.Logger, io.Closer) {
	zerolog.SetGlobalLevel(ParseLevel(cfg.LogLevel))

	var console io.Writer = stderr
	if !cfg.JSONLog {
		console = zerolog.ConsoleWriter{Out: stderr}
	}

	writer := console
	var closer io.Closer = nopCloser{}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
			log.Warn().Err(err).Str("path", cfg.LogFile).Msg("Log directory unavailable, logging to console only")
		} else {
			rotating := &lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    cfg.LogMaxSizeMB,
				MaxBackups: cfg.LogMaxBackups,
				MaxAge:     cfg.LogMaxAgeDays,
				Compress:   true,
			}
			writer = zerolog.MultiLevelWriter(console, rotating)
			closer = rotating
		}
	}

	logger := zerolog.New(writer).With().Timestamp().Logger()
	log.Logger = logger

	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Str("file", cfg.LogFile).
		Msg("Logger initialized")
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
