package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/raywall/docstore-toolkit/pkg/config"
	"github.com/rs/zerolog"
)

// Configure initializes the root logger from the service configuration.
// Format "console" produces human-readable output for local runs; the
// default is JSON.
func Configure(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Str("service", "docstore").
		Logger()
}
