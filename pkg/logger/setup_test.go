package logger

import (
	"testing"

	"github.com/raywall/docstore-toolkit/pkg/config"
	"github.com/rs/zerolog"
)

func TestConfigure(t *testing.T) {
	t.Run("Default Level Info", func(t *testing.T) {
		_ = Configure(config.LogConfig{})

		if zerolog.GlobalLevel() != zerolog.InfoLevel {
			t.Errorf("expected InfoLevel, got %v", zerolog.GlobalLevel())
		}
	})

	t.Run("Custom Level Debug", func(t *testing.T) {
		_ = Configure(config.LogConfig{Level: "debug"})

		if zerolog.GlobalLevel() != zerolog.DebugLevel {
			t.Errorf("expected DebugLevel, got %v", zerolog.GlobalLevel())
		}
	})

	t.Run("Console Format", func(t *testing.T) {
		logger := Configure(config.LogConfig{Level: "info", Format: "console"})
		logger.Info().Msg("smoke")
	})
}
