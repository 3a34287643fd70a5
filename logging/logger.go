package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const EnvLogLevel = "UFTP_LOG_LEVEL"

var testOnce sync.Once

// Configure installs a console logger tagged with app on stderr.
// level is a zerolog level name; an unknown name keeps info.
func Configure(app, level string) zerolog.Logger {
	return configure(os.Stderr, app, level)
}

// ConfigureTests keeps test output quiet unless UFTP_LOG_LEVEL asks otherwise
func ConfigureTests() {
	testOnce.Do(func() {
		level := os.Getenv(EnvLogLevel)
		if level == "" {
			level = "warn"
		}
		configure(os.Stderr, "test", level)
	})
}

func configure(out io.Writer, app, level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	zerolog.SetGlobalLevel(ParseLevel(level))
	logger := zerolog.New(output).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

// ParseLevel maps level names to zerolog levels, defaulting to info
func ParseLevel(raw string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
