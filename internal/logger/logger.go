package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	once sync.Once
	root zerolog.Logger
)

// Get returns the process-wide logger, building it from the environment on
// first use.
//
//	LOG_LEVEL         trace|debug|info|warn|error (default info)
//	TUMBLRCLIENT_ENV  "" or "dev" for console output, anything else for JSON
func Get() zerolog.Logger {
	once.Do(func() {
		root = New(os.Stderr, os.Getenv("TUMBLRCLIENT_ENV"), os.Getenv("LOG_LEVEL"))
	})
	return root
}

// New builds a logger writing to w. Unknown levels fall back to info.
func New(w io.Writer, env, level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil && parsed != zerolog.NoLevel {
			lvl = parsed
		}
	}

	var zl zerolog.Logger
	switch env {
	case "", "dev", "development":
		zl = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05"})
	default:
		zl = zerolog.New(w)
	}
	return zl.Level(lvl).With().Timestamp().Logger()
}
