package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the process logger. The level field is named "severity" so
// Cloud Logging parses it; ENV=development switches to console output.
func New(level string) zerolog.Logger {
	return newWithWriter(os.Stderr, level, os.Getenv("ENV") == "development")
}

func newWithWriter(w io.Writer, level string, console bool) zerolog.Logger {
	zerolog.LevelFieldName = "severity"
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if console {
		w = zerolog.ConsoleWriter{Out: w}
	}
	logger := zerolog.New(w).With().Timestamp().Logger()

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}
