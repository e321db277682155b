package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options controls how New builds the logger.
type Options struct {
	// Level is one of debug, info, warning, error. Anything else means info.
	Level string
	// Env "production" selects JSON output; anything else is human-readable text.
	Env string
	// File, when set, receives a copy of every entry.
	File string
}

// New builds a logrus logger writing to out (and to opts.File if set). The
// returned closer releases the log file and is never nil.
func New(out io.Writer, opts Options) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	if strings.ToLower(opts.Env) == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	logger.SetLevel(parseLevel(opts.Level))

	if opts.File == "" {
		logger.SetOutput(out)
		return logger, io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger.SetOutput(io.MultiWriter(out, file))
	return logger, file, nil
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warning", "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
