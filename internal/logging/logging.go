package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/indigo-web/responder/config"
	"github.com/sirupsen/logrus"
)

// New builds the process-wide logger. It's meant to be called once on startup, the result
// is passed down to whoever needs it and is never reconfigured afterward.
func New(cfg config.Log) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	out, err := output(cfg.Output)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(out)

	switch cfg.Format {
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format: %q", cfg.Format)
	}

	return logger, nil
}

// Discard returns a logger, writing nowhere.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func output(dst string) (io.Writer, error) {
	switch dst {
	case "stderr", "":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	default:
		return os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	}
}
