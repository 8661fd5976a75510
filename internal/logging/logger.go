package logging

import (
	"io"
	"os"

	"github.com/safar/pharmacy-pos/internal/config"
	"github.com/sirupsen/logrus"
)

func NewLogger(cfg config.LoggingConfig) *logrus.Logger {
	return newLogger(cfg.Level, cfg.Format, os.Stdout)
}

func newLogger(level, format string, output io.Writer) *logrus.Logger {
	logger := logrus.New()

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	logger.SetOutput(output)

	return logger
}
