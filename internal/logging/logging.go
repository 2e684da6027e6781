// Package logging builds the logrus logger the extm commands share.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// LevelEnv overrides the log level when set, e.g. EXTM_LOG_LEVEL=debug.
const LevelEnv = "EXTM_LOG_LEVEL"

const metadataKey = "logger"

// New returns a logger writing to output. verbose selects debug level, json
// selects the JSON formatter used by log aggregators.
func New(output io.Writer, verbose, json bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(output)

	if json {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}

	logger.SetLevel(logrus.InfoLevel)
	if level := os.Getenv(LevelEnv); level != "" {
		if parsed, err := logrus.ParseLevel(level); err == nil {
			logger.SetLevel(parsed)
		}
	}
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// Attach stores logger on the app so commands can find it.
func Attach(app *cli.App, logger logrus.FieldLogger) {
	if app.Metadata == nil {
		app.Metadata = make(map[string]interface{})
	}
	app.Metadata[metadataKey] = logger
}

// FromContext returns the logger attached to c's app, or one that writes to
// the app's error writer at warn level when none is attached.
func FromContext(c *cli.Context) logrus.FieldLogger {
	if c != nil && c.App != nil {
		if logger, ok := c.App.Metadata[metadataKey].(logrus.FieldLogger); ok {
			return logger
		}
		if c.App.ErrWriter != nil {
			logger := New(c.App.ErrWriter, false, false)
			logger.SetLevel(logrus.WarnLevel)
			return logger
		}
	}
	logger := New(os.Stderr, false, false)
	logger.SetLevel(logrus.WarnLevel)
	return logger
}
