package main

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// setupLogging configures the global logger from LOG_FORMAT and LOG_LEVEL
func setupLogging() {
	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	logrus.SetLevel(parseLogLevel(os.Getenv("LOG_LEVEL")))
	logrus.Info("Logging configured")
}

// parseLogLevel maps a level name to a logrus level, defaulting to info
func parseLogLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
