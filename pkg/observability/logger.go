package observability

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log output formats accepted by NewLogger.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ParseLevel converts a textual level ("debug", "info", ...) to a logrus
// level. Unknown values fall back to info.
func ParseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// NewLogger creates the process logger
func NewLogger(level logrus.Level, format string, output io.Writer) *logrus.Logger {
	if output == nil {
		output = os.Stderr
	}

	log := logrus.New()
	log.SetOutput(output)
	log.SetLevel(level)

	if format == FormatJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log
}

// PluginLogger returns a logger scoped to a single extension.
func PluginLogger(log *logrus.Logger, plugin string) *logrus.Entry {
	if log == nil {
		log = logrus.New()
	}
	return log.WithField("plugin", plugin)
}
