package utils

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ServiceName is attached to every log line
const ServiceName = "livebid"

var logger = log.New()

func init() {
	logger.SetFormatter(&log.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	})
	logger.SetOutput(os.Stdout)
	logger.SetLevel(log.InfoLevel)
}

// SetLevel changes the log level. Unknown levels fall back to info.
func SetLevel(level string) {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
}

// SetOutput redirects log output, mostly for tests
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func entry(fields map[string]any) *log.Entry {
	return logger.WithField("service", ServiceName).WithFields(fields)
}

// Debug logs a message at debug level with optional fields
func Debug(message string, fields map[string]any) {
	entry(fields).Debug(message)
}

// Info logs a message at info level with optional fields
func Info(message string, fields map[string]any) {
	entry(fields).Info(message)
}

// Warn logs a message at warning level with optional fields
func Warn(message string, fields map[string]any) {
	entry(fields).Warn(message)
}

// Error logs a message at error level with optional fields
func Error(message string, fields map[string]any) {
	entry(fields).Error(message)
}

// Fatal logs at fatal level and exits the process
func Fatal(message string, fields map[string]any) {
	entry(fields).Fatal(message)
}
