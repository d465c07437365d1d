package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Logger *logrus.Logger

func init() {
	Logger = logrus.New()
	Logger.SetOutput(os.Stdout)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Default level
	Logger.SetLevel(logrus.InfoLevel)

	// Override from env, e.g., LOG_LEVEL=debug
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		if parsedLevel, err := logrus.ParseLevel(strings.ToLower(level)); err == nil {
			Logger.SetLevel(parsedLevel)
		}
	}
}

// WithComponent adds a component field to the logger
func WithComponent(component string) *logrus.Entry {
	return Logger.WithField("component", component)
}

// WithDocument tags an entry with both the component and the document path it concerns.
func WithDocument(component, path string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{
		"component": component,
		"path":      path,
	})
}

// SetLevel parses level and applies it, keeping the current level on parse errors.
func SetLevel(level string) error {
	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return err
	}
	Logger.SetLevel(parsed)
	return nil
}

// EnableFileOutput tees log output into a size-rotated file next to stdout.
// An empty path leaves the output untouched.
func EnableFileOutput(path string, maxSizeMB, maxBackups int) io.Closer {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if maxBackups < 0 {
		maxBackups = 0
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}
	Logger.SetOutput(io.MultiWriter(os.Stdout, rotator))
	return rotator
}
