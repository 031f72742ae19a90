// Package logging is the engine-wide structured logger.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	once      sync.Once
	singleton *log.Logger
)

func logger() *log.Logger {
	once.Do(func() {
		singleton = log.NewWithOptions(os.Stderr, log.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          "phex",
			CallerOffset:    1,
		})
		singleton.SetLevel(log.InfoLevel)
	})
	return singleton
}

// Logger returns the shared logger, building it on first use.
func Logger() *log.Logger {
	return logger()
}

// SetLevel changes the minimum level that is written.
//
// Parameters:
//   - level: one of "debug", "info", "warn", "error" or "fatal"
//
// Returns:
//   - error: an error if the level name is not recognized
func SetLevel(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	logger().SetLevel(lvl)
	return nil
}

// Level returns the current level name.
func Level() string {
	return logger().GetLevel().String()
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	logger().SetOutput(w)
}

// Debug logs msg with alternating key/value pairs at debug level.
func Debug(msg string, keyvals ...any) {
	logger().Debug(msg, keyvals...)
}

// Info logs msg with alternating key/value pairs at info level.
func Info(msg string, keyvals ...any) {
	logger().Info(msg, keyvals...)
}

// Warn logs msg with alternating key/value pairs at warn level.
func Warn(msg string, keyvals ...any) {
	logger().Warn(msg, keyvals...)
}

// Error logs msg with alternating key/value pairs at error level.
func Error(msg string, keyvals ...any) {
	logger().Error(msg, keyvals...)
}
