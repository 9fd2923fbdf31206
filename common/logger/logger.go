// Package logger provides the process-wide fallback zap logger for code
// that runs outside a request (startup, background consumers). Handler
// code should prefer gmw.GetLogger(c), which attaches the per-request
// UUIDv7 id as a field automatically.
package logger

import (
	"os"

	"github.com/Laisky/zap"
)

// Logger is the package-wide logger. Replaced once by Init at startup.
var Logger *zap.Logger

func init() {
	// Never leave Logger nil: tests and early-init code may log before Init runs.
	Logger, _ = zap.NewDevelopment()
}

// Init configures Logger for the given debug flag and installs it as the
// package-wide instance. Call once from main before the server starts.
func Init(debug bool) {
	var l *zap.Logger
	var err error
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		// zap construction failure means the encoder config is broken; this is a
		// programmer error, not a runtime condition, so fail fast.
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	Logger = l
}
