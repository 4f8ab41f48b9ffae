package integral

import (
	"log/slog"

	"github.com/gogpu/integral/gpucore"
)

// SetLogger configures the logger for integral and all its backends.
// By default, integral produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by integral:
//   - [slog.LevelDebug]: per-stage dispatches, batch submission
//   - [slog.LevelInfo]: backend selection, module creation, buffer reallocation
//   - [slog.LevelWarn]: backend fallbacks, resource release errors
//
// Example:
//
//	// Enable info-level logging to stderr:
//	integral.SetLogger(slog.Default())
//
//	// Enable debug-level logging for full diagnostics:
//	integral.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	gpucore.SetLogger(l)
}

// Logger returns the current logger used by integral and its backends.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return gpucore.Logger()
}
