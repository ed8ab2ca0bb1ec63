// Package debug provides category-scoped debug logging on top of slog.
//
// Categories select WHAT to debug; the slog level selects HOW MUCH.
// Category selection comes from the MCLUHAN_DEBUG environment variable
// (a comma-separated list, or "all"), optionally seeded from config via
// Init.
//
//	debug.Log(debug.Transport, "request", "method", "POST", "url", url)
//	if debug.Enabled(debug.Stream) { /* expensive formatting */ }
package debug

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Category names a debuggable subsystem.
type Category string

const (
	Providers Category = "providers"
	Engine    Category = "engine"
	Stream    Category = "stream"
	Transport Category = "transport"
	Config    Category = "config"
	Metrics   Category = "metrics"

	// All enables every category.
	All Category = "all"
)

// LevelTrace sits below slog.LevelDebug. At TRACE, full untruncated
// stream payloads are logged.
const LevelTrace = slog.LevelDebug - 4

// enabled holds the active category set. Init swaps it atomically so
// Log never races with startup.
var enabled atomic.Pointer[map[Category]bool]

func init() {
	set := parseList(os.Getenv("MCLUHAN_DEBUG"))
	enabled.Store(&set)
}

// Init seeds the category set from config. The MCLUHAN_DEBUG environment
// variable still wins when set.
func Init(fromConfig string) {
	spec := os.Getenv("MCLUHAN_DEBUG")
	if spec == "" {
		spec = fromConfig
	}
	set := parseList(spec)
	enabled.Store(&set)
}

// Enabled reports whether debug output is active for c.
func Enabled(c Category) bool {
	set := *enabled.Load()
	return set[All] || set[c]
}

// Log emits a debug message tagged with its category. A disabled
// category makes this a no-op.
func Log(c Category, msg string, args ...any) {
	if !Enabled(c) {
		return
	}
	slog.Debug(msg, append([]any{"debug", string(c)}, args...)...)
}

// Trace emits a trace-level message, visible only at TRACE.
func Trace(c Category, msg string, args ...any) {
	if !Enabled(c) {
		return
	}
	slog.Log(nil, LevelTrace, msg, append([]any{"debug", string(c)}, args...)...)
}

// TraceIsEnabled reports whether c would emit at TRACE.
func TraceIsEnabled(c Category) bool {
	return Enabled(c) && slog.Default().Enabled(nil, LevelTrace)
}

// Raw writes plain text to stderr without slog formatting, for
// copy-paste-ready payload dumps. Emitted only at TRACE.
func Raw(c Category, text string) {
	if !TraceIsEnabled(c) {
		return
	}
	fmt.Fprintln(os.Stderr, text)
}

// ParseLevel converts a level name, including "trace", to a slog.Level.
// Unknown names fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Truncate caps s at maxLen characters, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func parseList(spec string) map[Category]bool {
	set := make(map[Category]bool)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part != "" {
			set[Category(part)] = true
		}
	}
	return set
}
