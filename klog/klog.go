// Package klog is the dispatcher's logging façade, a trimmed-down
// descendant of vanadium's vlog: a single llog-backed logger, configured
// once at process start, with a V-level gate for verbose logging. Full vlog carries flag-parsing, module-level V
// overrides and stack-trace-on-location tracing; none of that belongs to
// a kernel-adjacent dispatcher core, so only the logging backend and its
// V-level gate are kept.
package klog

import (
	"sync"

	"github.com/cosmosnicolaou/llog"
)

// Level is a verbose-logging level, checked with V before an expensive
// log line is formatted.
type Level llog.Level

var (
	mu  sync.Mutex
	log = llog.NewLogger("dispatch", 1)
)

// Configure sets the logger's verbosity level and stderr behavior. It is
// meant to be called once, early in process startup (e.g. from
// cmd/dispatchdemo's main).
func Configure(level Level, alsoLogToStderr bool) {
	mu.Lock()
	defer mu.Unlock()
	log.SetV(llog.Level(level))
	log.SetAlsoLogToStderr(alsoLogToStderr)
}

// V reports whether verbose logging at the given level is enabled.
func V(level Level) bool { return log.V(llog.Level(level)) }

// Infof logs to the INFO log.
func Infof(format string, args ...interface{}) { log.Printf(llog.InfoLog, format, args...) }

// Errorf logs to the ERROR and INFO logs.
func Errorf(format string, args ...interface{}) { log.Printf(llog.ErrorLog, format, args...) }

// Fatalf logs to the FATAL, ERROR and INFO logs, then calls os.Exit(255)
// (llog's behavior, unchanged from the teacher's vlog wrapper).
func Fatalf(format string, args ...interface{}) { log.Printf(llog.FatalLog, format, args...) }

// Flush flushes any buffered log output. cmd/dispatchdemo's main defers it
// so the final log lines are written before the process exits.
func Flush() { log.Flush() }
