// Package auditlog provides the leveled logging used throughout the
// audit pipeline: plain stdlib *log.Logger instances gated by a
// verbosity count.
package auditlog

import (
	"io"
	"log"
	"os"
)

// Logger is a leveled wrapper around four *log.Logger instances. Error
// and Status output are always emitted; Info requires Verbosity >= 1
// and Debug requires Verbosity >= 2.
type Logger struct {
	Verbosity int

	err    *log.Logger
	info   *log.Logger
	debug  *log.Logger
	status *log.Logger
}

const flags = log.Lmicroseconds | log.Lshortfile

// New returns a Logger writing to w (os.Stderr in production, a
// bytes.Buffer in tests) at the given verbosity.
func New(w io.Writer, verbosity int) *Logger {
	return &Logger{
		Verbosity: verbosity,
		err:       log.New(w, "ERROR: ", flags),
		info:      log.New(w, "", flags),
		debug:     log.New(w, "DEBUG: ", flags),
		status:    log.New(w, "", flags),
	}
}

// Default returns a Logger writing to os.Stderr.
func Default(verbosity int) *Logger {
	return New(os.Stderr, verbosity)
}

// Errorf always logs, regardless of verbosity: parse failures are
// reported at ERROR severity but never abort the traversal.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.err.Printf(format, args...)
}

// Infof logs at Verbosity >= 1.
func (l *Logger) Infof(format string, args ...interface{}) {
	if l.Verbosity >= 1 {
		l.info.Printf(format, args...)
	}
}

// Debugf logs at Verbosity >= 2.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.Verbosity >= 2 {
		l.debug.Printf(format, args...)
	}
}

// Statusf always logs, regardless of verbosity: it is the per-root
// report summary line, not a diagnostic.
func (l *Logger) Statusf(format string, args ...interface{}) {
	l.status.Printf(format, args...)
}
