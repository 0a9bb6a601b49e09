package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color" // Import the fatih/color package for colored console output
)

// Level is a log verbosity. Each level shows everything the previous one does.
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
	LevelDebug
	LevelTrace
)

// levelNames maps each level to the name accepted on the command line.
var levelNames = []string{"error", "warning", "info", "debug", "trace"}

// LevelNames returns the accepted level names, quietest first.
func LevelNames() []string {
	names := make([]string, len(levelNames))
	copy(names, levelNames)
	return names
}

// String returns the command-line name of the level.
func (l Level) String() string {
	if l < LevelError || l > LevelTrace {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel converts a level name (case-insensitive) into a Level.
func ParseLevel(name string) (Level, error) {
	for i, n := range levelNames {
		if strings.EqualFold(strings.TrimSpace(name), n) {
			return Level(i), nil
		}
	}
	return LevelError, fmt.Errorf("unknown log level %q (expected one of %s)", name, strings.Join(levelNames, ", "))
}

// Logger prints colorized, level-filtered messages.
// A Logger is configured once by New and never changes afterwards, so it can be
// handed to every component of a run.
//
// Colors:
//   - Error: red, written to the error stream
//   - Warn: yellow, written to the error stream
//   - Info: green
//   - Debug: cyan
//   - Trace: magenta
type Logger struct {
	level  Level
	out    io.Writer
	errOut io.Writer

	errorColor *color.Color
	warnColor  *color.Color
	infoColor  *color.Color
	debugColor *color.Color
	traceColor *color.Color
}

// New creates a Logger that shows messages up to and including level.
// Nil writers default to os.Stdout and os.Stderr.
func New(level Level, out, errOut io.Writer) *Logger {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Logger{
		level:      level,
		out:        out,
		errOut:     errOut,
		errorColor: color.New(color.FgRed),
		warnColor:  color.New(color.FgYellow),
		infoColor:  color.New(color.FgGreen),
		debugColor: color.New(color.FgCyan),
		traceColor: color.New(color.FgMagenta),
	}
}

// Discard returns a Logger that only keeps errors and writes them nowhere.
// Useful for tests and for callers that have no terminal.
func Discard() *Logger {
	return New(LevelError, io.Discard, io.Discard)
}

// Enabled reports whether messages at level would be printed.
func (l *Logger) Enabled(level Level) bool {
	return level <= l.level
}

// Errorf prints to the error stream. It is shown at every level, since error
// is the quietest one.
func (l *Logger) Errorf(format string, a ...any) {
	l.print(LevelError, l.errOut, l.errorColor, "ERROR: ", format, a...)
}

// Warnf prints to the error stream from the warning level up.
func (l *Logger) Warnf(format string, a ...any) {
	l.print(LevelWarning, l.errOut, l.warnColor, " WARN: ", format, a...)
}

// Infof reports progress, one line per capability and phase step.
func (l *Logger) Infof(format string, a ...any) {
	l.print(LevelInfo, l.out, l.infoColor, " INFO: ", format, a...)
}

// Debugf reports details: skipped capabilities, created paths, command output.
func (l *Logger) Debugf(format string, a ...any) {
	l.print(LevelDebug, l.out, l.debugColor, "DEBUG: ", format, a...)
}

// Tracef is used for operation entry points, e.g. Tracef("install_packages").
func (l *Logger) Tracef(format string, a ...any) {
	l.print(LevelTrace, l.out, l.traceColor, "TRACE: ", format, a...)
}

// print filters by level, prefixes and colors the message and terminates it
// with a newline.
func (l *Logger) print(level Level, w io.Writer, c *color.Color, prefix, format string, a ...any) {
	if !l.Enabled(level) {
		return
	}
	msg := prefix + fmt.Sprintf(format, a...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	// Errors writing to the terminal are not actionable here.
	_, _ = c.Fprint(w, msg)
}
