package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Level orders diagnostic messages by severity.
type Level int32

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel converts a config or flag value to a Level. Unknown values
// map to INFO.
func ParseLevel(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Logger writes leveled diagnostics. Lines carry the short id of the run
// being checked so a debug log shared by several runs can be split.
type Logger struct {
	level atomic.Int32
	run   atomic.Pointer[string]

	mu  sync.Mutex
	out *log.Logger
}

// New returns a Logger writing to w.
func New(level string, w io.Writer) *Logger {
	l := &Logger{out: log.New(w, "[IPTV-CHECK] ", log.LstdFlags)}
	l.level.Store(int32(ParseLevel(level)))
	return l
}

var std = New("WARN", os.Stderr)

func SetLogLevel(level string) { std.SetLevel(level) }

// SetOutput redirects the package logger, e.g. to a --debug-log file.
func SetOutput(w io.Writer) { std.SetOutput(w) }

// SetRun tags subsequent lines with runID. An empty id clears the tag.
func SetRun(runID string) { std.SetRun(runID) }

func (l *Logger) SetLevel(level string) { l.level.Store(int32(ParseLevel(level))) }

func (l *Logger) Level() Level { return Level(l.level.Load()) }

func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.SetOutput(w)
}

func (l *Logger) SetRun(runID string) {
	if len(runID) > 8 {
		runID = runID[:8]
	}
	if runID == "" {
		l.run.Store(nil)
		return
	}
	l.run.Store(&runID)
}

// Enabled reports whether messages at level are written.
func (l *Logger) Enabled(level Level) bool {
	return level >= l.Level()
}

func (l *Logger) logf(level Level, format string, v ...any) {
	if !l.Enabled(level) {
		return
	}

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(level.String())
	b.WriteString("] ")
	if run := l.run.Load(); run != nil {
		b.WriteString("(")
		b.WriteString(*run)
		b.WriteString(") ")
	}
	fmt.Fprintf(&b, format, v...)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Print(b.String())
}

func (l *Logger) Debug(format string, v ...any) { l.logf(DEBUG, format, v...) }
func (l *Logger) Info(format string, v ...any)  { l.logf(INFO, format, v...) }
func (l *Logger) Warn(format string, v ...any)  { l.logf(WARN, format, v...) }
func (l *Logger) Error(format string, v ...any) { l.logf(ERROR, format, v...) }

func Debug(format string, v ...any) { std.logf(DEBUG, format, v...) }
func Info(format string, v ...any)  { std.logf(INFO, format, v...) }
func Warn(format string, v ...any)  { std.logf(WARN, format, v...) }
func Error(format string, v ...any) { std.logf(ERROR, format, v...) }
