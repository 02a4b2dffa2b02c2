package core

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Level is the lowest severity a DefaultLogger writes.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel accepts a level name in any case; "" means info.
func ParseLevel(s string) (Level, error) {
	if s == "" {
		return LevelInfo, nil
	}
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// logSink is shared by a logger and every logger derived from it with Named,
// so SetLevel on any of them applies to all.
type logSink struct {
	mu    sync.Mutex
	level Level
	out   *log.Logger // debug and info
	err   *log.Logger // warn and error
}

// DefaultLogger writes "[prefix] LEVEL: message" lines. Debug and info go to
// the out writer; warnings and errors to the err writer.
type DefaultLogger struct {
	sink   *logSink
	prefix string
}

// NewDefaultLogger logs to stdout and stderr at info, or at debug when debug is set.
func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	level := LevelInfo
	if debug {
		level = LevelDebug
	}
	flags := log.LstdFlags | log.Lmicroseconds
	return NewWriterLogger(prefix, level, log.New(os.Stdout, "", flags), log.New(os.Stderr, "", flags))
}

// NewWriterLogger logs through the given loggers; err may be nil to share out.
func NewWriterLogger(prefix string, level Level, out, err *log.Logger) *DefaultLogger {
	if err == nil {
		err = out
	}
	return &DefaultLogger{sink: &logSink{level: level, out: out, err: err}, prefix: prefix}
}

// NewBufferLogger logs every level, without timestamps, into w.
func NewBufferLogger(prefix string, w io.Writer) *DefaultLogger {
	return NewWriterLogger(prefix, LevelDebug, log.New(w, "", 0), nil)
}

// Named returns a logger writing to the same sink under "prefix/name".
func (l *DefaultLogger) Named(name string) *DefaultLogger {
	p := name
	if l.prefix != "" {
		p = l.prefix + "/" + name
	}
	return &DefaultLogger{sink: l.sink, prefix: p}
}

func (l *DefaultLogger) Level() Level {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return l.sink.level
}

func (l *DefaultLogger) SetLevel(level Level) {
	l.sink.mu.Lock()
	l.sink.level = level
	l.sink.mu.Unlock()
}

func (l *DefaultLogger) DebugEnabled() bool { return l.Level() <= LevelDebug }

// SetDebug switches between debug and info.
func (l *DefaultLogger) SetDebug(enabled bool) {
	if enabled {
		l.SetLevel(LevelDebug)
	} else {
		l.SetLevel(LevelInfo)
	}
}

func (l *DefaultLogger) logf(level Level, format string, args ...any) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if level < l.sink.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		msg = fmt.Sprintf("[%s] %s: %s", l.prefix, level, msg)
	} else {
		msg = level.String() + ": " + msg
	}
	dst := l.sink.out
	if level >= LevelWarn {
		dst = l.sink.err
	}
	dst.Print(msg)
}

func (l *DefaultLogger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *DefaultLogger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *DefaultLogger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *DefaultLogger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

type nopLogger struct{}

func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) DebugEnabled() bool    { return false }
func (nopLogger) SetDebug(bool)         {}
func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// OrNop returns l, or a no-op logger when l is nil. Never returns nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}

// Throttle lets the first occurrence of a key through and then one in every N.
// Used for conditions that repeat every frame, like an exhausted arena.
type Throttle struct {
	Every int
	seen  map[string]int
}

func NewThrottle(every int) *Throttle {
	if every < 1 {
		every = 1
	}
	return &Throttle{Every: every, seen: make(map[string]int)}
}

// Allow records one occurrence of key and reports whether it should be logged.
// The second result is the number of occurrences so far.
func (t *Throttle) Allow(key string) (bool, int) {
	n := t.seen[key]
	t.seen[key] = n + 1
	return n%t.Every == 0, n + 1
}

// Reset forgets key, so the next occurrence is logged again.
func (t *Throttle) Reset(key string) {
	delete(t.seen, key)
}
