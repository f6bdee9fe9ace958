package monitor

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel represents severity.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[string]LogLevel{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return "INFO"
}

var currentLevel int32 = int32(LevelInfo)

var baseLogger = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds)

// ParseLogLevel maps a level name to a LogLevel.
func ParseLogLevel(s string) (LogLevel, bool) {
	l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	return l, ok
}

// SetLogLevel sets the global level. Unknown names are ignored and reported as false.
func SetLogLevel(s string) bool {
	l, ok := ParseLogLevel(s)
	if !ok {
		return false
	}
	atomic.StoreInt32(&currentLevel, int32(l))
	return true
}

// GetLogLevel returns the current global level.
func GetLogLevel() LogLevel { return LogLevel(atomic.LoadInt32(&currentLevel)) }

// SetLogOutput redirects every logger, e.g. away from the terminal while dashtop owns it.
func SetLogOutput(w io.Writer) { baseLogger.SetOutput(w) }

// Logger prefixes lines with a component name: "[WARN] poller: fetch failed".
type Logger struct {
	component string
}

// NewLogger returns a logger for one component.
func NewLogger(component string) Logger { return Logger{component: component} }

func (lg Logger) logf(l LogLevel, format string, args ...interface{}) {
	if GetLogLevel() > l {
		return
	}
	// Without args the message is printed verbatim so literal % signs survive.
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	if lg.component == "" {
		baseLogger.Printf("[%s] %s", l, msg)
		return
	}
	baseLogger.Printf("[%s] %s: %s", l, lg.component, msg)
}

func (lg Logger) Debugf(format string, a ...interface{}) { lg.logf(LevelDebug, format, a...) }
func (lg Logger) Infof(format string, a ...interface{})  { lg.logf(LevelInfo, format, a...) }
func (lg Logger) Warnf(format string, a ...interface{})  { lg.logf(LevelWarn, format, a...) }
func (lg Logger) Errorf(format string, a ...interface{}) { lg.logf(LevelError, format, a...) }
