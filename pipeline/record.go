package pipeline

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level is the severity of a Record.
type Level string

const (
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// NilText is how an absent value renders in a Record.
const NilText = "<nil>"

// Record is one log emission made by a plugin during an execution.
type Record struct {
	Level   Level
	Message string
	Time    time.Time
}

// Render converts any payload into the text stored in a Record. It never
// panics: nil values render as NilText, errors and Stringers use their own
// text, and anything else uses its default formatting.
func Render(v any) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fmt.Sprintf("<unrenderable %T>", v)
		}
	}()

	if v == nil {
		return NilText
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		if rv.IsNil() {
			return NilText
		}
	}

	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprintf("%v", v)
}

// Log collects the Records of one execution. Every message is rendered to
// text when the Record is created. It is safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	records []Record
	mirror  *zap.SugaredLogger
}

// NewLog creates a Log that also mirrors records to logger at debug level.
// A nil logger disables mirroring.
func NewLog(logger *zap.SugaredLogger) *Log {
	return &Log{mirror: logger}
}

func (l *Log) emit(level Level, v any) {
	record := Record{Level: level, Message: Render(v), Time: time.Now().UTC()}

	l.mu.Lock()
	l.records = append(l.records, record)
	l.mu.Unlock()

	if l.mirror != nil {
		l.mirror.Debugw(record.Message, "level", string(level))
	}
}

// Debug records a debug message
func (l *Log) Debug(v any) { l.emit(LevelDebug, v) }

// Info records an info message
func (l *Log) Info(v any) { l.emit(LevelInfo, v) }

// Warning records a warning message
func (l *Log) Warning(v any) { l.emit(LevelWarning, v) }

// Error records an error message
func (l *Log) Error(v any) { l.emit(LevelError, v) }

// Critical records a critical message
func (l *Log) Critical(v any) { l.emit(LevelCritical, v) }

// Debugf records a formatted debug message
func (l *Log) Debugf(format string, args ...any) { l.emit(LevelDebug, fmt.Sprintf(format, args...)) }

// Infof records a formatted info message
func (l *Log) Infof(format string, args ...any) { l.emit(LevelInfo, fmt.Sprintf(format, args...)) }

// Warningf records a formatted warning message
func (l *Log) Warningf(format string, args ...any) {
	l.emit(LevelWarning, fmt.Sprintf(format, args...))
}

// Errorf records a formatted error message
func (l *Log) Errorf(format string, args ...any) { l.emit(LevelError, fmt.Sprintf(format, args...)) }

// Records returns a copy of the Records so far.
func (l *Log) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}
