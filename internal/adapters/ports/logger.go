package ports

import (
	"fmt"
	"strings"
)

// Logger is a minimal logging interface for adapters.
// A nil Logger held by an adapter is treated as NopLogger.
type Logger interface {
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field
func String(key, val string) Field {
	return Field{Key: key, Value: val}
}

// Int creates an integer field
func Int(key string, val int) Field {
	return Field{Key: key, Value: val}
}

// Err creates an error field
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// OrNop returns l, or NopLogger when l is nil
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Debug(string, ...Field) {}

// LoggerFunc adapts a plain message callback to Logger.
// Every level is forwarded; fields are appended as key=value pairs.
type LoggerFunc func(msg string)

func (f LoggerFunc) Info(msg string, fields ...Field)  { f.log("INFO", msg, fields) }
func (f LoggerFunc) Error(msg string, fields ...Field) { f.log("ERROR", msg, fields) }
func (f LoggerFunc) Warn(msg string, fields ...Field)  { f.log("WARN", msg, fields) }
func (f LoggerFunc) Debug(msg string, fields ...Field) { f.log("DEBUG", msg, fields) }

func (f LoggerFunc) log(level, msg string, fields []Field) {
	if f == nil {
		return
	}
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(" ")
	b.WriteString(msg)
	for _, field := range fields {
		fmt.Fprintf(&b, " %s=%v", field.Key, field.Value)
	}
	f(b.String())
}
