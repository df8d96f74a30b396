package mocks

import (
	"sync"

	"github.com/kevin07696/mpesa-service/internal/adapters/ports"
)

// MockLogger records log calls per level for assertions
type MockLogger struct {
	mu         sync.Mutex
	InfoCalls  []LogCall
	ErrorCalls []LogCall
	WarnCalls  []LogCall
	DebugCalls []LogCall
}

// LogCall represents a captured log call
type LogCall struct {
	Message string
	Fields  []ports.Field
}

// NewMockLogger creates a new mock logger
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

// Info logs an info message
func (m *MockLogger) Info(msg string, fields ...ports.Field) {
	m.record(&m.InfoCalls, msg, fields)
}

// Error logs an error message
func (m *MockLogger) Error(msg string, fields ...ports.Field) {
	m.record(&m.ErrorCalls, msg, fields)
}

// Warn logs a warning message
func (m *MockLogger) Warn(msg string, fields ...ports.Field) {
	m.record(&m.WarnCalls, msg, fields)
}

// Debug logs a debug message
func (m *MockLogger) Debug(msg string, fields ...ports.Field) {
	m.record(&m.DebugCalls, msg, fields)
}

func (m *MockLogger) record(calls *[]LogCall, msg string, fields []ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*calls = append(*calls, LogCall{Message: msg, Fields: fields})
}

// ErrorMessages returns the messages of all captured Error calls
func (m *MockLogger) ErrorMessages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.ErrorCalls))
	for i, c := range m.ErrorCalls {
		out[i] = c.Message
	}
	return out
}

// Reset clears all captured calls
func (m *MockLogger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InfoCalls = nil
	m.ErrorCalls = nil
	m.WarnCalls = nil
	m.DebugCalls = nil
}
