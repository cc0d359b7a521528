package logger

import (
	"strings"
	"sync"
)

// TestLogger is a Logger that captures every record for assertions in tests
type TestLogger struct {
	mu       sync.Mutex
	messages []LogMessage
}

// LogMessage represents a captured log record
type LogMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
	Error   error
}

// NewTestLogger creates a new test logger
func NewTestLogger() *TestLogger {
	return &TestLogger{messages: make([]LogMessage, 0)}
}

func (l *TestLogger) Debug(msg string) { l.log("DEBUG", msg, nil, nil) }
func (l *TestLogger) Info(msg string)  { l.log("INFO", msg, nil, nil) }
func (l *TestLogger) Warn(msg string)  { l.log("WARN", msg, nil, nil) }
func (l *TestLogger) Error(msg string) { l.log("ERROR", msg, nil, nil) }

func (l *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.log("DEBUG", msg, fields, nil)
}

func (l *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.log("INFO", msg, fields, nil)
}

func (l *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.log("WARN", msg, fields, nil)
}

func (l *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.log("ERROR", msg, fields, nil)
}

// WithField adds a field to the logger context
func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return &boundTestLogger{root: l, fields: map[string]interface{}{key: value}}
}

// WithFields adds multiple fields to the logger context
func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	return &boundTestLogger{root: l, fields: copyFields(nil, fields)}
}

// WithError adds an error to the logger context
func (l *TestLogger) WithError(err error) Logger {
	return &boundTestLogger{root: l, err: err}
}

func (l *TestLogger) log(level, msg string, fields map[string]interface{}, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, LogMessage{
		Level:   level,
		Message: msg,
		Fields:  copyFields(nil, fields),
		Error:   err,
	})
}

// GetMessages returns a copy of all captured messages
func (l *TestLogger) GetMessages() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]LogMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// GetMessagesByLevel returns the captured messages at a specific level
func (l *TestLogger) GetMessagesByLevel(level string) []LogMessage {
	var out []LogMessage
	for _, m := range l.GetMessages() {
		if m.Level == level {
			out = append(out, m)
		}
	}
	return out
}

// HasMessage reports whether a message containing text was logged at level
func (l *TestLogger) HasMessage(level, text string) bool {
	for _, m := range l.GetMessagesByLevel(level) {
		if strings.Contains(m.Message, text) {
			return true
		}
	}
	return false
}

// HasError reports whether any captured message carries an error
func (l *TestLogger) HasError() bool {
	for _, m := range l.GetMessages() {
		if m.Error != nil {
			return true
		}
	}
	return false
}

// Clear removes all captured messages
func (l *TestLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = l.messages[:0]
}

// boundTestLogger carries fields and an error into the root TestLogger
type boundTestLogger struct {
	root   *TestLogger
	fields map[string]interface{}
	err    error
}

func (b *boundTestLogger) emit(level, msg string, extra map[string]interface{}) {
	b.root.log(level, msg, copyFields(b.fields, extra), b.err)
}

func (b *boundTestLogger) Debug(msg string) { b.emit("DEBUG", msg, nil) }
func (b *boundTestLogger) Info(msg string)  { b.emit("INFO", msg, nil) }
func (b *boundTestLogger) Warn(msg string)  { b.emit("WARN", msg, nil) }
func (b *boundTestLogger) Error(msg string) { b.emit("ERROR", msg, nil) }

func (b *boundTestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	b.emit("DEBUG", msg, fields)
}

func (b *boundTestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	b.emit("INFO", msg, fields)
}

func (b *boundTestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	b.emit("WARN", msg, fields)
}

func (b *boundTestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	b.emit("ERROR", msg, fields)
}

func (b *boundTestLogger) WithField(key string, value interface{}) Logger {
	return &boundTestLogger{root: b.root, fields: copyFields(b.fields, map[string]interface{}{key: value}), err: b.err}
}

func (b *boundTestLogger) WithFields(fields map[string]interface{}) Logger {
	return &boundTestLogger{root: b.root, fields: copyFields(b.fields, fields), err: b.err}
}

func (b *boundTestLogger) WithError(err error) Logger {
	return &boundTestLogger{root: b.root, fields: b.fields, err: err}
}

func copyFields(base, extra map[string]interface{}) map[string]interface{} {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
