package tui

import (
	"encoding/json"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

const logBuffer = 64

// LogWriter feeds JSON log records into the dashboard's log panel.
// Records below the minimum level are dropped, and so are records that
// arrive while the panel is backed up, so logging never blocks a run.
type LogWriter struct {
	min   zerolog.Level
	lines chan LogMsg
}

// NewLogWriter forwards records at or above min to send, in order
func NewLogWriter(min zerolog.Level, send func(tea.Msg)) *LogWriter {
	w := &LogWriter{min: min, lines: make(chan LogMsg, logBuffer)}
	go func() {
		for msg := range w.lines {
			send(msg)
		}
	}()
	return w
}

// Write expects one zerolog record per call
func (w *LogWriter) Write(p []byte) (int, error) {
	var record struct {
		Level   string `json:"level"`
		Message string `json:"message"`
		Error   string `json:"error"`
		ItemID  string `json:"item_id"`
	}
	if err := json.Unmarshal(p, &record); err != nil {
		return len(p), nil
	}
	level, err := zerolog.ParseLevel(record.Level)
	if err != nil || level < w.min {
		return len(p), nil
	}

	msg := record.Message
	if record.ItemID != "" {
		msg = record.ItemID + ": " + msg
	}
	if record.Error != "" {
		msg += ": " + record.Error
	}
	select {
	case w.lines <- LogMsg{Level: panelLevel(level), Message: msg}:
	default:
	}
	return len(p), nil
}

func panelLevel(level zerolog.Level) string {
	switch {
	case level >= zerolog.ErrorLevel:
		return "ERROR"
	case level == zerolog.WarnLevel:
		return "WARN"
	case level == zerolog.DebugLevel || level == zerolog.TraceLevel:
		return "DEBUG"
	default:
		return "INFO"
	}
}
