package logger

import (
	"fmt"
	"time"
)

// LogArtifact logs the outcome of persisting one file for a catalog item.
// status is one of present, written, skipped or failed.
func LogArtifact(l Logger, itemID, artifact, status string, err error) {
	log := l.WithFields(map[string]interface{}{
		"item_id":  itemID,
		"artifact": artifact,
		"status":   status,
	})

	switch {
	case err != nil:
		log.WithError(err).Warn("Artifact not saved")
	case status == "present":
		log.Debug("Artifact already on disk")
	default:
		log.Info("Artifact saved")
	}
}

// LogRateLimit logs a provider rate-limit signal and the pause taken in response
func LogRateLimit(l Logger, op string, cooldown time.Duration) {
	l.WithFields(map[string]interface{}{
		"op":       op,
		"cooldown": cooldown,
		"action":   "rate_limited",
	}).Warn("Rate limit reached, cooling down")
}

// LogPage logs catalog enumeration progress
func LogPage(l Logger, page, totalPages, items int) {
	percentage := 0.0
	if totalPages > 0 {
		percentage = float64(page) / float64(totalPages) * 100
	}

	l.WithFields(map[string]interface{}{
		"page":       page,
		"pages":      totalPages,
		"items":      items,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Info("Catalog page fetched")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
