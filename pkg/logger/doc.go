// Package logger provides structured logging for flickrmirror.
//
// It wraps zerolog behind a small Logger interface so that components can be
// handed a TestLogger or a no-op logger in tests.
//
// Basic Usage:
//
//	log, err := logger.New(&cfg.Logging, os.Stderr)
//	log.WithField("item_id", "52345").Info("Artifact saved")
//
// Output is a coloured console format by default; set logging.format to
// "json" for one JSON object per line. logging.file additionally appends
// JSON records to a file.
package logger
