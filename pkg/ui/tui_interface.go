package ui

import (
	"time"

	"flickrmirror/pkg/mirror"
)

// Display receives mirror progress. Both the plain progress line and the
// full-screen dashboard implement it.
type Display interface {
	mirror.Observer
	// Cooldown is installed as the pacer's cool-down hook
	Cooldown(op string, wait time.Duration)
	Done(summary *mirror.Summary, err error)
}
