package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"flickrmirror/pkg/logger"
)

// Pauser spaces out remote calls
type Pauser interface {
	// Courtesy waits the fixed delay taken after every remote call that returned
	Courtesy(ctx context.Context) error
	// Cooldown waits out a provider rate-limit signal raised by op
	Cooldown(ctx context.Context, op string) error
}

// Stats counts the pauses a Pacer has taken
type Stats struct {
	CourtesyPauses int
	Cooldowns      int
	Paused         time.Duration
}

// Pacer is a Pauser with fixed courtesy and cool-down durations
type Pacer struct {
	clock    clockwork.Clock
	courtesy time.Duration
	cooldown time.Duration
	logger   logger.Logger

	mu         sync.Mutex
	stats      Stats
	onCooldown func(op string, d time.Duration)
}

// NewPacer creates a Pacer. A nil clock uses the real clock.
func NewPacer(clock clockwork.Clock, courtesy, cooldown time.Duration, log logger.Logger) *Pacer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Pacer{
		clock:    clock,
		courtesy: courtesy,
		cooldown: cooldown,
		logger:   log,
	}
}

// Courtesy waits the courtesy delay
func (p *Pacer) Courtesy(ctx context.Context) error {
	if err := p.sleep(ctx, p.courtesy); err != nil {
		return err
	}
	p.record(func(s *Stats) {
		s.CourtesyPauses++
		s.Paused += p.courtesy
	})
	return nil
}

// OnCooldown registers fn to be called when a cool-down starts
func (p *Pacer) OnCooldown(fn func(op string, d time.Duration)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCooldown = fn
}

// Cooldown waits the rate-limit cool-down
func (p *Pacer) Cooldown(ctx context.Context, op string) error {
	logger.LogRateLimit(p.logger, op, p.cooldown)
	p.mu.Lock()
	notify := p.onCooldown
	p.mu.Unlock()
	if notify != nil {
		notify(op, p.cooldown)
	}
	if err := p.sleep(ctx, p.cooldown); err != nil {
		return err
	}
	p.record(func(s *Stats) {
		s.Cooldowns++
		s.Paused += p.cooldown
	})
	return nil
}

// Stats returns a snapshot of the pauses taken so far
func (p *Pacer) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Pacer) record(fn func(s *Stats)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.stats)
}

func (p *Pacer) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-p.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NoWait is a Pauser that never blocks
type NoWait struct{}

func (NoWait) Courtesy(ctx context.Context) error            { return ctx.Err() }
func (NoWait) Cooldown(ctx context.Context, op string) error { return ctx.Err() }
