package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flickrmirror/pkg/logger"
)

func TestPacerCourtesy(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := NewPacer(clock, 500*time.Millisecond, 300*time.Second, nil)

	done := make(chan error, 1)
	go func() { done <- p.Courtesy(context.Background()) }()

	clock.BlockUntil(1)
	select {
	case <-done:
		t.Fatal("courtesy returned before the delay elapsed")
	default:
	}

	clock.Advance(500 * time.Millisecond)
	require.NoError(t, <-done)

	stats := p.Stats()
	assert.Equal(t, 1, stats.CourtesyPauses)
	assert.Equal(t, 500*time.Millisecond, stats.Paused)
}

func TestPacerCooldownLogs(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tl := logger.NewTestLogger()
	p := NewPacer(clock, 0, 300*time.Second, tl)

	done := make(chan error, 1)
	go func() { done <- p.Cooldown(context.Background(), "download") }()

	clock.BlockUntil(1)
	clock.Advance(299 * time.Second)
	select {
	case <-done:
		t.Fatal("cooldown returned early")
	default:
	}
	clock.Advance(time.Second)
	require.NoError(t, <-done)

	assert.Equal(t, 1, p.Stats().Cooldowns)
	assert.True(t, tl.HasMessage("WARN", "Rate limit reached"))
}

func TestPacerCancelled(t *testing.T) {
	p := NewPacer(clockwork.NewFakeClock(), time.Hour, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Courtesy(ctx), context.Canceled)
	assert.ErrorIs(t, p.Cooldown(ctx, "download"), context.Canceled)
	assert.Equal(t, Stats{}, p.Stats())
}

func TestPacerZeroDelay(t *testing.T) {
	p := NewPacer(nil, 0, 0, nil)
	require.NoError(t, p.Courtesy(context.Background()))
	assert.Equal(t, 1, p.Stats().CourtesyPauses)
}

func TestNoWait(t *testing.T) {
	var p Pauser = NoWait{}
	assert.NoError(t, p.Courtesy(context.Background()))
	assert.NoError(t, p.Cooldown(context.Background(), "x"))
}

func TestPacerOnCooldownHook(t *testing.T) {
	p := NewPacer(clockwork.NewFakeClock(), 0, 0, nil)

	var gotOp string
	var gotDelay time.Duration
	p.OnCooldown(func(op string, d time.Duration) {
		gotOp = op
		gotDelay = d
	})

	require.NoError(t, p.Cooldown(context.Background(), "download"))
	assert.Equal(t, "download", gotOp)
	assert.Equal(t, time.Duration(0), gotDelay)
	assert.Equal(t, 1, p.Stats().Cooldowns)
}
