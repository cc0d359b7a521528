package tui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flickrmirror/pkg/mirror"
)

func newTestModel() *Model {
	m := NewModel("12345678@N00")
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	m.started = now
	return &m
}

func TestModelCountsItems(t *testing.T) {
	m := newTestModel()

	m.Update(PageMsg{Page: mirror.PageResult{CurrentPage: 1, TotalPages: 4}})
	assert.InDelta(t, 0.25, m.pageProgress(), 0.001)

	m.Update(ItemStartMsg{Item: mirror.ItemDescriptor{ID: "101"}})
	assert.Equal(t, "101", m.current)

	m.Update(ItemDoneMsg{Result: mirror.ItemResult{ID: "101", Format: "png", BinaryState: mirror.StateWritten, MetadataState: mirror.StateWritten, BinaryBytes: 4096}})
	m.Update(ItemDoneMsg{Result: mirror.ItemResult{ID: "102", Format: "jpg", BinaryState: mirror.StatePresent, MetadataState: mirror.StatePresent}})
	m.Update(ItemDoneMsg{Result: mirror.ItemResult{ID: "103", Format: "jpg", BinaryState: mirror.StateUnavailable, MetadataState: mirror.StateWritten}})
	m.Update(ItemDoneMsg{Result: mirror.ItemResult{ID: "104", Format: "jpg", BinaryState: mirror.StateSkipped, MetadataState: mirror.StateFailed, BinaryErr: errors.New("status 500")}})

	assert.Empty(t, m.current)
	assert.Equal(t, 4, m.items)
	assert.Equal(t, 1, m.binariesWritten)
	assert.Equal(t, 2, m.metadataWritten)
	assert.Equal(t, 1, m.present)
	assert.Equal(t, 1, m.unavailable)
	assert.Equal(t, 1, m.failed)
	assert.Equal(t, int64(4096), m.bytes)
	// failures come from the log stream, the row only carries the badge
	assert.Empty(t, m.logMessages)
	require.Len(t, m.recent, 4)
	assert.EqualError(t, m.recent[3].Err, "status 500")
}

func TestModelKeepsRecentWindow(t *testing.T) {
	m := newTestModel()
	for i := 0; i < 20; i++ {
		m.Update(ItemDoneMsg{Result: mirror.ItemResult{ID: "x", BinaryState: mirror.StatePresent, MetadataState: mirror.StatePresent}})
	}
	assert.Len(t, m.recent, m.maxRecent)

	for i := 0; i < 80; i++ {
		m.Update(LogMsg{Level: "INFO", Message: "tick"})
	}
	assert.Len(t, m.logMessages, m.maxLogs)

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Empty(t, m.logMessages)
}

func TestModelCooldown(t *testing.T) {
	m := newTestModel()
	now := m.now()

	m.Update(CooldownMsg{Op: "flickr.photos.search", Duration: 5 * time.Minute})
	assert.True(t, m.cooling())

	m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	assert.Contains(t, m.View(), "cooling down")

	m.now = func() time.Time { return now.Add(6 * time.Minute) }
	assert.False(t, m.cooling())
	assert.NotContains(t, m.View(), "cooling down")
}

func TestModelView(t *testing.T) {
	m := newTestModel()
	assert.Equal(t, "Initializing...", m.View())

	m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	m.Update(PageMsg{Page: mirror.PageResult{CurrentPage: 2, TotalPages: 3}})
	m.Update(ItemDoneMsg{Result: mirror.ItemResult{ID: "555", Format: "gif", BinaryState: mirror.StateWritten, MetadataState: mirror.StateWritten, BinaryBytes: 2048}})

	view := m.View()
	assert.Contains(t, view, "12345678@N00")
	assert.Contains(t, view, "2 / 3")
	assert.Contains(t, view, "555.gif")
	assert.Contains(t, view, "2.0 KB")

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	assert.True(t, m.showHelp)
	assert.Contains(t, m.View(), "Toggle this help")

	m.Update(DoneMsg{Err: errors.New("enumeration stalled")})
	assert.True(t, m.finished)
	assert.Contains(t, m.View(), "done")
	assert.Equal(t, "ERROR", m.logMessages[len(m.logMessages)-1].Level)
}

func TestModelQuitKey(t *testing.T) {
	m := newTestModel()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "100 B", FormatBytes(100))
	assert.Equal(t, "1.0 MB", FormatBytes(1<<20))
	assert.Equal(t, "01:05", formatDuration(65*time.Second))
	assert.Equal(t, "01:00:00", formatDuration(time.Hour))
	assert.Equal(t, "00:00", formatDuration(-time.Second))
}

func TestTUIDeliversObserverEvents(t *testing.T) {
	var out bytes.Buffer
	ui := newHeadlessTUI("me", nil, &out)

	done := make(chan error, 1)
	go func() { done <- ui.Start() }()

	ui.PageFetched(mirror.PageResult{CurrentPage: 1, TotalPages: 1})
	ui.ItemStarted(mirror.ItemDescriptor{ID: "9"})
	ui.ItemFinished(mirror.ItemResult{ID: "9", BinaryState: mirror.StateWritten, MetadataState: mirror.StateWritten})
	ui.Cooldown("download", time.Second)
	ui.Log("INFO", "hello %s", "there")
	ui.Done(&mirror.Summary{Items: 1, Completed: true}, nil)
	ui.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("program did not stop")
	}

	assert.Equal(t, 1, ui.model.items)
	assert.Equal(t, 1, ui.model.binariesWritten)
	assert.True(t, ui.model.finished)
}
