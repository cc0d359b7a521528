package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"flickrmirror/pkg/mirror"
)

// PageMsg is sent when a catalog page has been fetched
type PageMsg struct{ Page mirror.PageResult }

// ItemStartMsg is sent before an item is synced
type ItemStartMsg struct{ Item mirror.ItemDescriptor }

// ItemDoneMsg is sent after an item is synced
type ItemDoneMsg struct{ Result mirror.ItemResult }

// CooldownMsg is sent when a rate-limit cool-down starts
type CooldownMsg struct {
	Op       string
	Duration time.Duration
}

// DoneMsg is sent when the run ends
type DoneMsg struct {
	Summary *mirror.Summary
	Err     error
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to refresh countdowns
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.pageBar.Width = clamp(msg.Width/2-12, 10, 60)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case PageMsg:
		m.pageFetched(msg.Page)
		return m, nil

	case ItemStartMsg:
		m.itemStarted(msg.Item)
		return m, nil

	case ItemDoneMsg:
		m.itemFinished(msg.Result)
		return m, nil

	case CooldownMsg:
		m.cooldown(msg.Op, msg.Duration)
		return m, nil

	case DoneMsg:
		m.finished = true
		m.current = ""
		switch {
		case msg.Err != nil:
			m.addLog("ERROR", "Mirror stopped: "+msg.Err.Error())
		default:
			m.addLog("SUCCESS", "Mirror complete")
		}
		return m, nil

	case LogMsg:
		m.addLog(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
	case "ctrl+l":
		m.logMessages = nil
	}
	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
