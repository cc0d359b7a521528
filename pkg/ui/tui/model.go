package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"flickrmirror/pkg/mirror"
)

// ItemRow is one synced item shown in the recent list
type ItemRow struct {
	ID       string
	Format   string
	Binary   mirror.ArtifactState
	Metadata mirror.ArtifactState
	Bytes    int64
	Err      error
}

// Model is the bubbletea model of the mirror dashboard.
// It is only touched from the program goroutine.
type Model struct {
	spinner  spinner.Model
	pageBar  progress.Model
	now      func() time.Time
	userID   string
	started  time.Time
	finished bool

	// Catalog position
	currentPage int
	totalPages  int
	current     string

	// Counters
	items           int
	binariesWritten int
	metadataWritten int
	present         int
	unavailable     int
	failed          int
	bytes           int64

	recent    []ItemRow
	maxRecent int

	// Cool-down
	coolingOp    string
	coolingUntil time.Time

	width       int
	height      int
	showHelp    bool
	logMessages []LogMessage
	maxLogs     int
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a dashboard for the catalog of userID
func NewModel(userID string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accentBlue)

	bar := progress.New(progress.WithGradient(string(accentBlue), string(accentPink)))
	bar.Width = 40

	return Model{
		spinner:   s,
		pageBar:   bar,
		now:       time.Now,
		userID:    userID,
		started:   time.Now(),
		maxRecent: 8,
		maxLogs:   50,
	}
}

// Init starts the spinner
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func (m *Model) pageFetched(p mirror.PageResult) {
	m.currentPage = p.CurrentPage
	m.totalPages = p.TotalPages
}

func (m *Model) itemStarted(d mirror.ItemDescriptor) {
	m.current = d.ID
}

func (m *Model) itemFinished(r mirror.ItemResult) {
	m.items++
	m.bytes += r.BinaryBytes
	m.current = ""

	switch r.BinaryState {
	case mirror.StateWritten:
		m.binariesWritten++
	case mirror.StateUnavailable:
		m.unavailable++
	}
	if r.MetadataState == mirror.StateWritten {
		m.metadataWritten++
	}
	if r.BinaryState == mirror.StatePresent && r.MetadataState == mirror.StatePresent {
		m.present++
	}

	row := ItemRow{ID: r.ID, Format: r.Format, Binary: r.BinaryState, Metadata: r.MetadataState, Bytes: r.BinaryBytes}
	switch {
	case r.BinaryErr != nil:
		row.Err = r.BinaryErr
	case r.MetadataErr != nil:
		row.Err = r.MetadataErr
	}
	if row.Err != nil {
		m.failed++
	}

	m.recent = append(m.recent, row)
	if len(m.recent) > m.maxRecent {
		m.recent = m.recent[len(m.recent)-m.maxRecent:]
	}
}

func (m *Model) cooldown(op string, d time.Duration) {
	m.coolingOp = op
	m.coolingUntil = m.now().Add(d)
}

// cooling reports whether a cool-down is still running
func (m *Model) cooling() bool {
	return !m.coolingUntil.IsZero() && m.now().Before(m.coolingUntil)
}

// pageProgress is the fraction of catalog pages fully handled
func (m *Model) pageProgress() float64 {
	if m.totalPages <= 0 {
		return 0
	}
	p := float64(m.currentPage) / float64(m.totalPages)
	if p > 1 {
		p = 1
	}
	return p
}

func (m *Model) addLog(level, message string) {
	color := dimWhite
	switch level {
	case "ERROR":
		color = errorRed
	case "WARN":
		color = accentOrange
	case "SUCCESS":
		color = accentGreen
	case "INFO":
		color = accentBlue
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    m.now(),
		Level:   level,
		Message: message,
		Color:   color,
	})
	if len(m.logMessages) > m.maxLogs {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogs:]
	}
}

// FormatBytes formats bytes to human readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
