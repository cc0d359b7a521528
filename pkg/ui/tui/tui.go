package tui

import (
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"flickrmirror/pkg/mirror"
)

// TUI runs the dashboard and feeds it mirror events.
// It satisfies mirror.Observer.
type TUI struct {
	program *tea.Program
	model   *Model
}

var _ mirror.Observer = (*TUI)(nil)

// NewTUI creates a dashboard for the catalog of userID
func NewTUI(userID string, opts ...tea.ProgramOption) *TUI {
	model := NewModel(userID)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &TUI{
		program: tea.NewProgram(&model, opts...),
		model:   &model,
	}
}

// newHeadlessTUI runs the program without a terminal
func newHeadlessTUI(userID string, in io.Reader, out io.Writer) *TUI {
	return NewTUI(userID, tea.WithInput(in), tea.WithOutput(out), tea.WithoutSignalHandler())
}

// Start runs the program until it quits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

func (t *TUI) PageFetched(p mirror.PageResult) {
	t.Send(PageMsg{Page: p})
}

func (t *TUI) ItemStarted(d mirror.ItemDescriptor) {
	t.Send(ItemStartMsg{Item: d})
}

func (t *TUI) ItemFinished(r mirror.ItemResult) {
	t.Send(ItemDoneMsg{Result: r})
}

// Cooldown matches the pacer's cool-down hook
func (t *TUI) Cooldown(op string, d time.Duration) {
	t.Send(CooldownMsg{Op: op, Duration: d})
}

// Done reports the end of the run
func (t *TUI) Done(summary *mirror.Summary, err error) {
	t.Send(DoneMsg{Summary: summary, Err: err})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// LogWriter returns a writer that shows log records at or above min in the log panel
func (t *TUI) LogWriter(min zerolog.Level) *LogWriter {
	return NewLogWriter(min, t.Send)
}
