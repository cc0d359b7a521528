package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"flickrmirror/pkg/mirror"
)

// ProgressDisplay provides a clean, minimal progress line for a mirror run
type ProgressDisplay struct {
	mu          sync.Mutex
	out         io.Writer
	now         func() time.Time
	userID      string
	currentPage int
	totalPages  int
	current     string
	startTime   time.Time

	items   int
	written int
	bytes   int64
	errors  int
	isDebug bool
}

var _ Display = (*ProgressDisplay)(nil)

// NewProgressDisplay creates a new progress display writing to out
func NewProgressDisplay(out io.Writer, userID string, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       out,
		now:       time.Now,
		userID:    userID,
		startTime: time.Now(),
		isDebug:   debug,
	}
}

// PageFetched records the catalog position
func (p *ProgressDisplay) PageFetched(page mirror.PageResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.currentPage = page.CurrentPage
	p.totalPages = page.TotalPages
	if p.isDebug {
		fmt.Fprintf(p.out, "\n%s Page %d/%d: %d items\n", Magenta("→"), page.CurrentPage, page.TotalPages, len(page.Items))
	}
}

// ItemStarted marks the start of an item
func (p *ProgressDisplay) ItemStarted(d mirror.ItemDescriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = d.ID
	if !p.isDebug {
		p.printProgress()
	}
}

// ItemFinished records the outcome of an item
func (p *ProgressDisplay) ItemFinished(r mirror.ItemResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.items++
	p.current = ""
	p.bytes += r.BinaryBytes
	if r.BinaryState == mirror.StateWritten {
		p.written++
	}
	if incomplete(r) {
		p.errors++
	}

	if !p.isDebug {
		p.printProgress()
		return
	}
	p.printDebugItem(r)
}

// printProgress prints the minimal progress line
func (p *ProgressDisplay) printProgress() {
	const barWidth = 20
	filled := 0
	if p.totalPages > 0 {
		filled = p.currentPage * barWidth / p.totalPages
		if filled > barWidth {
			filled = barWidth
		}
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("\r%s [%s] page %d/%d • %d items • %d new • %s",
		Cyan(p.userID),
		bar,
		p.currentPage,
		p.totalPages,
		p.items,
		p.written,
		formatBytes(p.bytes),
	)
	if p.current != "" {
		line += fmt.Sprintf(" • %s", p.current)
	}
	if p.errors > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d incomplete", p.errors)))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

// printDebugItem prints one line per item in debug mode
func (p *ProgressDisplay) printDebugItem(r mirror.ItemResult) {
	mark := Green("✓")
	switch {
	case incomplete(r):
		mark = Red("✗")
	case !r.Complete():
		mark = Dim("-")
	}
	fmt.Fprintf(p.out, "%s %s.%s • original %s • sidecar %s", mark, r.ID, r.Format, r.BinaryState, r.MetadataState)
	if r.BinaryBytes > 0 {
		fmt.Fprintf(p.out, " • %s", formatBytes(r.BinaryBytes))
	}
	if r.BinaryErr != nil {
		fmt.Fprintf(p.out, " • %s", Dim(r.BinaryErr.Error()))
	}
	if r.MetadataErr != nil {
		fmt.Fprintf(p.out, " • %s", Dim(r.MetadataErr.Error()))
	}
	fmt.Fprintln(p.out)
}

// incomplete reports an item that left an artifact behind for a later run
func incomplete(r mirror.ItemResult) bool {
	return r.BinaryErr != nil || r.MetadataErr != nil
}

// Cooldown shows a rate limit warning
func (p *ProgressDisplay) Cooldown(op string, wait time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n%s Rate limited on %s. Waiting %s...\n",
		Yellow("⚠"),
		op,
		formatDuration(wait),
	)
}

// Done prints the run summary
func (p *ProgressDisplay) Done(s *mirror.Summary, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s == nil {
		if err != nil {
			fmt.Fprintf(p.out, "\n%s %v\n", Red("✗"), err)
		}
		return
	}

	elapsed := s.Duration
	if elapsed == 0 {
		elapsed = p.now().Sub(p.startTime)
	}

	head := fmt.Sprintf("%s Mirrored %d items of %s", Green("✓"), s.Items, p.userID)
	switch {
	case s.StalledAt > 0:
		head = fmt.Sprintf("%s Stalled at page %d of %s, run with --resume later", Yellow("⚠"), s.StalledAt, p.userID)
	case err != nil:
		head = fmt.Sprintf("%s Stopped after %d items of %s: %v", Yellow("⚠"), s.Items, p.userID, err)
	}
	fmt.Fprintf(p.out, "\n\n%s\n", head)

	fmt.Fprintf(p.out, "  %s %d new originals (%s) in %s\n", Dim("•"), s.BinariesWritten, formatBytes(s.Bytes), formatDuration(elapsed))
	fmt.Fprintf(p.out, "  %s %d new sidecars\n", Dim("•"), s.MetadataWritten)
	if s.BinariesPresent > 0 {
		fmt.Fprintf(p.out, "  %s %d originals already mirrored\n", Dim("•"), s.BinariesPresent)
	}
	if s.BinariesUnavailable > 0 {
		fmt.Fprintf(p.out, "  %s %d items have no original\n", Dim("•"), s.BinariesUnavailable)
	}
	if s.Failed > 0 {
		fmt.Fprintf(p.out, "  %s %d artifacts missing, rerun to retry\n", Dim("•"), s.Failed)
	}
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// formatBytes formats bytes in a human-readable way
func formatBytes(bytes int64) string {
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
