package ui

import (
	"fmt"
	"io"
	"strings"

	"flickrmirror/pkg/storage"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// CompletionBar renders the share of complete items as a bar
func CompletionBar(r *storage.Report, width int) string {
	total := len(r.Items)
	filled := 0
	if total > 0 {
		filled = r.Complete * width / total
	}
	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat(ProgressBar, filled),
		strings.Repeat(ProgressEmpty, width-filled),
		r.Complete, total)
}

// PrintReport prints the state of a mirror directory.
// With verbose set every incomplete item is listed.
func PrintReport(w io.Writer, dir string, r *storage.Report, verbose bool) {
	fmt.Fprintf(w, "%s %s\n", Cyan("Mirror:"), dir)
	fmt.Fprintf(w, "%s %s\n", Green("[COMPLETE]"), CompletionBar(r, 20))

	if r.BinaryOnly > 0 {
		fmt.Fprintf(w, "%s %d items without sidecar\n", Yellow("[PARTIAL]"), r.BinaryOnly)
	}
	if r.MetadataOnly > 0 {
		fmt.Fprintf(w, "%s %d items without original\n", Yellow("[PARTIAL]"), r.MetadataOnly)
	}
	if len(r.Stray) > 0 {
		fmt.Fprintf(w, "%s %d interrupted writes (status --clean removes them)\n", Magenta("[STRAY]"), len(r.Stray))
	}

	if !verbose {
		return
	}
	for _, it := range r.Items {
		if it.HasBinary && it.HasMetadata {
			continue
		}
		missing := "sidecar"
		if !it.HasBinary {
			missing = "original"
		}
		fmt.Fprintf(w, "  %s %s (no %s)\n", Dim("•"), it.ID, missing)
	}
	for _, name := range r.Stray {
		fmt.Fprintf(w, "  %s %s\n", Dim("~"), name)
	}
}
