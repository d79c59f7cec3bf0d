package engine

import (
	"fmt"
	"io"

	"sonarherd/internal/repolist"
)

// RenderPlan writes the dry-run listing: what the run would do, in mapping
// order, without touching the server or the network.
func RenderPlan(w io.Writer, repos []repolist.Descriptor, skippedLines int) {
	fmt.Fprintf(w, "Would onboard %d repositories:\n", len(repos))

	width := 0
	for _, d := range repos {
		if len(d.Key()) > width {
			width = len(d.Key())
		}
	}
	for _, d := range repos {
		fmt.Fprintf(w, "  %-*s  %s\n", width, d.Key(), d.CloneURL)
	}

	if skippedLines > 0 {
		fmt.Fprintf(w, "(%d malformed mapping line(s) skipped)\n", skippedLines)
	}
}
