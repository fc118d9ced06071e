package output

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/yairfalse/cfgwatch/internal/poller"
)

// CycleRenderer prints cycle summaries to the console
type CycleRenderer struct {
	w        io.Writer
	noColor  bool
	showDiff bool
}

// NewCycleRenderer creates a renderer writing to w
func NewCycleRenderer(w io.Writer, noColor, showDiff bool) *CycleRenderer {
	return &CycleRenderer{w: w, noColor: noColor, showDiff: showDiff}
}

// Render prints one cycle. Changed cycles also print the diff, the
// interface and neighbor tables and the push outcome.
func (r *CycleRenderer) Render(res *poller.CycleResult) {
	ts := res.StartedAt.Format("15:04:05")

	switch res.Decision {
	case poller.DecisionUnchanged:
		fmt.Fprintf(r.w, "[%s] %s %s\n", ts, res.Device, r.colorize("unchanged", color.FgWhite))
		return
	case poller.DecisionFailed:
		fmt.Fprintf(r.w, "[%s] %s %s during %s: %v\n", ts, res.Device,
			r.colorize("failed", color.FgRed, color.Bold), res.State, res.Err)
		return
	}

	fmt.Fprintf(r.w, "[%s] %s %s -> %s", ts, res.Device,
		r.colorize("changed", color.FgYellow, color.Bold), filepath.Base(res.ArtifactPath))
	if res.Diff != nil {
		fmt.Fprintf(r.w, " (%s %s)",
			r.colorize(fmt.Sprintf("+%d", res.Diff.Summary.Added), color.FgGreen),
			r.colorize(fmt.Sprintf("-%d", res.Diff.Summary.Removed), color.FgRed))
	}
	fmt.Fprintln(r.w)

	if r.showDiff && res.Diff != nil && res.Diff.Unified != "" {
		r.RenderDiff(res.Diff.Unified)
	}

	if len(res.Interfaces) > 0 {
		fmt.Fprintf(r.w, "\n%s\n", r.colorize("==== INTERFACES ("+res.Device+") ====", color.FgCyan, color.Bold))
		WriteInterfaces(r.w, res.Interfaces)
	}
	if len(res.Neighbors) > 0 {
		fmt.Fprintf(r.w, "\n%s\n", r.colorize("==== OSPF NEIGHBORS ("+res.Device+") ====", color.FgCyan, color.Bold))
		WriteNeighbors(r.w, res.Neighbors)
	}
	if res.EvidencePath != "" {
		fmt.Fprintf(r.w, "\nEvidence saved to %s\n", res.EvidencePath)
	}
	if res.Explanation != "" {
		fmt.Fprintf(r.w, "\n%s\n%s\n", r.colorize("Change explanation:", color.Bold), res.Explanation)
	}

	if res.Push != nil {
		switch {
		case res.Push.Err != nil:
			fmt.Fprintf(r.w, "%s %v\n", r.colorize("push failed:", color.FgRed), res.Push.Err)
		case res.Push.Pushed:
			fmt.Fprintf(r.w, "pushed %s\n", shortHash(res.Push.Hash))
		case res.Push.Committed:
			fmt.Fprintf(r.w, "committed %s\n", shortHash(res.Push.Hash))
		}
	}
	for _, m := range res.Mirror {
		if m.Err != nil {
			fmt.Fprintf(r.w, "%s %s: %v\n", r.colorize("mirror failed:", color.FgRed), m.Location, m.Err)
		}
	}
}

// RenderDiff prints a unified diff with added lines green and removed lines red
func (r *CycleRenderer) RenderDiff(unified string) {
	for _, line := range strings.SplitAfter(unified, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Fprint(r.w, r.colorize(line, color.Bold))
		case strings.HasPrefix(line, "@@"):
			fmt.Fprint(r.w, r.colorize(line, color.FgCyan))
		case strings.HasPrefix(line, "+"):
			fmt.Fprint(r.w, r.colorize(line, color.FgGreen))
		case strings.HasPrefix(line, "-"):
			fmt.Fprint(r.w, r.colorize(line, color.FgRed))
		default:
			fmt.Fprint(r.w, line)
		}
	}
	if !strings.HasSuffix(unified, "\n") {
		fmt.Fprintln(r.w)
	}
}

func (r *CycleRenderer) colorize(text string, attrs ...color.Attribute) string {
	if r.noColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}
