package differ

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultContext is the number of unchanged lines shown around each hunk.
const DefaultContext = 3

// LineDiffer compares texts as sequences of lines using a unified diff.
type LineDiffer struct {
	context int
}

// NewLineDiffer creates a differ with DefaultContext lines of context
func NewLineDiffer() *LineDiffer {
	return &LineDiffer{context: DefaultContext}
}

// WithContext returns a copy using n context lines
func (d *LineDiffer) WithContext(n int) *LineDiffer {
	if n < 0 {
		n = 0
	}
	return &LineDiffer{context: n}
}

// HasChanged returns true when there is no baseline, otherwise true iff the
// unified diff between baseline and candidate is non-empty.
func (d *LineDiffer) HasChanged(candidate string, baseline *string) bool {
	if baseline == nil {
		return true
	}
	report, err := d.Compare(*baseline, candidate, "baseline", "candidate")
	if err != nil {
		// an undecidable comparison must not suppress a backup
		return true
	}
	return report.Changed()
}

// Compare builds the unified diff from -> to. Line endings are kept, so a
// missing final newline counts as a difference.
func (d *LineDiffer) Compare(from, to, fromName, toName string) (*ChangeReport, error) {
	a := difflib.SplitLines(from)
	b := difflib.SplitLines(to)

	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: fromName,
		ToFile:   toName,
		Context:  d.context,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute diff: %w", err)
	}

	report := &ChangeReport{
		FromName: fromName,
		ToName:   toName,
		Unified:  unified,
	}
	if unified == "" {
		return report, nil
	}

	for _, op := range difflib.NewMatcher(a, b).GetOpCodes() {
		switch op.Tag {
		case 'r':
			report.Summary.Removed += op.I2 - op.I1
			report.Summary.Added += op.J2 - op.J1
		case 'd':
			report.Summary.Removed += op.I2 - op.I1
		case 'i':
			report.Summary.Added += op.J2 - op.J1
		}
	}
	report.Summary.Total = report.Summary.Added + report.Summary.Removed

	return report, nil
}

// FormatChangeReport formats a change report as a short human readable block
func FormatChangeReport(report *ChangeReport) string {
	if report == nil || !report.Changed() {
		return "No changes detected.\n"
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("%s -> %s: +%d -%d lines\n",
		report.FromName, report.ToName, report.Summary.Added, report.Summary.Removed))
	output.WriteString(report.Unified)
	if !strings.HasSuffix(report.Unified, "\n") {
		output.WriteString("\n")
	}
	return output.String()
}
