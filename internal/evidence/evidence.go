// Package evidence captures operational show-command output from a device
// and renders it as a plain-text evidence bundle.
package evidence

import (
	"context"
	"strings"
	"time"

	"github.com/yairfalse/cfgwatch/internal/session"
)

// HeaderTimeLayout is the timestamp layout of the bundle header.
const HeaderTimeLayout = "2006-01-02 15:04:05"

// DefaultCommands are run, in order, before the ping targets.
var DefaultCommands = []string{
	"show ip interface brief",
	"show ip route",
	"show ip ospf neighbor",
	"show ip ospf",
}

// Section is the captured output of one command
type Section struct {
	Command string
	Output  string
	Err     error
	IsPing  bool
}

// Text returns the output, or the inlined error when the command failed.
func (s Section) Text() string {
	if s.Err == nil {
		return s.Output
	}
	if s.IsPing {
		return "ERROR executing ping: " + s.Err.Error()
	}
	return "ERROR executing command: " + s.Err.Error()
}

// Bundle is the evidence captured in one cycle
type Bundle struct {
	GeneratedAt time.Time
	Sections    []Section
	Appendix    []Section
}

// Collector runs the evidence command set on an open session.
type Collector struct {
	Commands    []string
	PingTargets []string
}

// NewCollector creates a collector. A nil command list selects DefaultCommands.
func NewCollector(commands, pingTargets []string) *Collector {
	if commands == nil {
		commands = DefaultCommands
	}
	return &Collector{Commands: commands, PingTargets: pingTargets}
}

// Collect runs every command and ping. Individual failures are recorded
// in their section and never abort the collection.
func (c *Collector) Collect(ctx context.Context, sess session.Session, now time.Time) *Bundle {
	b := &Bundle{GeneratedAt: now}

	for _, cmd := range c.Commands {
		out, err := sess.Execute(ctx, cmd)
		b.Sections = append(b.Sections, Section{Command: cmd, Output: out, Err: err})
	}
	for _, target := range c.PingTargets {
		cmd := "ping " + target
		out, err := sess.Execute(ctx, cmd)
		b.Sections = append(b.Sections, Section{Command: cmd, Output: out, Err: err, IsPing: true})
	}
	return b
}

// Output returns the successful output of command, if it was captured.
func (b *Bundle) Output(command string) (string, bool) {
	for _, s := range b.Sections {
		if s.Command == command && s.Err == nil {
			return s.Output, true
		}
	}
	return "", false
}

// Append adds a trailing section that is not a device command, such as
// the configuration diff or its explanation.
func (b *Bundle) Append(title, text string) {
	b.Appendix = append(b.Appendix, Section{Command: title, Output: text})
}

// Render formats the bundle as text.
func (b *Bundle) Render() string {
	var sb strings.Builder
	sb.WriteString("IPAM evidence generated: ")
	sb.WriteString(b.GeneratedAt.Format(HeaderTimeLayout))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n\n")

	for _, s := range b.Sections {
		writeSection(&sb, s)
	}
	for _, s := range b.Appendix {
		writeSection(&sb, s)
	}
	return sb.String()
}

func writeSection(sb *strings.Builder, s Section) {
	sb.WriteString(">>> ")
	sb.WriteString(s.Command)
	sb.WriteString("\n")
	sb.WriteString(s.Text())
	sb.WriteString("\n\n")
}
