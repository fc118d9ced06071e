package evidence

import (
	"strings"
	"unicode"
)

// Interface is one row of "show ip interface brief"
type Interface struct {
	Name   string
	IP     string
	Status string
}

// Neighbor is one row of "show ip ospf neighbor"
type Neighbor struct {
	ID        string
	State     string
	Address   string
	Interface string
}

// ParseInterfaces parses "show ip interface brief" output. The header row
// is skipped and "unassigned" addresses are reported as empty.
func ParseInterfaces(raw string) []Interface {
	var rows []Interface
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "Interface") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		row := Interface{Name: parts[0], IP: parts[1]}
		if strings.EqualFold(row.IP, "unassigned") {
			row.IP = ""
		}
		// Status and Protocol columns
		if len(parts) >= 6 {
			row.Status = strings.Join(parts[4:6], " ")
		}
		rows = append(rows, row)
	}
	return rows
}

// ParseNeighbors parses "show ip ospf neighbor" output. Only lines that
// start with a digit and carry at least six columns are neighbor rows.
func ParseNeighbors(raw string) []Neighbor {
	var rows []Neighbor
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" || !unicode.IsDigit(rune(line[0])) {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 6 {
			continue
		}
		rows = append(rows, Neighbor{
			ID:        parts[0],
			State:     parts[2],
			Address:   parts[4],
			Interface: parts[5],
		})
	}
	return rows
}
