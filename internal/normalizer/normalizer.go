// Package normalizer turns raw device configuration text into a canonical form
// suitable for line-based comparison.
package normalizer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	cwerrors "github.com/yairfalse/cfgwatch/internal/errors"
)

// DefaultVolatilePatterns match lines that change between captures without
// representing a configuration change.
var DefaultVolatilePatterns = []string{
	`^!\s*Last configuration change`,
	`^!\s*NVRAM config last updated`,
	`^!\s*No configuration change since last restart`,
	`^Building configuration`,
	`^Current configuration\s*:`,
	`^\s*ntp clock-period`,
	`^\s*boot-start-marker`,
	`^\s*boot-end-marker`,
	`^\s*time-range\b`,
	`^\s*service timestamps\b`,
	`^\s*spanning-tree .*priority\b`,
	`^end\s*$`,
}

// Normalizer drops volatile lines and canonicalizes whitespace.
type Normalizer struct {
	patterns []*regexp.Regexp
}

// New compiles patterns in order. An invalid expression is a configuration error.
func New(patterns []string) (*Normalizer, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, cwerrors.ConfigError(fmt.Sprintf("normalizer.volatile_patterns[%d]", i), p, err)
		}
		compiled = append(compiled, re)
	}
	return &Normalizer{patterns: compiled}, nil
}

// NewDefault returns a Normalizer using DefaultVolatilePatterns.
func NewDefault() *Normalizer {
	n, err := New(DefaultVolatilePatterns)
	if err != nil {
		panic(err)
	}
	return n
}

// IsVolatile reports whether line matches any volatile pattern.
func (n *Normalizer) IsVolatile(line string) bool {
	for _, re := range n.patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Normalize returns raw with volatile lines removed, trailing whitespace
// stripped, blank-line runs collapsed and exactly one trailing newline.
// Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(raw, "\n")

	out := make([]string, 0, len(lines))
	prevBlank := false
	for _, line := range lines {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if n.IsVolatile(line) {
			continue
		}

		blank := line == ""
		if blank && prevBlank {
			continue
		}
		out = append(out, line)
		prevBlank = blank
	}

	// trailing blanks are dropped; the single final newline is added back below
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}

	if len(out) == 0 {
		return "\n"
	}
	return strings.Join(out, "\n") + "\n"
}
