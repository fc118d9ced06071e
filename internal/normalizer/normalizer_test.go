package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cwerrors "github.com/yairfalse/cfgwatch/internal/errors"
)

const sampleConfig = `Building configuration...

Current configuration : 1534 bytes
!
! Last configuration change at 10:15:02 UTC Mon Mar 4 2024 by admin
! NVRAM config last updated at 10:15:05 UTC Mon Mar 4 2024 by admin
!
version 15.2   
service timestamps debug datetime msec
service timestamps log datetime msec
!
hostname R1
!
boot-start-marker
boot-end-marker
!


interface Loopback0
 ip address 1.1.1.1 255.255.255.255
!
router ospf 1
 network 10.0.12.0 0.0.0.255 area 0
!
ntp clock-period 17179869
end
`

func TestNormalize_DropsVolatileLines(t *testing.T) {
	n := NewDefault()
	got := n.Normalize(sampleConfig)

	assert.NotContains(t, got, "Building configuration")
	assert.NotContains(t, got, "Current configuration")
	assert.NotContains(t, got, "Last configuration change")
	assert.NotContains(t, got, "NVRAM config")
	assert.NotContains(t, got, "service timestamps")
	assert.NotContains(t, got, "boot-start-marker")
	assert.NotContains(t, got, "ntp clock-period")
	assert.NotContains(t, got, "\nend\n")

	assert.Contains(t, got, "hostname R1\n")
	assert.Contains(t, got, "version 15.2\n")
	assert.Contains(t, got, " network 10.0.12.0 0.0.0.255 area 0\n")
}

func TestNormalize_Whitespace(t *testing.T) {
	n := NewDefault()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "\n"},
		{"only newline", "\n", "\n"},
		{"trailing spaces", "hostname R1   \t\n", "hostname R1\n"},
		{"no trailing newline", "hostname R1", "hostname R1\n"},
		{"many trailing newlines", "hostname R1\n\n\n\n", "hostname R1\n"},
		{"collapse blanks", "a\n\n\n\nb\n", "a\n\nb\n"},
		{"crlf", "a\r\nb\r\n", "a\nb\n"},
		{"volatile between blanks", "a\n\nend\n\nb\n", "a\n\nb\n"},
		{"whitespace-only line is blank", "a\n   \n\t\nb", "a\n\nb\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.in))
		})
	}
}

func TestNormalize_UnicodeTrailingSpace(t *testing.T) {
	n := NewDefault()

	plain := n.Normalize("hostname R1\n!\nend\n")
	paged := n.Normalize("hostname R1\u00a0\n!\u3000\t\nend\u2003\n")
	assert.Equal(t, plain, paged)
	assert.Equal(t, "hostname R1\n!\n", paged)
}

func TestNormalize_Idempotent(t *testing.T) {
	n := NewDefault()

	inputs := []string{
		"",
		"\n",
		"\n\nhostname R1\n",
		sampleConfig,
		"a\r\n\r\n\r\nb   \r\n",
		"  leading\n\n\n  \nend\ntrailing\t\n\n",
		"!\n!\n!\n",
	}

	for _, in := range inputs {
		once := n.Normalize(in)
		assert.Equal(t, once, n.Normalize(once), "input %q", in)
	}
}

func TestNormalize_AllVolatileYieldsSingleNewline(t *testing.T) {
	n := NewDefault()
	in := "Building configuration...\n" +
		"Current configuration : 99 bytes\n" +
		"! Last configuration change at 10:15:02 UTC\n" +
		"ntp clock-period 17179869\n" +
		"boot-start-marker\n" +
		"boot-end-marker\n" +
		"service timestamps log datetime msec\n" +
		"time-range WORKHOURS\n" +
		"spanning-tree vlan 1 priority 24576\n" +
		"end\n"

	assert.Equal(t, "\n", n.Normalize(in))
}

func TestNew_CustomPatterns(t *testing.T) {
	n, err := New([]string{`^! generated`})
	require.NoError(t, err)

	got := n.Normalize("! generated 2024\nhostname R1\nend\n")
	assert.Equal(t, "hostname R1\nend\n", got)
	assert.True(t, n.IsVolatile("! generated now"))
	assert.False(t, n.IsVolatile("hostname R1"))
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New([]string{`^ok`, `(`})
	require.Error(t, err)
	assert.True(t, cwerrors.Is(err, cwerrors.ErrInvalidConfiguration))
	assert.Contains(t, err.Error(), "normalizer.volatile_patterns[1]")
}
