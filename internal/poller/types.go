package poller

import (
	"time"

	"github.com/yairfalse/cfgwatch/internal/differ"
	"github.com/yairfalse/cfgwatch/internal/evidence"
	"github.com/yairfalse/cfgwatch/internal/mirror"
	"github.com/yairfalse/cfgwatch/internal/push"
)

// State is a step of one polling cycle
type State string

const (
	StateIdle        State = "idle"
	StateConnecting  State = "connecting"
	StateFetching    State = "fetching"
	StateNormalizing State = "normalizing"
	StateComparing   State = "comparing"
	StateCommitting  State = "committing"
	StateDiscarding  State = "discarding"
)

// Decision is the outcome of a cycle
type Decision string

const (
	DecisionChanged   Decision = "changed"
	DecisionUnchanged Decision = "unchanged"
	DecisionFailed    Decision = "failed"
)

// CycleResult describes one finished cycle. State is the last state the
// cycle reached before returning to idle.
type CycleResult struct {
	ID        string
	Device    string
	State     State
	Decision  Decision
	StartedAt time.Time
	Duration  time.Duration

	ArtifactPath string
	EvidencePath string
	Diff         *differ.ChangeReport

	Interfaces  []evidence.Interface
	Neighbors   []evidence.Neighbor
	Explanation string

	Push   *push.Result
	Mirror []mirror.Result

	Err error
}

// Changed reports whether the cycle committed a new artifact
func (r *CycleResult) Changed() bool {
	return r.Decision == DecisionChanged
}

// Status is a snapshot of the loop's counters
type Status struct {
	Device       string    `json:"device" yaml:"device"`
	State        State     `json:"state" yaml:"state"`
	Interval     string    `json:"interval" yaml:"interval"`
	Cycles       int       `json:"cycles" yaml:"cycles"`
	Changes      int       `json:"changes" yaml:"changes"`
	Failures     int       `json:"failures" yaml:"failures"`
	LastCycle    time.Time `json:"last_cycle,omitempty" yaml:"last_cycle,omitempty"`
	LastDecision Decision  `json:"last_decision,omitempty" yaml:"last_decision,omitempty"`
}
