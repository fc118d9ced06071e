// Package poller runs the change-driven backup cycle against one device.
package poller

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yairfalse/cfgwatch/internal/differ"
	"github.com/yairfalse/cfgwatch/internal/evidence"
	"github.com/yairfalse/cfgwatch/internal/explain"
	"github.com/yairfalse/cfgwatch/internal/logger"
	"github.com/yairfalse/cfgwatch/internal/metrics"
	"github.com/yairfalse/cfgwatch/internal/mirror"
	"github.com/yairfalse/cfgwatch/internal/normalizer"
	"github.com/yairfalse/cfgwatch/internal/push"
	"github.com/yairfalse/cfgwatch/internal/session"
	"github.com/yairfalse/cfgwatch/internal/storage"
)

const (
	DefaultInterval             = 5 * time.Second
	DefaultCycleTimeout         = 2 * time.Minute
	DefaultRunningConfigCommand = "show running-config"

	// metricsTimeout bounds RecordCycle, which runs after the cycle deadline.
	metricsTimeout = 10 * time.Second
)

// Config holds configuration for the poller
type Config struct {
	DeviceID             string
	Target               session.Target
	Interval             time.Duration
	CycleTimeout         time.Duration
	RunningConfigCommand string
}

// Deps are the collaborators of a Poller. Opener and Store are required;
// Pusher, Mirror, Metrics, Explainer and Evidence are optional.
type Deps struct {
	Opener     session.Opener
	Store      storage.ArtifactStore
	Normalizer *normalizer.Normalizer
	Detector   differ.ChangeDetector
	Evidence   *evidence.Collector
	Pusher     push.Pusher
	Mirror     *mirror.Mirror
	Metrics    metrics.Recorder
	Explainer  explain.Explainer
	Scheduler  Scheduler
	Clock      func() time.Time
	Logger     logger.Logger
	OnCycle    func(*CycleResult)
}

// Poller polls one device sequentially
type Poller struct {
	config Config
	deps   Deps
	differ *differ.LineDiffer
	logger logger.Logger

	mu     sync.Mutex
	status Status
}

// New creates a poller
func New(config Config, deps Deps) (*Poller, error) {
	if deps.Opener == nil {
		return nil, fmt.Errorf("poller requires a session opener")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("poller requires an artifact store")
	}
	if config.DeviceID == "" {
		config.DeviceID = config.Target.Host
	}
	if config.DeviceID == "" {
		return nil, fmt.Errorf("poller requires a device identifier")
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.CycleTimeout <= 0 {
		config.CycleTimeout = DefaultCycleTimeout
	}
	if config.RunningConfigCommand == "" {
		config.RunningConfigCommand = DefaultRunningConfigCommand
	}

	if deps.Normalizer == nil {
		deps.Normalizer = normalizer.NewDefault()
	}
	if deps.Detector == nil {
		deps.Detector = differ.NewLineDiffer()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}
	if deps.Scheduler == nil {
		deps.Scheduler = TimerScheduler{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}

	return &Poller{
		config: config,
		deps:   deps,
		differ: differ.NewLineDiffer(),
		logger: deps.Logger.WithField("device", config.DeviceID),
		status: Status{
			Device:   config.DeviceID,
			State:    StateIdle,
			Interval: config.Interval.String(),
		},
	}, nil
}

// Run executes cycles until ctx is cancelled. A cycle in flight when ctx is
// cancelled runs to completion or to its cycle timeout; Run then returns nil.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.WithFields(map[string]interface{}{
		"interval": p.config.Interval.String(),
		"address":  p.config.Target.Address(),
	}).Info("Starting polling loop")

	for {
		if ctx.Err() != nil {
			break
		}

		res := p.RunCycle(context.WithoutCancel(ctx))
		if p.deps.OnCycle != nil {
			p.deps.OnCycle(&res)
		}

		if err := p.deps.Scheduler.Sleep(ctx, p.config.Interval); err != nil {
			break
		}
	}

	p.logger.Info("Polling loop stopped")
	return nil
}

// RunCycle executes exactly one cycle. Failures are reported in the
// result and never returned.
func (p *Poller) RunCycle(ctx context.Context) (res CycleResult) {
	start := p.deps.Clock()
	res = CycleResult{
		ID:        uuid.NewString(),
		Device:    p.config.DeviceID,
		State:     StateIdle,
		Decision:  DecisionFailed,
		StartedAt: start,
	}
	log := p.logger.WithField("cycle", res.ID)

	ctx, cancel := context.WithTimeout(ctx, p.config.CycleTimeout)
	defer cancel()

	defer func() {
		res.Duration = p.deps.Clock().Sub(start)
		p.finish(ctx, &res, log)
	}()

	folder, err := p.deps.Store.FolderFor(p.config.DeviceID)
	if err != nil {
		p.fail(&res, log, "Failed to prepare device folder", err)
		return res
	}

	p.enter(&res, log, StateConnecting)
	sess, err := p.deps.Opener.Open(ctx, p.config.Target)
	if err != nil {
		p.fail(&res, log, "Failed to connect", err)
		return res
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn(fmt.Sprintf("Failed to close session: %v", err))
		}
	}()

	p.enter(&res, log, StateFetching)
	raw, err := sess.Execute(ctx, p.config.RunningConfigCommand)
	if err != nil {
		p.fail(&res, log, "Failed to fetch running configuration", err)
		return res
	}

	p.enter(&res, log, StateNormalizing)
	text := p.deps.Normalizer.Normalize(raw)
	scratch, err := p.deps.Store.WriteScratch(folder, text)
	if err != nil {
		p.fail(&res, log, "Failed to write scratch artifact", err)
		p.discard(scratch, log)
		return res
	}

	p.enter(&res, log, StateComparing)
	last, found, err := p.deps.Store.LastArtifact(folder, storage.KindConfig)
	if err != nil {
		p.fail(&res, log, "Failed to find last artifact", err)
		p.discard(scratch, log)
		return res
	}
	var baseline *string
	if found {
		content, err := p.deps.Store.ReadArtifact(last)
		if err != nil {
			p.fail(&res, log, "Failed to read last artifact", err)
			p.discard(scratch, log)
			return res
		}
		baseline = &content
	}

	if !p.deps.Detector.HasChanged(text, baseline) {
		p.enter(&res, log, StateDiscarding)
		p.discard(scratch, log)
		res.Decision = DecisionUnchanged
		log.Info("Configuration unchanged")
		return res
	}

	p.enter(&res, log, StateCommitting)
	res.Diff = p.compare(baseline, last, text)

	ts, err := p.deps.Store.CommitTime(folder, start)
	if err != nil {
		p.fail(&res, log, "Failed to determine commit time", err)
		p.discard(scratch, log)
		return res
	}
	path, err := p.deps.Store.Commit(scratch, folder, p.config.DeviceID, ts)
	if path == "" && err != nil {
		p.fail(&res, log, "Failed to commit artifact", err)
		p.discard(scratch, log)
		return res
	}
	if err != nil {
		// committed, but a follow-up step such as current_config.txt failed
		log.Error("Artifact committed with errors", err)
	}
	res.ArtifactPath = path
	res.Decision = DecisionChanged
	p.appendManifest(folder, storage.KindConfig, path, []byte(text), &res, log)

	log.WithFields(map[string]interface{}{
		"artifact": filepath.Base(path),
		"added":    res.Diff.Summary.Added,
		"removed":  res.Diff.Summary.Removed,
	}).Info("Configuration changed, artifact committed")

	if p.deps.Evidence != nil {
		p.captureEvidence(ctx, sess, folder, ts, &res, log)
	}
	if p.deps.Pusher != nil {
		p.push(ctx, folder, &res, log)
	}
	if p.deps.Mirror != nil {
		res.Mirror = p.deps.Mirror.Upload(ctx, p.config.DeviceID, res.artifacts())
	}

	return res
}

// Status returns the loop counters
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) enter(res *CycleResult, log logger.Logger, state State) {
	res.State = state
	p.mu.Lock()
	p.status.State = state
	p.mu.Unlock()
	log.WithField("state", string(state)).Debug("Entering state")
}

func (p *Poller) fail(res *CycleResult, log logger.Logger, msg string, err error) {
	res.Decision = DecisionFailed
	res.Err = err
	log.WithField("state", string(res.State)).Error(msg, err)
}

func (p *Poller) discard(scratch string, log logger.Logger) {
	if scratch == "" {
		return
	}
	if err := p.deps.Store.DiscardScratch(scratch); err != nil {
		log.Warn(fmt.Sprintf("Failed to discard scratch artifact: %v", err))
	}
}

func (p *Poller) compare(baseline *string, lastPath, text string) *differ.ChangeReport {
	if baseline == nil {
		lines := strings.Count(text, "\n")
		return &differ.ChangeReport{
			FromName: "(none)",
			ToName:   "running-config",
			Summary:  differ.ChangeSummary{Added: lines, Total: lines},
		}
	}
	report, err := p.differ.Compare(*baseline, text, filepath.Base(lastPath), "running-config")
	if err != nil {
		return &differ.ChangeReport{FromName: filepath.Base(lastPath), ToName: "running-config"}
	}
	return report
}

func (p *Poller) appendManifest(folder, kind, path string, data []byte, res *CycleResult, log logger.Logger) {
	entry := storage.NewManifestEntry(uuid.NewString(), p.config.DeviceID, kind, path, data)
	entry.CycleID = res.ID
	if kind == storage.KindConfig && res.Diff != nil {
		entry.Added = res.Diff.Summary.Added
		entry.Removed = res.Diff.Summary.Removed
	}
	if err := p.deps.Store.AppendManifest(folder, entry); err != nil {
		log.Error("Failed to append manifest entry", err)
	}
}

func (p *Poller) captureEvidence(ctx context.Context, sess session.Session, folder string, ts time.Time, res *CycleResult, log logger.Logger) {
	bundle := p.deps.Evidence.Collect(ctx, sess, res.StartedAt)

	if out, ok := bundle.Output("show ip interface brief"); ok {
		res.Interfaces = evidence.ParseInterfaces(out)
	}
	if out, ok := bundle.Output("show ip ospf neighbor"); ok {
		res.Neighbors = evidence.ParseNeighbors(out)
	}

	if res.Diff != nil && res.Diff.Unified != "" {
		bundle.Append("configuration diff", res.Diff.Unified)
		if p.deps.Explainer != nil {
			text, err := p.deps.Explainer.ExplainChange(ctx, p.config.DeviceID, res.Diff.Unified)
			if err != nil {
				log.Warn(fmt.Sprintf("Change explanation unavailable: %v", err))
			} else {
				res.Explanation = text
				bundle.Append("change explanation", text)
			}
		}
	}

	rendered := bundle.Render()
	path, err := p.deps.Store.WriteEvidence(folder, p.config.DeviceID, ts, rendered)
	if err != nil {
		log.Error("Failed to write evidence bundle", err)
		return
	}
	res.EvidencePath = path
	p.appendManifest(folder, storage.KindEvidence, path, []byte(rendered), res, log)
}

func (p *Poller) push(ctx context.Context, folder string, res *CycleResult, log logger.Logger) {
	paths := append(res.artifacts(),
		filepath.Join(folder, storage.CurrentFile),
		filepath.Join(folder, storage.ManifestFile),
	)
	msg := fmt.Sprintf("%s: configuration changed (+%d -%d)",
		p.config.DeviceID, res.Diff.Summary.Added, res.Diff.Summary.Removed)

	result := p.deps.Pusher.Push(ctx, msg, paths)
	res.Push = &result
	switch {
	case result.Err != nil:
		log.Error("Push failed, artifacts kept locally", result.Err)
	case result.Pushed:
		log.WithField("commit", result.Hash).Info("Pushed artifacts")
	case result.Committed:
		log.WithField("commit", result.Hash).Info("Committed artifacts to backup repository")
	}
}

func (p *Poller) finish(ctx context.Context, res *CycleResult, log logger.Logger) {
	p.mu.Lock()
	p.status.State = StateIdle
	p.status.Cycles++
	p.status.LastCycle = res.StartedAt
	p.status.LastDecision = res.Decision
	switch res.Decision {
	case DecisionChanged:
		p.status.Changes++
	case DecisionFailed:
		p.status.Failures++
	}
	p.mu.Unlock()

	sample := metrics.Sample{
		Device:   res.Device,
		Decision: string(res.Decision),
		Duration: res.Duration,
		At:       res.StartedAt,
	}
	if res.Diff != nil {
		sample.Added = res.Diff.Summary.Added
		sample.Removed = res.Diff.Summary.Removed
	}
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsTimeout)
	defer cancel()
	if err := p.deps.Metrics.RecordCycle(mctx, sample); err != nil {
		log.Warn(fmt.Sprintf("Failed to record metrics: %v", err))
	}
}

// artifacts returns the committed artifact paths of the cycle
func (r *CycleResult) artifacts() []string {
	var paths []string
	if r.ArtifactPath != "" {
		paths = append(paths, r.ArtifactPath)
	}
	if r.EvidencePath != "" {
		paths = append(paths, r.EvidencePath)
	}
	return paths
}
