package commands

import (
	"context"
	"fmt"

	"github.com/yairfalse/cfgwatch/internal/evidence"
	"github.com/yairfalse/cfgwatch/internal/explain"
	"github.com/yairfalse/cfgwatch/internal/logger"
	"github.com/yairfalse/cfgwatch/internal/metrics"
	"github.com/yairfalse/cfgwatch/internal/mirror"
	"github.com/yairfalse/cfgwatch/internal/normalizer"
	"github.com/yairfalse/cfgwatch/internal/poller"
	"github.com/yairfalse/cfgwatch/internal/push"
	"github.com/yairfalse/cfgwatch/internal/session"
	"github.com/yairfalse/cfgwatch/internal/storage"
)

func (a *app) logger() logger.Logger {
	return logger.New(logger.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		Output: a.errOut,
	})
}

func (a *app) store() (*storage.LocalStorage, error) {
	return storage.NewLocalStorage(storage.Config{BaseDir: a.cfg.Storage.BaseDir})
}

func (a *app) normalizer() (*normalizer.Normalizer, error) {
	if len(a.cfg.Normalizer.VolatilePatterns) == 0 {
		return normalizer.NewDefault(), nil
	}
	return normalizer.New(a.cfg.Normalizer.VolatilePatterns)
}

// buildPoller wires the poller and its optional collaborators. Optional
// collaborators that cannot be constructed are logged and left out.
func (a *app) buildPoller(ctx context.Context, opener session.Opener, store storage.ArtifactStore, log logger.Logger, onCycle func(*poller.CycleResult)) (*poller.Poller, error) {
	cfg := a.cfg

	norm, err := a.normalizer()
	if err != nil {
		return nil, err
	}

	deps := poller.Deps{
		Opener:     opener,
		Store:      store,
		Normalizer: norm,
		Evidence:   evidence.NewCollector(cfg.Commands.Evidence, cfg.Commands.PingTargets),
		Logger:     log,
		OnCycle:    onCycle,
	}

	if cfg.Push.Enabled {
		deps.Pusher = push.NewGitPusher(push.Config{
			RepoPath:    cfg.Push.RepoPath,
			RemoteURL:   cfg.Push.Remote,
			RemoteName:  cfg.Push.RemoteName,
			Branch:      cfg.Push.Branch,
			Username:    cfg.Push.Username,
			Password:    cfg.Push.Password,
			AuthorName:  cfg.Push.AuthorName,
			AuthorEmail: cfg.Push.AuthorEmail,
		}, log.WithField("component", "push"))
	}

	if cfg.Mirror.Enabled {
		uploader, err := mirror.NewUploader(ctx, mirror.Config{
			Backend:         cfg.Mirror.Backend,
			Bucket:          cfg.Mirror.Bucket,
			Prefix:          cfg.Mirror.Prefix,
			Region:          cfg.Mirror.Region,
			Account:         cfg.Mirror.Account,
			AccountKey:      cfg.Mirror.AccountKey,
			CredentialsFile: cfg.Mirror.CredentialsFile,
		})
		if err != nil {
			log.Error("Mirror disabled", err)
		} else {
			deps.Mirror = mirror.New(uploader, cfg.Mirror.Prefix, log.WithField("component", "mirror"))
		}
	}

	if cfg.Metrics.Enabled {
		rec, err := metrics.NewCloudWatchRecorder(ctx, cfg.Metrics.Namespace, cfg.Metrics.Region)
		if err != nil {
			log.Error("Metrics disabled", err)
		} else {
			deps.Metrics = rec
		}
	}

	if cfg.Explain.Enabled {
		client, err := explain.NewClaudeClient(explain.Config{
			APIKey:    cfg.Explain.APIKey,
			Model:     cfg.Explain.Model,
			MaxTokens: cfg.Explain.MaxTokens,
		})
		if err != nil {
			log.Error("Change explanation disabled", err)
		} else {
			deps.Explainer = client
		}
	}

	p, err := poller.New(poller.Config{
		DeviceID:             cfg.Device.ID,
		Target:               cfg.Target(),
		Interval:             cfg.Poll.Interval,
		CycleTimeout:         cfg.Poll.CycleTimeout,
		RunningConfigCommand: cfg.Commands.RunningConfig,
	}, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create poller: %w", err)
	}
	return p, nil
}
