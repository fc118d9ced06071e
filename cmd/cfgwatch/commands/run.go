package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yairfalse/cfgwatch/internal/output"
	"github.com/yairfalse/cfgwatch/internal/poller"
	"github.com/yairfalse/cfgwatch/internal/session"
	"github.com/yairfalse/cfgwatch/internal/storage"
)

func newRunCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll the device until interrupted",
		Long: `Poll the configured device at a fixed interval. Each cycle fetches the
running configuration, normalizes it and commits a new backup only when
it differs from the last one. SIGINT or SIGTERM stop the loop after the
cycle in flight completes.`,
		Example: `  # Poll every 30 seconds
  CFGWATCH_POLL_INTERVAL=30s cfgwatch run

  # Poll with an explicit config file
  cfgwatch run --config /etc/cfgwatch.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLoop(cmd)
		},
	}

	cmd.Flags().Bool("diff", true, "print the diff of each change")

	return cmd
}

func (a *app) runLoop(cmd *cobra.Command) error {
	if err := a.validate(); err != nil {
		return err
	}
	log := a.logger()

	store, err := a.store()
	if err != nil {
		return err
	}
	folder, err := store.FolderFor(a.cfg.Device.ID)
	if err != nil {
		return err
	}
	lock, err := storage.Lock(folder)
	if err != nil {
		return err
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	showDiff, _ := cmd.Flags().GetBool("diff")
	renderer := output.NewCycleRenderer(a.out, a.cfg.Output.NoColor, showDiff)

	p, err := a.buildPoller(ctx, session.NewSSHOpener(), store, log, renderer.Render)
	if err != nil {
		return err
	}
	return p.Run(ctx)
}

func newOnceCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single polling cycle",
		Long: `Run exactly one polling cycle and exit. The exit status is non-zero
when the cycle failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.validate(); err != nil {
				return err
			}
			store, err := a.store()
			if err != nil {
				return err
			}
			showDiff, _ := cmd.Flags().GetBool("diff")
			res, err := a.runOnce(cmd.Context(), session.NewSSHOpener(), store, showDiff)
			if err != nil {
				return err
			}
			return res.Err
		},
	}

	cmd.Flags().Bool("diff", true, "print the diff when the configuration changed")

	return cmd
}

// runOnce runs one locked cycle with opener and renders the result
func (a *app) runOnce(ctx context.Context, opener session.Opener, store *storage.LocalStorage, showDiff bool) (*poller.CycleResult, error) {
	folder, err := store.FolderFor(a.cfg.Device.ID)
	if err != nil {
		return nil, err
	}
	lock, err := storage.Lock(folder)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	p, err := a.buildPoller(ctx, opener, store, a.logger(), nil)
	if err != nil {
		return nil, err
	}

	res := p.RunCycle(ctx)
	output.NewCycleRenderer(a.out, a.cfg.Output.NoColor, showDiff).Render(&res)
	return &res, nil
}
