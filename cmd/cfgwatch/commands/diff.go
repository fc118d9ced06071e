package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yairfalse/cfgwatch/internal/differ"
	"github.com/yairfalse/cfgwatch/internal/output"
	"github.com/yairfalse/cfgwatch/internal/storage"
)

func newDiffCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff [device]",
		Short: "Show what changed between two stored backups",
		Long: `Show the unified diff between two configuration backups of a device.
By default the last two backups are compared; --from and --to select
artifacts by file name.`,
		Example: `  # What changed in the most recent backup
  cfgwatch diff r1

  # Compare two specific backups
  cfgwatch diff r1 --from r1_config_2025-03-01_10-00-00.txt --to r1_config_2025-03-02_08-15-30.txt

  # Only print the line counts
  cfgwatch diff r1 --stat`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDiff(cmd, args)
		},
	}

	cmd.Flags().String("from", "", "older artifact file name")
	cmd.Flags().String("to", "", "newer artifact file name")
	cmd.Flags().Bool("stat", false, "print only the number of added and removed lines")
	cmd.Flags().IntP("context", "U", differ.DefaultContext, "lines of context")

	return cmd
}

func (a *app) runDiff(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	stat, _ := cmd.Flags().GetBool("stat")
	contextLines, _ := cmd.Flags().GetInt("context")

	store, err := a.store()
	if err != nil {
		return err
	}
	devices, err := a.devices(store, args, false)
	if err != nil {
		return err
	}
	folder, ok := store.ExistingFolder(devices[0])
	if !ok {
		return fmt.Errorf("no backups for device %s", devices[0])
	}

	list, err := store.List(folder, storage.KindConfig)
	if err != nil {
		return err
	}
	fromPath, toPath, err := selectPair(list, from, to)
	if err != nil {
		return err
	}

	fromText, err := store.ReadArtifact(fromPath)
	if err != nil {
		return err
	}
	toText, err := store.ReadArtifact(toPath)
	if err != nil {
		return err
	}

	report, err := differ.NewLineDiffer().WithContext(contextLines).
		Compare(fromText, toText, filepath.Base(fromPath), filepath.Base(toPath))
	if err != nil {
		return err
	}

	if stat {
		a.printf("%s -> %s: +%d -%d lines\n", report.FromName, report.ToName,
			report.Summary.Added, report.Summary.Removed)
		return nil
	}
	if !report.Changed() || a.cfg.Output.NoColor {
		a.printf("%s", differ.FormatChangeReport(report))
		return nil
	}
	output.NewCycleRenderer(a.out, a.cfg.Output.NoColor, true).RenderDiff(report.Unified)
	return nil
}

// selectPair picks the artifacts to compare, defaulting to the last two
func selectPair(list []storage.ArtifactInfo, from, to string) (string, string, error) {
	find := func(name string) (string, error) {
		for _, a := range list {
			if a.Name == name {
				return a.FilePath, nil
			}
		}
		return "", fmt.Errorf("artifact %s not found", name)
	}

	if from == "" && to == "" {
		if len(list) < 2 {
			return "", "", fmt.Errorf("need at least two backups to diff, found %d", len(list))
		}
		return list[len(list)-2].FilePath, list[len(list)-1].FilePath, nil
	}
	if to == "" {
		if len(list) == 0 {
			return "", "", fmt.Errorf("no backups found")
		}
		fromPath, err := find(from)
		return fromPath, list[len(list)-1].FilePath, err
	}
	if from == "" {
		return "", "", fmt.Errorf("--to requires --from")
	}

	fromPath, err := find(from)
	if err != nil {
		return "", "", err
	}
	toPath, err := find(to)
	return fromPath, toPath, err
}
