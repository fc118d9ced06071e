package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yairfalse/cfgwatch/internal/output"
	"github.com/yairfalse/cfgwatch/internal/storage"
)

func newHistoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [device]",
		Short: "List stored backup artifacts",
		Long: `List the backup artifacts stored for a device, oldest first. Without a
device argument the configured device is listed; --all lists every device
under the backup root.`,
		Example: `  # List config backups of the configured device
  cfgwatch history

  # List evidence bundles of r1 as JSON
  cfgwatch history r1 --kind evidence --output json

  # Show the manifest with checksums and diff stats
  cfgwatch history r1 --manifest`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runHistory(cmd, args)
		},
	}

	cmd.Flags().String("kind", storage.KindConfig, "artifact kind (config, evidence, all)")
	cmd.Flags().Bool("all", false, "list every device")
	cmd.Flags().Bool("manifest", false, "show manifest entries instead of files")
	cmd.Flags().IntP("limit", "l", 0, "show only the most recent N artifacts")

	return cmd
}

func (a *app) runHistory(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("kind")
	all, _ := cmd.Flags().GetBool("all")
	showManifest, _ := cmd.Flags().GetBool("manifest")
	limit, _ := cmd.Flags().GetInt("limit")

	switch kind {
	case storage.KindConfig, storage.KindEvidence:
	case "all":
		kind = ""
	default:
		return fmt.Errorf("unknown artifact kind %q", kind)
	}

	store, err := a.store()
	if err != nil {
		return err
	}

	devices, err := a.devices(store, args, all)
	if err != nil {
		return err
	}

	if showManifest {
		var entries []storage.ManifestEntry
		for _, d := range devices {
			folder, ok := store.ExistingFolder(d)
			if !ok {
				continue
			}
			e, err := store.ReadManifest(folder)
			if err != nil {
				return err
			}
			entries = append(entries, e...)
		}
		if limit > 0 && len(entries) > limit {
			entries = entries[len(entries)-limit:]
		}
		return output.WriteManifest(a.out, a.cfg.Output.Format, entries)
	}

	var artifacts []storage.ArtifactInfo
	for _, d := range devices {
		folder, ok := store.ExistingFolder(d)
		if !ok {
			continue
		}
		list, err := store.List(folder, kind)
		if err != nil {
			return err
		}
		artifacts = append(artifacts, list...)
	}
	if limit > 0 && len(artifacts) > limit {
		artifacts = artifacts[len(artifacts)-limit:]
	}
	return output.WriteArtifacts(a.out, a.cfg.Output.Format, artifacts)
}

// devices resolves the device arguments of a read-only command
func (a *app) devices(store *storage.LocalStorage, args []string, all bool) ([]string, error) {
	switch {
	case all:
		return store.Devices()
	case len(args) > 0:
		return args[:1], nil
	case a.cfg.Device.ID != "":
		return []string{a.cfg.Device.ID}, nil
	default:
		return nil, fmt.Errorf("no device given and none configured")
	}
}
