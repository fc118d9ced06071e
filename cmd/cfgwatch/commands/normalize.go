package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/yairfalse/cfgwatch/internal/differ"
)

func newNormalizeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize [file]",
		Short: "Print a configuration in normalized form",
		Long: `Normalize a saved running configuration the way backups are normalized
before comparison: volatile lines are dropped, trailing whitespace is
stripped and blank-line runs are collapsed. Reads stdin without a file
argument. With --against, report whether the two files would count as
a change.`,
		Example: `  # Inspect what a capture looks like after normalization
  cfgwatch normalize router.cfg

  # Would this capture trigger a new backup?
  cfgwatch normalize new.cfg --against current_config.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runNormalize(cmd, args)
		},
	}

	cmd.Flags().String("against", "", "compare with this file and report changed or unchanged")

	return cmd
}

func (a *app) runNormalize(cmd *cobra.Command, args []string) error {
	against, _ := cmd.Flags().GetString("against")

	norm, err := a.normalizer()
	if err != nil {
		return err
	}

	var raw []byte
	if len(args) == 1 {
		raw, err = os.ReadFile(args[0])
	} else {
		raw, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("failed to read configuration: %w", err)
	}
	text := norm.Normalize(string(raw))

	if against == "" {
		fmt.Fprint(a.out, text)
		return nil
	}

	other, err := os.ReadFile(against)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", against, err)
	}
	baseline := norm.Normalize(string(other))

	if differ.NewLineDiffer().HasChanged(text, &baseline) {
		a.printf("changed\n")
	} else {
		a.printf("unchanged\n")
	}
	return nil
}
