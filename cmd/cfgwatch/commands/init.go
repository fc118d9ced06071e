package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yairfalse/cfgwatch/pkg/config"
)

func newInitCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write an example configuration file",
		Long: `Write an annotated example configuration. The default location is
$HOME/.cfgwatch/config.yaml. Existing files are never overwritten.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				home, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				path = filepath.Join(home, ".cfgwatch", "config.yaml")
			}

			if err := config.InitConfigFile(path); err != nil {
				return err
			}
			a.printf("Created config file at %s\n", path)
			return nil
		},
	}
	return cmd
}
