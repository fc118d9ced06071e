package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cwerrors "github.com/yairfalse/cfgwatch/internal/errors"
	"github.com/yairfalse/cfgwatch/pkg/config"
)

// app carries state shared by the commands of one invocation
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	out     io.Writer
	errOut  io.Writer
	stdin   *os.File
}

// NewRootCommand builds the cfgwatch command tree
func NewRootCommand() *cobra.Command {
	a := &app{
		v:      viper.New(),
		out:    os.Stdout,
		errOut: os.Stderr,
		stdin:  os.Stdin,
	}

	rootCmd := &cobra.Command{
		Use:   "cfgwatch",
		Short: "Change-driven configuration backups for network devices",
		Long: `cfgwatch polls a network device over SSH, normalizes its running
configuration and stores a new timestamped backup only when the
configuration has actually changed.

  cfgwatch run              # poll until interrupted
  cfgwatch once             # run a single cycle
  cfgwatch history r1       # list stored artifacts
  cfgwatch diff r1          # diff the last two backups`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			a.errOut = cmd.ErrOrStderr()
			return a.initConfig()
		},
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./cfgwatch.yaml or $HOME/.cfgwatch/config.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("output", "table", "output format (table, json, yaml)")
	flags.Bool("no-color", false, "disable colored output")
	flags.String("base-dir", "", "backup root directory")

	// Bind flags to viper
	a.v.BindPFlag("logging.level", flags.Lookup("log-level"))
	a.v.BindPFlag("logging.format", flags.Lookup("log-format"))
	a.v.BindPFlag("output.format", flags.Lookup("output"))
	a.v.BindPFlag("output.no_color", flags.Lookup("no-color"))
	a.v.BindPFlag("storage.base_dir", flags.Lookup("base-dir"))

	rootCmd.AddCommand(newRunCommand(a))
	rootCmd.AddCommand(newOnceCommand(a))
	rootCmd.AddCommand(newHistoryCommand(a))
	rootCmd.AddCommand(newDiffCommand(a))
	rootCmd.AddCommand(newNormalizeCommand(a))
	rootCmd.AddCommand(newInitCommand(a))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// Execute runs the root command and exits with a code matching the error category
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		cwerrors.DisplayError(os.Stderr, err)
		os.Exit(cwerrors.GetExitCode(err))
	}
}

// initConfig reads in config file and ENV variables if set.
func (a *app) initConfig() error {
	cfg, err := config.LoadWith(a.v, a.cfgFile)
	if err != nil {
		return err
	}

	// Expand paths like ~ to home directory
	if err := cfg.ExpandPaths(); err != nil {
		return err
	}

	if cfg.Output.NoColor {
		color.NoColor = true
	}
	a.cfg = cfg
	return nil
}

func (a *app) validate() error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	return a.cfg.PromptPassword(a.stdin, a.errOut)
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}
