package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/kaizen"
	"github.com/hupe1980/kaizen/config"
	"github.com/hupe1980/kaizen/dispatch"
	"github.com/hupe1980/kaizen/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

// cli carries the persistent flags and the configuration they resolve to.
type cli struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger logging.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "kaizen",
		Short: "Create, inspect and drive replayable session files",
		Long: `kaizen works on single-file sessions: versioned state, an append-only
trajectory and named artifacts, stored in one SQLite file.

Quick Start:
  kaizen new demo.db                                  # Create a session file
  kaizen set demo.db text="hello world"               # Write state
  kaizen run demo.db reverse:key=text uppercase:key=text
  kaizen inspect demo.db                              # Show state and trajectory
  kaizen export demo.db --format yaml                 # Dump a snapshot`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to a YAML config file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newNewCmd(c),
		newSetCmd(c),
		newInspectCmd(c),
		newRunCmd(c),
		newResumeCmd(c),
		newPlanCmd(c),
		newExportCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg := config.Default()
	if c.configPath != "" {
		loaded, err := config.Load(c.configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	if c.verbose {
		cfg.Logging.Level = "debug"
	}
	c.cfg = &cfg
	c.logger = cfg.Logger(cmd.ErrOrStderr())
	return nil
}

// newKaizen builds the facade. When progress is set every finished step is
// reported on the command's output.
func (c *cli) newKaizen(cmd *cobra.Command, progress bool) (*kaizen.Kaizen, error) {
	return kaizen.New(func(o *kaizen.Options) {
		o.Config = *c.cfg
		o.Logger = c.logger
		if progress {
			out := cmd.OutOrStdout()
			printLine := func(line string) { fmt.Fprintln(out, line) }
			o.Callbacks = append(o.Callbacks,
				dispatch.NewProgressCallback(dispatch.CallbackAfterStep, printLine),
				dispatch.NewProgressCallback(dispatch.CallbackOnResume, printLine),
			)
		}
	})
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
