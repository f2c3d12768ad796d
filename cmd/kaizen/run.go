package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/kaizen/runner"
)

func newRunCmd(c *cli) *cobra.Command {
	var callsFile string
	cmd := &cobra.Command{
		Use:   "run <file> capability[:key=value,...]...",
		Short: "Dispatch capability calls against a session file",
		Long: `Dispatch capability calls in order against a session file and save it.
The file is created when it does not exist. Execution stops at the first
failed call; earlier state changes are kept.

Examples:
  kaizen run demo.db state.set:key=text,value=hello reverse:key=text
  kaizen run demo.db --calls plan.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			calls, err := collectCalls(args[1:], callsFile)
			if err != nil {
				return err
			}
			k, err := c.newKaizen(cmd, true)
			if err != nil {
				return err
			}
			report, err := k.Execute(cmd.Context(), args[0], calls)
			if err != nil {
				return err
			}
			return summarize(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&callsFile, "calls", "", "JSON file with an array of {capability, params} objects")
	return cmd
}

func newResumeCmd(c *cli) *cobra.Command {
	var callsFile string
	cmd := &cobra.Command{
		Use:   "resume <file> capability[:key=value,...]...",
		Short: "Re-run an interrupted call list, skipping completed steps",
		Long: `Re-run a call list against an existing session file. Calls whose position
and capability were recorded as successful are skipped; the rest run as
with 'kaizen run'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			calls, err := collectCalls(args[1:], callsFile)
			if err != nil {
				return err
			}
			k, err := c.newKaizen(cmd, true)
			if err != nil {
				return err
			}
			report, err := k.ResumeFile(cmd.Context(), args[0], calls)
			if err != nil {
				return err
			}
			return summarize(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&callsFile, "calls", "", "JSON file with an array of {capability, params} objects")
	return cmd
}

// summarize prints the outcome and turns a failed step into an error so
// the process exits non-zero.
func summarize(out io.Writer, report *runner.Report) error {
	res := report.Result
	ok := len(res.CompletedIndices())
	fmt.Fprintf(out, "session %s: %d/%d steps ok (%d resumed) in %s\n",
		report.SessionID, ok, res.Executed(), len(res.ResumedIndices()), report.Duration.Round(time.Millisecond))
	if i, failed := res.FailedAt(); failed {
		f := res.Err()
		return fmt.Errorf("step %d (%s) failed: %s: %s", i, res.Results[i].Capability, f.Code, f.Message)
	}
	return nil
}
