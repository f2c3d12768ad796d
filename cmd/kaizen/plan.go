package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/kaizen/core"
)

func newPlanCmd(c *cli) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "plan <file> <request>",
		Short: "Plan a natural-language request and dispatch the plan",
		Long: `Ask the configured provider to turn a request into capability calls,
then dispatch them against the session file and save it. The request and
the plan are recorded in the trajectory.

With --dry-run the plan is printed and nothing is executed or saved.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, request := args[0], strings.Join(args[1:], " ")
			k, err := c.newKaizen(cmd, !dryRun)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if dryRun {
				plan, err := k.Plan(cmd.Context(), request, nil)
				if err != nil {
					return err
				}
				printPlan(out, plan.Calls)
				return nil
			}

			report, err := k.Run(cmd.Context(), path, request)
			if err != nil {
				return err
			}
			printPlan(out, report.Plan.Calls)
			return summarize(out, report)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plan without executing it")
	return cmd
}

func printPlan(out io.Writer, calls []core.CapabilityCall) {
	if len(calls) == 0 {
		fmt.Fprintln(out, dimStyle.Render("empty plan"))
		return
	}
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Plan (%d steps)", len(calls))))
	for i, call := range calls {
		fmt.Fprintf(out, "  %d. %s %s\n", i+1, keyStyle.Render(call.Capability), compact(call.Params, 0))
	}
}
