package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/kaizen/export"
)

func newExportCmd(c *cli) *cobra.Command {
	var (
		format string
		output string
		depth  int
	)
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write a snapshot of the session",
		Long: fmt.Sprintf(`Write a snapshot of the session (state, artifact names and trajectory)
in one of: %s.

By default the whole trajectory is included and output goes to stdout.`, strings.Join(export.Formats(), ", ")),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			exp, err := export.NewExporter(format)
			if err != nil {
				return err
			}
			k, err := c.newKaizen(cmd, false)
			if err != nil {
				return err
			}
			sess, err := k.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			d := depth
			if d < 0 {
				d = sess.Trajectory().Len()
			}
			snap := sess.Snapshot(inspectOrigin, d)

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				var f *os.File
				f, err = os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer func() {
					if cerr := f.Close(); err == nil {
						err = cerr
					}
				}()
				w = f
			}
			return exp.Export(snap, w)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format ("+strings.Join(export.Formats(), "|")+")")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().IntVarP(&depth, "depth", "d", -1, "Trajectory entries to include (-1 for all)")
	return cmd
}
