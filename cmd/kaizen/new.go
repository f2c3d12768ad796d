package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/kaizen/session"
)

func newNewCmd(c *cli) *cobra.Command {
	var (
		id              string
		maxArtifactSize int64
		force           bool
	)
	cmd := &cobra.Command{
		Use:   "new <file>",
		Short: "Create an empty session file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			k, err := c.newKaizen(cmd, false)
			if err != nil {
				return err
			}
			var opts []func(o *session.Options)
			if id != "" {
				opts = append(opts, session.WithID(id))
			}
			if maxArtifactSize > 0 {
				opts = append(opts, session.WithMaxArtifactSize(maxArtifactSize))
			}
			sess, err := k.NewSession(opts...)
			if err != nil {
				return err
			}
			if err := sess.Save(cmd.Context(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created session %s in %s\n", sess.ID(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Session id (random UUID when empty)")
	cmd.Flags().Int64Var(&maxArtifactSize, "max-artifact-size", 0, "Per-artifact size limit in bytes (config default when 0)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
