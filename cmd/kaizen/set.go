package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "set <file> key=value...",
		Short: "Write state values",
		Long: `Write one or more state values and save the session.

Values that parse as JSON keep their type (42, true, null, [1,2], {"a":1});
anything else is stored as a string.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			keys, values, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			k, err := c.newKaizen(cmd, false)
			if err != nil {
				return err
			}
			sess, err := k.Load(cmd.Context(), path)
			if err != nil {
				return err
			}
			for i, key := range keys {
				v, err := sess.State().Set(key, values[i])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (version %d)\n", key, v)
			}
			return sess.Save(cmd.Context(), path)
		},
	}
}
