package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/hupe1980/kaizen/core"
	"github.com/hupe1980/kaizen/session"
)

const inspectOrigin = "cli"

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

func newInspectCmd(c *cli) *cobra.Command {
	var (
		depth int
		width int
	)
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show state, artifacts and recent trajectory entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := c.newKaizen(cmd, false)
			if err != nil {
				return err
			}
			sess, err := k.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderSession(cmd.OutOrStdout(), sess, depth, width)
			return nil
		},
	}
	cmd.Flags().IntVarP(&depth, "depth", "d", session.DefaultSnapshotDepth, "Number of trajectory entries to show")
	cmd.Flags().IntVar(&width, "width", 80, "Truncate values to this many characters")
	return cmd
}

func renderSession(out io.Writer, sess *session.Session, depth, width int) {
	snap := sess.Snapshot(inspectOrigin, depth)

	fmt.Fprintln(out, headerStyle.Render("Session "+snap.SessionID))
	fmt.Fprintf(out, "%s %d   %s %d   %s %d\n\n",
		dimStyle.Render("state version"), snap.StateVersion,
		dimStyle.Render("entries"), snap.TrajectoryTotalLength,
		dimStyle.Render("artifacts"), len(snap.Artifacts))

	fmt.Fprintln(out, titleStyle.Render("State"))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, key := range sess.State().Keys() {
		fmt.Fprintf(w, "  %s\t%s\n", keyStyle.Render(key), compact(snap.State[key], width))
	}
	_ = w.Flush()
	if len(snap.State) == 0 {
		fmt.Fprintln(out, dimStyle.Render("  (empty)"))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, titleStyle.Render("Artifacts"))
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, name := range snap.Artifacts {
		size, _ := sess.Artifacts().Size(name)
		fmt.Fprintf(w, "  %s\t%s\n", keyStyle.Render(name), dimStyle.Render(strconv.FormatInt(size, 10)+" bytes"))
	}
	_ = w.Flush()
	if len(snap.Artifacts) == 0 {
		fmt.Fprintln(out, dimStyle.Render("  (none)"))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Trajectory (last %d of %d)", len(snap.Trajectory), snap.TrajectoryTotalLength)))
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, rec := range snap.Trajectory {
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\n",
			rec.Seq,
			dimStyle.Render(rec.Timestamp),
			rec.OriginID,
			kindStyle(rec).Render(string(rec.Kind)),
			compact(rec.Content, width))
	}
	_ = w.Flush()
}

func kindStyle(rec core.EntryRecord) lipgloss.Style {
	switch rec.Kind {
	case core.KindAgentFailed:
		return failStyle
	case core.KindPlanStepCompleted:
		if ok, _ := rec.Content["success"].(bool); !ok {
			return failStyle
		}
		return okStyle
	case core.KindAgentCompleted:
		return okStyle
	default:
		return lipgloss.NewStyle()
	}
}

// compact renders v as one line of JSON, truncated to width runes.
func compact(v any, width int) string {
	data, err := core.EncodeValue(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return core.Truncate(string(data), width)
}
