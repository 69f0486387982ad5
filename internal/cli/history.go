package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cloudywindow/internal/journal"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent picker and editor events",
		Long: `Show the journal of picks, auto-zaps, undos, resets and document writes,
newest first.

Example:
  cloudywindow history --limit 20 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			return e.finish(runHistory(e, limit, cmd))
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of events (0 = all)")
	return cmd
}

func runHistory(e *env, limit int, cmd *cobra.Command) error {
	if e.journal == nil {
		return e.formatter.Fail(ExitCommandError, ErrCodeJournal, "journal unavailable: "+e.cfg.Journal, nil)
	}
	entries, err := e.journal.List(commandContext(cmd), limit)
	if err != nil {
		return e.formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to read journal", err)
	}

	if e.formatter.Structured() {
		return e.formatter.Success(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(e.formatter.Writer, "No events")
		return nil
	}
	return writeHistory(e.formatter, entries)
}

func writeHistory(f *OutputFormatter, entries []journal.Entry) error {
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTIME\tKIND\tHOST\tRULE")
	for _, en := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			en.Seq, en.CreatedAt.Local().Format(time.DateTime), en.Kind, dash(en.Host), dash(en.RuleID))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
