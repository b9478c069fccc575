package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opencode-ai/cadence/internal/db"
	"github.com/opencode-ai/cadence/internal/models"
	"github.com/spf13/cobra"
)

var (
	historySequence string
	historyState    string
	historyLimit    int
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historySequence, "sequence", "", "only runs of this sequence")
	historyCmd.Flags().StringVar(&historyState, "state", "", "only runs in this state")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum runs to show")
}

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded runs, or the events of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hist, err := openHistory(cmd.Context())
		if err != nil {
			return err
		}
		if hist == nil {
			return errors.New("run history is disabled")
		}
		defer hist.Close()

		if len(args) == 1 {
			return showRunEvents(cmd, hist, args[0])
		}

		query := db.RunQuery{Sequence: historySequence, Limit: historyLimit}
		if historyState != "" {
			state := models.RunState(strings.ToLower(historyState))
			query.State = &state
		}

		runs, err := hist.runs.List(cmd.Context(), query)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}

		rows := make([][]string, 0, len(runs))
		for _, run := range runs {
			rows = append(rows, []string{
				shortID(run.ID),
				run.Sequence,
				formatRunState(run.State),
				fmt.Sprintf("%d", run.Step),
				run.StartedAt.Local().Format(time.DateTime),
				formatRunDuration(run),
				run.Error,
			})
		}
		return writeTable(cmd.OutOrStdout(), []string{"ID", "SEQUENCE", "STATE", "STEP", "STARTED", "DURATION", "ERROR"}, rows)
	},
}

func showRunEvents(cmd *cobra.Command, hist *history, prefix string) error {
	runs, err := hist.runs.List(cmd.Context(), db.RunQuery{Limit: 1000})
	if err != nil {
		return err
	}

	var match *models.Run
	for _, run := range runs {
		if strings.HasPrefix(run.ID, prefix) {
			if match != nil {
				return fmt.Errorf("run id %q is ambiguous", prefix)
			}
			match = run
		}
	}
	if match == nil {
		return db.ErrRunNotFound
	}

	eventList, err := hist.events.ListByRun(cmd.Context(), match.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n\n", match.ID, match.Sequence, formatRunState(match.State))
	rows := make([][]string, 0, len(eventList))
	for _, event := range eventList {
		rows = append(rows, []string{
			formatOffset(event.Timestamp.Sub(match.StartedAt).Round(time.Millisecond)),
			string(event.Type),
			fmt.Sprintf("%d", event.Step),
			string(event.Payload),
		})
	}
	return writeTable(cmd.OutOrStdout(), []string{"AT", "EVENT", "STEP", "PAYLOAD"}, rows)
}

func formatRunDuration(run *models.Run) string {
	if run.EndedAt == nil {
		return "-"
	}
	return run.Duration().Round(time.Millisecond).String()
}
