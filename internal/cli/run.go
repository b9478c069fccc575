package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opencode-ai/cadence/internal/logging"
	"github.com/opencode-ai/cadence/internal/timeline"
	"github.com/spf13/cobra"
)

var (
	runVars   []string
	runPolicy string
	runOutput string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVar(&runVars, "var", nil, "sequence variable key=value (repeatable)")
	runCmd.Flags().StringVar(&runPolicy, "policy", "", "re-entrancy policy override (concurrent, ignore, restart)")
	runCmd.Flags().StringVar(&runOutput, "output", outputText, "where step messages go (text, log)")
}

var runCmd = &cobra.Command{
	Use:   "run <sequence>",
	Short: "Run a sequence once",
	Long:  "Start a sequence and wait for it to finish. Interrupt cancels the run.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		def, err := lookupSequence(args[0])
		if err != nil {
			return err
		}
		vars, err := parseSequenceVars(runVars)
		if err != nil {
			return err
		}

		hist, err := openHistory(ctx)
		if err != nil {
			return err
		}
		defer hist.Close()

		seq, err := buildSequence(def, buildOptions{
			vars:     vars,
			policy:   runPolicy,
			output:   runOutput,
			out:      cmd.OutOrStdout(),
			observer: hist.observer(),
		})
		if err != nil {
			return err
		}

		run, err := seq.Start(ctx)
		if err != nil {
			return err
		}
		if err := run.Wait(context.Background()); err != nil {
			return err
		}

		info := run.Snapshot()
		logger := logging.Component("cli")
		logger.Debug().
			Str("run_id", info.ID).
			Str("state", string(info.State)).
			Msg("run finished")

		if info.State == timeline.StateCancelled {
			return errors.New("run cancelled")
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "run %s %s in %s\n",
			shortID(info.ID), info.State, info.EndedAt.Sub(info.StartedAt).Round(time.Millisecond))
		return nil
	},
}
