package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/opencode-ai/cadence/internal/trigger"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	watchVars   []string
	watchPolicy string
	watchOutput string
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringSliceVar(&watchVars, "var", nil, "sequence variable key=value (repeatable)")
	watchCmd.Flags().StringVar(&watchPolicy, "policy", "", "re-entrancy policy override (concurrent, ignore, restart)")
	watchCmd.Flags().StringVar(&watchOutput, "output", outputText, "where step messages go (text, log)")
}

var watchCmd = &cobra.Command{
	Use:   "watch <sequence>",
	Short: "Run a sequence every time the trigger key is pressed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg := currentConfig()
		def, err := lookupSequence(args[0])
		if err != nil {
			return err
		}
		vars, err := parseSequenceVars(watchVars)
		if err != nil {
			return err
		}

		hist, err := openHistory(ctx)
		if err != nil {
			return err
		}
		defer hist.Close()

		in := cmd.InOrStdin()
		out := cmd.OutOrStdout()
		if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			out = &crlfWriter{w: out}
		}

		seq, err := buildSequence(def, buildOptions{
			vars:     vars,
			policy:   watchPolicy,
			output:   watchOutput,
			out:      out,
			observer: hist.observer(),
		})
		if err != nil {
			return err
		}

		source := trigger.NewEventSource()
		poller := trigger.New(trigger.Config{
			Button:       cfg.Trigger.Button,
			PollInterval: cfg.Trigger.PollInterval,
		}, source, seq)
		if err := poller.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = poller.Stop() }()
		defer seq.Cancel()

		key, quit := keyOrDefault(cfg.Trigger.Key, ' '), keyOrDefault(cfg.Trigger.QuitKey, 'q')
		fmt.Fprintf(cmd.ErrOrStderr(), "Press %q to trigger %s (%s), %q to quit.\n",
			string(key), seq.Name(), cfg.Trigger.Button, string(quit))

		reader := trigger.NewKeyReader(in, source, map[byte]string{key: cfg.Trigger.Button}, quit)
		err = reader.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func keyOrDefault(value string, def byte) byte {
	if len(value) == 1 {
		return value[0]
	}
	return def
}

// crlfWriter translates newlines for terminals in raw mode.
type crlfWriter struct {
	w io.Writer
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
