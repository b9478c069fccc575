package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/opencode-ai/cadence/internal/sequences"
	"github.com/opencode-ai/cadence/internal/timeline"
	"github.com/spf13/cobra"
)

var sequenceTags []string

func init() {
	rootCmd.AddCommand(sequenceCmd)
	sequenceCmd.AddCommand(sequenceListCmd)
	sequenceCmd.AddCommand(sequenceShowCmd)

	sequenceListCmd.Flags().StringSliceVar(&sequenceTags, "tag", nil, "filter by tag (repeatable)")
}

var sequenceCmd = &cobra.Command{
	Use:     "sequences",
	Aliases: []string{"seq"},
	Short:   "Inspect available sequences",
}

var sequenceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sequences",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := loadSequences()
		if err != nil {
			return err
		}
		items = filterSequences(items, sequenceTags)
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sequences found.")
			return nil
		}

		userDir := userSequencesDir()
		projDir := projectSequencesDir()
		rows := make([][]string, 0, len(items))
		for _, item := range items {
			rows = append(rows, []string{
				item.Name,
				fmt.Sprintf("%d", len(item.Steps)),
				formatOffset(sequenceLength(item)),
				policyLabel(item.Policy),
				sequenceSourceLabel(item.Source, userDir, projDir),
				item.Description,
			})
		}
		return writeTable(cmd.OutOrStdout(), []string{"NAME", "STEPS", "LENGTH", "POLICY", "SOURCE", "DESCRIPTION"}, rows)
	},
}

var sequenceShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the steps of a sequence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seq, err := lookupSequence(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s)\n", seq.Name, policyLabel(seq.Policy))
		if seq.Description != "" {
			fmt.Fprintln(out, seq.Description)
		}
		if len(seq.Variables) > 0 {
			vars := make([]string, 0, len(seq.Variables))
			for _, variable := range seq.Variables {
				label := variable.Name
				if variable.Required {
					label += "*"
				} else if variable.Default != "" {
					label += "=" + variable.Default
				}
				vars = append(vars, label)
			}
			fmt.Fprintf(out, "Variables: %s\n", strings.Join(vars, ", "))
		}
		fmt.Fprintln(out)

		offsets := stepOffsets(seq)
		rows := make([][]string, 0, len(seq.Steps))
		for i, step := range seq.Steps {
			rows = append(rows, []string{
				fmt.Sprintf("%d", i),
				step.Name,
				formatOffset(offsets[i]),
				string(step.Level),
				step.Content,
			})
		}
		return writeTable(out, []string{"#", "NAME", "AT", "LEVEL", "MESSAGE"}, rows)
	},
}

func stepOffsets(seq *sequences.Sequence) []time.Duration {
	steps := make([]timeline.Step, 0, len(seq.Steps))
	for _, step := range seq.Steps {
		delay, _ := time.ParseDuration(step.Delay)
		steps = append(steps, timeline.Step{Delay: delay})
	}
	return timeline.Offsets(steps)
}

func sequenceLength(seq *sequences.Sequence) time.Duration {
	offsets := stepOffsets(seq)
	if len(offsets) == 0 {
		return 0
	}
	return offsets[len(offsets)-1]
}

func policyLabel(policy string) string {
	if policy == "" {
		return string(timeline.PolicyConcurrent)
	}
	return policy
}
