package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencode-ai/cadence/internal/config"
	"github.com/opencode-ai/cadence/internal/db"
	"github.com/opencode-ai/cadence/internal/events"
	"github.com/opencode-ai/cadence/internal/logging"
	"github.com/opencode-ai/cadence/internal/sequences"
	"github.com/opencode-ai/cadence/internal/timeline"
)

// Output modes for step messages.
const (
	outputText = "text"
	outputLog  = "log"
)

func currentConfig() *config.Config {
	if cfg := GetConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{}
}

func loadSequences() ([]*sequences.Sequence, error) {
	return sequences.LoadSequencesFromSearchPaths(currentConfig().Sequences.ProjectDir)
}

func lookupSequence(name string) (*sequences.Sequence, error) {
	normalized, err := normalizeSequenceName(name)
	if err != nil {
		return nil, err
	}
	items, err := loadSequences()
	if err != nil {
		return nil, err
	}
	seq := findSequenceByName(items, normalized)
	if seq == nil {
		return nil, fmt.Errorf("sequence %q not found", normalized)
	}
	return seq, nil
}

// history bundles the run history store for a command.
type history struct {
	db       *db.DB
	runs     *db.RunRepository
	events   *db.EventRepository
	recorder *events.Recorder
}

// openHistory opens the history database. It returns nil when history is
// disabled.
func openHistory(ctx context.Context) (*history, error) {
	cfg := currentConfig()
	if !cfg.History.Enabled {
		return nil, nil
	}

	database, err := db.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	runs := db.NewRunRepository(database)
	eventsRepo := db.NewEventRepository(database)
	return &history{
		db:       database,
		runs:     runs,
		events:   eventsRepo,
		recorder: events.NewRecorder(runs, eventsRepo),
	}, nil
}

func (h *history) Close() error {
	if h == nil {
		return nil
	}
	return h.db.Close()
}

func (h *history) observer() timeline.Observer {
	if h == nil {
		return nil
	}
	return h.recorder
}

type buildOptions struct {
	vars     map[string]string
	policy   string
	output   string
	out      io.Writer
	observer timeline.Observer
}

func buildSequence(def *sequences.Sequence, opts buildOptions) (*timeline.Sequence, error) {
	var sink sequences.Sink
	switch strings.ToLower(strings.TrimSpace(opts.output)) {
	case "", outputText:
		sink = sequences.NewWriterSink(opts.out)
	case outputLog:
		sink = sequences.LoggerSink{Logger: logging.Component("sequence")}
	default:
		return nil, fmt.Errorf("unknown output %q (want %s or %s)", opts.output, outputText, outputLog)
	}

	var extra []timeline.Option
	policy := opts.policy
	if policy == "" {
		policy = currentConfig().Sequences.Policy
	}
	if policy != "" {
		parsed, err := timeline.ParsePolicy(policy)
		if err != nil {
			return nil, err
		}
		extra = append(extra, timeline.WithPolicy(parsed))
	}
	if opts.observer != nil {
		extra = append(extra, timeline.WithObserver(opts.observer))
	}

	return sequences.Build(def, opts.vars, sink, extra...)
}

func findSequenceByName(items []*sequences.Sequence, name string) *sequences.Sequence {
	for _, item := range items {
		if strings.EqualFold(item.Name, name) {
			return item
		}
	}
	return nil
}

func filterSequences(items []*sequences.Sequence, tags []string) []*sequences.Sequence {
	if len(tags) == 0 {
		return items
	}
	wanted := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		wanted[strings.ToLower(strings.TrimSpace(tag))] = struct{}{}
	}

	filtered := make([]*sequences.Sequence, 0, len(items))
	for _, item := range items {
		for _, tag := range item.Tags {
			if _, ok := wanted[strings.ToLower(tag)]; ok {
				filtered = append(filtered, item)
				break
			}
		}
	}
	return filtered
}

func parseSequenceVars(values []string) (map[string]string, error) {
	vars := make(map[string]string)
	for _, value := range values {
		for _, pair := range strings.Split(value, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			key, val, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, fmt.Errorf("invalid variable %q (expected key=value)", pair)
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return nil, fmt.Errorf("invalid variable %q (empty key)", pair)
			}
			vars[key] = strings.TrimSpace(val)
		}
	}
	return vars, nil
}

func normalizeSequenceName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("sequence name is required")
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid sequence name %q", name)
	}
	return name, nil
}

func sequenceSourceLabel(source, userDir, projectDir string) string {
	if source == "builtin" {
		return "builtin"
	}
	if projectDir != "" && strings.HasPrefix(source, projectDir+string(filepath.Separator)) {
		return "project"
	}
	if userDir != "" && strings.HasPrefix(source, userDir+string(filepath.Separator)) {
		return "user"
	}
	return "file"
}

func userSequencesDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "cadence", "sequences")
}

func projectSequencesDir() string {
	dir := currentConfig().Sequences.ProjectDir
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, ".cadence", "sequences")
}
