package sequences

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/opencode-ai/cadence/internal/timeline"
	"gopkg.in/yaml.v3"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

const builtinSource = "builtin"

// SequenceSearchPaths returns the directories searched for sequence files,
// highest precedence first: the project, the user config dir, then the
// system share dir.
func SequenceSearchPaths(projectDir string) []string {
	var paths []string
	if projectDir != "" {
		paths = append(paths, filepath.Join(projectDir, ".cadence", "sequences"))
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".config", "cadence", "sequences"))
	}
	return append(paths, filepath.Join(string(filepath.Separator), "usr", "share", "cadence", "sequences"))
}

// LoadSequencesFromSearchPaths loads every sequence visible from
// projectDir. A name defined in several places resolves to the first
// search path that has it; builtins only fill the remaining names.
func LoadSequencesFromSearchPaths(projectDir string) ([]*Sequence, error) {
	var layers [][]*Sequence
	for _, dir := range SequenceSearchPaths(projectDir) {
		found, err := LoadSequencesFromDir(dir)
		if err != nil {
			return nil, err
		}
		layers = append(layers, found)
	}
	builtins, err := LoadBuiltinSequences()
	if err != nil {
		return nil, err
	}
	return firstByName(append(layers, builtins)...), nil
}

// firstByName flattens layers, keeping the first sequence of each name.
func firstByName(layers ...[]*Sequence) []*Sequence {
	seen := make(map[string]bool)
	var resolved []*Sequence
	for _, layer := range layers {
		for _, seq := range layer {
			if seen[seq.Name] {
				continue
			}
			seen[seq.Name] = true
			resolved = append(resolved, seq)
		}
	}
	return resolved
}

// LoadBuiltinSequences returns the sequences compiled into the binary.
func LoadBuiltinSequences() ([]*Sequence, error) {
	names, err := fs.Glob(builtinFS, "builtin/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("list builtin sequences: %w", err)
	}
	builtins := make([]*Sequence, 0, len(names))
	for _, name := range names {
		data, err := builtinFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read builtin sequence %s: %w", name, err)
		}
		seq, err := parseSequence(data)
		if err != nil {
			return nil, fmt.Errorf("parse builtin sequence %s: %w", name, err)
		}
		seq.Source = builtinSource
		builtins = append(builtins, seq)
	}
	sortByName(builtins)
	return builtins, nil
}

func sortByName(items []*Sequence) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
}

// LoadSequence reads a single sequence from disk.
func LoadSequence(path string) (*Sequence, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sequence path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sequence %s: %w", path, err)
	}

	seq, err := parseSequence(data)
	if err != nil {
		return nil, fmt.Errorf("parse sequence %s: %w", path, err)
	}
	seq.Source = path
	return seq, nil
}

// LoadSequencesFromDir loads all sequences from a directory.
func LoadSequencesFromDir(dir string) ([]*Sequence, error) {
	if strings.TrimSpace(dir) == "" {
		return []*Sequence{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Sequence{}, nil
		}
		return nil, fmt.Errorf("read sequences dir %s: %w", dir, err)
	}

	sequences := make([]*Sequence, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		seq, err := LoadSequence(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		sequences = append(sequences, seq)
	}

	sortByName(sequences)
	return sequences, nil
}

func parseSequence(data []byte) (*Sequence, error) {
	var seq Sequence
	if err := yaml.Unmarshal(data, &seq); err != nil {
		return nil, err
	}

	seq.Name = strings.TrimSpace(seq.Name)
	if seq.Name == "" {
		return nil, fmt.Errorf("sequence name is required")
	}
	seq.Description = strings.TrimSpace(seq.Description)

	policy, err := timeline.ParsePolicy(seq.Policy)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(seq.Policy) != "" {
		seq.Policy = string(policy)
	}

	if len(seq.Steps) == 0 {
		return nil, fmt.Errorf("sequence steps are required")
	}

	seen := make(map[string]struct{})
	for i := range seq.Variables {
		name := strings.TrimSpace(seq.Variables[i].Name)
		if name == "" {
			return nil, fmt.Errorf("sequence variable name is required")
		}
		if _, exists := seen[name]; exists {
			return nil, fmt.Errorf("duplicate sequence variable %q", name)
		}
		seen[name] = struct{}{}
		seq.Variables[i].Name = name
	}

	for i := range seq.Steps {
		if err := normalizeStep(&seq.Steps[i]); err != nil {
			return nil, fmt.Errorf("sequence step %d: %w", i+1, err)
		}
	}

	return &seq, nil
}

func normalizeStep(step *SequenceStep) error {
	step.Name = strings.TrimSpace(step.Name)
	step.Delay = strings.TrimSpace(step.Delay)
	step.Content = strings.TrimSpace(step.Content)
	step.Message = strings.TrimSpace(step.Message)

	if step.Content == "" && step.Message != "" {
		step.Content = step.Message
	}
	if step.Content != "" && step.Message != "" && step.Content != step.Message {
		return fmt.Errorf("content and message disagree")
	}
	if step.Content == "" {
		return fmt.Errorf("message content is required")
	}

	if _, err := parseDelay(step.Delay); err != nil {
		return err
	}

	level := Level(strings.ToLower(strings.TrimSpace(string(step.Level))))
	switch level {
	case "":
		level = LevelInfo
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
	default:
		return fmt.Errorf("unknown level %q", step.Level)
	}
	step.Level = level

	return nil
}

func parseDelay(value string) (time.Duration, error) {
	if value == "" || value == "0" {
		return 0, nil
	}
	delay, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid delay: %w", err)
	}
	if delay < 0 {
		return 0, fmt.Errorf("delay must not be negative")
	}
	return delay, nil
}
