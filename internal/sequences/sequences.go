// Package sequences provides loading and building of timed message sequences.
package sequences

// Sequence is a named, ordered list of timed message steps.
type Sequence struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Policy      string         `yaml:"policy,omitempty"`
	Steps       []SequenceStep `yaml:"steps"`
	Variables   []SequenceVar  `yaml:"variables,omitempty"`
	Tags        []string       `yaml:"tags,omitempty"`
	Source      string         `yaml:"-"` // file path or "builtin"
}

// SequenceStep is a message logged after waiting Delay from the previous step.
type SequenceStep struct {
	Name    string `yaml:"name,omitempty"`
	Delay   string `yaml:"delay,omitempty"`
	Content string `yaml:"content,omitempty"`
	Message string `yaml:"message,omitempty"`
	Level   Level  `yaml:"level,omitempty"`
}

// SequenceVar describes a variable used in step messages.
type SequenceVar struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Default     string `yaml:"default,omitempty"`
	Required    bool   `yaml:"required"`
}

// Level is the severity a step message is logged at.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)
