// Package config loads cadence configuration from defaults, files,
// environment variables and flags.
package config

import "time"

// Config is the complete cadence configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	History   HistoryConfig   `mapstructure:"history"`
	Trigger   TriggerConfig   `mapstructure:"trigger"`
	Sequences SequencesConfig `mapstructure:"sequences"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig configures the run history database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// HistoryConfig toggles run history recording.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// TriggerConfig configures the keyboard trigger used by watch.
type TriggerConfig struct {
	Button       string        `mapstructure:"button"`
	Key          string        `mapstructure:"key"`
	QuitKey      string        `mapstructure:"quit_key"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// SequencesConfig configures where sequences come from and how they re-enter.
type SequencesConfig struct {
	// ProjectDir is searched for .cadence/sequences before user and system dirs.
	ProjectDir string `mapstructure:"project_dir"`
	// Policy overrides the re-entrancy policy of every sequence when set.
	Policy string `mapstructure:"policy"`
}
