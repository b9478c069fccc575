// Package cli implements the cadence command line.
package cli

import (
	"fmt"
	"strings"

	"github.com/opencode-ai/cadence/internal/config"
	"github.com/opencode-ai/cadence/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	logLevel   string
	logFormat  string
	dbPath     string
	projectDir string
	noHistory  bool
	noColor    bool

	v         = viper.New()
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cadence",
	Short: "Run timed step sequences",
	Long: `cadence runs named sequences of timed steps. Each step waits its delay,
then logs its message. Sequences can be run once or bound to a key and
triggered repeatedly.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initConfig()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: .cadence/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "",
		"run history database path")
	rootCmd.PersistentFlags().StringVar(&projectDir, "project", "",
		"project directory searched for .cadence/sequences")
	rootCmd.PersistentFlags().BoolVar(&noHistory, "no-history", false,
		"do not record runs")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"disable colored output")

	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = v.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	_ = v.BindPFlag("sequences.project_dir", rootCmd.PersistentFlags().Lookup("project"))
}

func initConfig() error {
	cfg, err := config.NewLoaderWithViper(v).WithConfigFile(cfgFile).Load()
	if err != nil {
		return err
	}
	if noHistory {
		cfg.History.Enabled = false
	}

	if err := logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	appConfig = cfg
	logger := logging.Component("cli")
	logger.Debug().
		Str("config", strings.TrimSpace(v.ConfigFileUsed())).
		Bool("history", cfg.History.Enabled).
		Msg("configuration loaded")
	return nil
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return appConfig
}
