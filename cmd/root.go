package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/gradekit/internal/config"
	"github.com/abhisek/gradekit/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "gradekit",
	Short: "Grade scanned exam sheets",
	Long: "gradekit recognizes answers on scanned exam sheets, scores them against the answer key,\n" +
		"asks an AI model for subjective questions and keeps a per-student mistake ledger.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		v := config.New(cmd.Flags())
		config.SetupLogging(os.Stderr, v.GetString(config.FlagLogLevel), v.GetString(config.FlagLogFormat))
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(gradeCmd)
	rootCmd.AddCommand(submissionsCmd)
	rootCmd.AddCommand(overrideCmd)
	rootCmd.AddCommand(mistakesCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves flags, GRADEKIT_* variables and gradekit.yaml.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	return config.Load(config.New(cmd.Flags()))
}

// resolveDBPath returns the database path using --db (highest priority),
// then GRADEKIT_DB, then the default XDG path.
func resolveDBPath(cfg config.Config) (string, error) {
	if cfg.DBPath != "" {
		return cfg.DBPath, store.EnsureDir(cfg.DBPath)
	}
	return store.DefaultDBPath()
}

// openStore loads the config and opens the database it points to.
func openStore(cmd *cobra.Command) (*store.Store, config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, err
	}
	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		return nil, cfg, err
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, cfg, err
	}
	return st, cfg, nil
}
