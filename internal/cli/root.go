// Package cli wires the journalcal commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"journalcal/internal/config"
	appLog "journalcal/internal/log"
	"journalcal/internal/store"
)

const version = "0.1.0"

type options struct {
	configPath string
	verbose    bool
}

// NewRootCommand builds the journalcal command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "journalcal",
		Short: "journalcal - schedule events with recurrence rules",
		Long: `journalcal keeps a schedule of events in a YAML file, expands their
recurrence rules into concrete occurrences and serves them over HTTP.
The rrule subcommands work on rule text alone and need no config.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				appLog.SetLevel(appLog.LevelDebug)
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath(), "Path to config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newRuleCommand())
	root.AddCommand(newEventsCommand(opts))
	root.AddCommand(newImportCommand(opts))
	root.AddCommand(newExportCommand(opts))

	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	defer func() { _ = appLog.Sync() }()

	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "journalcal", "config.yaml")
}

// loadConfig loads the config and applies its log level unless --verbose
// already asked for debug.
func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", o.configPath, err)
	}
	if !o.verbose {
		appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	}
	return cfg, nil
}

func (o *options) openStore(cfg *config.Config) (*store.Store, error) {
	path := cfg.ResolveEventsFile(o.configPath)
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events file %s: %w", path, err)
	}
	return st, nil
}
