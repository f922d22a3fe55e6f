package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	cfgpkg "github.com/rzbill/tailview/internal/config"
	logpkg "github.com/rzbill/tailview/pkg/log"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "tailview",
		Short:        "Stream, persist and browse a remote log",
		Long:         "tailview ingests a newline-delimited text stream into a durable local store and lets you browse it, following the tail or scrolling freely.",
		SilenceUsage: true,
	}
	f := rootCmd.PersistentFlags()
	f.String("config", os.Getenv("TAILVIEW_CONFIG"), "Config file (.json, .yaml or .yml)")
	f.String("data-dir", "", "Data directory (if not specified, uses the per-user application data directory)")
	f.String("backend", "", "Store backend: pebble|sqlite|memory")
	f.String("fsync", "", "Fsync mode: always|interval|never")
	f.Int("fsync-interval-ms", 0, "When --fsync=interval, group-commit window in ms")
	f.String("log-level", "", "Log level: debug|info|warn|error")
	f.String("log-format", "", "Log format: text|json")

	rootCmd.AddCommand(
		newViewCmd(),
		newServeCmd(),
		newCountCmd(),
		newLogsCmd(),
		newClearCmd(),
	)
	return rootCmd
}

// loadConfig layers defaults, the config file, TAILVIEW_* variables and
// explicitly set flags, in that order.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, err
	}
	cfgpkg.FromEnv(&cfg)

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.Store.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("backend") {
		cfg.Store.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("fsync") {
		cfg.Store.Fsync, _ = flags.GetString("fsync")
	}
	if flags.Changed("fsync-interval-ms") {
		cfg.Store.FsyncIntervalMs, _ = flags.GetInt("fsync-interval-ms")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Log.Format, _ = flags.GetString("log-format")
	}
	if cfg.Store.DataDir == "" {
		cfg.Store.DataDir = cfgpkg.DefaultDataDir()
	}
	if err := cfg.Validate(); err != nil {
		return cfgpkg.Config{}, err
	}
	return cfg, nil
}

// newLogger builds the process logger. toFile sends output to a log file in
// the data directory so a full-screen terminal UI stays clean.
func newLogger(cfg cfgpkg.Config, toFile bool) (logpkg.Logger, error) {
	lc := &logpkg.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}
	if toFile {
		if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		lc.Outputs = []string{"file:" + filepath.Join(cfg.Store.DataDir, "tailview.log")}
	}
	logger, err := logpkg.ApplyConfig(lc)
	if err != nil {
		return nil, err
	}
	// Pebble and net/http write through the standard library logger.
	logpkg.RedirectStdLog(logger)
	return logger, nil
}
