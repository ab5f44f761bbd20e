package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage dupsweep configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/dupsweep/config.yaml (if set)
  2. ~/.config/dupsweep/config.yaml

Environment variables override config file settings using the DUPSWEEP_ prefix:
  DUPSWEEP_ALGORITHM=xxh3-128
  DUPSWEEP_WORKERS_HASH=8
  DUPSWEEP_CACHE_ENABLED=true`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the configuration merged from defaults, file, environment and flags.`,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE:  runConfigPath,
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing config file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow displays the current configuration.
func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if configFile := viper.ConfigFileUsed(); configFile != "" {
		fmt.Fprintf(out, "Config file: %s\n\n", configFile)
	} else {
		fmt.Fprintln(out, "Config file: (using defaults, no file found)")
		fmt.Fprintln(out)
	}

	writeConfig(out, cfg)

	fmt.Fprintln(out, "\nEnvironment Overrides:")
	fmt.Fprintln(out, "----------------------")
	overrides := environmentOverrides(os.Environ())
	if len(overrides) == 0 {
		fmt.Fprintln(out, "(none)")
	}
	for _, kv := range overrides {
		fmt.Fprintln(out, kv)
	}

	return nil
}

func writeConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Current Configuration:")
	fmt.Fprintln(w, "----------------------")
	fmt.Fprintf(w, "algorithm:         %s\n", cfg.Algorithm)
	fmt.Fprintf(w, "chunk_size:        %s\n", cfg.ChunkSize)
	fmt.Fprintf(w, "min_size:          %s\n", cfg.MinSize)
	fmt.Fprintf(w, "default_path:      %s\n", cfg.DefaultPath)
	fmt.Fprintf(w, "exclude:           %v\n", cfg.Exclude)
	fmt.Fprintf(w, "exclude_hidden:    %t\n", cfg.ExcludeHidden)
	fmt.Fprintf(w, "recursive:         %t\n", cfg.Recursive)
	fmt.Fprintf(w, "follow_dir_links:  %t\n", cfg.FollowDirLinks)
	fmt.Fprintf(w, "fast_walk:         %t\n", cfg.FastWalk)
	fmt.Fprintf(w, "prefilter_size:    %t\n", cfg.PrefilterSize)
	fmt.Fprintf(w, "output:            %s\n", cfg.Output)
	fmt.Fprintf(w, "workers.hash:      %d\n", cfg.Workers.Hash)
	fmt.Fprintf(w, "queue_size:        %d\n", cfg.QueueSize)
	fmt.Fprintf(w, "cache.enabled:     %t\n", cfg.Cache.Enabled)
	fmt.Fprintf(w, "cache.path:        %s\n", cfg.CachePath())
	fmt.Fprintf(w, "logging.level:     %s\n", cfg.Logging.Level)
	fmt.Fprintf(w, "logging.path:      %s\n", cfg.Logging.Path)
}

// environmentOverrides returns the DUPSWEEP_ variables in env, sorted.
func environmentOverrides(env []string) []string {
	var out []string
	for _, kv := range env {
		if strings.HasPrefix(kv, config.EnvPrefix+"_") {
			out = append(out, kv)
		}
	}
	sort.Strings(out)
	return out
}

// runConfigInit creates a default config file.
func runConfigInit(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")

	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil && !force {
		printInfo("Config file already exists: %s", configPath)
		printInfo("Use 'dupsweep config init --force' to overwrite it.")
		return nil
	}

	if _, err := config.WriteDefault(force); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	printInfo("Created default config file: %s", configPath)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(cmd *cobra.Command, _ []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), configPath)

	if _, err := os.Stat(configPath); err == nil {
		printVerbose("File exists")
	} else if os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}

	return nil
}
