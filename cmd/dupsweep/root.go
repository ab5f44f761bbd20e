package main

import (
	"fmt"
	"os"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/config"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	configErr error

	rootCmd = &cobra.Command{
		Use:   "dupsweep [path]",
		Short: "Find files with identical content",
		Long: `Dupsweep walks a directory tree, hashes every regular file and reports
groups of files whose contents are byte-identical.

Examples:
  dupsweep                       # Scan the current directory
  dupsweep ~/Pictures            # Scan a specific directory
  dupsweep -a xxh3-128 --cache . # Fast non-cryptographic digest, cached
  dupsweep -s 1M -o json .       # Files of 1 MiB or more, as JSON
  dupsweep -o null . | xargs -0  # NUL separated paths for scripting
  dupsweep algorithms            # List digest algorithms`,
		Args:               cobra.MaximumNArgs(1),
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  initializeLogging,
		PersistentPostRunE: closeLogging,
		RunE:               runScan,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ~/.config/dupsweep/config.yaml)")
	flags.BoolP("quiet", "q", false, "minimal output")
	flags.BoolP("verbose", "v", false, "debug output on stderr")

	scanFlags := rootCmd.Flags()
	scanFlags.StringP("algorithm", "a", "", "digest algorithm (see 'dupsweep algorithms')")
	scanFlags.IntP("workers", "w", 0, "hash worker count (0=auto)")
	scanFlags.Int("queue-size", 0, "work queue capacity (0=auto)")
	scanFlags.String("chunk-size", "", "read buffer per worker (e.g. 64K, 1M)")
	scanFlags.StringP("min-size", "s", "", "skip files smaller than this (e.g. 1K, 100M)")
	scanFlags.StringSliceP("exclude", "e", nil, "exclude glob or absolute path (repeatable)")
	scanFlags.Bool("exclude-hidden", false, "skip dotfiles and dot-directories")
	scanFlags.Bool("no-recurse", false, "only scan the top-level directory")
	scanFlags.Bool("follow-dir-links", false, "descend into symlinked directories")
	scanFlags.Bool("fast-walk", false, "list directories in parallel")
	scanFlags.Bool("prefilter-size", false, "only hash files whose size is shared")
	scanFlags.Bool("cache", false, "reuse digests of unchanged files between runs")
	scanFlags.StringP("output", "o", "", "output format (pretty, plain, json, jsonl, yaml, csv, tsv, markdown, paths, null, template)")
	scanFlags.String("template", "", "Go template used with -o template")
	scanFlags.Bool("progress", false, "show a live progress view on stderr")

	bindings := map[string]string{
		"quiet":            "quiet",
		"verbose":          "verbose",
		"algorithm":        "algorithm",
		"workers.hash":     "workers",
		"queue_size":       "queue-size",
		"chunk_size":       "chunk-size",
		"min_size":         "min-size",
		"exclude":          "exclude",
		"exclude_hidden":   "exclude-hidden",
		"no_recurse":       "no-recurse",
		"follow_dir_links": "follow-dir-links",
		"fast_walk":        "fast-walk",
		"prefilter_size":   "prefilter-size",
		"cache.enabled":    "cache",
		"output":           "output",
		"template":         "template",
		"progress":         "progress",
	}
	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			flag = scanFlags.Lookup(name)
		}
		_ = viper.BindPFlag(key, flag)
	}
}

// initConfig reads in config file and environment variables.
func initConfig() {
	configErr = config.Configure(viper.GetViper(), cfgFile)
}

// loadConfig decodes the merged flag, environment, file and default values.
func loadConfig() (*config.Config, error) {
	if configErr != nil {
		return nil, configErr
	}
	return config.Decode(viper.GetViper())
}

// initializeLogging is the PersistentPreRunE hook. It opens the log file and
// routes console output according to --verbose and --progress.
func initializeLogging(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logCfg, err := cfg.LoggingSetup()
	if err != nil {
		return err
	}

	if getVerbose() {
		logCfg.Level = logging.LevelDebug.String()
		logCfg.ConsoleLevel = logging.LevelDebug.String()
	} else if !getQuiet() {
		logCfg.ConsoleLevel = logging.LevelError.String()
	}
	logCfg.Capture = viper.GetBool("progress")

	if err := logging.Init(logCfg); err != nil {
		// A broken log file must not prevent scanning.
		printVerbose("logging disabled: %v", err)
	}
	return nil
}

func closeLogging(_ *cobra.Command, _ []string) error {
	return logging.Close()
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError("%v", err)
	}
	return err
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message to stderr if quiet mode is not enabled.
// Stdout is reserved for the report.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
