package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/cache"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/hasher"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the digest cache",
	Long: `Commands for managing the digest cache.

With --cache, dupsweep remembers the digest of every file it hashes, keyed by
algorithm and path. A cached digest is reused only while the file's size and
modification time are unchanged.
Cache data is stored in the XDG cache directory (typically ~/.cache/dupsweep/digests).`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [algorithm...]",
	Short: "Clear cached digests",
	Long:  `Removes cached digests for the given algorithms, or all of them.`,
	RunE:  runCacheClear,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE:  runCacheStats,
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cache location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.CachePath())
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

// openExistingCache opens the configured cache. ok is false when no cache
// has been created yet.
func openExistingCache() (c *cache.Cache, path string, ok bool, err error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", false, err
	}

	path = cfg.CachePath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, path, false, nil
	}

	c, err = cache.Open(path)
	if err != nil {
		return nil, path, false, fmt.Errorf("failed to open cache: %w", err)
	}
	return c, path, true, nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	for _, name := range args {
		if _, err := hasher.Lookup(name); err != nil {
			return err
		}
	}

	c, _, ok, err := openExistingCache()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "Cache is already empty.")
		return nil
	}
	defer c.Close()

	if err := c.Clear(args...); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
	return nil
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	c, path, ok, err := openExistingCache()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "Cache: empty (not created yet)")
		fmt.Fprintf(out, "Cache location: %s\n", path)
		return nil
	}
	defer c.Close()

	stats, err := c.Stats()
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	fmt.Fprintf(out, "Cache location: %s\n", stats.Path)
	fmt.Fprintf(out, "Cache size:     %s\n", types.FormatSize(stats.DiskSize))
	fmt.Fprintf(out, "Entries:        %d\n", stats.Entries)

	algorithms := make([]string, 0, len(stats.ByAlg))
	for alg := range stats.ByAlg {
		algorithms = append(algorithms, alg)
	}
	sort.Strings(algorithms)
	for _, alg := range algorithms {
		fmt.Fprintf(out, "  %-12s  %d\n", alg, stats.ByAlg[alg])
	}

	return nil
}
