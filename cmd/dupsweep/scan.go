package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jamesainslie/dupsweep/cmd/dupsweep/tui"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/cache"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/config"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/logging"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/output"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/scanner"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/tuner"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runScan is the main scan command handler.
func runScan(cmd *cobra.Command, args []string) error {
	log := logging.Get("cli")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts, err := buildScanOptions(cfg, args)
	if err != nil {
		return err
	}

	formatter, err := resolveFormatter(cfg.Output, viper.GetString("template"))
	if err != nil {
		return err
	}

	resources, err := tuner.Detect()
	if err == nil {
		printVerbose("System: %d CPUs, %s RAM, %s available",
			resources.CPUCores,
			types.FormatSize(resources.TotalRAM),
			types.FormatSize(resources.AvailableRAM))
	}

	if cfg.Cache.Enabled {
		c, err := cache.Open(cfg.CachePath())
		if err != nil {
			// Another dupsweep may hold the cache lock.
			printInfo("Warning: digest cache unavailable, hashing everything: %v", err)
			log.Warn("cache unavailable", "path", cfg.CachePath(), "error", err)
		} else {
			defer c.Close()
			opts.Cache = c
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := scanner.New(opts)
	opts = s.Options()
	printVerbose("Config: %s, %d hash workers, queue size %d, chunk %s",
		opts.Algorithm, opts.HashWorkers, opts.QueueSize, types.FormatSize(int64(opts.ChunkSize)))

	var report *types.DuplicateReport
	if viper.GetBool("progress") {
		model := tui.NewProgressModel(opts.Root, opts.Algorithm, s.Progress)
		err = tui.Run(ctx, os.Stderr, model, func(ctx context.Context) error {
			var scanErr error
			report, scanErr = s.Scan(ctx)
			return scanErr
		})
	} else {
		report, err = s.Scan(ctx)
	}

	if report == nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, tui.ErrAborted) {
			return fmt.Errorf("scan failed: %w", err)
		}
		printInfo("Scan interrupted, showing partial results")
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, report); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(buf.Bytes())
	return err
}

// buildScanOptions turns the merged configuration and arguments into
// scanner options.
func buildScanOptions(cfg *config.Config, args []string) (scanner.Options, error) {
	scanPath := cfg.DefaultPath
	if len(args) > 0 {
		scanPath = args[0]
	}
	root, err := config.ExpandPath(scanPath)
	if err != nil {
		return scanner.Options{}, fmt.Errorf("failed to expand path: %w", err)
	}

	minSize, err := cfg.MinSizeBytes()
	if err != nil {
		return scanner.Options{}, err
	}
	chunkSize, err := cfg.ChunkSizeBytes()
	if err != nil {
		return scanner.Options{}, err
	}

	return scanner.Options{
		Root:           root,
		Algorithm:      cfg.Algorithm,
		ChunkSize:      chunkSize,
		MinSize:        minSize,
		Exclude:        cfg.Exclude,
		ExcludeHidden:  cfg.ExcludeHidden,
		NoRecurse:      !cfg.Recursive || viper.GetBool("no_recurse"),
		FollowDirLinks: cfg.FollowDirLinks,
		FastWalk:       cfg.FastWalk,
		SizePrefilter:  cfg.PrefilterSize,
		HashWorkers:    cfg.Workers.Hash,
		QueueSize:      cfg.QueueSize,
	}, nil
}

// resolveFormatter looks up the output formatter. The template format
// requires a template string.
func resolveFormatter(name, tmpl string) (output.Formatter, error) {
	if name == "" {
		name = config.DefaultOutput
	}

	if name == "template" {
		if tmpl == "" {
			return nil, errors.New("--template is required when using -o template")
		}
		return output.NewTemplateFormatter(tmpl), nil
	}

	formatter, err := output.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown output format %q: available formats are %v", name, output.Available())
	}
	return formatter, nil
}
