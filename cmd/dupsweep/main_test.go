package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/config"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/hasher"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/output"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFormatter(t *testing.T) {
	f, err := resolveFormatter("", "")
	require.NoError(t, err)
	assert.IsType(t, &output.PrettyFormatter{}, f)

	f, err = resolveFormatter("json", "")
	require.NoError(t, err)
	assert.IsType(t, &output.JSONFormatter{}, f)

	_, err = resolveFormatter("template", "")
	assert.ErrorContains(t, err, "--template is required")

	f, err = resolveFormatter("template", "{{len .Groups}}")
	require.NoError(t, err)
	assert.IsType(t, &output.TemplateFormatter{}, f)

	_, err = resolveFormatter("xml", "")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestBuildScanOptions(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	cfg, err := config.Decode(v)
	require.NoError(t, err)

	opts, err := buildScanOptions(cfg, []string{"/data"})
	require.NoError(t, err)
	assert.Equal(t, "/data", opts.Root)
	assert.Equal(t, hasher.DefaultAlgorithm, opts.Algorithm)
	assert.Equal(t, hasher.DefaultChunkSize, opts.ChunkSize)
	assert.Zero(t, opts.MinSize)
	assert.False(t, opts.NoRecurse)
	assert.Equal(t, config.DefaultExclusions, opts.Exclude)

	opts, err = buildScanOptions(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPath, opts.Root)

	cfg.Recursive = false
	cfg.MinSize = "2K"
	opts, err = buildScanOptions(cfg, nil)
	require.NoError(t, err)
	assert.True(t, opts.NoRecurse)
	assert.EqualValues(t, 2048, opts.MinSize)

	cfg.ChunkSize = "lots"
	_, err = buildScanOptions(cfg, nil)
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	got := environmentOverrides([]string{
		"HOME=/home/u",
		"DUPSWEEP_WORKERS_HASH=4",
		"DUPSWEEP_ALGORITHM=md5",
		"DUPSWEEPX=1",
	})
	assert.Equal(t, []string{"DUPSWEEP_ALGORITHM=md5", "DUPSWEEP_WORKERS_HASH=4"}, got)
}

func TestScanCommandEndToEnd(t *testing.T) {
	root := t.TempDir()
	for name, content := range map[string]string{
		"a.txt":     "hello",
		"b.txt":     "hello",
		"sub/c.txt": "world",
	} {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"-q", "-o", "json", root})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	var doc struct {
		Root   string `json:"root"`
		Groups []struct {
			Digest string   `json:"digest"`
			Paths  []string `json:"paths"`
		} `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, root, doc.Root)
	require.Len(t, doc.Groups, 1)
	assert.Equal(t, []string{filepath.Join(root, "a.txt"), filepath.Join(root, "b.txt")}, doc.Groups[0].Paths)
}

func TestAlgorithmsCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"algorithms"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	text := out.String()
	assert.Contains(t, text, "sha256 (default)")
	for _, name := range hasher.Names() {
		assert.Contains(t, text, name)
	}
	assert.Equal(t, len(hasher.Names())+1, strings.Count(strings.TrimSpace(text), "\n")+1)
}
