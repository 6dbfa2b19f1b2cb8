package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-squashfs/pkg/app"
)

func TestNewContext(t *testing.T) {
	t.Cleanup(func() {
		outputFormat, configFile, verbose, quiet = "table", "", false, false
	})

	dir := t.TempDir()
	path := filepath.Join(dir, "squashfs-config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache_size: 2\n"), 0o644))

	configFile = path
	outputFormat = app.FormatJSON
	verbose = true

	ctx, err := newContext()
	require.NoError(t, err)
	defer ctx.Close()

	assert.Equal(t, app.FormatJSON, ctx.OutputFormat)
	assert.Equal(t, 2, ctx.Config.CacheSize)
	assert.Equal(t, logrus.DebugLevel, ctx.Logger.GetLevel())
	assert.NotNil(t, ctx.ProgressCallback)

	outputFormat = "xml"
	_, err = newContext()
	assert.Equal(t, app.ErrCodeInvalidInput, app.ClassifyError(err))

	outputFormat = app.FormatTable
	configFile = filepath.Join(dir, "missing.yaml")
	_, err = newContext()
	assert.Equal(t, app.ErrCodeInvalidInput, app.ClassifyError(err))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"inspect", "list", "extract", "discover", "config"} {
		assert.True(t, names[want], want)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("offset"))
	assert.Equal(t, app.ArchiveTarget{ArchivePath: "a.sqfs", Offset: -1}, archiveTarget("a.sqfs"))
}
