package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-squashfs/internal/device"
	"github.com/deploymenttheory/go-squashfs/pkg/app"
)

var (
	// Global output flags
	verbose      bool
	quiet        bool
	outputFormat string

	// Global archive flags
	configFile    string
	archiveOffset int64
)

var rootCmd = &cobra.Command{
	Use:   "squashfs",
	Short: "Cross-platform SquashFS image explorer and extractor",
	Long: `squashfs is a cross-platform, read-only command-line tool for exploring
and extracting SquashFS 4.0 images.

Works directly with image files or with images embedded at an offset inside
a larger file, without mounting. Supports gzip, lzma, lzo, xz, lz4 and zstd
compressed archives.

Commands:
  inspect     Show archive metadata, tables, fragments and file layout
  list        List directory contents
  extract     Extract files or directories
  discover    Find files by name, extension, size, date, or content
  config      Show the effective configuration`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file (default: squashfs-config.yaml in the usual locations)")
	rootCmd.PersistentFlags().Int64Var(&archiveOffset, "offset", -1, "byte offset of the image inside the file (-1 detects it)")
}

// newContext builds the application context shared by every command
func newContext() (*app.Context, error) {
	if err := app.ValidateFormat(outputFormat); err != nil {
		return nil, err
	}

	config, err := device.LoadConfigFile(configFile)
	if err != nil {
		return nil, app.NewError(app.ErrCodeInvalidInput, "failed to load configuration", err)
	}

	ctx := app.NewContext()
	ctx.OutputFormat = outputFormat
	ctx.Verbose = verbose
	ctx.Quiet = quiet
	ctx.Config = config
	ctx.ApplyVerbosity()
	if verbose {
		ctx.SetProgress(func(message string, percent int) {
			fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", percent, message)
		})
	}
	return ctx, nil
}

// archiveTarget builds the target for the archive named on the command line
func archiveTarget(path string) app.ArchiveTarget {
	return app.ArchiveTarget{ArchivePath: path, Offset: archiveOffset}
}

// GetVerbose returns the verbose flag value
func GetVerbose() bool {
	return verbose
}

// GetQuiet returns the quiet flag value
func GetQuiet() bool {
	return quiet
}

// GetOutputFormat returns the output format
func GetOutputFormat() string {
	return outputFormat
}
