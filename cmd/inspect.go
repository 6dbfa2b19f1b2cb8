package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-squashfs/pkg/app/inspect"
)

var (
	inspectFragments bool
	inspectFile      string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [archive-path]",
	Short: "Show archive metadata, tables, fragments and file layout",
	Long: `Show the super block of a SquashFS archive along with the location of
its tables. Optionally list the fragment table or the block layout of one file.

Examples:
  # Summarize an archive
  squashfs inspect rootfs.sqfs

  # Include the fragment table
  squashfs inspect rootfs.sqfs --fragments

  # Show where the blocks of one file are stored
  squashfs inspect rootfs.sqfs --file /usr/bin/busybox -o json`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(args[0])
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().BoolVar(&inspectFragments, "fragments", false, "list the fragment table")
	inspectCmd.Flags().StringVar(&inspectFile, "file", "", "show the block layout of a file")
}

func runInspect(archivePath string) error {
	ctx, err := newContext()
	if err != nil {
		return err
	}
	defer ctx.Close()

	request := &inspect.Request{
		Target:        archiveTarget(archivePath),
		ShowFragments: inspectFragments,
		FilePath:      inspectFile,
	}

	response, err := inspect.Handle(ctx, request)
	if err != nil {
		return err
	}
	return inspect.FormatOutput(ctx.Out, response, ctx.OutputFormat)
}
