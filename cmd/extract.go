package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-squashfs/pkg/app/extract"
)

var (
	extractSource        string
	extractDestination   string
	extractOverwrite     bool
	extractPreserveOwner bool
	extractFollow        bool
	extractExclude       []string
)

var extractCmd = &cobra.Command{
	Use:   "extract [archive-path]",
	Short: "Extract files or directories",
	Long: `Extract a file, a directory, or the whole archive to the host filesystem.
Device nodes, named pipes and sockets are skipped.

Examples:
  # Extract everything
  squashfs extract rootfs.sqfs --dest ./rootfs

  # Extract one directory, replacing files that already exist
  squashfs extract rootfs.sqfs --source /etc --dest ./etc --overwrite`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtract(args[0])
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&extractSource, "source", "s", "/", "archive path to extract")
	extractCmd.Flags().StringVarP(&extractDestination, "dest", "d", "", "destination directory")
	extractCmd.Flags().BoolVar(&extractOverwrite, "overwrite", false, "replace existing files")
	extractCmd.Flags().BoolVar(&extractPreserveOwner, "preserve-owner", false, "restore file owners (requires privileges)")
	extractCmd.Flags().BoolVarP(&extractFollow, "follow", "L", false, "follow symbolic links")
	extractCmd.Flags().StringSliceVar(&extractExclude, "exclude", nil, "node kinds to leave out (devices,sockets,fifos,symlinks,empty)")

	_ = extractCmd.MarkFlagRequired("dest")
}

func runExtract(archivePath string) error {
	ctx, err := newContext()
	if err != nil {
		return err
	}
	defer ctx.Close()

	request := &extract.Request{
		Target:         archiveTarget(archivePath),
		Source:         extractSource,
		Destination:    extractDestination,
		Overwrite:      extractOverwrite,
		PreserveOwner:  extractPreserveOwner,
		FollowSymlinks: extractFollow,
		Exclude:        extractExclude,
	}

	response, err := extract.Handle(ctx, request)
	if err != nil {
		return err
	}
	return extract.FormatOutput(ctx.Out, response, ctx.OutputFormat)
}
