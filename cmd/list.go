package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-squashfs/pkg/app/list"
)

var (
	listPath      string
	listRecursive bool
	listFollow    bool
	listExclude   []string
)

var listCmd = &cobra.Command{
	Use:   "list [archive-path]",
	Short: "List directory contents",
	Long: `List the contents of a directory inside a SquashFS archive.

Examples:
  # List the root directory
  squashfs list rootfs.sqfs

  # List a tree without device nodes or empty directories
  squashfs list rootfs.sqfs --path /etc --recursive --exclude devices,empty`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(args[0])
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listPath, "path", "p", "/", "directory to list")
	listCmd.Flags().BoolVarP(&listRecursive, "recursive", "r", false, "list subdirectories recursively")
	listCmd.Flags().BoolVarP(&listFollow, "follow", "L", false, "follow symbolic links")
	listCmd.Flags().StringSliceVar(&listExclude, "exclude", nil, "node kinds to leave out (devices,sockets,fifos,symlinks,empty)")
}

func runList(archivePath string) error {
	ctx, err := newContext()
	if err != nil {
		return err
	}
	defer ctx.Close()

	request := &list.Request{
		Target:         archiveTarget(archivePath),
		Path:           listPath,
		Recursive:      listRecursive,
		FollowSymlinks: listFollow,
		Exclude:        listExclude,
	}

	response, err := list.Handle(ctx, request)
	if err != nil {
		return err
	}
	return list.FormatOutput(ctx.Out, response, ctx.OutputFormat)
}
