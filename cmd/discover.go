package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-squashfs/pkg/app/discover"
)

var (
	discoverStartPath string

	// File matching criteria
	namePattern   string
	nameRegex     string
	extensions    []string
	caseSensitive bool
	nodeTypes     []string

	// Size criteria
	minSize string
	maxSize string

	// Date criteria
	modifiedAfter  string
	modifiedBefore string

	// Content search
	contentSearch string
	maxResults    int
)

var discoverCmd = &cobra.Command{
	Use:   "discover [archive-path]",
	Short: "Find files by name, extension, size, date, or content",
	Long: `Search for files within a SquashFS archive using various criteria.

Examples:
  # Find all PDF files
  squashfs discover backup.sqfs --ext pdf

  # Find files with "password" in name below /home
  squashfs discover backup.sqfs --path /home --name "*password*"

  # Find large files
  squashfs discover backup.sqfs --type file --min-size 100MB

  # Search file contents for specific text
  squashfs discover backup.sqfs --content "secret" --ext txt,log`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiscover(args[0])
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().StringVarP(&discoverStartPath, "path", "p", "/", "directory to search")

	// File matching
	discoverCmd.Flags().StringVarP(&namePattern, "name", "n", "", "filename pattern (wildcards: *, ?)")
	discoverCmd.Flags().StringVar(&nameRegex, "regex", "", "filename regex pattern")
	discoverCmd.Flags().StringSliceVar(&extensions, "ext", nil, "file extensions (pdf,jpg,txt)")
	discoverCmd.Flags().BoolVar(&caseSensitive, "case-sensitive", false, "case-sensitive matching")
	discoverCmd.Flags().StringSliceVarP(&nodeTypes, "type", "t", nil, "node types (file,directory,symlink,block-device,char-device,fifo,socket)")

	// Size filtering
	discoverCmd.Flags().StringVar(&minSize, "min-size", "", "minimum file size (10MB, 1GB)")
	discoverCmd.Flags().StringVar(&maxSize, "max-size", "", "maximum file size (100MB, 2GB)")

	// Date filtering
	discoverCmd.Flags().StringVar(&modifiedAfter, "after", "", "modified after (YYYY-MM-DD)")
	discoverCmd.Flags().StringVar(&modifiedBefore, "before", "", "modified before (YYYY-MM-DD)")

	// Content search
	discoverCmd.Flags().StringVarP(&contentSearch, "content", "c", "", "search text within files")
	discoverCmd.Flags().IntVar(&maxResults, "limit", 1000, "maximum results")

	discoverCmd.MarkFlagsMutuallyExclusive("name", "regex")
}

func runDiscover(archivePath string) error {
	ctx, err := newContext()
	if err != nil {
		return err
	}
	defer ctx.Close()

	request := &discover.Request{
		Target:         archiveTarget(archivePath),
		StartPath:      discoverStartPath,
		NamePattern:    namePattern,
		NameRegex:      nameRegex,
		Extensions:     extensions,
		CaseSensitive:  caseSensitive,
		Types:          nodeTypes,
		MinSize:        minSize,
		MaxSize:        maxSize,
		ModifiedAfter:  modifiedAfter,
		ModifiedBefore: modifiedBefore,
		ContentSearch:  contentSearch,
		MaxResults:     maxResults,
	}

	response, err := discover.Handle(ctx, request)
	if err != nil {
		return err
	}
	if ctx.Verbose {
		ctx.Log(discover.FormatSummary(response))
	}
	return discover.FormatOutput(ctx.Out, response, ctx.OutputFormat)
}
