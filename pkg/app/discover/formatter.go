package discover

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/deploymenttheory/go-squashfs/pkg/app"
)

// FormatOutput formats discovery results according to output format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case app.FormatJSON:
		return app.EncodeJSON(w, response)
	case app.FormatYAML:
		return app.EncodeYAML(w, response)
	case app.FormatTable:
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// formatTable formats results as a table
func formatTable(w io.Writer, response *Response) error {
	if len(response.Files) == 0 {
		fmt.Fprintln(w, "No files found matching the search criteria.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "PATH\tNAME\tSIZE\tMODIFIED\tTYPE\n")
	fmt.Fprintf(tw, "----\t----\t----\t--------\t----\n")

	// Sort files by path for consistent output
	files := make([]FileResult, len(response.Files))
	copy(files, response.Files)
	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	for _, file := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			file.Path, file.Name, file.FormatSize(), file.Modified.Format("2006-01-02 15:04"), file.Type)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nArchive: %s (%s)\n", response.ArchiveInfo.Path, response.ArchiveInfo.Compression)
	fmt.Fprintf(w, "Found %d files", response.TotalFound)
	if response.Truncated {
		fmt.Fprintf(w, " (showing first %d)", len(response.Files))
	}
	fmt.Fprintf(w, " in %v\n", response.SearchTime)
	return nil
}

// FormatSummary provides a brief summary for verbose output
func FormatSummary(response *Response) string {
	if response.TotalFound == 0 {
		return "No files found"
	}

	summary := fmt.Sprintf("Found %d file", response.TotalFound)
	if response.TotalFound != 1 {
		summary += "s"
	}
	if response.Truncated {
		summary += fmt.Sprintf(" (showing %d)", len(response.Files))
	}

	var totalSize uint64
	for _, file := range response.Files {
		if file.Size > 0 {
			totalSize += uint64(file.Size)
		}
	}
	summary += fmt.Sprintf(" totaling %s", app.FormatBytes(totalSize))
	summary += fmt.Sprintf(" in %v", response.SearchTime)
	return summary
}
