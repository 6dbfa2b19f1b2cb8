package list

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/deploymenttheory/go-squashfs/pkg/app"
)

// FormatOutput formats listing results according to output format
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

// formatTable formats results in archive order, one entry per row
func formatTable(w io.Writer, response *Response) error {
	if len(response.Entries) == 0 {
		fmt.Fprintf(w, "%s is empty.\n", response.Path)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "MODE\tOWNER\tSIZE\tMODIFIED\tPATH\n")
	fmt.Fprintf(tw, "----\t-----\t----\t--------\t----\n")

	for _, e := range response.Entries {
		size := fmt.Sprintf("%d", e.Size)
		if e.Device != "" {
			size = e.Device
		}
		name := e.Path
		if e.LinkTarget != "" {
			name += " -> " + e.LinkTarget
		}
		fmt.Fprintf(tw, "%s\t%d/%d\t%s\t%s\t%s\n",
			e.Permissions, e.Owner, e.Group, size, e.Modified.Format("2006-01-02 15:04"), name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d directories, %d files (%s), %d symlinks, %d other\n",
		response.Counts.Directories, response.Counts.Files, app.FormatBytes(response.TotalSize),
		response.Counts.Symlinks, response.Counts.Other)
	return nil
}
