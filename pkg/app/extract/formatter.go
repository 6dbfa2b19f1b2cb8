package extract

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/deploymenttheory/go-squashfs/pkg/app"
)

// FormatOutput formats extraction results according to output format
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

func formatTable(w io.Writer, response *Response) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Source:\t%s\n", response.Source)
	fmt.Fprintf(tw, "Destination:\t%s\n", response.Destination)
	fmt.Fprintf(tw, "Directories:\t%d\n", response.Directories)
	fmt.Fprintf(tw, "Files:\t%d (%s)\n", response.Files, app.FormatBytes(response.Bytes))
	fmt.Fprintf(tw, "Symlinks:\t%d\n", response.Symlinks)
	if response.Skipped > 0 {
		fmt.Fprintf(tw, "Skipped:\t%d special files\n", response.Skipped)
	}
	fmt.Fprintf(tw, "Duration:\t%v\n", response.Duration)
	return tw.Flush()
}
