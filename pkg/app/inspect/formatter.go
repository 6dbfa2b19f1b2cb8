package inspect

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/deploymenttheory/go-squashfs/pkg/app"
)

// FormatOutput formats inspection results according to output format
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

// formatTable formats results as aligned key/value sections
func formatTable(w io.Writer, response *Response) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	a := response.Archive
	fmt.Fprintf(tw, "Archive:\t%s\n", a.Path)
	fmt.Fprintf(tw, "Fingerprint:\t%s\n", a.Fingerprint)
	fmt.Fprintf(tw, "Version:\t%s\n", a.Version)
	fmt.Fprintf(tw, "Compression:\t%s\n", a.Compression)
	if len(a.CompressorOptions) > 0 {
		fmt.Fprintf(tw, "Compressor options:\t%s\n", formatOptions(a.CompressorOptions))
	}
	fmt.Fprintf(tw, "Block size:\t%s\n", app.FormatBytes(uint64(a.BlockSize)))
	fmt.Fprintf(tw, "Inodes:\t%d\n", a.InodeCount)
	fmt.Fprintf(tw, "Fragments:\t%d\n", a.FragmentCount)
	fmt.Fprintf(tw, "IDs:\t%d\n", a.IDCount)
	fmt.Fprintf(tw, "Bytes used:\t%d (%s)\n", a.BytesUsed, app.FormatBytes(a.BytesUsed))
	fmt.Fprintf(tw, "Modified:\t%s\n", a.Modified.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(tw, "Flags:\t%s\n", strings.Join(a.Flags, ", "))
	fmt.Fprintf(tw, "Exportable:\t%t\n", a.Exportable)

	fmt.Fprintf(tw, "\nTABLE\tSTART\n")
	fmt.Fprintf(tw, "-----\t-----\n")
	for _, t := range response.Tables {
		if t.Present {
			fmt.Fprintf(tw, "%s\t%d\n", t.Name, t.Start)
		} else {
			fmt.Fprintf(tw, "%s\tabsent\n", t.Name)
		}
	}

	if response.Fragments != nil {
		fmt.Fprintf(tw, "\nFRAGMENT\tOFFSET\tSIZE\tCOMPRESSED\n")
		fmt.Fprintf(tw, "--------\t------\t----\t----------\n")
		for _, f := range response.Fragments {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%t\n", f.Index, f.Offset, f.Size, f.Compressed)
		}
	}

	if file := response.File; file != nil {
		fmt.Fprintf(tw, "\nFile:\t%s (%d bytes)\n", file.Path, file.Size)
		fmt.Fprintf(tw, "LOGICAL\tLENGTH\tPHYSICAL\tSTORED\tKIND\n")
		fmt.Fprintf(tw, "-------\t------\t--------\t------\t----\n")
		for _, b := range file.Blocks {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%s\n", b.LogicalOffset, b.LogicalSize, b.PhysicalOffset, b.PhysicalSize, b.Kind)
		}
	}

	return tw.Flush()
}

func formatOptions(options map[string]uint32) string {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, options[k]))
	}
	return strings.Join(parts, " ")
}
