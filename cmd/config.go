package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-squashfs/pkg/app"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the configuration used to open archives after the configuration
file and SQUASHFS_* environment variables are applied.`,

	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfig()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig() error {
	ctx, err := newContext()
	if err != nil {
		return err
	}
	defer ctx.Close()

	settings := map[string]any{
		"auto_detect_offset": ctx.Config.AutoDetectOffset,
		"default_offset":     ctx.Config.DefaultOffset,
		"cache_enabled":      ctx.Config.CacheEnabled,
		"cache_size":         ctx.Config.CacheSize,
		"compressor_flags":   ctx.Config.CompressorFlags,
		"test_data_path":     ctx.Config.TestDataPath,
	}

	switch ctx.OutputFormat {
	case app.FormatJSON:
		return app.EncodeJSON(ctx.Out, settings)
	case app.FormatYAML:
		return app.EncodeYAML(ctx.Out, settings)
	}

	w := tabwriter.NewWriter(ctx.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SETTING\tVALUE\n")
	for _, key := range []string{"auto_detect_offset", "default_offset", "cache_enabled", "cache_size", "compressor_flags", "test_data_path"} {
		fmt.Fprintf(w, "%s\t%v\n", key, settings[key])
	}
	return w.Flush()
}
