package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/ni/internal/version"
)

var versionFormat string

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for ni: version, commit, build time,
Go version and target platform.

Examples:
  ni version                 # Show short version
  ni version --format json   # Output as JSON`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeVersion(cmd.OutOrStdout(), version.Get(), versionFormat)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json, yaml)")
}

func writeVersion(w io.Writer, info version.Info, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(info)
	case "text":
		fmt.Fprintf(w, "ni %s", info.Short())
		if info.Dirty {
			fmt.Fprint(w, " (dirty)")
		}
		fmt.Fprintln(w)
		if !info.BuildTime.IsZero() {
			fmt.Fprintf(w, "Built: %s\n", info.BuildTime.Format(time.RFC3339))
		}
		fmt.Fprintf(w, "Go: %s %s\n", info.GoVersion, info.Platform)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json, yaml)", format)
	}
}
