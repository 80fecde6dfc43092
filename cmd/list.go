package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/ni/internal/app"
	"github.com/conneroisu/ni/internal/config"
	"github.com/conneroisu/ni/internal/registry"
	"github.com/conneroisu/ni/internal/types"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List the artifacts loaded by boot",
	Long: `Boot the application and list every loaded artifact by collection.

Examples:
  ni list --root ./app            # Table of kind, name and view path
  ni list -o json                 # Output as JSON
  ni list -o yaml -q              # YAML without progress output`,
	RunE: runList,
}

var listFlags *StandardFlags

func init() {
	rootCmd.AddCommand(listCmd)

	listFlags = AddStandardFlags(listCmd, "output")
}

// artifactRow is one line of list output.
type artifactRow struct {
	Kind string `json:"kind" yaml:"kind"`
	Name string `json:"name" yaml:"name"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	if err := listFlags.ValidateFlags(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	if err := a.Boot(context.Background()); err != nil {
		return err
	}

	return writeArtifacts(cmd.OutOrStdout(), a.Store(), listFlags.Format(), listFlags.Quiet)
}

func artifactRows(store *registry.Store) []artifactRow {
	var rows []artifactRow
	for _, kind := range types.Kinds {
		for _, name := range store.Names(kind) {
			row := artifactRow{Kind: string(kind), Name: name}
			if kind == types.KindViews {
				if view, ok := store.View(name); ok {
					row.Path = view.Path
				}
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func writeArtifacts(w io.Writer, store *registry.Store, format string, quiet bool) error {
	rows := artifactRows(store)

	switch format {
	case FormatJSON:
		if rows == nil {
			rows = []artifactRow{}
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rows)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(rows)
	case FormatTable:
		if len(rows) == 0 {
			fmt.Fprintln(w, "No artifacts found.")
			return nil
		}
		return writeArtifactTable(w, rows, quiet)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writeArtifactTable(w io.Writer, rows []artifactRow, quiet bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if !quiet {
		fmt.Fprintln(tw, "KIND\tNAME\tPATH")
		writeSeparator(tw, "KIND", "NAME", "PATH")
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", row.Kind, row.Name, row.Path)
	}

	return tw.Flush()
}
