package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/ni/internal/config"
	"github.com/conneroisu/ni/internal/routes"
)

var routesCmd = &cobra.Command{
	Use:     "routes",
	Aliases: []string{"r"},
	Short:   "Print the custom route table",
	Long: `Print the custom routes from configuration in match order.
The first rule whose matcher and method accept a request path wins.

Examples:
  ni routes                       # Table of routes
  ni routes -o yaml               # Output as YAML`,
	RunE: runRoutes,
}

var routesFlags *StandardFlags

func init() {
	rootCmd.AddCommand(routesCmd)

	routesFlags = AddStandardFlags(routesCmd, "output")
}

// routeRow is one line of routes output.
type routeRow struct {
	Kind        string   `json:"kind" yaml:"kind"`
	Matcher     string   `json:"matcher" yaml:"matcher"`
	Destination string   `json:"destination" yaml:"destination"`
	Methods     []string `json:"methods,omitempty" yaml:"methods,omitempty"`
}

func runRoutes(cmd *cobra.Command, args []string) error {
	if err := routesFlags.ValidateFlags(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	table := routes.New()
	if err := table.AddFromConfig(cfg.CustomRoutes); err != nil {
		return err
	}

	return writeRoutes(cmd.OutOrStdout(), table, routesFlags.Format(), routesFlags.Quiet)
}

func routeRows(table *routes.Table) []routeRow {
	rules := table.Rules()
	rows := make([]routeRow, len(rules))
	for i := range rules {
		rows[i] = routeRow{
			Kind:        rules[i].Kind.String(),
			Matcher:     rules[i].Matcher(),
			Destination: rules[i].Destination,
			Methods:     rules[i].Methods,
		}
	}
	return rows
}

func writeRoutes(w io.Writer, table *routes.Table, format string, quiet bool) error {
	rows := routeRows(table)

	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rows)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(rows)
	case FormatTable:
		if len(rows) == 0 {
			fmt.Fprintln(w, "No custom routes.")
			return nil
		}
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !quiet {
		fmt.Fprintln(tw, "KIND\tMATCHER\tDESTINATION\tMETHODS")
		writeSeparator(tw, "KIND", "MATCHER", "DESTINATION", "METHODS")
	}
	for _, row := range rows {
		methods := "*"
		if len(row.Methods) > 0 {
			methods = strings.Join(row.Methods, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.Kind, row.Matcher, row.Destination, methods)
	}

	return tw.Flush()
}
