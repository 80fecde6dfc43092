package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Output formats accepted by --output.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

var outputFormats = []string{FormatTable, FormatJSON, FormatYAML}

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Server flags
	Port int
	Host string

	// Output flags
	OutputFormat string
	Quiet        bool
}

// AddStandardFlags adds standard flags to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "server":
			addServerFlags(cmd, flags)
		case "output":
			addOutputFlags(cmd, flags)
		}
	}

	return flags
}

func addServerFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().IntVarP(&flags.Port, "port", "p", 3000, "Port to serve on")
	cmd.Flags().StringVar(&flags.Host, "host", "localhost", "Host to bind to")

	AddFlagValidation(cmd, "port", ValidatePort)
	bindFlags(cmd.Flags(), map[string]string{
		"port": "server.port",
		"host": "server.host",
	})
}

func addOutputFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.OutputFormat, "output", "o", FormatTable, "Output format (table|json|yaml)")
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress headers")

	AddFlagValidation(cmd, "output", ValidateFormat)
}

// ValidateFlags validates flag combinations and values
func (f *StandardFlags) ValidateFlags() error {
	if f.OutputFormat != "" {
		if err := ValidateFormat(f.OutputFormat); err != nil {
			return err
		}
	}
	return nil
}

// Format returns the normalized output format.
func (f *StandardFlags) Format() string {
	if f.OutputFormat == "" {
		return FormatTable
	}
	return strings.ToLower(f.OutputFormat)
}

// bindFlags binds flags to viper configuration keys.
func bindFlags(fs *pflag.FlagSet, bindings map[string]string) {
	for flagName, configKey := range bindings {
		if flag := fs.Lookup(flagName); flag != nil {
			_ = viper.BindPFlag(configKey, flag)
		}
	}
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidatePort checks a port number flag.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}

	return nil
}

// ValidateFormat checks an output format flag.
func ValidateFormat(format string) error {
	for _, valid := range outputFormats {
		if strings.EqualFold(format, valid) {
			return nil
		}
	}
	return fmt.Errorf("invalid output format %s, must be one of: %s",
		format, strings.Join(outputFormats, ", "))
}

// writeSeparator writes a dashed row matching the header widths.
func writeSeparator(w io.Writer, headers ...string) {
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(w, strings.Join(dashes, "\t"))
}
