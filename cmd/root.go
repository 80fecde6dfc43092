// Package cmd provides the command-line interface for ni applications.
//
// Configuration System:
//
//	Settings are read from several sources, highest priority first:
//	1. Command-line flags (--config, --port, etc.)
//	2. Individual environment variables (NI_ROOT, NI_SERVER_PORT, etc.)
//	3. NI_CONFIG_FILE environment variable: custom config file path
//	4. Configuration file (.ni.yml in the working directory)
//
//	A .env file in the working directory is loaded into the process
//	environment before any of the above are read.
//
// Environment Variables:
//
//	NI_CONFIG_FILE: Path to custom configuration file
//	NI_ROOT: Application directory holding controllers/, views/, ...
//	NI_AUTOMATIC_VIEWS: Render views after actions
//	NI_SERVER_PORT, NI_SERVER_HOST: Listen address
//	NI_LOG_LEVEL, NI_LOG_FORMAT: Logging
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ConfigFileEnv names the environment variable selecting a config file.
const ConfigFileEnv = "NI_CONFIG_FILE"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ni",
	Short: "A minimal MVC application server",
	Long: `ni boots an application directory (controllers, models, views,
libraries and helpers) and serves it, mapping /controller/action/args...
onto controller actions.

Quick Start:
  ni serve --root ./app          Boot ./app and serve it
  ni list --root ./app           List the artifacts a boot would load
  ni routes                      Print the custom route table
  ni version                     Show version information

Applications with code:
  Controllers, models, libraries and helpers are Go packages compiled
  into the binary. They register themselves from init() with
  catalog.Controller or catalog.Module, and the application's own main
  package blank-imports them and calls cmd.Execute (see
  examples/calculator/main.go). This ni binary registers nothing, so it
  only boots directories whose code collections are empty.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .ni.yml, can also use NI_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("root", "", "application directory to boot")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"root":       "root",
		"log-level":  "log.level",
		"log-format": "log.format",
	})
}

// initConfig wires viper to the config file and the environment.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag
//  2. NI_CONFIG_FILE environment variable
//  3. Default: .ni.yml in current directory
//
// Every key is also bound to an NI_ prefixed environment variable with
// dots replaced by underscores (server.port -> NI_SERVER_PORT).
func initConfig() {
	// A missing .env is the common case
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(ConfigFileEnv); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ni")
	}

	viper.SetEnvPrefix("NI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing or malformed file leaves viper on defaults and environment
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
