// Package cmd provides the scadform command-line interface.
//
// Configuration is layered, highest priority first:
//  1. Command-line flags (--port, --config, ...)
//  2. Environment variables with the SCADFORM_ prefix
//     (SCADFORM_SERVER_PORT, SCADFORM_ENGINE_COMMAND, ...)
//  3. The configuration file (.scadform.yml by default)
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "scadform",
	Short: "Customizer and compile server for parametric CAD models",
	Long: `Scadform extracts customizable parameters from annotated OpenSCAD
sources, rewrites them with user overrides, and drives the OpenSCAD engine
to produce mesh artifacts.

Quick Start:
  scadform init                   Scaffold a project with an example model
  scadform serve                  Start the compile server
  scadform params model.scad      Show a model's customizable parameters
  scadform compile model.scad     Compile a model to an artifact`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Accept snake_case spellings for flags, matching config keys.
	rootCmd.PersistentFlags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .scadform.yml)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("SCADFORM_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".scadform")
	}

	viper.SetEnvPrefix("SCADFORM")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
