package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "imaged",
	Short: "Image generation gateway with ControlNet conditioning",
	Long: `imaged accepts image generation requests, normalizes them against the
parameter template and dispatches them to a generation worker in sync,
async (webhook or polling) or streaming mode.

Examples:
  imaged serve --config imaged.yaml
  imaged defaults
  imaged schema
  imaged validate --config imaged.yaml`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(defaultsCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(validateCmd)

	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (.yaml, .yml, .json, .toml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional .env file loaded before reading IMAGED_* variables")
}
