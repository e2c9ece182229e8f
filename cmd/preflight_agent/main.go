// Package main provides the preflight_agent CLI and REST server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "preflight_agent",
	Short: "PDF preflight and fix workflow client",
	Long: "preflight_agent drives a remote Processing API through the upload, OCR, redaction, " +
		"preflight and fix workflow, and serves the same wizard over a REST API.",
	SilenceUsage: true,
}

var (
	configPath string
	apiURL     string
	logFormat  string
	verbose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to JSON config file (optional)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Processing API base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: json or text")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed debug information")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
