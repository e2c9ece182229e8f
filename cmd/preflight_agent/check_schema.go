package main

import (
	"fmt"
	"strings"

	"github.com/jonathan/preflight-agent/internal/schemas"
	embedded "github.com/jonathan/preflight-agent/schemas"
	"github.com/spf13/cobra"
)

var checkSchemaCmd = &cobra.Command{
	Use:   "check-schema",
	Short: "Validate a JSON file against an embedded schema",
	Long:  "Validates a saved Processing API payload or REST response against one of the embedded JSON Schemas.",
	RunE:  runCheckSchema,
}

var (
	checkSchemaName string
	checkSchemaJSON string
)

func init() {
	checkSchemaCmd.Flags().StringVar(&checkSchemaName, "schema", "", "Schema name, e.g. validation_result (required)")
	checkSchemaCmd.Flags().StringVar(&checkSchemaJSON, "json", "", "Path to JSON file to validate (required)")

	if err := checkSchemaCmd.MarkFlagRequired("schema"); err != nil {
		panic(fmt.Sprintf("failed to mark schema flag as required: %v", err))
	}
	if err := checkSchemaCmd.MarkFlagRequired("json"); err != nil {
		panic(fmt.Sprintf("failed to mark json flag as required: %v", err))
	}

	rootCmd.AddCommand(checkSchemaCmd)
}

// resolveSchemaName accepts a schema by its short name or full file name.
func resolveSchemaName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !strings.HasSuffix(name, ".schema.json") {
		name += ".schema.json"
	}
	for _, known := range embedded.All {
		if known == name {
			return name, nil
		}
	}
	known := make([]string, len(embedded.All))
	for i, n := range embedded.All {
		known[i] = strings.TrimSuffix(n, ".schema.json")
	}
	return "", fmt.Errorf("unknown schema %q (known: %s)", checkSchemaName, strings.Join(known, ", "))
}

func runCheckSchema(cmd *cobra.Command, _ []string) error {
	name, err := resolveSchemaName(checkSchemaName)
	if err != nil {
		return err
	}

	if err := schemas.ValidateFile(name, checkSchemaJSON); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Validation passed: %s matches %s\n", checkSchemaJSON, name)
	return nil
}
