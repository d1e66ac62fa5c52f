// Package output renders dashboard read models for the terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Supported output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
)

// Config holds configuration for output generation
type Config struct {
	Format  string
	Writer  io.Writer
	Verbose bool
}

// Generate writes result in the configured format. result is one of the
// dashboard read models: recommendations, resources, shelter capacity,
// request views, a disaster summary or an action result.
func Generate(result any, config Config) error {
	switch config.Format {
	case FormatText, "":
		return generateTextOutput(result, config)
	case FormatJSON:
		return generateJSONOutput(result, config)
	case FormatYAML:
		return generateYAMLOutput(result, config)
	case FormatCSV:
		return generateCSVOutput(result, config)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

// ValidFormat reports whether format is supported
func ValidFormat(format string) bool {
	switch format {
	case FormatText, FormatJSON, FormatYAML, FormatCSV:
		return true
	default:
		return false
	}
}

// generateJSONOutput creates indented JSON output
func generateJSONOutput(result any, config Config) error {
	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(config.Writer, string(jsonData))
	return err
}

// generateYAMLOutput creates YAML output with the same keys as the JSON form.
// The result goes through JSON first so struct tags and text marshalers
// apply, then is re-encoded as block-style YAML.
func generateYAMLOutput(result any, config Config) error {
	jsonData, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(jsonData, &node); err != nil {
		return fmt.Errorf("failed to convert result to YAML: %w", err)
	}
	blockStyle(&node)

	enc := yaml.NewEncoder(config.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return enc.Close()
}

// blockStyle clears the flow and quoting styles JSON input parses with.
// The encoder re-quotes strings that would otherwise read as numbers.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
