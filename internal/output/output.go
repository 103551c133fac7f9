// Package output renders command results as tables, JSON, YAML or Markdown.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// Formats lists the accepted --output values.
var Formats = []Format{FormatTable, FormatJSON, FormatYAML, FormatMarkdown}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// Tabular is anything that can be laid out as rows.
type Tabular interface {
	Header() []string
	Rows() [][]any
}

// Render encodes value for the structured formats and lays out tab for the
// table formats. tab may be nil when value only has a structured form.
func Render(format Format, value any, tab Tabular) (string, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	case FormatYAML:
		data, err := yaml.Marshal(value)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(data), "\n"), nil
	}

	if tab == nil {
		return Render(FormatJSON, value, nil)
	}
	return renderTable(format, tab), nil
}

// Write renders and prints to w with a trailing newline.
func Write(w io.Writer, format Format, value any, tab Tabular) error {
	rendered, err := Render(format, value, tab)
	if err != nil {
		return err
	}
	if strings.TrimSpace(rendered) == "" {
		return nil
	}
	_, err = fmt.Fprintln(w, rendered)
	return err
}

// ToRecords converts a slice of structs into Records by way of their JSON
// field names.
func ToRecords(value any, columns ...string) (Records, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return Records{}, err
	}
	var items []map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		return Records{}, fmt.Errorf("records: %w", err)
	}
	return Records{Columns: columns, Items: items}, nil
}
