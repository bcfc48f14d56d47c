// Package output renders command results as tables, JSON, YAML or
// markdown.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Format types for output.
type Format string

const (
	// FormatTable represents table output format.
	FormatTable Format = "table"
	// FormatJSON represents JSON output format.
	FormatJSON Format = "json"
	// FormatYAML represents YAML output format.
	FormatYAML Format = "yaml"
	// FormatMarkdown represents a markdown report.
	FormatMarkdown Format = "markdown"
)

// Formatter interface for all output types.
type Formatter interface {
	Format(w io.Writer, data any) error
}

// FormatterFunc allows functions to implement Formatter.
type FormatterFunc func(io.Writer, any) error

// Format implements the Formatter interface.
func (f FormatterFunc) Format(w io.Writer, data any) error {
	return f(w, data)
}

// NewFormatter creates appropriate formatter based on format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: "  "}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// Section is one titled table of a View.
type Section struct {
	Heading string
	Headers []string
	Rows    [][]string
	// Notes are printed under the table.
	Notes []string
}

// View is a command result with a human-readable layout and a
// machine-readable payload. JSON and YAML render Value; table and markdown
// render the sections.
type View struct {
	Title    string
	Sections []Section
	Value    any
}

func payload(data any) any {
	if v, ok := data.(*View); ok {
		return v.Value
	}
	return data
}

// JSONFormatter outputs JSON format.
type JSONFormatter struct {
	Indent string
}

// Format implements the Formatter interface for JSON output.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	if f.Indent != "" {
		encoder.SetIndent("", f.Indent)
	}
	return encoder.Encode(payload(data))
}

// YAMLFormatter outputs YAML format.
type YAMLFormatter struct{}

// Format outputs data in YAML format.
func (f *YAMLFormatter) Format(w io.Writer, data any) error {
	yamlData, err := yaml.MarshalWithOptions(payload(data),
		yaml.Indent(2),
		yaml.IndentSequence(false),
	)
	if err != nil {
		return err
	}
	_, err = w.Write(yamlData)
	return err
}

// TableFormatter outputs table format.
type TableFormatter struct{}

// Format outputs a View as one table per section. Anything else is
// printed as YAML.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	v, ok := data.(*View)
	if !ok {
		return (&YAMLFormatter{}).Format(w, data)
	}

	for i, section := range v.Sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if section.Heading != "" {
			fmt.Fprintf(w, "%s:\n", section.Heading)
		}
		if len(section.Rows) > 0 {
			if err := renderTable(w, section); err != nil {
				return err
			}
		}
		for _, note := range section.Notes {
			fmt.Fprintln(w, note)
		}
	}
	return nil
}

func renderTable(w io.Writer, section Section) error {
	config := tablewriter.Config{}
	config.Header.Alignment = tw.CellAlignment{Global: tw.AlignLeft}
	config.Row.Alignment = tw.CellAlignment{Global: tw.AlignLeft}
	table := tablewriter.NewTable(w, tablewriter.WithConfig(config))

	if len(section.Headers) > 0 {
		headers := make([]any, len(section.Headers))
		for i, h := range TitleHeaders(section.Headers) {
			headers[i] = h
		}
		table.Header(headers...)
	}
	for _, row := range section.Rows {
		cells := make([]any, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		if err := table.Append(cells...); err != nil {
			return err
		}
	}
	return table.Render()
}

// TitleHeaders title-cases column headers, turning underscores into spaces.
func TitleHeaders(headers []string) []string {
	caser := cases.Title(language.English)
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = caser.String(strings.ReplaceAll(h, "_", " "))
	}
	return out
}

// DetectFormat auto-detects format based on terminal and environment.
func DetectFormat(explicitFormat string) Format {
	if explicitFormat != "" {
		return Format(strings.ToLower(explicitFormat))
	}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return FormatTable
	}
	return FormatJSON
}

// ParseFormat converts string to Format with validation.
func ParseFormat(s string) (Format, error) {
	format := Format(strings.ToLower(s))
	switch format {
	case FormatTable, FormatJSON, FormatYAML, FormatMarkdown, "":
		return format, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("invalid format %q: must be one of: table, json, yaml, markdown", s)
	}
}
