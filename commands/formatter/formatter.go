// Package formatter provides output formatting utilities for the CLI.
package formatter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Format represents an output format type
type Format string

const (
	// FormatTable is the default table format
	FormatTable Format = "table"
	// FormatJSON outputs data as JSON
	FormatJSON Format = "json"
	// FormatCSV outputs data as CSV
	FormatCSV Format = "csv"
)

// ParseFormat parses a format string; an empty string selects the table format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "table", "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown output format %q, must be one of: table, json, csv", s)
	}
}

// Output handles formatted output for the CLI
type Output struct {
	format Format
	writer io.Writer
}

// New creates a new Output formatter
func New(w io.Writer, format Format) *Output {
	return &Output{
		format: format,
		writer: w,
	}
}

// Format returns the configured format.
func (o *Output) Format() Format {
	return o.format
}

// IsTable reports whether output is rendered for a terminal.
func (o *Output) IsTable() bool {
	return o.format == FormatTable
}

// PrintJSON outputs data as formatted JSON
func (o *Output) PrintJSON(data any) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// PrintTable outputs data as a formatted table. Cells may contain ANSI color codes.
func (o *Output) PrintTable(headers []string, rows [][]string) {
	if len(headers) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = VisibleWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && VisibleWidth(cell) > widths[i] {
				widths[i] = VisibleWidth(cell)
			}
		}
	}

	printRow(o.writer, headers, widths)
	printSeparator(o.writer, widths)
	for _, row := range rows {
		printRow(o.writer, row, widths)
	}
}

// PrintCSV outputs data as CSV with color codes removed.
func (o *Output) PrintCSV(headers []string, rows [][]string) error {
	w := csv.NewWriter(o.writer)
	if err := w.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range rows {
		plain := make([]string, len(row))
		for i, cell := range row {
			plain[i] = StripANSI(cell)
		}
		if err := w.Write(plain); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// Print outputs data in the configured format
func (o *Output) Print(headers []string, rows [][]string, jsonData any) error {
	switch o.format {
	case FormatJSON:
		return o.PrintJSON(jsonData)
	case FormatCSV:
		return o.PrintCSV(headers, rows)
	default:
		o.PrintTable(headers, rows)
		return nil
	}
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// StripANSI removes terminal color sequences.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// VisibleWidth is the number of runes shown on screen.
func VisibleWidth(s string) int {
	return utf8.RuneCountInString(StripANSI(s))
}

// Truncate shortens s to at most n runes, keeping the tail which is the informative part of a path.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if n <= 1 || len(runes) <= n {
		return s
	}
	return "…" + string(runes[len(runes)-n+1:])
}

// Bytes renders a size with a binary unit.
func Bytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func printRow(w io.Writer, cells []string, widths []int) {
	for i, cell := range cells {
		if i > 0 {
			_, _ = fmt.Fprint(w, " | ")
		}
		width := 10
		if i < len(widths) {
			width = widths[i]
		}
		pad := max(width-VisibleWidth(cell), 0)
		_, _ = fmt.Fprint(w, cell+strings.Repeat(" ", pad))
	}
	_, _ = fmt.Fprintln(w)
}

func printSeparator(w io.Writer, widths []int) {
	for i, width := range widths {
		if i > 0 {
			_, _ = fmt.Fprint(w, "-+-")
		}
		_, _ = fmt.Fprint(w, strings.Repeat("-", width))
	}
	_, _ = fmt.Fprintln(w)
}
