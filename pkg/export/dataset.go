package export

import (
	"fmt"
	"strings"
)

// Format names a supported export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat validates a user supplied format string.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatCSV, FormatXLSX, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Dataset defines tabular export content.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

func (d Dataset) validate(kind string) error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("%s requires at least one header", kind)
	}
	return nil
}

func (d Dataset) record(row map[string]string) []string {
	out := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		out[i] = row[header]
	}
	return out
}

// Renderer encodes a dataset.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
}

// Registry maps formats to renderers.
type Registry map[Format]Renderer

// NewRegistry returns the default renderers. pdfFont may name a UTF-8 TTF file for non-Latin text.
func NewRegistry(pdfFont string) Registry {
	return Registry{
		FormatCSV:  NewCSVExporter(),
		FormatXLSX: NewXLSXExporter(),
		FormatPDF:  NewPDFExporter(pdfFont),
	}
}

// Render encodes data in the requested format.
func (r Registry) Render(format Format, data Dataset) ([]byte, error) {
	renderer, ok := r[format]
	if !ok {
		return nil, fmt.Errorf("no renderer for %s", format)
	}
	return renderer.Render(data)
}
