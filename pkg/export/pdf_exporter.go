package export

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/jung-kurt/gofpdf"
)

const pdfUTF8Family = "report"

// PDFExporter renders datasets into a tabular PDF. Without a UTF-8 font, non-Latin
// characters are replaced since the core fonts cannot encode them.
type PDFExporter struct {
	fontPath string
}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter(fontPath string) *PDFExporter {
	return &PDFExporter{fontPath: fontPath}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if err := data.validate("pdf"); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)

	family, text := "Arial", latinOnly
	if e.fontPath != "" {
		pdf.AddUTF8Font(pdfUTF8Family, "", e.fontPath)
		pdf.AddUTF8Font(pdfUTF8Family, "B", e.fontPath)
		family, text = pdfUTF8Family, func(s string) string { return s }
	}
	pdf.AddPage()

	if data.Title != "" {
		pdf.SetFont(family, "B", 14)
		pdf.CellFormat(0, 10, text(data.Title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	pdf.SetFont(family, "B", 10)
	colWidth := 190.0 / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, text(header), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(family, "", 9)
	for _, row := range data.Rows {
		for _, value := range data.record(row) {
			pdf.CellFormat(colWidth, 7, text(value), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("build pdf: %w", err)
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func latinOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return '?'
		}
		return r
	}, s)
}
