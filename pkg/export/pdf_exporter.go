package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidthLandscape = 297.0
	pageMargin         = 10.0
	lineHeight         = 4.5
)

// PDFOptions controls the page header of a grid document.
type PDFOptions struct {
	Title    string
	Subtitle string
}

// PDFExporter renders datasets into a landscape grid. The first column is
// treated as the row label and rendered narrower than the others.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ContentType is the MIME type of the rendered output.
func (e *PDFExporter) ContentType() string { return "application/pdf" }

// Render creates a PDF document with the dataset as a bordered table.
// Cell values may contain newlines.
func (e *PDFExporter) Render(data Dataset, opts PDFOptions) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if opts.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 8, tr(strings.ToUpper(opts.Title)), "", 1, "C", false, 0, "")
	}
	if opts.Subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(opts.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(3)

	widths := columnWidths(len(data.Headers))

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, header := range data.Headers {
		pdf.CellFormat(widths[i], 8, tr(header), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range data.Rows {
		record := data.Record(row)
		height := rowHeight(pdf, record, widths, tr)

		x, y := pdf.GetXY()
		for i, value := range record {
			pdf.Rect(x, y, widths[i], height, "D")
			pdf.MultiCell(widths[i], lineHeight, tr(value), "", "L", false)
			x += widths[i]
			pdf.SetXY(x, y)
		}
		pdf.SetXY(pageMargin, y+height)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(columns int) []float64 {
	usable := pageWidthLandscape - 2*pageMargin
	widths := make([]float64, columns)
	if columns == 1 {
		widths[0] = usable
		return widths
	}
	label := usable * 0.16
	rest := (usable - label) / float64(columns-1)
	widths[0] = label
	for i := 1; i < columns; i++ {
		widths[i] = rest
	}
	return widths
}

func rowHeight(pdf *gofpdf.Fpdf, record []string, widths []float64, tr func(string) string) float64 {
	lines := 1
	for i, value := range record {
		if n := len(pdf.SplitLines([]byte(tr(value)), widths[i])); n > lines {
			lines = n
		}
	}
	return float64(lines)*lineHeight + 1
}
