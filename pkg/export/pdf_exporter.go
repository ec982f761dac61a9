package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Entry is a labelled value printed on a document.
type Entry struct {
	Label string
	Value string
}

// Section groups entries under a heading.
type Section struct {
	Heading string
	Entries []Entry
}

// Document is a titled sequence of sections.
type Document struct {
	Title    string
	Subtitle string
	Sections []Section
	Footer   string
}

// PDFExporter renders documents as A4 PDFs.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render lays out the document as label/value rows.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if len(doc.Sections) == 0 {
		return nil, fmt.Errorf("pdf requires at least one section")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if doc.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(strings.ToUpper(doc.Title)), "", 1, "C", false, 0, "")
	}
	if doc.Subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(doc.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	for _, section := range doc.Sections {
		if section.Heading != "" {
			pdf.SetFont("Arial", "B", 11)
			pdf.SetFillColor(230, 230, 230)
			pdf.CellFormat(0, 8, tr(section.Heading), "", 1, "L", true, 0, "")
			pdf.Ln(1)
		}
		for _, entry := range section.Entries {
			pdf.SetFont("Arial", "B", 9)
			pdf.CellFormat(60, 6, tr(entry.Label), "", 0, "L", false, 0, "")
			pdf.SetFont("Arial", "", 9)
			value := entry.Value
			if value == "" {
				value = "-"
			}
			pdf.MultiCell(0, 6, tr(value), "", "L", false)
		}
		pdf.Ln(3)
	}

	if doc.Footer != "" {
		pdf.SetFont("Arial", "I", 8)
		pdf.MultiCell(0, 5, tr(doc.Footer), "", "L", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
