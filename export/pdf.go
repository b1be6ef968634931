package export

import (
	"io"

	"github.com/go-pdf/fpdf"
)

// PDFWriter renders a single column A4 document.
type PDFWriter struct {
	Author string
}

func (PDFWriter) Format() Format      { return FormatPDF }
func (PDFWriter) ContentType() string { return "application/pdf" }
func (PDFWriter) Extension() string   { return "pdf" }

func (p PDFWriter) Write(w io.Writer, snapshot Snapshot) error {
	doc := fpdf.New("P", "mm", "A4", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.SetTitle(snapshot.Title(), true)
	if p.Author != "" {
		doc.SetAuthor(p.Author, true)
	}
	if !snapshot.RequestedAt.IsZero() {
		doc.SetCreationDate(snapshot.RequestedAt)
	}

	doc.AddPage()
	doc.SetFont("Helvetica", "B", 18)
	doc.MultiCell(0, 10, tr(snapshot.Title()), "", "L", false)
	doc.Ln(4)

	for _, section := range snapshot.Sections() {
		doc.SetFont("Helvetica", "B", 13)
		doc.CellFormat(0, 8, tr(section.Title), "B", 1, "L", false, 0, "")
		doc.Ln(2)

		for _, f := range section.Fields {
			doc.SetFont("Helvetica", "B", 10)
			doc.CellFormat(50, 6, tr(f.Label), "", 0, "L", false, 0, "")
			doc.SetFont("Helvetica", "", 10)
			doc.MultiCell(0, 6, tr(f.Value), "", "L", false)
		}
		doc.Ln(4)
	}

	if err := doc.Error(); err != nil {
		return err
	}
	return doc.Output(w)
}
