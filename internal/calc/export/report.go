package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/phpdave11/gofpdf"

	"webnorm/internal/geochem"
)

// Report describes a stored calculation for the PDF summary.
type Report struct {
	Title    string
	Source   string
	Method   string
	Created  time.Time
	Table    *geochem.Table
	Flagged  []int
	SumLimit float64
}

// maxPDFColumns keeps the table within an A4 landscape page.
const maxPDFColumns = 10

// PDF renders r: run metadata, the flagged samples and the leading columns
// of the norm with the Sum column always last.
func PDF(w io.Writer, r Report) error {
	if r.Title == "" {
		r.Title = "Normative Mineralogy Report"
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, r.Title)
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Source: %s", r.Source))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Fe correction: %s", r.Method))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", r.Created.Format("2006-01-02 15:04")))
	pdf.Ln(6)
	if len(r.Flagged) > 0 {
		pdf.Cell(0, 6, fmt.Sprintf("%d samples have a normative sum above %g%%", len(r.Flagged), r.SumLimit))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	if r.Table != nil && len(r.Table.Columns) > 0 {
		writeTable(pdf, r.Table, r.Flagged)
	}
	return pdf.Output(w)
}

func writeTable(pdf *gofpdf.Fpdf, t *geochem.Table, flagged []int) {
	cols := pdfColumns(t)
	width := 270.0 / float64(len(cols)+1)

	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(width, 6, "#", "1", 0, "C", false, 0, "")
	for _, c := range cols {
		pdf.CellFormat(width, 6, c, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	marked := make(map[int]bool, len(flagged))
	for _, i := range flagged {
		marked[i] = true
	}
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetFillColor(255, 255, 0)
	for i := range t.Rows {
		fill := marked[i]
		pdf.CellFormat(width, 5, strconv.Itoa(i+1), "1", 0, "C", fill, 0, "")
		for _, c := range cols {
			text := t.Rows[i][t.Index(c)]
			if v, ok := t.Value(i, c); ok {
				text = strconv.FormatFloat(v, 'f', 3, 64)
			}
			pdf.CellFormat(width, 5, text, "1", 0, "R", fill, 0, "")
		}
		pdf.Ln(-1)
	}
}

func pdfColumns(t *geochem.Table) []string {
	var cols []string
	for _, c := range t.Columns {
		if c == geochem.SumColumn {
			continue
		}
		if len(cols) == maxPDFColumns-1 {
			break
		}
		cols = append(cols, c)
	}
	if t.Has(geochem.SumColumn) {
		cols = append(cols, geochem.SumColumn)
	}
	return cols
}
