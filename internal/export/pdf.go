package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-pdf/fpdf"

	"github.com/livepoll/backend/internal/results"
)

const (
	pdfMargin     = 14.0
	pdfRowHeight  = 7.0
	pdfOptionCol  = 110.0
	pdfNumericCol = 36.0
)

// WritePDF writes a document titled "Poll Results: {session}" with a numbered heading and an
// Option/Votes/Percentage table per question. Tables break across pages as needed.
func WritePDF(w io.Writer, res *results.SessionResults) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetTitle("Poll Results: "+res.SessionID, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr("Poll Results: "+res.SessionID), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	for i, q := range res.Questions {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.MultiCell(0, pdfRowHeight, tr(fmt.Sprintf("%d. %s", i+1, q.Text)), "", "L", false)

		pdf.SetFillColor(41, 128, 185)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(pdfOptionCol, pdfRowHeight, "Option", "1", 0, "L", true, 0, "")
		pdf.CellFormat(pdfNumericCol, pdfRowHeight, "Votes", "1", 0, "R", true, 0, "")
		pdf.CellFormat(pdfNumericCol, pdfRowHeight, "Percentage", "1", 1, "R", true, 0, "")

		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "", 10)
		for _, o := range q.Options {
			pdf.CellFormat(pdfOptionCol, pdfRowHeight, tr(o.Text), "1", 0, "L", false, 0, "")
			pdf.CellFormat(pdfNumericCol, pdfRowHeight, strconv.Itoa(o.Count), "1", 0, "R", false, 0, "")
			pdf.CellFormat(pdfNumericCol, pdfRowHeight, formatPercent(o.Percentage), "1", 1, "R", false, 0, "")
		}
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(0, pdfRowHeight, fmt.Sprintf("Total votes: %d", q.TotalVotes), "", 1, "L", false, 0, "")
		pdf.Ln(4)
	}

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64) + "%"
}
