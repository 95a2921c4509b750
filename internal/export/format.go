// Package export renders session results as CSV or PDF files.
// It only formats; every count and percentage comes from package results.
package export

import (
	"io"
	"strings"

	"github.com/livepoll/backend/internal/apperr"
	"github.com/livepoll/backend/internal/results"
)

// Format is an export file format.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat accepts "csv" or "pdf", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatPDF:
		return f, nil
	}
	return "", apperr.Invalid("format", "format must be csv or pdf")
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// Filename returns the download name for a session's export.
func Filename(sessionID string, f Format) string {
	return "poll-results-" + sessionID + "." + string(f)
}

// Render writes res to w in format f.
func Render(w io.Writer, res *results.SessionResults, f Format) error {
	if f == FormatPDF {
		return WritePDF(w, res)
	}
	return WriteCSV(w, res)
}
