package reports

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"timetrack/internal/domain/timesheet"
)

// RenderTimesheet lays out one timesheet as an A4 PDF.
func RenderTimesheet(ts timesheet.Summary, ownerName string, entries []timesheet.Entry, projectNames map[string]string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Timesheet "+ts.WeekStartDate.Format("2006-01-02"), true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Timesheet")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	if ownerName != "" {
		pdf.Cell(0, 8, tr("Employee: "+ownerName))
		pdf.Ln(7)
	}
	pdf.Cell(0, 8, fmt.Sprintf("Week: %s to %s", ts.WeekStartDate.Format("2006-01-02"), ts.WeekEndDate.Format("2006-01-02")))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Status: %s", ts.Status))
	pdf.Ln(10)

	widths := []float64{28, 52, 18, 18, 16, 58}
	headers := []string{"Date", "Project", "Start", "End", "Hours", "Notes"}
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, e := range entries {
		project := projectNames[e.ProjectID]
		if project == "" {
			project = e.ProjectID
		}
		notes := ""
		if e.Notes != nil {
			notes = *e.Notes
		}
		row := []string{
			e.WorkDate.Format("2006-01-02"),
			clip(project, 28),
			clockText(e.StartTime),
			clockText(e.EndTime),
			fmt.Sprintf("%.2f", timesheet.HoursFromMinutes(e.DurationMinutes)),
			clip(notes, 32),
		}
		for i, cell := range row {
			pdf.CellFormat(widths[i], 7, tr(cell), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Total hours: %.2f", ts.TotalHours))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clockText(c *timesheet.ClockTime) string {
	if c == nil {
		return ""
	}
	return c.String()
}

func clip(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "..."
}
