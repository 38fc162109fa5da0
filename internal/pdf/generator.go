package pdf

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/imsantiagopoli/pilly/pkg/model"
	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"
)

// PDFGenerator renders medication adherence reports
type PDFGenerator struct {
	logger *zap.Logger
}

// NewPDFGenerator creates a new PDFGenerator
func NewPDFGenerator(logger *zap.Logger) *PDFGenerator {
	return &PDFGenerator{
		logger: logger,
	}
}

// ReportData contains all data needed for report generation
type ReportData struct {
	Title       string
	Snapshot    *model.AdherenceSnapshot
	Medications []model.Medication
	GeneratedAt time.Time
}

// Generate creates a PDF report from the provided data
func (g *PDFGenerator) Generate(data *ReportData) ([]byte, error) {
	if data == nil || data.Snapshot == nil {
		return nil, fmt.Errorf("report data with an adherence snapshot is required")
	}
	if data.Title == "" {
		data.Title = "Medication Adherence Report"
	}
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now()
	}

	dateRange := fmt.Sprintf("%s to %s", data.Snapshot.Start, data.Snapshot.End)
	g.logger.Info("generating PDF report",
		zap.String("date_range", dateRange),
		zap.Int("medications", len(data.Medications)),
	)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	g.addTitle(pdf, data.Title, dateRange, data.GeneratedAt)
	g.addSummary(pdf, data.Snapshot)
	g.addMedicationList(pdf, data.Medications)
	g.addDailyAdherence(pdf, data.Snapshot.Days)
	g.addDoseLog(pdf, data.Snapshot.Events, medicationNames(data.Medications))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		g.logger.Error("failed to generate PDF", zap.Error(err))
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	g.logger.Info("PDF report generated successfully",
		zap.Int("size_bytes", buf.Len()),
	)

	return buf.Bytes(), nil
}

// addTitle adds the report title and header information
func (g *PDFGenerator) addTitle(pdf *gofpdf.Fpdf, title, dateRange string, generatedAt time.Time) {
	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Period: %s", dateRange), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Generated: %s", generatedAt.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(10)
}

// addSectionHeader adds a section header
func (g *PDFGenerator) addSectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(0, 10, title, "", 1, "L", true, 0, "")
	pdf.Ln(3)
	pdf.SetFont("Arial", "", 10)
}

func (g *PDFGenerator) addSummary(pdf *gofpdf.Fpdf, s *model.AdherenceSnapshot) {
	g.addSectionHeader(pdf, "Summary")

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 7, fmt.Sprintf("Adherence score: %d%%", s.Score), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Current streak: %d days (longest in period: %d)", s.Streak, s.LongestStreak), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Taken: %d   Late: %d   Missed: %d   Pending: %d", s.Taken, s.Late, s.Missed, s.Pending), "", 1, "L", false, 0, "")
	pdf.Ln(5)
}

// addMedicationList adds medication list section
func (g *PDFGenerator) addMedicationList(pdf *gofpdf.Fpdf, medications []model.Medication) {
	g.addSectionHeader(pdf, "Medication List")

	if len(medications) == 0 {
		pdf.CellFormat(0, 8, "No medications recorded.", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	for _, med := range medications {
		r, gr, b := hexColor(med.Color)
		pdf.SetFillColor(r, gr, b)
		pdf.Rect(pdf.GetX(), pdf.GetY()+1.5, 3, 3, "F")
		pdf.SetX(pdf.GetX() + 5)

		pdf.SetFont("Arial", "B", 10)
		name := med.Name
		if !med.Active() {
			name += fmt.Sprintf(" (removed %s)", med.DeletedOn)
		}
		pdf.CellFormat(0, 6, name, "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 5, fmt.Sprintf("  Dosage: %s (%s)", med.Dosage, med.Category), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("  Schedule: %s", describeRule(med.Schedule)), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("  Start Date: %s", med.StartDate), "", 1, "L", false, 0, "")
		if med.DurationDays > 0 {
			pdf.CellFormat(0, 5, fmt.Sprintf("  Duration: %d days", med.DurationDays), "", 1, "L", false, 0, "")
		}
		pdf.Ln(3)
	}
	pdf.Ln(5)
}

// addDailyAdherence adds a table with one row per day
func (g *PDFGenerator) addDailyAdherence(pdf *gofpdf.Fpdf, days []model.DaySummary) {
	g.addSectionHeader(pdf, "Daily Adherence")

	if len(days) == 0 {
		pdf.CellFormat(0, 8, "No days in this period.", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	widths := []float64{35, 25, 20, 20, 20, 20, 25}
	headers := []string{"Date", "Status", "Taken", "Late", "Missed", "Pending", "Score"}

	pdf.SetFont("Arial", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, day := range days {
		cells := []string{
			day.Date.String(),
			string(day.Status),
			strconv.Itoa(day.Taken),
			strconv.Itoa(day.Late),
			strconv.Itoa(day.Missed),
			strconv.Itoa(day.Pending),
			fmt.Sprintf("%d%%", day.Score),
		}
		if day.Status == model.DayNone {
			cells[6] = "-"
		}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 6, c, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(5)
}

// addDoseLog lists the recorded dose events of the period
func (g *PDFGenerator) addDoseLog(pdf *gofpdf.Fpdf, events []model.DoseEvent, names map[string]string) {
	g.addSectionHeader(pdf, "Dose Log")

	if len(events) == 0 {
		pdf.CellFormat(0, 8, "No doses recorded during this period.", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	for _, e := range events {
		name, ok := names[e.MedicationID]
		if !ok {
			name = e.MedicationID
		}
		line := fmt.Sprintf("%s %s  %s: %s (recorded %s)",
			e.Date, e.ScheduledTime, name, e.Status, e.RecordedAt.Format("2006-01-02 15:04"))
		pdf.CellFormat(0, 5, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(5)
}

func medicationNames(meds []model.Medication) map[string]string {
	names := make(map[string]string, len(meds))
	for _, m := range meds {
		names[m.ID] = m.Name
	}
	return names
}

var weekdayAbbrev = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// describeRule renders a recurrence rule as "Daily at 08:00, 20:00"
func describeRule(rule model.RecurrenceRule) string {
	times := make([]string, len(rule.Times))
	for i, t := range rule.Times {
		times[i] = t.String()
	}

	days := "Daily"
	if !rule.EveryDay() {
		names := make([]string, 0, len(rule.Weekdays))
		for _, wd := range rule.Weekdays {
			if int(wd) >= 0 && int(wd) < len(weekdayAbbrev) {
				names = append(names, weekdayAbbrev[wd])
			}
		}
		days = strings.Join(names, "/")
	}
	return fmt.Sprintf("%s at %s", days, strings.Join(times, ", "))
}

// hexColor parses "#rrggbb", falling back to grey
func hexColor(s string) (int, int, int) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return 128, 128, 128
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 128, 128, 128
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}
