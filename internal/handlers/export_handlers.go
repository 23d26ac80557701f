package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"medtracker/internal/middleware"
	"medtracker/internal/models"
	"medtracker/internal/services"

	"github.com/jung-kurt/gofpdf/v2"
)

// adherenceRange resolves the report range from start_date/end_date query
// parameters, or days counting back from today (default 30).
func adherenceRange(r *http.Request) (start, end time.Time, err error) {
	q := r.URL.Query()

	if q.Get("start_date") != "" || q.Get("end_date") != "" {
		start, err = time.ParseInLocation(models.DateFormat, q.Get("start_date"), time.Local)
		if err != nil {
			return start, end, errors.New("invalid start_date format, use YYYY-MM-DD")
		}
		end, err = time.ParseInLocation(models.DateFormat, q.Get("end_date"), time.Local)
		if err != nil {
			return start, end, errors.New("invalid end_date format, use YYYY-MM-DD")
		}
		if start.After(end) {
			return start, end, errors.New("start_date is after end_date")
		}
		return start, end, nil
	}

	days := 30
	if v := q.Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 366 {
			return start, end, errors.New("days must be between 1 and 366")
		}
		days = n
	}

	now := time.Now()
	end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	start = end.AddDate(0, 0, -(days - 1))
	return start, end, nil
}

// HandleExportCSV writes the adherence report as a CSV download
func HandleExportCSV(scheduleService *services.ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())
		if userID == 0 {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		start, end, err := adherenceRange(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		report, err := scheduleService.Adherence(userID, start, end, time.Now())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to build adherence report")
			return
		}

		filename := fmt.Sprintf("adherence_%s_%s.csv", report.StartDate, report.EndDate)
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

		writer := csv.NewWriter(w)
		defer writer.Flush()

		writer.Write([]string{"date", "reminder_id", "slot_label", "scheduled_time", "dosage_amount", "status", "taken_at"})
		for _, day := range report.Days {
			for _, occ := range day.Occurrences {
				takenAt := ""
				if occ.TakenAt != nil {
					takenAt = occ.TakenAt.Format("2006-01-02 15:04:05")
				}
				writer.Write([]string{
					occ.Date,
					strconv.FormatInt(occ.ReminderID, 10),
					string(occ.SlotLabel),
					occ.ClockTime,
					strconv.FormatFloat(occ.DosageAmount, 'f', -1, 64),
					string(occ.Status),
					takenAt,
				})
			}
		}
	}
}

// HandleExportPDF writes the adherence report as a PDF download
func HandleExportPDF(scheduleService *services.ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())
		if userID == 0 {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		start, end, err := adherenceRange(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		report, err := scheduleService.Adherence(userID, start, end, time.Now())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to build adherence report")
			return
		}

		pdf := gofpdf.New("P", "mm", "A4", "")
		pdf.SetTitle("Medication Adherence Report", false)
		pdf.AddPage()

		pdf.SetFont("Arial", "B", 16)
		pdf.Cell(0, 10, "Medication Adherence Report")
		pdf.Ln(8)

		pdf.SetFont("Arial", "", 11)
		pdf.Cell(0, 8, fmt.Sprintf("%s to %s", report.StartDate, report.EndDate))
		pdf.Ln(10)

		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, "Summary")
		pdf.Ln(8)

		pdf.SetFont("Arial", "", 11)
		summary := []struct {
			label  string
			status models.Status
		}{
			{"On time", models.StatusOnTime},
			{"Late", models.StatusLate},
			{"Skipped", models.StatusSkipped},
			{"Missed", models.StatusMissed},
			{"Pending", models.StatusPending},
			{"Snoozed", models.StatusSnoozed},
		}
		for _, row := range summary {
			pdf.CellFormat(60, 7, row.label, "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 7, strconv.FormatInt(report.Counts[row.status], 10), "1", 1, "R", false, 0, "")
		}
		pdf.CellFormat(60, 7, "Adherence rate", "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.1f%%", report.AdherenceRate), "1", 1, "R", false, 0, "")
		pdf.Ln(8)

		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, "Daily Detail")
		pdf.Ln(8)

		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(28, 7, "Date", "1", 0, "L", false, 0, "")
		pdf.CellFormat(28, 7, "Slot", "1", 0, "L", false, 0, "")
		pdf.CellFormat(22, 7, "Time", "1", 0, "L", false, 0, "")
		pdf.CellFormat(22, 7, "Dosage", "1", 0, "R", false, 0, "")
		pdf.CellFormat(28, 7, "Status", "1", 1, "L", false, 0, "")

		pdf.SetFont("Arial", "", 10)
		for _, day := range report.Days {
			for _, occ := range day.Occurrences {
				pdf.CellFormat(28, 6, occ.Date, "1", 0, "L", false, 0, "")
				pdf.CellFormat(28, 6, string(occ.SlotLabel), "1", 0, "L", false, 0, "")
				pdf.CellFormat(22, 6, occ.ClockTime, "1", 0, "L", false, 0, "")
				pdf.CellFormat(22, 6, strconv.FormatFloat(occ.DosageAmount, 'f', -1, 64), "1", 0, "R", false, 0, "")
				pdf.CellFormat(28, 6, string(occ.Status), "1", 1, "L", false, 0, "")
			}
		}

		filename := fmt.Sprintf("adherence_%s_%s.pdf", report.StartDate, report.EndDate)
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

		if err := pdf.Output(w); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to generate PDF")
		}
	}
}
