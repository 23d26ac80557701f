package handlers

import (
	"net/http"
	"time"

	"medtracker/internal/middleware"
	"medtracker/internal/models"
	"medtracker/internal/services"
)

// HandleGetSchedule returns the user's dose occurrences for one date,
// defaulting to today
func HandleGetSchedule(scheduleService *services.ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())
		if userID == 0 {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		date, err := parseDateQuery(r, "date")
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid date format, use YYYY-MM-DD")
			return
		}

		occurrences, err := scheduleService.DayView(userID, date, time.Now())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to build schedule")
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"date":        date.Format(models.DateFormat),
			"occurrences": occurrences,
		})
	}
}

// HandleGetAdherence returns the adherence report for an inclusive date
// range. Accepts start_date and end_date, or days counting back from today.
func HandleGetAdherence(scheduleService *services.ScheduleService) http.HandlerFunc {
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

		respondJSON(w, http.StatusOK, report)
	}
}
