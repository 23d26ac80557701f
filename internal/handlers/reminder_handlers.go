package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"medtracker/internal/database"
	"medtracker/internal/middleware"
	"medtracker/internal/models"
	"medtracker/internal/repository"
	"medtracker/internal/schedule"
	"medtracker/internal/services"
)

// SlotRequest is one time slot in a reminder request body.
type SlotRequest struct {
	Label        string  `json:"label"`
	ClockTime    string  `json:"clock_time"`
	DosageAmount float64 `json:"dosage_amount"`
}

// ReminderRequest represents the request body for creating or updating a
// reminder
type ReminderRequest struct {
	MedicationID   int64         `json:"medication_id"`
	RecurrenceMode string        `json:"recurrence_mode"`
	RepeatWeekdays []int         `json:"repeat_weekdays,omitempty"` // Sunday=0
	StartDate      string        `json:"start_date"`
	EndDate        string        `json:"end_date"`
	Slots          []SlotRequest `json:"slots"`
	IsActive       *bool         `json:"is_active,omitempty"`
}

// DoseActionRequest represents the request body for acting on a dose
// occurrence
type DoseActionRequest struct {
	Action    string `json:"action"` // take, skip, snooze
	SlotLabel string `json:"slot_label"`
	Date      string `json:"date"`           // YYYY-MM-DD
	Time      string `json:"time,omitempty"` // HH:MM, defaults to now
}

func (req *ReminderRequest) toModel(userID int64) (*models.Reminder, error) {
	startDate, err := time.ParseInLocation(models.DateFormat, req.StartDate, time.Local)
	if err != nil {
		return nil, errors.New("invalid start_date format, use YYYY-MM-DD")
	}
	endDate := startDate
	if req.EndDate != "" {
		endDate, err = time.ParseInLocation(models.DateFormat, req.EndDate, time.Local)
		if err != nil {
			return nil, errors.New("invalid end_date format, use YYYY-MM-DD")
		}
	}

	weekdays := make([]time.Weekday, 0, len(req.RepeatWeekdays))
	for _, d := range req.RepeatWeekdays {
		if d < 0 || d > 6 {
			return nil, errors.New("repeat_weekdays entries must be 0 (Sunday) through 6 (Saturday)")
		}
		weekdays = append(weekdays, time.Weekday(d))
	}

	slots := make([]models.TimeSlot, 0, len(req.Slots))
	for _, s := range req.Slots {
		slots = append(slots, models.TimeSlot{
			Label:        models.SlotLabel(s.Label),
			ClockTime:    s.ClockTime,
			DosageAmount: s.DosageAmount,
		})
	}

	rem := &models.Reminder{
		UserID:         userID,
		MedicationID:   req.MedicationID,
		RecurrenceMode: models.RecurrenceMode(req.RecurrenceMode),
		RepeatWeekdays: weekdays,
		StartDate:      startDate,
		EndDate:        endDate,
		Slots:          slots,
		IsActive:       true,
	}
	if req.IsActive != nil {
		rem.IsActive = *req.IsActive
	}
	return rem, nil
}

// getOwnedReminder loads a reminder and checks it belongs to the user.
func getOwnedReminder(repo *repository.ReminderRepository, r *http.Request) (*models.Reminder, int, string) {
	userID := middleware.GetUserID(r.Context())
	if userID == 0 {
		return nil, http.StatusUnauthorized, "Unauthorized"
	}

	id, err := parseIDParam(r)
	if err != nil {
		return nil, http.StatusBadRequest, "Invalid reminder ID"
	}

	rem, err := repo.GetByID(id)
	if err == repository.ErrNotFound {
		return nil, http.StatusNotFound, "Reminder not found"
	}
	if err != nil {
		return nil, http.StatusInternalServerError, "Failed to load reminder"
	}
	if rem.UserID != userID {
		return nil, http.StatusNotFound, "Reminder not found"
	}

	return rem, 0, ""
}

// HandleGetReminders returns the user's reminders
func HandleGetReminders(db *database.DB) http.HandlerFunc {
	reminderRepo := repository.NewReminderRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())
		if userID == 0 {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var reminders []*models.Reminder
		var err error
		if r.URL.Query().Get("filter") == "active" {
			reminders, err = reminderRepo.ListActiveByUser(userID)
		} else {
			reminders, err = reminderRepo.ListByUser(userID)
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to retrieve reminders")
			return
		}

		respondJSON(w, http.StatusOK, reminders)
	}
}

// HandleGetReminder returns one reminder
func HandleGetReminder(db *database.DB) http.HandlerFunc {
	reminderRepo := repository.NewReminderRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		rem, status, msg := getOwnedReminder(reminderRepo, r)
		if rem == nil {
			respondError(w, status, msg)
			return
		}
		respondJSON(w, http.StatusOK, rem)
	}
}

// HandleCreateReminder creates a new reminder
func HandleCreateReminder(db *database.DB) http.HandlerFunc {
	reminderRepo := repository.NewReminderRepository(db)
	medicationRepo := repository.NewMedicationRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())
		if userID == 0 {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req ReminderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		rem, err := req.toModel(userID)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := schedule.ValidateReminder(rem); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		med, err := medicationRepo.GetByID(rem.MedicationID)
		if err == repository.ErrNotFound {
			respondError(w, http.StatusBadRequest, "medication_id does not exist")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to load medication")
			return
		}
		if med.UserID != userID {
			respondError(w, http.StatusBadRequest, "medication_id does not exist")
			return
		}

		if err := reminderRepo.Create(rem); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to create reminder")
			return
		}

		respondJSON(w, http.StatusCreated, rem)
	}
}

// HandleUpdateReminder replaces a reminder's schedule and slots
func HandleUpdateReminder(db *database.DB) http.HandlerFunc {
	reminderRepo := repository.NewReminderRepository(db)
	medicationRepo := repository.NewMedicationRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		existing, status, msg := getOwnedReminder(reminderRepo, r)
		if existing == nil {
			respondError(w, status, msg)
			return
		}

		var req ReminderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		userID := middleware.GetUserID(r.Context())
		rem, err := req.toModel(userID)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		rem.ID = existing.ID

		if err := schedule.ValidateReminder(rem); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		med, err := medicationRepo.GetByID(rem.MedicationID)
		if err != nil || med.UserID != userID {
			respondError(w, http.StatusBadRequest, "medication_id does not exist")
			return
		}

		if err := reminderRepo.Update(rem); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to update reminder")
			return
		}

		respondJSON(w, http.StatusOK, rem)
	}
}

// HandleDeleteReminder deactivates a reminder, keeping its dose history for
// adherence reporting. Passing ?purge=true removes the reminder and its
// history permanently.
func HandleDeleteReminder(db *database.DB) http.HandlerFunc {
	reminderRepo := repository.NewReminderRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		rem, status, msg := getOwnedReminder(reminderRepo, r)
		if rem == nil {
			respondError(w, status, msg)
			return
		}

		var err error
		if r.URL.Query().Get("purge") == "true" {
			err = reminderRepo.Delete(rem.ID)
		} else {
			err = reminderRepo.Deactivate(rem.ID)
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to delete reminder")
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

// HandleGetReminderStatus returns a reminder's dose occurrences for one date
// with their current statuses
func HandleGetReminderStatus(db *database.DB, scheduleService *services.ScheduleService) http.HandlerFunc {
	reminderRepo := repository.NewReminderRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		rem, status, msg := getOwnedReminder(reminderRepo, r)
		if rem == nil {
			respondError(w, status, msg)
			return
		}

		date, err := parseDateQuery(r, "date")
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid date format, use YYYY-MM-DD")
			return
		}

		occurrences, err := scheduleService.ReminderStatus(rem.ID, date, time.Now())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to resolve reminder status")
			return
		}

		var nextDate *string
		if next := schedule.NextOccurrenceDate(rem, date.AddDate(0, 0, 1)); next != nil {
			formatted := next.Format(models.DateFormat)
			nextDate = &formatted
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"reminder_id": rem.ID,
			"date":        date.Format(models.DateFormat),
			"occurrences": occurrences,
			"next_date":   nextDate,
		})
	}
}

// HandleDoseAction applies a take, skip, or snooze to one dose occurrence
func HandleDoseAction(db *database.DB, processor *schedule.Processor) http.HandlerFunc {
	reminderRepo := repository.NewReminderRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		rem, status, msg := getOwnedReminder(reminderRepo, r)
		if rem == nil {
			respondError(w, status, msg)
			return
		}

		var req DoseActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		date := time.Now()
		if req.Date != "" {
			var err error
			date, err = time.ParseInLocation(models.DateFormat, req.Date, time.Local)
			if err != nil {
				respondError(w, http.StatusBadRequest, "Invalid date format, use YYYY-MM-DD")
				return
			}
		}

		// An explicit time backfills an action observed earlier in the day,
		// such as a dose confirmed while the device was offline.
		now := time.Now()
		if req.Time != "" {
			clock, err := time.Parse(models.ClockFormat, req.Time)
			if err != nil {
				respondError(w, http.StatusBadRequest, "Invalid time format, use HH:MM")
				return
			}
			now = time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), 0, 0, time.Local)
		}

		occ, err := processor.Apply(rem.ID, models.SlotLabel(req.SlotLabel), date, models.Action(req.Action), now)
		if errors.Is(err, schedule.ErrDoseFinal) {
			respondError(w, http.StatusConflict, "this dose can no longer be updated")
			return
		}
		if errors.Is(err, schedule.ErrInvalidOccurrence) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to record dose action")
			return
		}

		userID := middleware.GetUserID(r.Context())
		_ = auditRepo.LogWithDetails(
			sql.NullInt64{Int64: userID, Valid: true},
			"dose_"+req.Action,
			"reminder",
			sql.NullInt64{Int64: rem.ID, Valid: true},
			map[string]interface{}{"dose_date": occ.Date, "slot_label": occ.SlotLabel, "status": occ.Status},
			getIPAddress(r),
			r.Header.Get("User-Agent"),
		)

		respondJSON(w, http.StatusOK, occ)
	}
}
