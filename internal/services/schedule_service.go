package services

import (
	"fmt"
	"time"

	"medtracker/internal/database"
	"medtracker/internal/models"
	"medtracker/internal/repository"
	"medtracker/internal/schedule"
)

// ScheduleService derives dose occurrences for calendar queries. Occurrences
// are never stored; every view re-derives them from the current reminders
// and overlays the recorded dose logs.
type ScheduleService struct {
	reminderRepo *repository.ReminderRepository
	doseRepo     *repository.DoseLogRepository
	classifier   schedule.Classifier
}

func NewScheduleService(db *database.DB, classifier schedule.Classifier) *ScheduleService {
	return &ScheduleService{
		reminderRepo: repository.NewReminderRepository(db),
		doseRepo:     repository.NewDoseLogRepository(db),
		classifier:   classifier,
	}
}

// DayView returns all of a user's dose occurrences for one calendar date,
// with statuses resolved as of now.
func (s *ScheduleService) DayView(userID int64, date, now time.Time) ([]models.DoseOccurrence, error) {
	reminders, err := s.reminderRepo.ListActiveByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reminders: %w", err)
	}

	doseDate := date.Format(models.DateFormat)
	logs, err := s.doseRepo.ListForUserOnDate(userID, doseDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load dose logs: %w", err)
	}

	byKey := make(map[string]*models.DoseLog, len(logs))
	for _, entry := range logs {
		byKey[doseLogKey(entry.ReminderID, entry.DoseDate, entry.SlotLabel)] = entry
	}

	occurrences := []models.DoseOccurrence{}
	for _, rem := range reminders {
		if !schedule.IsActiveOn(rem, date) {
			continue
		}
		for _, occ := range schedule.Flatten(rem, date) {
			entry := byKey[doseLogKey(occ.ReminderID, occ.Date, occ.SlotLabel)]
			if err := s.classifier.Resolve(&occ, entry, now, date.Location()); err != nil {
				return nil, fmt.Errorf("failed to resolve occurrence: %w", err)
			}
			occurrences = append(occurrences, occ)
		}
	}

	return occurrences, nil
}

// ReminderStatus returns one reminder's occurrences for a date, resolved as
// of now. Fails with repository.ErrNotFound for unknown reminders.
func (s *ScheduleService) ReminderStatus(reminderID int64, date, now time.Time) ([]models.DoseOccurrence, error) {
	rem, err := s.reminderRepo.GetByID(reminderID)
	if err != nil {
		return nil, err
	}

	if !schedule.IsActiveOn(rem, date) {
		return []models.DoseOccurrence{}, nil
	}

	occurrences := schedule.Flatten(rem, date)
	for i := range occurrences {
		entry, err := s.doseRepo.Get(reminderID, occurrences[i].Date, occurrences[i].SlotLabel)
		if err != nil {
			return nil, err
		}
		if err := s.classifier.Resolve(&occurrences[i], entry, now, date.Location()); err != nil {
			return nil, fmt.Errorf("failed to resolve occurrence: %w", err)
		}
	}

	return occurrences, nil
}

// AdherenceReport summarizes a user's dose outcomes over an inclusive date
// range. Occurrences are re-derived per day so unacted doses count as missed
// or pending rather than disappearing.
type AdherenceReport struct {
	StartDate string                  `json:"start_date"`
	EndDate   string                  `json:"end_date"`
	Counts    map[models.Status]int64 `json:"counts"`
	Total     int64                   `json:"total"`
	// AdherenceRate is taken doses over concluded doses (taken + skipped +
	// missed), as a percentage. Pending and snoozed doses are excluded.
	AdherenceRate float64        `json:"adherence_rate"`
	Days          []AdherenceDay `json:"days"`
}

type AdherenceDay struct {
	Date        string                  `json:"date"`
	Occurrences []models.DoseOccurrence `json:"occurrences"`
}

// Adherence builds the report by walking each day in [start, end].
func (s *ScheduleService) Adherence(userID int64, start, end, now time.Time) (*AdherenceReport, error) {
	if start.After(end) {
		return nil, fmt.Errorf("start date %s is after end date %s",
			start.Format(models.DateFormat), end.Format(models.DateFormat))
	}

	report := &AdherenceReport{
		StartDate: start.Format(models.DateFormat),
		EndDate:   end.Format(models.DateFormat),
		Counts:    make(map[models.Status]int64),
	}

	for day := schedule.Midnight(start); !day.After(end); day = day.AddDate(0, 0, 1) {
		occurrences, err := s.DayView(userID, day, now)
		if err != nil {
			return nil, err
		}
		if len(occurrences) == 0 {
			continue
		}
		for _, occ := range occurrences {
			report.Counts[occ.Status]++
			report.Total++
		}
		report.Days = append(report.Days, AdherenceDay{
			Date:        day.Format(models.DateFormat),
			Occurrences: occurrences,
		})
	}

	taken := report.Counts[models.StatusOnTime] + report.Counts[models.StatusLate]
	concluded := taken + report.Counts[models.StatusSkipped] + report.Counts[models.StatusMissed]
	if concluded > 0 {
		report.AdherenceRate = float64(taken) * 100 / float64(concluded)
	}

	return report, nil
}

func doseLogKey(reminderID int64, doseDate string, slot models.SlotLabel) string {
	return fmt.Sprintf("%d|%s|%s", reminderID, doseDate, slot)
}
