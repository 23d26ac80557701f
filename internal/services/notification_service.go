package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"medtracker/internal/database"
	"medtracker/internal/models"
	"medtracker/internal/repository"
	"medtracker/internal/schedule"
)

// NotificationService creates dose and stock notifications. Sweep is called
// periodically by the scheduler; each check dedupes against already-created
// notifications so repeated sweeps are idempotent.
type NotificationService struct {
	notificationRepo *repository.NotificationRepository
	reminderRepo     *repository.ReminderRepository
	medicationRepo   *repository.MedicationRepository
	doseRepo         *repository.DoseLogRepository
	userRepo         *repository.UserRepository
	lowStockEnabled  bool
}

// NewNotificationService creates a new notification service
func NewNotificationService(db *database.DB) *NotificationService {
	return &NotificationService{
		notificationRepo: repository.NewNotificationRepository(db),
		reminderRepo:     repository.NewReminderRepository(db),
		medicationRepo:   repository.NewMedicationRepository(db),
		doseRepo:         repository.NewDoseLogRepository(db),
		userRepo:         repository.NewUserRepository(db),
		lowStockEnabled:  true,
	}
}

// Sweep runs all notification checks as of now
func (s *NotificationService) Sweep(now time.Time) error {
	if err := s.checkDueDoses(now); err != nil {
		log.Printf("Error checking due doses: %v", err)
	}

	if s.lowStockEnabled {
		if err := s.checkLowStock(); err != nil {
			log.Printf("Error checking low stock: %v", err)
		}
	}

	return nil
}

// checkDueDoses creates a dose_due notification for every unacted occurrence
// whose slot time has passed, and a snooze_elapsed one when a snooze delay
// ran out without a follow-up action.
func (s *NotificationService) checkDueDoses(now time.Time) error {
	reminders, err := s.reminderRepo.ListActive()
	if err != nil {
		return fmt.Errorf("failed to list active reminders: %w", err)
	}

	for _, rem := range reminders {
		if !schedule.IsActiveOn(rem, now) {
			continue
		}

		med, err := s.medicationRepo.GetByID(rem.MedicationID)
		if err != nil {
			log.Printf("Reminder %d references missing medication %d: %v", rem.ID, rem.MedicationID, err)
			continue
		}

		for _, occ := range schedule.Flatten(rem, now) {
			scheduledAt, err := occ.ScheduledAt(now.Location())
			if err != nil {
				log.Printf("Reminder %d slot %s has bad clock time: %v", rem.ID, occ.SlotLabel, err)
				continue
			}
			if now.Before(scheduledAt) {
				continue
			}

			entry, err := s.doseRepo.Get(rem.ID, occ.Date, occ.SlotLabel)
			if err != nil {
				return err
			}

			switch {
			case entry == nil:
				if err := s.createDoseNotification("dose_due", rem, med, occ,
					fmt.Sprintf("Time for %s", med.Name),
					fmt.Sprintf("%s dose of %s (%.4g %s) is due", occ.SlotLabel, med.Name, occ.DosageAmount, med.DisplayUnit()),
				); err != nil {
					log.Printf("Failed to create dose_due notification: %v", err)
				}
			case entry.Action == models.ActionSnooze && entry.SnoozedUntil.Valid && !now.Before(entry.SnoozedUntil.Time):
				if err := s.createDoseNotification("snooze_elapsed", rem, med, occ,
					fmt.Sprintf("Snoozed dose of %s", med.Name),
					fmt.Sprintf("The snoozed %s dose of %s is waiting", occ.SlotLabel, med.Name),
				); err != nil {
					log.Printf("Failed to create snooze_elapsed notification: %v", err)
				}
			}
		}
	}

	return nil
}

func (s *NotificationService) createDoseNotification(notifType string, rem *models.Reminder, med *models.Medication, occ models.DoseOccurrence, title, message string) error {
	exists, err := s.notificationRepo.ExistsForOccurrence(notifType, rem.ID, occ.Date, occ.SlotLabel)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return s.notificationRepo.Create(&models.Notification{
		UserID:     sql.NullInt64{Int64: rem.UserID, Valid: true},
		Type:       notifType,
		Title:      title,
		Message:    message,
		ReminderID: sql.NullInt64{Int64: rem.ID, Valid: true},
		DoseDate:   sql.NullString{String: occ.Date, Valid: true},
		SlotLabel:  sql.NullString{String: string(occ.SlotLabel), Valid: true},
	})
}

// checkLowStock creates a low_stock notification per depleted medication,
// at most once per day
func (s *NotificationService) checkLowStock() error {
	users, err := s.userRepo.List()
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	for _, user := range users {
		meds, err := s.medicationRepo.ListLowStock(user.ID)
		if err != nil {
			log.Printf("Failed to list low stock for user %d: %v", user.ID, err)
			continue
		}

		for _, med := range meds {
			title := fmt.Sprintf("Low stock: %s", med.Name)

			exists, err := s.notificationRepo.ExistsRecent(user.ID, "low_stock", title, 24)
			if err != nil {
				log.Printf("Failed to check recent low stock notifications: %v", err)
				continue
			}
			if exists {
				continue
			}

			notifType := "low_stock"
			if med.RemainingQuantity == 0 {
				notifType = "out_of_stock"
				title = fmt.Sprintf("Out of stock: %s", med.Name)
			}

			err = s.notificationRepo.Create(&models.Notification{
				UserID:  sql.NullInt64{Int64: user.ID, Valid: true},
				Type:    notifType,
				Title:   title,
				Message: fmt.Sprintf("%s has %.4g %s left (threshold %.4g)", med.Name, med.RemainingQuantity, med.DisplayUnit(), med.LowStockThreshold),
			})
			if err != nil {
				log.Printf("Failed to create low stock notification for user %d: %v", user.ID, err)
			}
		}
	}

	return nil
}

// SetLowStockEnabled enables or disables low stock notifications
func (s *NotificationService) SetLowStockEnabled(enabled bool) {
	s.lowStockEnabled = enabled
}
