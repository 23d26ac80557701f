package schedule

import (
	"time"

	"medtracker/internal/models"
)

// Flatten expands a reminder's slot list into one pending dose occurrence
// per slot for the given date. Callers are expected to have checked
// IsActiveOn first; Flatten itself does not re-check the recurrence.
func Flatten(rem *models.Reminder, date time.Time) []models.DoseOccurrence {
	occurrences := make([]models.DoseOccurrence, 0, len(rem.Slots))
	for i := range rem.Slots {
		occurrences = append(occurrences, occurrenceFor(rem, &rem.Slots[i], date))
	}
	return occurrences
}

func occurrenceFor(rem *models.Reminder, slot *models.TimeSlot, date time.Time) models.DoseOccurrence {
	return models.DoseOccurrence{
		ReminderID:   rem.ID,
		MedicationID: rem.MedicationID,
		Date:         date.Format(models.DateFormat),
		SlotLabel:    slot.Label,
		ClockTime:    slot.ClockTime,
		DosageAmount: slot.DosageAmount,
		Status:       models.StatusPending,
	}
}

// ZipSlots pairs a slot-label list with a clock-time list positionally,
// truncating to the shorter list. Mismatched lengths are rejected upstream
// by ValidateSlotLists; the truncation here only guards records that predate
// that validation. Dosage defaults to one unit per slot.
func ZipSlots(labels []string, times []string) []models.TimeSlot {
	n := len(labels)
	if len(times) < n {
		n = len(times)
	}
	slots := make([]models.TimeSlot, 0, n)
	for i := 0; i < n; i++ {
		slots = append(slots, models.TimeSlot{
			Label:        models.SlotLabel(labels[i]),
			ClockTime:    times[i],
			DosageAmount: 1,
		})
	}
	return slots
}
