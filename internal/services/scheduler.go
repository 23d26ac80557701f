package services

import (
	"context"
	"log"
	"time"

	"medtracker/internal/repository"
)

// Scheduler runs the notification sweep on a fixed interval until its
// context is cancelled, and prunes old audit logs once a day.
type Scheduler struct {
	notifications *NotificationService
	audit         *repository.AuditRepository
	interval      time.Duration
	retentionDays int
}

func NewScheduler(notifications *NotificationService, audit *repository.AuditRepository, interval time.Duration, retentionDays int) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		notifications: notifications,
		audit:         audit,
		interval:      interval,
		retentionDays: retentionDays,
	}
}

// Run blocks until ctx is cancelled. An immediate sweep runs at startup so a
// restart does not wait a full interval to catch up.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("Scheduler started, sweeping every %s", s.interval)

	if err := s.notifications.Sweep(time.Now()); err != nil {
		log.Printf("Initial sweep failed: %v", err)
	}
	s.pruneAuditLogs()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	maintenance := time.NewTicker(24 * time.Hour)
	defer maintenance.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduler stopped")
			return
		case now := <-ticker.C:
			if err := s.notifications.Sweep(now); err != nil {
				log.Printf("Sweep failed: %v", err)
			}
		case <-maintenance.C:
			s.pruneAuditLogs()
		}
	}
}

// pruneAuditLogs deletes audit entries past the retention window. A zero or
// negative retention disables pruning.
func (s *Scheduler) pruneAuditLogs() {
	if s.audit == nil || s.retentionDays <= 0 {
		return
	}

	deleted, err := s.audit.DeleteOldLogs(s.retentionDays)
	if err != nil {
		log.Printf("Audit log pruning failed: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("Pruned %d audit log entries older than %d days", deleted, s.retentionDays)
	}
}
