// Package reminder sends the weekly chore reminder on a cron schedule.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	applog "choreboard/internal/log"
	"choreboard/internal/notify"
	"choreboard/internal/services"
)

// Source provides the reminder content. Implemented by the board service.
type Source interface {
	Reminders() services.ReminderReport
}

type Scheduler struct {
	cron     *cron.Cron
	source   Source
	notifier notify.Notifier
	timeout  time.Duration
	logger   *applog.Logger
}

// New registers the reminder job. spec is a standard five-field cron
// expression.
func New(spec string, source Source, notifier notify.Notifier, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		source:   source,
		notifier: notifier,
		timeout:  30 * time.Second,
		logger:   applog.Wrap(logger, applog.ComponentReminder),
	}
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.Tick(ctx); err != nil {
			s.logger.Error("Reminder failed", applog.FieldError, err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule reminder %q: %w", spec, err)
	}
	return s, nil
}

// Tick sends one reminder if there is something to remind about.
func (s *Scheduler) Tick(ctx context.Context) error {
	report := s.source.Reminders()
	if len(report.Idle) == 0 && !report.HasActivity {
		s.logger.DebugContext(ctx, "Nothing to remind")
		return nil
	}
	if err := s.notifier.Notify(ctx, notify.FormatReminder(report)); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	s.logger.InfoContext(ctx, "Reminder sent",
		applog.FieldOperation, applog.OpNotify,
		"idle_children", len(report.Idle))
	return nil
}

// Next returns the next scheduled run, zero before Run starts.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits for
// a running job to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info("Reminder scheduler started", "next", s.Next())
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("Reminder scheduler stopped")
	return nil
}
