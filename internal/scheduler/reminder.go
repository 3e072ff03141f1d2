// Package scheduler runs the payment-deadline reminder loop. A cron tick
// walks the active reminder schedules, finds awaiting-payment orders whose
// deadline lands the configured number of days ahead, and emails each
// customer at most once per (order, schedule, day).
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/momtazchem/go-verify-backend/internal/channels"
	"github.com/momtazchem/go-verify-backend/internal/config"
	"github.com/momtazchem/go-verify-backend/internal/domain"
	"github.com/momtazchem/go-verify-backend/internal/messages"
	"github.com/momtazchem/go-verify-backend/internal/repo"
	"github.com/momtazchem/go-verify-backend/internal/utils"
)

// RunReport summarizes one reminder pass.
type RunReport struct {
	SchedulesDue int `json:"schedules_due"`
	Considered   int `json:"considered"`
	Sent         int `json:"sent"`
	Failed       int `json:"failed"`
	Skipped      int `json:"skipped"`
}

// ReminderService drives scheduled payment reminders.
type ReminderService struct {
	DB    *gorm.DB
	Email channels.Adapter
	Clock clock.Clock
	Cfg   config.ReminderConfig
	Log   zerolog.Logger

	cron *cron.Cron
}

func New(db *gorm.DB, email channels.Adapter, cfg config.ReminderConfig, log zerolog.Logger) *ReminderService {
	return &ReminderService{
		DB:    db,
		Email: email,
		Clock: clock.WallClock,
		Cfg:   cfg,
		Log:   log,
	}
}

// Start registers the cron entry and begins ticking. The default spec fires
// at the top of every hour; the hour-of-day filter inside Run decides which
// schedules are actually due.
func (s *ReminderService) Start() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.Cfg.CronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := s.Run(ctx); err != nil {
			s.Log.Error().Err(err).Msg("reminder pass failed")
		}
	})
	if err != nil {
		return fmt.Errorf("register reminder cron %q: %w", s.Cfg.CronSpec, err)
	}
	s.cron.Start()
	s.Log.Info().Str("spec", s.Cfg.CronSpec).Msg("reminder scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running pass to finish.
func (s *ReminderService) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Run executes one reminder pass. Per-order failures are isolated: a bad
// address or a provider hiccup on one order never aborts the rest of the
// pass. Every attempt, failed or not, lands in the sent-log so the next tick
// within the same day skips it.
func (s *ReminderService) Run(ctx context.Context) (RunReport, error) {
	var report RunReport
	now := s.Clock.Now()

	schedules, err := repo.ActiveSchedules(ctx, s.DB)
	if err != nil {
		return report, fmt.Errorf("load schedules: %w", err)
	}

	for _, sched := range schedules {
		if !s.hourDue(now, sched.HourOfDay) {
			continue
		}
		report.SchedulesDue++
		s.runSchedule(ctx, now, sched, &report)
	}

	s.Log.Info().
		Int("schedules_due", report.SchedulesDue).
		Int("considered", report.Considered).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("reminder pass complete")
	return report, nil
}

// hourDue checks the schedule's hour against now with the configured
// tolerance, so a tick delayed past the hour boundary still fires.
func (s *ReminderService) hourDue(now time.Time, hourOfDay int) bool {
	diff := now.Hour() - hourOfDay
	if diff < 0 {
		diff = -diff
	}
	return diff <= s.Cfg.HourTolerance
}

func (s *ReminderService) runSchedule(ctx context.Context, now time.Time, sched domain.ReminderSchedule, report *RunReport) {
	from, to := utils.DayWindow(now.AddDate(0, 0, sched.DaysBefore))
	orders, err := repo.OrdersWithDeadlineBetween(ctx, s.DB, from, to)
	if err != nil {
		s.Log.Error().Err(err).Str("schedule_id", sched.ID).Msg("load orders for schedule")
		return
	}

	for _, order := range orders {
		report.Considered++
		sent, err := repo.WasReminderSent(ctx, s.DB, order.ID, sched.ID, now)
		if err != nil {
			report.Failed++
			s.Log.Error().Err(err).Str("order_id", order.ID).Msg("sent-log lookup")
			continue
		}
		if sent {
			report.Skipped++
			continue
		}

		out := s.sendReminder(ctx, sched, order)
		if out.Success {
			report.Sent++
		} else {
			report.Failed++
			s.Log.Warn().
				Str("order_id", order.ID).
				Str("schedule_id", sched.ID).
				Str("error", out.Error).
				Msg("reminder send failed")
		}

		err = repo.RecordReminderSent(ctx, s.DB, order.ID, sched.ID, order.CustomerEmail, out.Success, out.Error, now)
		if errors.Is(err, repo.ErrDuplicate) {
			// Another tick claimed the tuple between our lookup and the
			// insert. The duplicate send already happened; nothing to undo.
			s.Log.Warn().Str("order_id", order.ID).Msg("concurrent reminder claim")
		} else if err != nil {
			s.Log.Error().Err(err).Str("order_id", order.ID).Msg("record sent-log")
		}
	}
}

// sendReminder renders and sends one reminder email. Schedules may carry
// their own subject and body copy; otherwise the catalog copy is used. A
// schedule with a provider-side template id delegates rendering to the mail
// provider.
func (s *ReminderService) sendReminder(ctx context.Context, sched domain.ReminderSchedule, order domain.Order) channels.Outcome {
	amount := strconv.FormatFloat(order.TotalAmount, 'f', -1, 64)
	deadline := utils.DayKey(order.PaymentDeadline)
	days := strconv.Itoa(sched.DaysBefore)

	// Admin-authored templates use the snake_case names; the built-in
	// catalog copy uses the camelCase ones. Carry both spellings so either
	// template source renders.
	vars := map[string]string{
		"customerName":  order.CustomerName,
		"customer_name": order.CustomerName,
		"orderNumber":   order.OrderNumber,
		"order_number":  order.OrderNumber,
		"amount":        amount,
		"total_amount":  amount,
		"currency":      order.Currency,
		"deadline":      deadline,
		"deadline_date": deadline,
		"daysBefore":    days,
		"days_before":   days,
	}

	msg := channels.Message{
		To:      order.CustomerEmail,
		Purpose: "reminder",
	}
	switch {
	case sched.EmailTemplateID != "":
		msg.TemplateID = sched.EmailTemplateID
		msg.Variables = vars
		msg.Subject = messages.Substitute(sched.MessageSubject, vars)
	case sched.MessageTemplate != "":
		msg.Subject = messages.Substitute(sched.MessageSubject, vars)
		msg.Body = messages.Substitute(sched.MessageTemplate, vars)
	default:
		subject, body, err := messages.Email(messages.KindPaymentReminder, messages.MatchLanguage(""), vars)
		if err != nil {
			return channels.Outcome{Error: err.Error()}
		}
		msg.Subject = subject
		msg.Body = body
	}

	return s.Email.Send(ctx, msg)
}

// EnsureDefaultSchedules seeds the reminder schedule table on first boot:
// three days before the deadline, one day before, and on the deadline day,
// all at 09:00. Existing rows are left alone.
func EnsureDefaultSchedules(ctx context.Context, db *gorm.DB) error {
	var count int64
	if err := db.WithContext(ctx).Model(&domain.ReminderSchedule{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := []domain.ReminderSchedule{
		{DaysBefore: 3, HourOfDay: 9, Priority: 1},
		{DaysBefore: 1, HourOfDay: 9, Priority: 2},
		{DaysBefore: 0, HourOfDay: 9, Priority: 3},
	}
	for i := range defaults {
		defaults[i].ID = uuid.NewString()
		defaults[i].IsActive = true
	}
	return db.WithContext(ctx).Create(&defaults).Error
}
