// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the reminder
// sent-log, the idempotency guard that caps the scheduler at one send
// attempt per (order, schedule, day).
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/momtazchem/go-verify-backend/internal/domain"
	"github.com/momtazchem/go-verify-backend/internal/utils"
)

// ErrDuplicate indicates that a sent-log row already exists for the
// given (order_id, schedule_id, sent_day) tuple.
var ErrDuplicate = errors.New("duplicate")

// WasReminderSent reports whether a send was already attempted today for
// the order/schedule pair.
func WasReminderSent(ctx context.Context, db *gorm.DB, orderID, scheduleID string, now time.Time) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.ReminderSentLog{}).
		Where("order_id = ? AND schedule_id = ? AND sent_day = ?", orderID, scheduleID, utils.DayKey(now)).
		Count(&count).Error
	return count > 0, err
}

// RecordReminderSent appends the idempotency row after a send attempt. The
// row is written regardless of whether the send itself succeeded, so a
// failing provider cannot turn the scheduler into a same-day retry loop.
// Returns ErrDuplicate when another tick already claimed the tuple.
func RecordReminderSent(ctx context.Context, db *gorm.DB, orderID, scheduleID, customerEmail string, succeeded bool, failure string, now time.Time) error {
	rec := &domain.ReminderSentLog{
		ID:            uuid.NewString(),
		OrderID:       orderID,
		ScheduleID:    scheduleID,
		SentDay:       utils.DayKey(now),
		CustomerEmail: customerEmail,
		SendSucceeded: succeeded,
		FailureReason: failure,
		SentAt:        now.UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return ErrDuplicate
		}
		return err
	}
	return nil
}
