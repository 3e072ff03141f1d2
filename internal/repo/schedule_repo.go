// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides read queries for reminder schedules and
// the order projection the scheduler walks.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/momtazchem/go-verify-backend/internal/domain"
)

// ActiveSchedules returns every active reminder schedule in ascending
// (days_before, hour_of_day) order, the order the scheduler processes them.
func ActiveSchedules(ctx context.Context, db *gorm.DB) ([]domain.ReminderSchedule, error) {
	var out []domain.ReminderSchedule
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("days_before asc, hour_of_day asc").
		Find(&out).Error
	return out, err
}

// OrdersWithDeadlineBetween returns awaiting-payment orders whose payment
// deadline falls in [from, to), soonest deadline first. Orders without a
// customer email are skipped because the reminder channel needs one.
func OrdersWithDeadlineBetween(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Where("status = ?", domain.OrderStatusAwaitingPayment).
		Where("payment_deadline >= ? AND payment_deadline < ?", from, to).
		Where("customer_email <> ''").
		Order("payment_deadline asc").
		Find(&out).Error
	return out, err
}

// GetOrder fetches one order by id, or ErrNotFound.
func GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	var o domain.Order
	if err := db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// SetOrderStatus transitions an order to status.
func SetOrderStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
