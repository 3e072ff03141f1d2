// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file computes per-day delivery statistics over the
// verification-code ledger for the admin surface.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/momtazchem/go-verify-backend/internal/domain"
)

// DayStats summarizes one day of the ledger: how many codes went out per
// channel, how many failed, and how many were verified.
type DayStats struct {
	Day       string `json:"day"`
	Issued    int64  `json:"issued"`
	SMSSent   int64  `json:"sms_sent"`
	EmailSent int64  `json:"email_sent"`
	Failed    int64  `json:"failed"`
	Verified  int64  `json:"verified"`
}

// StatsForDay aggregates ledger rows created on dayKey. Derived on read from
// the audit columns; no separate counter table to drift out of sync.
func StatsForDay(ctx context.Context, db *gorm.DB, dayKey string) (DayStats, error) {
	st := DayStats{Day: dayKey}
	base := func() *gorm.DB {
		return db.WithContext(ctx).
			Model(&domain.VerificationCode{}).
			Where("code_day = ?", dayKey)
	}

	if err := base().Count(&st.Issued).Error; err != nil {
		return st, err
	}
	if err := base().Where("sms_sent = ?", true).Count(&st.SMSSent).Error; err != nil {
		return st, err
	}
	if err := base().Where("email_sent = ?", true).Count(&st.EmailSent).Error; err != nil {
		return st, err
	}
	if err := base().
		Where("sms_failure <> '' OR whatsapp_failure <> '' OR email_failure <> ''").
		Count(&st.Failed).Error; err != nil {
		return st, err
	}
	if err := base().Where("is_used = ?", true).Count(&st.Verified).Error; err != nil {
		return st, err
	}
	return st, nil
}
