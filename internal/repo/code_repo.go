// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// verification-code ledger.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a code is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// The ledger is append-mostly: rows are never hard-deleted. Superseding a
// subject's code deactivates the old rows in the same transaction that
// inserts the new one, which is what keeps the single-active invariant safe
// under concurrent issuance.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/momtazchem/go-verify-backend/internal/domain"
	"github.com/momtazchem/go-verify-backend/internal/utils"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// NewCode describes the row CreateCode inserts.
type NewCode struct {
	SubjectKey          string
	Purpose             domain.Purpose
	Code                string
	Phone               string
	Email               string
	OrderID             string
	ExpiresAt           time.Time
	RegistrationPayload []byte
}

// CreateCode deactivates every prior active code for the subject and inserts
// the new row as the single active one, inside one transaction. This is the
// only path that may set IsActive=true; a concurrent verify observes either
// the old active code or the new one, never both.
func CreateCode(ctx context.Context, db *gorm.DB, nc NewCode, now time.Time) (*domain.VerificationCode, error) {
	rec := &domain.VerificationCode{
		ID:                  uuid.NewString(),
		SubjectKey:          nc.SubjectKey,
		Purpose:             nc.Purpose,
		Code:                nc.Code,
		CodeDay:             utils.DayKey(now),
		Phone:               nc.Phone,
		Email:               nc.Email,
		OrderID:             nc.OrderID,
		ExpiresAt:           nc.ExpiresAt,
		IsActive:            true,
		RegistrationPayload: nc.RegistrationPayload,
		CreatedAt:           now.UTC(),
		UpdatedAt:           now.UTC(),
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.VerificationCode{}).
			Where("subject_key = ? AND is_active = ?", nc.SubjectKey, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetActiveForSubject returns the subject's single active, unused code, or
// ErrNotFound. Expiry is not checked here; the service decides what an
// expired row means.
func GetActiveForSubject(ctx context.Context, db *gorm.DB, subjectKey string) (*domain.VerificationCode, error) {
	var rec domain.VerificationCode
	err := db.WithContext(ctx).
		Where("subject_key = ? AND is_active = ? AND is_used = ?", subjectKey, true, false).
		Order("created_at desc").
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByCodeAndSubject fetches the most recent active row matching both the
// code value and the subject, or ErrNotFound.
func FindByCodeAndSubject(ctx context.Context, db *gorm.DB, code, subjectKey string) (*domain.VerificationCode, error) {
	var rec domain.VerificationCode
	err := db.WithContext(ctx).
		Where("code = ? AND subject_key = ? AND is_active = ?", code, subjectKey, true).
		Order("created_at desc").
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// LatestForSubject returns the most recent ledger row for the subject in any
// state, or ErrNotFound. Resend uses it to recover the registration payload.
func LatestForSubject(ctx context.Context, db *gorm.DB, subjectKey string) (*domain.VerificationCode, error) {
	var rec domain.VerificationCode
	err := db.WithContext(ctx).
		Where("subject_key = ?", subjectKey).
		Order("created_at desc").
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkCodeUsed flips a code to used and records who verified it. A second
// call on an already-used row is a no-op success: courier apps retry, and
// the first write must win without surfacing an error. UsedAt is never
// overwritten.
func MarkCodeUsed(ctx context.Context, db *gorm.DB, id, verifiedBy, note string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.VerificationCode{}).
		Where("id = ? AND is_used = ?", id, false).
		Updates(map[string]any{
			"is_used":     true,
			"used_at":     now.UTC(),
			"verified_by": verifiedBy,
			"verify_note": note,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either the row is gone or it was already used. Distinguish so a
		// bogus id is still an error.
		var count int64
		if err := db.WithContext(ctx).
			Model(&domain.VerificationCode{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// IncrementAttempts bumps the failed-verification counter for a code row.
func IncrementAttempts(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.VerificationCode{}).
		Where("id = ?", id).
		Update("attempts", gorm.Expr("attempts + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ChannelStatus is the per-channel delivery result written back to a ledger
// row after a fan-out, for audit and debugging.
type ChannelStatus struct {
	Sent      bool
	Delivered bool
	MessageID string
	Failure   string
}

// UpdateChannelStatus records one channel's send outcome on the ledger row.
// Unknown channel names are rejected so a typo cannot silently drop audit
// data.
func UpdateChannelStatus(ctx context.Context, db *gorm.DB, id, channel string, st ChannelStatus, now time.Time) error {
	fields := map[string]any{}
	ts := now.UTC()

	switch channel {
	case domain.ChannelSMS:
		if st.Sent {
			fields["sms_sent"] = true
			fields["sms_sent_at"] = ts
		}
		if st.Delivered {
			fields["sms_delivered"] = true
			fields["sms_delivered_at"] = ts
		}
		if st.MessageID != "" {
			fields["sms_message_id"] = st.MessageID
		}
		if st.Failure != "" {
			fields["sms_failure"] = st.Failure
		}
	case domain.ChannelWhatsApp:
		if st.Sent {
			fields["whatsapp_sent"] = true
			fields["whatsapp_sent_at"] = ts
		}
		if st.Failure != "" {
			fields["whatsapp_failure"] = st.Failure
		}
	case domain.ChannelEmail:
		if st.Sent {
			fields["email_sent"] = true
			fields["email_sent_at"] = ts
		}
		if st.MessageID != "" {
			fields["email_message_id"] = st.MessageID
		}
		if st.Failure != "" {
			fields["email_failure"] = st.Failure
		}
	default:
		return errors.New("repo: unknown channel " + channel)
	}

	if len(fields) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.VerificationCode{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// CodeExistsOnDay reports whether any ledger row created on dayKey carries
// the given code value. This is the day-scoped uniqueness probe behind
// GenerateUnique.
func CodeExistsOnDay(ctx context.Context, db *gorm.DB, code, dayKey string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.VerificationCode{}).
		Where("code = ? AND code_day = ?", code, dayKey).
		Count(&count).Error
	return count > 0, err
}

// LastIssuedAt returns the CreatedAt of the subject's most recent ledger row.
// The re-issuance rate limiter reads this instead of keeping its own store.
// Returns ErrNotFound when the subject has no history.
func LastIssuedAt(ctx context.Context, db *gorm.DB, subjectKey string) (time.Time, error) {
	var rec domain.VerificationCode
	err := db.WithContext(ctx).
		Select("created_at").
		Where("subject_key = ?", subjectKey).
		Order("created_at desc").
		First(&rec).Error
	if err != nil {
		return time.Time{}, err
	}
	return rec.CreatedAt, nil
}

// SweepExpired deactivates expired, unused, still-active codes and returns
// how many rows were flipped. Cleanup, not deletion.
func SweepExpired(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.VerificationCode{}).
		Where("is_active = ? AND is_used = ? AND expires_at < ?", true, false, now.UTC()).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

// CodesForDay lists every ledger row created on dayKey, newest first.
// Admin/debug surface.
func CodesForDay(ctx context.Context, db *gorm.DB, dayKey string) ([]domain.VerificationCode, error) {
	var out []domain.VerificationCode
	err := db.WithContext(ctx).
		Where("code_day = ?", dayKey).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// HistoryForOrder lists every code ever issued for an order, newest first.
func HistoryForOrder(ctx context.Context, db *gorm.DB, orderID string) ([]domain.VerificationCode, error) {
	var out []domain.VerificationCode
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}
