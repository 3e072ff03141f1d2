// Package domain defines the persistence models for verification codes,
// reminder schedules, reminder sent-log entries, and the minimal order and
// customer projections the engine reads. These types are mapped with GORM
// and form the core data layer of the verification backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Purpose identifies what a verification code is for.
type Purpose string

const (
	// PurposeRegistrationOTP is a short-lived code confirming a customer
	// registration before the account row is created.
	PurposeRegistrationOTP Purpose = "registration_otp"
	// PurposeDeliveryConfirmation is a code the recipient reads to the
	// courier to prove physical handoff. Valid until the end of its day.
	PurposeDeliveryConfirmation Purpose = "delivery_confirmation"
)

// Channel names used in delivery-status tracking and fan-out results.
const (
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
)

// VerificationCode is a ledger entry for one issued code. Entries are never
// hard-deleted: superseded codes are deactivated and expired unused codes are
// swept to inactive, so the full issuance history stays queryable.
//
// Invariants:
//   - At most one row per SubjectKey may have IsActive && !IsUsed.
//   - The code string is unique among rows sharing the same CodeDay
//     (delivery-confirmation codes only; enforced with a bounded retry loop
//     at generation time against the ux_codes_value_day index).
//   - IsUsed is monotonic; UsedAt is written once.
type VerificationCode struct {
	ID string `json:"id" gorm:"type:char(36);primaryKey"`

	// SubjectKey identifies who the code belongs to: "phone|email" for
	// registration OTPs, "order:<id>" for delivery confirmations.
	SubjectKey string  `json:"subject_key" gorm:"type:varchar(128);not null;index:idx_codes_subject_active,priority:1"`
	Purpose    Purpose `json:"purpose"     gorm:"type:varchar(32);not null;check:purpose IN ('registration_otp','delivery_confirmation')"`
	Code       string  `json:"-"           gorm:"type:varchar(8);not null;index:idx_codes_value_day,priority:1"`

	// CodeDay is the issuance date truncated to the calendar day
	// ("2006-01-02"). It scopes the same-day uniqueness window without
	// relying on driver-specific date functions.
	CodeDay string `json:"code_day" gorm:"type:char(10);not null;index:idx_codes_value_day,priority:2"`

	Phone string `json:"phone" gorm:"type:varchar(32)"`
	Email string `json:"email" gorm:"type:varchar(255)"`

	// OrderID links delivery-confirmation codes to their customer order.
	OrderID string `json:"order_id,omitempty" gorm:"type:char(36);index"`

	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	IsActive  bool      `json:"is_active"  gorm:"not null;default:true;index:idx_codes_subject_active,priority:2"`
	IsUsed    bool      `json:"is_used"    gorm:"not null;default:false"`

	UsedAt     *time.Time `json:"used_at,omitempty"`
	VerifiedBy string     `json:"verified_by,omitempty" gorm:"type:varchar(64)"`
	VerifyNote string     `json:"verify_note,omitempty" gorm:"type:text"`

	// Attempts counts failed verification submissions. Capped by the
	// service; expired or already-used lookups do not increment it.
	Attempts int `json:"attempts" gorm:"not null;default:0"`

	// Per-channel delivery audit. SMS and Email carry provider message ids;
	// WhatsApp is tracked by the aggregate flags only, matching what its
	// providers report back.
	SMSSent         bool       `json:"sms_sent"`
	SMSSentAt       *time.Time `json:"sms_sent_at,omitempty"`
	SMSDelivered    bool       `json:"sms_delivered"`
	SMSDeliveredAt  *time.Time `json:"sms_delivered_at,omitempty"`
	SMSMessageID    string     `json:"sms_message_id,omitempty" gorm:"type:varchar(128)"`
	SMSFailure      string     `json:"sms_failure,omitempty" gorm:"type:text"`
	WhatsAppSent    bool       `json:"whatsapp_sent" gorm:"column:whatsapp_sent"`
	WhatsAppSentAt  *time.Time `json:"whatsapp_sent_at,omitempty" gorm:"column:whatsapp_sent_at"`
	WhatsAppFailure string     `json:"whatsapp_failure,omitempty" gorm:"column:whatsapp_failure;type:text"`
	EmailSent       bool       `json:"email_sent"`
	EmailSentAt     *time.Time `json:"email_sent_at,omitempty"`
	EmailMessageID  string     `json:"email_message_id,omitempty" gorm:"type:varchar(128)"`
	EmailFailure    string     `json:"email_failure,omitempty" gorm:"type:text"`

	// RegistrationPayload is the opaque signup form blob carried through
	// until the OTP is verified and the account is created.
	RegistrationPayload []byte `json:"-" gorm:"type:blob"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for VerificationCode.
func (VerificationCode) TableName() string { return "verification_codes" }

// ReminderSchedule is one configured payment-deadline reminder rule.
// Rows are static configuration, read-only to the scheduler.
type ReminderSchedule struct {
	ID string `json:"id" gorm:"type:char(36);primaryKey"`

	// DaysBefore is how many days ahead of the payment deadline the
	// reminder fires; HourOfDay is the local wall-clock hour.
	DaysBefore int `json:"days_before" gorm:"not null"`
	HourOfDay  int `json:"hour_of_day" gorm:"not null;check:hour_of_day BETWEEN 0 AND 23"`

	MessageSubject  string `json:"message_subject"  gorm:"type:varchar(255);not null"`
	MessageTemplate string `json:"message_template" gorm:"type:text;not null"`

	// EmailTemplateID optionally selects a provider-side template instead
	// of the inline MessageTemplate.
	EmailTemplateID string `json:"email_template_id,omitempty" gorm:"type:varchar(64)"`

	IsActive bool `json:"is_active" gorm:"not null;default:true;index"`
	Priority int  `json:"priority"  gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for ReminderSchedule.
func (ReminderSchedule) TableName() string { return "reminder_schedules" }

// ReminderSentLog is the idempotency guard for the scheduler: one row per
// (order, schedule, day) proves a send was attempted that day, successful or
// not, so repeated ticks never re-send. Rows are append-only.
type ReminderSentLog struct {
	ID         string `json:"id"          gorm:"type:char(36);primaryKey"`
	OrderID    string `json:"order_id"    gorm:"type:char(36);not null;uniqueIndex:ux_sentlog_order_schedule_day,priority:1"`
	ScheduleID string `json:"schedule_id" gorm:"type:char(36);not null;uniqueIndex:ux_sentlog_order_schedule_day,priority:2"`

	// SentDay is the attempt date truncated to the calendar day.
	SentDay string `json:"sent_day" gorm:"type:char(10);not null;uniqueIndex:ux_sentlog_order_schedule_day,priority:3"`

	CustomerEmail string `json:"customer_email" gorm:"type:varchar(255);not null"`

	// SendSucceeded records the channel outcome for audit only; it plays no
	// part in the idempotency decision.
	SendSucceeded bool   `json:"send_succeeded"`
	FailureReason string `json:"failure_reason,omitempty" gorm:"type:text"`

	SentAt time.Time `json:"sent_at" gorm:"not null"`
}

// TableName returns the database table name for ReminderSentLog.
func (ReminderSentLog) TableName() string { return "reminder_sent_logs" }

// Order status values the reminder scheduler cares about.
const (
	OrderStatusAwaitingPayment = "awaiting_payment"
	OrderStatusPaid            = "paid"
	OrderStatusDelivered       = "delivered"
)

// Order is the minimal projection of a customer order the engine reads:
// enough for the reminder query and for delivery-code association. The full
// order aggregate lives in the storefront schema and is out of scope here.
type Order struct {
	ID              string    `json:"id"               gorm:"type:char(36);primaryKey"`
	OrderNumber     string    `json:"order_number"     gorm:"type:varchar(32);not null;uniqueIndex"`
	CustomerName    string    `json:"customer_name"    gorm:"type:varchar(255)"`
	CustomerEmail   string    `json:"customer_email"   gorm:"type:varchar(255);index"`
	CustomerPhone   string    `json:"customer_phone"   gorm:"type:varchar(32)"`
	TotalAmount     float64   `json:"total_amount"`
	Currency        string    `json:"currency"         gorm:"type:varchar(8);default:'IQD'"`
	Status          string    `json:"status"           gorm:"type:varchar(32);not null;index"`
	PaymentDeadline time.Time `json:"payment_deadline" gorm:"index"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// Customer is the account row created after a registration OTP verifies.
// Email is the natural key the deferred-creation path dedupes on.
type Customer struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	Email     string         `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex"`
	Phone     string         `json:"phone"      gorm:"type:varchar(32);index"`
	FirstName string         `json:"first_name" gorm:"type:varchar(128)"`
	LastName  string         `json:"last_name"  gorm:"type:varchar(128)"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Customer.
func (Customer) TableName() string { return "customers" }
