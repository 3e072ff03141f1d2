// Package services – VerificationService
//
// This file implements the verification-code lifecycle: issuing registration
// OTPs with multi-channel fan-out, verifying submitted codes with an attempt
// budget, resending, and the courier delivery-confirmation flow with
// day-unique codes. Service-level errors (e.g., ErrInvalidCode) are returned
// for predictable cases so handlers can map them to HTTP results
// consistently.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/momtazchem/go-verify-backend/internal/channels"
	"github.com/momtazchem/go-verify-backend/internal/codegen"
	"github.com/momtazchem/go-verify-backend/internal/config"
	"github.com/momtazchem/go-verify-backend/internal/dispatch"
	"github.com/momtazchem/go-verify-backend/internal/domain"
	"github.com/momtazchem/go-verify-backend/internal/messages"
	"github.com/momtazchem/go-verify-backend/internal/repo"
	"github.com/momtazchem/go-verify-backend/internal/utils"
)

// AccountCreator provisions a customer account once a registration OTP is
// verified. Implementations must be idempotent on email.
type AccountCreator interface {
	EnsureCustomer(ctx context.Context, email, phone, firstName, lastName string) error
}

// RepoAccountCreator is the GORM-backed AccountCreator.
type RepoAccountCreator struct {
	DB *gorm.DB
}

func (r *RepoAccountCreator) EnsureCustomer(ctx context.Context, email, phone, firstName, lastName string) error {
	if _, err := repo.GetCustomerByEmail(ctx, r.DB, email); err == nil {
		return nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	_, err := repo.CreateCustomer(ctx, r.DB, email, phone, firstName, lastName)
	return err
}

// RegistrationPayload is the shape of the opaque blob an issue request may
// attach. Only the fields account provisioning needs are decoded; the rest
// travels through untouched.
type RegistrationPayload struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// IssueRequest asks for a registration OTP to be issued and delivered.
type IssueRequest struct {
	Phone    string
	Email    string
	Language string

	// Registration is an opaque JSON blob stored alongside the code and
	// returned on successful verification.
	Registration json.RawMessage
}

// IssueResult reports the outcome of an issue or resend.
type IssueResult struct {
	CodeID    string
	ExpiresAt time.Time
	SentVia   map[string]bool
}

// VerifyResult is returned on successful OTP verification.
type VerifyResult struct {
	CodeID       string
	Registration json.RawMessage
}

// VerificationService coordinates code issuance, delivery, and verification.
type VerificationService struct {
	DB          *gorm.DB
	Coordinator *dispatch.Coordinator
	SMS         channels.Adapter
	WhatsApp    channels.Adapter
	Email       channels.Adapter
	Accounts    AccountCreator
	Clock       clock.Clock
	Cfg         config.CodesConfig
	Log         zerolog.Logger
}

func NewVerificationService(db *gorm.DB, coord *dispatch.Coordinator, sms, whatsapp, email channels.Adapter, cfg config.CodesConfig, log zerolog.Logger) *VerificationService {
	return &VerificationService{
		DB:          db,
		Coordinator: coord,
		SMS:         sms,
		WhatsApp:    whatsapp,
		Email:       email,
		Accounts:    &RepoAccountCreator{DB: db},
		Clock:       clock.WallClock,
		Cfg:         cfg,
		Log:         log,
	}
}

// subjectForContact builds the subject key a registration OTP is scoped to.
// Phone and email together identify the registrant, so a change in either
// starts a fresh code lineage.
func subjectForContact(phone, email string) string {
	return strings.TrimSpace(phone) + "|" + strings.ToLower(strings.TrimSpace(email))
}

func subjectForOrder(orderID string) string {
	return "order:" + orderID
}

// Issue creates a registration OTP for the contact pair and fans it out over
// SMS, WhatsApp, and email. At most one active code exists per subject; a
// reissue within the cooldown window is rejected with RateLimitedError. The
// ledger row is kept even when every channel fails, so the failure is
// auditable and the cooldown still applies.
func (s *VerificationService) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	phone := strings.TrimSpace(req.Phone)
	email := strings.TrimSpace(req.Email)
	if phone == "" && email == "" {
		return nil, ErrMissingContact
	}
	subject := subjectForContact(phone, email)
	now := s.Clock.Now()

	if err := s.checkReissueWindow(ctx, subject, now); err != nil {
		return nil, err
	}

	code, err := codegen.Generate(s.Cfg.OTPLength)
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}

	rec, err := repo.CreateCode(ctx, s.DB, repo.NewCode{
		SubjectKey:          subject,
		Purpose:             domain.PurposeRegistrationOTP,
		Code:                code,
		Phone:               phone,
		Email:               email,
		ExpiresAt:           now.Add(s.Cfg.OTPExpiry),
		RegistrationPayload: req.Registration,
	}, now)
	if err != nil {
		return nil, fmt.Errorf("persist code: %w", err)
	}

	lang := messages.MatchLanguage(req.Language)
	jobs, renderErr := s.otpJobs(lang, code, phone, email)
	if renderErr != nil {
		return nil, renderErr
	}

	res := s.deliver(ctx, rec.ID, jobs)
	out := &IssueResult{CodeID: rec.ID, ExpiresAt: rec.ExpiresAt, SentVia: sentVia(res)}
	if !res.AnySuccess {
		return out, ErrAllChannelsFailed
	}
	return out, nil
}

func (s *VerificationService) otpJobs(lang language.Tag, code, phone, email string) ([]dispatch.Job, error) {
	minutes := int(s.Cfg.OTPExpiry.Minutes())
	vars := map[string]string{
		"code":    code,
		"minutes": strconv.Itoa(minutes),
	}

	var jobs []dispatch.Job
	if phone != "" {
		smsBody, err := messages.SMS(messages.KindRegistrationOTP, lang, vars)
		if err != nil {
			return nil, err
		}
		waBody, err := messages.WhatsApp(messages.KindRegistrationOTP, lang, vars)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs,
			dispatch.Job{Adapter: s.SMS, Message: channels.Message{To: phone, Body: smsBody}},
			dispatch.Job{Adapter: s.WhatsApp, Message: channels.Message{To: phone, Body: waBody}},
		)
	}
	if email != "" {
		subject, body, err := messages.Email(messages.KindRegistrationOTP, lang, vars)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, dispatch.Job{Adapter: s.Email, Message: channels.Message{
			To:      email,
			Subject: subject,
			Body:    body,
			HTML:    messages.OTPEmailHTML(code, minutes),
			Purpose: "otp",
		}})
	}
	return jobs, nil
}

// deliver runs the fan-out and records every per-channel outcome on the
// ledger row. Status write failures are logged, not propagated; the send
// already happened.
func (s *VerificationService) deliver(ctx context.Context, codeID string, jobs []dispatch.Job) dispatch.Result {
	res := s.Coordinator.FanOut(ctx, jobs)
	now := s.Clock.Now()
	for name, out := range res.PerChannel {
		st := repo.ChannelStatus{
			Sent:      out.Success,
			MessageID: out.MessageID,
			Failure:   out.Error,
		}
		if err := repo.UpdateChannelStatus(ctx, s.DB, codeID, name, st, now); err != nil {
			s.Log.Error().Err(err).
				Str("code_id", codeID).
				Str("channel", name).
				Msg("record channel status")
		}
	}
	return res
}

func sentVia(res dispatch.Result) map[string]bool {
	m := make(map[string]bool, len(res.PerChannel))
	for name := range res.PerChannel {
		m[name] = res.Sent(name)
	}
	return m
}

func (s *VerificationService) checkReissueWindow(ctx context.Context, subject string, now time.Time) error {
	last, err := repo.LastIssuedAt(ctx, s.DB, subject)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if elapsed := now.Sub(last); elapsed < s.Cfg.ReissueWindow {
		return &RateLimitedError{RetryAfter: s.Cfg.ReissueWindow - elapsed}
	}
	return nil
}

// Verify checks a submitted registration OTP. A wrong code consumes one
// attempt; once the budget is spent every further call short-circuits with
// ErrMaxAttemptsExceeded without touching the row. On success the code is
// marked used and, when the issue request carried registration data, the
// customer account is provisioned.
func (s *VerificationService) Verify(ctx context.Context, phone, email, code string) (*VerifyResult, error) {
	subject := subjectForContact(phone, email)
	rec, err := s.activeCode(ctx, subject)
	if err != nil {
		return nil, err
	}

	if rec.Attempts >= s.Cfg.MaxAttempts {
		return nil, ErrMaxAttemptsExceeded
	}
	if rec.Code != strings.TrimSpace(code) {
		return nil, s.consumeAttempt(ctx, rec)
	}

	now := s.Clock.Now()
	if err := repo.MarkCodeUsed(ctx, s.DB, rec.ID, "", "", now); err != nil {
		return nil, err
	}

	if len(rec.RegistrationPayload) > 0 {
		var payload RegistrationPayload
		if err := json.Unmarshal(rec.RegistrationPayload, &payload); err != nil {
			s.Log.Warn().Err(err).Str("code_id", rec.ID).Msg("malformed registration payload")
		} else if rec.Email != "" {
			if err := s.Accounts.EnsureCustomer(ctx, rec.Email, rec.Phone, payload.FirstName, payload.LastName); err != nil {
				return nil, fmt.Errorf("provision account: %w", err)
			}
		}
	}

	s.Log.Info().Str("code_id", rec.ID).Str("purpose", string(rec.Purpose)).Msg("code verified")
	return &VerifyResult{CodeID: rec.ID, Registration: rec.RegistrationPayload}, nil
}

// activeCode loads and vets the single active code for a subject.
func (s *VerificationService) activeCode(ctx context.Context, subject string) (*domain.VerificationCode, error) {
	rec, err := repo.GetActiveForSubject(ctx, s.DB, subject)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, err
	}
	now := s.Clock.Now()
	if now.After(rec.ExpiresAt) {
		if _, serr := repo.SweepExpired(ctx, s.DB, now); serr != nil {
			s.Log.Error().Err(serr).Msg("sweep on expired lookup")
		}
		return nil, ErrCodeExpired
	}
	return rec, nil
}

// consumeAttempt burns one attempt on rec and reports the right error. The
// row stays active either way; the attempts counter alone enforces lockout.
func (s *VerificationService) consumeAttempt(ctx context.Context, rec *domain.VerificationCode) error {
	if err := repo.IncrementAttempts(ctx, s.DB, rec.ID); err != nil {
		return err
	}
	if rec.Attempts+1 >= s.Cfg.MaxAttempts {
		s.Log.Warn().Str("code_id", rec.ID).Msg("verification attempt budget spent")
		return ErrMaxAttemptsExceeded
	}
	return &InvalidCodeError{Remaining: s.Cfg.MaxAttempts - rec.Attempts - 1}
}

// Resend reissues an OTP for the contact pair, carrying forward the
// registration blob from the most recent code so the registrant does not
// have to resubmit the form. The reissue cooldown applies.
func (s *VerificationService) Resend(ctx context.Context, phone, email, lang string) (*IssueResult, error) {
	subject := subjectForContact(phone, email)

	var registration json.RawMessage
	if prev, err := repo.LatestForSubject(ctx, s.DB, subject); err == nil {
		registration = prev.RegistrationPayload
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	return s.Issue(ctx, IssueRequest{
		Phone:        phone,
		Email:        email,
		Language:     lang,
		Registration: registration,
	})
}

// IssueDeliveryCode creates a delivery-confirmation code for an order and
// sends it to the customer over SMS and WhatsApp. Delivery codes are unique
// among all codes issued the same day, so a courier reading one back cannot
// collide with another shipment.
func (s *VerificationService) IssueDeliveryCode(ctx context.Context, orderID, lang string) (*IssueResult, error) {
	order, err := repo.GetOrder(ctx, s.DB, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if order.CustomerPhone == "" {
		return nil, ErrMissingContact
	}

	now := s.Clock.Now()
	subject := subjectForOrder(orderID)
	if err := s.checkReissueWindow(ctx, subject, now); err != nil {
		return nil, err
	}

	dayKey := utils.DayKey(now)
	code, err := codegen.GenerateUnique(ctx, s.Cfg.DeliveryLength, s.Cfg.UniqueRetries,
		func(ctx context.Context, candidate string) (bool, error) {
			return repo.CodeExistsOnDay(ctx, s.DB, candidate, dayKey)
		})
	if errors.Is(err, codegen.ErrExhaustedRetries) {
		return nil, ErrExhaustedRetries
	}
	if err != nil {
		return nil, fmt.Errorf("generate delivery code: %w", err)
	}

	rec, err := repo.CreateCode(ctx, s.DB, repo.NewCode{
		SubjectKey: subject,
		Purpose:    domain.PurposeDeliveryConfirmation,
		Code:       code,
		Phone:      order.CustomerPhone,
		Email:      order.CustomerEmail,
		OrderID:    orderID,
		ExpiresAt:  utils.EndOfDay(now),
	}, now)
	if err != nil {
		return nil, fmt.Errorf("persist code: %w", err)
	}

	tag := messages.MatchLanguage(lang)
	vars := map[string]string{
		"code":         code,
		"customerName": order.CustomerName,
		"orderNumber":  order.OrderNumber,
	}
	smsBody, err := messages.SMS(messages.KindDeliveryCode, tag, vars)
	if err != nil {
		return nil, err
	}
	waBody, err := messages.WhatsApp(messages.KindDeliveryCode, tag, vars)
	if err != nil {
		return nil, err
	}
	jobs := []dispatch.Job{
		{Adapter: s.SMS, Message: channels.Message{To: order.CustomerPhone, Body: smsBody}},
		{Adapter: s.WhatsApp, Message: channels.Message{To: order.CustomerPhone, Body: waBody}},
	}

	res := s.deliver(ctx, rec.ID, jobs)
	out := &IssueResult{CodeID: rec.ID, ExpiresAt: rec.ExpiresAt, SentVia: sentVia(res)}
	if !res.AnySuccess {
		return out, ErrAllChannelsFailed
	}
	return out, nil
}

// VerifyDelivery confirms a shipment handover. The courier reads the code
// back; on match the code is consumed, the order flips to delivered, and the
// courier identity plus any note land on the ledger row. Re-verifying an
// already consumed code is a no-op success so a flaky courier app retry does
// not error at the doorstep.
func (s *VerificationService) VerifyDelivery(ctx context.Context, orderID, code, verifiedBy, note string) error {
	subject := subjectForOrder(orderID)
	now := s.Clock.Now()

	rec, err := repo.FindByCodeAndSubject(ctx, s.DB, strings.TrimSpace(code), subject)
	if errors.Is(err, repo.ErrNotFound) {
		return s.classifyDeliveryMismatch(ctx, subject, now)
	}
	if err != nil {
		return err
	}

	if rec.IsUsed {
		// Courier app retries resubmit the same code; treat a matching
		// repeat as settled.
		return nil
	}
	if now.After(rec.ExpiresAt) {
		if _, serr := repo.SweepExpired(ctx, s.DB, now); serr != nil {
			s.Log.Error().Err(serr).Msg("sweep on expired lookup")
		}
		return ErrCodeExpired
	}

	if err := repo.MarkCodeUsed(ctx, s.DB, rec.ID, verifiedBy, note, now); err != nil {
		return err
	}
	if err := repo.SetOrderStatus(ctx, s.DB, orderID, domain.OrderStatusDelivered); err != nil {
		return fmt.Errorf("mark order delivered: %w", err)
	}
	s.Log.Info().
		Str("order_id", orderID).
		Str("verified_by", verifiedBy).
		Msg("delivery confirmed")
	return nil
}

// classifyDeliveryMismatch explains why a submitted delivery code matched no
// active row: no code was ever issued, the order is already confirmed, the
// code expired, or it is plainly wrong (which costs an attempt).
func (s *VerificationService) classifyDeliveryMismatch(ctx context.Context, subject string, now time.Time) error {
	latest, err := repo.LatestForSubject(ctx, s.DB, subject)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrCodeNotFound
	}
	if err != nil {
		return err
	}
	if latest.IsUsed {
		return ErrCodeAlreadyUsed
	}
	if !latest.IsActive {
		return ErrCodeNotFound
	}
	if now.After(latest.ExpiresAt) {
		if _, serr := repo.SweepExpired(ctx, s.DB, now); serr != nil {
			s.Log.Error().Err(serr).Msg("sweep on expired lookup")
		}
		return ErrCodeExpired
	}
	if latest.Attempts >= s.Cfg.MaxAttempts {
		return ErrMaxAttemptsExceeded
	}
	return s.consumeAttempt(ctx, latest)
}

// Sweep deactivates every expired unused code. Returns how many rows were
// touched.
func (s *VerificationService) Sweep(ctx context.Context) (int64, error) {
	return repo.SweepExpired(ctx, s.DB, s.Clock.Now())
}

// RunSweeper loops Sweep on the configured interval until ctx is canceled.
// Meant to run in its own goroutine from main.
func (s *VerificationService) RunSweeper(ctx context.Context) {
	interval := s.Cfg.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	timer := s.Clock.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.Chan():
			n, err := s.Sweep(ctx)
			if err != nil {
				s.Log.Error().Err(err).Msg("expired code sweep")
			} else if n > 0 {
				s.Log.Info().Int64("deactivated", n).Msg("expired code sweep")
			}
			timer.Reset(interval)
		}
	}
}

// StatsForDay exposes the per-day ledger aggregates for the admin surface.
func (s *VerificationService) StatsForDay(ctx context.Context, dayKey string) (repo.DayStats, error) {
	return repo.StatsForDay(ctx, s.DB, dayKey)
}

// CodesForDay lists the ledger rows created on dayKey for the admin surface.
func (s *VerificationService) CodesForDay(ctx context.Context, dayKey string) ([]domain.VerificationCode, error) {
	return repo.CodesForDay(ctx, s.DB, dayKey)
}

// HistoryForOrder lists every code ever issued for an order.
func (s *VerificationService) HistoryForOrder(ctx context.Context, orderID string) ([]domain.VerificationCode, error) {
	return repo.HistoryForOrder(ctx, s.DB, orderID)
}
