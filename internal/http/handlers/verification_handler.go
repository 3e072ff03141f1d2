// Verification HTTP handlers.
//
// This file exposes the public verification endpoints:
//   - POST /verification/issue   (send a code over the configured channels)
//   - POST /verification/verify  (check a submitted registration OTP)
//   - POST /verification/resend  (reissue, carrying registration data forward)
//   - POST /delivery/verify      (courier confirms a handover)
//
// Handlers are transport-thin: they validate input, call the verification
// service, and translate results into HTTP responses.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/momtazchem/go-verify-backend/internal/domain"
	"github.com/momtazchem/go-verify-backend/internal/repo"
	"github.com/momtazchem/go-verify-backend/internal/scheduler"
	"github.com/momtazchem/go-verify-backend/internal/services"
)

// VerificationService defines the code lifecycle operations consumed by the
// HTTP handlers. Implementations must be safe for concurrent use and honor
// the provided context.
type VerificationService interface {
	Issue(ctx context.Context, req services.IssueRequest) (*services.IssueResult, error)
	Verify(ctx context.Context, phone, email, code string) (*services.VerifyResult, error)
	Resend(ctx context.Context, phone, email, lang string) (*services.IssueResult, error)
	IssueDeliveryCode(ctx context.Context, orderID, lang string) (*services.IssueResult, error)
	VerifyDelivery(ctx context.Context, orderID, code, verifiedBy, note string) error
	StatsForDay(ctx context.Context, dayKey string) (repo.DayStats, error)
	CodesForDay(ctx context.Context, dayKey string) ([]domain.VerificationCode, error)
	HistoryForOrder(ctx context.Context, orderID string) ([]domain.VerificationCode, error)
}

// ReminderRunner triggers an on-demand reminder pass.
type ReminderRunner interface {
	Run(ctx context.Context) (scheduler.RunReport, error)
}

// Handlers groups the HTTP endpoints for verification and the admin surface.
// It depends on service interfaces to keep transport concerns separate from
// business logic.
type Handlers struct {
	verifySvc VerificationService
	reminders ReminderRunner
}

// New constructs a Handlers instance bound to the given services.
func New(verifySvc VerificationService, reminders ReminderRunner) *Handlers {
	return &Handlers{verifySvc: verifySvc, reminders: reminders}
}

//
// DTOs
//

// IssueCodeRequest is the JSON payload for issuing a code. Purpose selects
// the flow: registration OTPs identify the subject by phone/email, delivery
// codes by order.
type IssueCodeRequest struct {
	Purpose  string `json:"purpose" binding:"required"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	OrderID  string `json:"order_id"`
	Language string `json:"language"`

	// Payload is an opaque registration blob stored with the code and
	// returned on successful verification.
	Payload json.RawMessage `json:"payload"`
}

// IssueCodeResponse reports where the code went and until when it is valid.
type IssueCodeResponse struct {
	ExpiresAt time.Time       `json:"expires_at"`
	SentVia   map[string]bool `json:"sent_via"`
}

// VerifyCodeRequest is the JSON payload for verifying a registration OTP.
type VerifyCodeRequest struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
	Code  string `json:"code" binding:"required"`
}

// VerifyCodeResponse confirms verification and echoes the registration blob.
type VerifyCodeResponse struct {
	Verified     bool            `json:"verified"`
	Registration json.RawMessage `json:"registration,omitempty"`
}

// ResendCodeRequest is the JSON payload for reissuing a registration OTP.
type ResendCodeRequest struct {
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Language string `json:"language"`
}

// VerifyDeliveryRequest is the courier's handover confirmation.
type VerifyDeliveryRequest struct {
	OrderID   string `json:"order_id" binding:"required"`
	Code      string `json:"code" binding:"required"`
	CourierID string `json:"courier_id"`
	Notes     string `json:"notes"`
}

//
// Handlers
//

// IssueCode handles POST /verification/issue.
func (h *Handlers) IssueCode(c *gin.Context) {
	var req IssueCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	var (
		res *services.IssueResult
		err error
	)
	switch req.Purpose {
	case string(domain.PurposeRegistrationOTP):
		res, err = h.verifySvc.Issue(c.Request.Context(), services.IssueRequest{
			Phone:        req.Phone,
			Email:        req.Email,
			Language:     req.Language,
			Registration: req.Payload,
		})
	case string(domain.PurposeDeliveryConfirmation):
		if req.OrderID == "" {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order_id is required for delivery codes")
			return
		}
		res, err = h.verifySvc.IssueDeliveryCode(c.Request.Context(), req.OrderID, req.Language)
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown purpose")
		return
	}

	h.writeIssueResult(c, res, err)
}

// ResendCode handles POST /verification/resend.
func (h *Handlers) ResendCode(c *gin.Context) {
	var req ResendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	res, err := h.verifySvc.Resend(c.Request.Context(), req.Phone, req.Email, req.Language)
	h.writeIssueResult(c, res, err)
}

// writeIssueResult maps an issue/resend outcome to HTTP. A fan-out where
// every channel failed returns 502 but still includes the per-channel flags
// so the client can tell the code exists and the cooldown is running.
func (h *Handlers) writeIssueResult(c *gin.Context, res *services.IssueResult, err error) {
	if err == nil {
		ok(c, http.StatusOK, IssueCodeResponse{ExpiresAt: res.ExpiresAt, SentVia: res.SentVia})
		return
	}
	if errors.Is(err, services.ErrAllChannelsFailed) && res != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       ErrCodeDeliveryFailed,
			"message":    services.ErrAllChannelsFailed.Error(),
			"sent_via":   res.SentVia,
		})
		return
	}
	h.failFromService(c, err)
}

// VerifyCode handles POST /verification/verify.
func (h *Handlers) VerifyCode(c *gin.Context) {
	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	res, err := h.verifySvc.Verify(c.Request.Context(), req.Phone, req.Email, req.Code)
	if err != nil {
		h.failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, VerifyCodeResponse{Verified: true, Registration: res.Registration})
}

// VerifyDelivery handles POST /delivery/verify.
func (h *Handlers) VerifyDelivery(c *gin.Context) {
	var req VerifyDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	err := h.verifySvc.VerifyDelivery(c.Request.Context(), req.OrderID, req.Code, req.CourierID, req.Notes)
	if err != nil {
		h.failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"verified": true})
}

// failFromService translates service-level errors to the HTTP envelope.
func (h *Handlers) failFromService(c *gin.Context, err error) {
	if rl, is := services.IsRateLimited(err); is {
		secs := int(math.Ceil(rl.RetryAfter.Seconds()))
		c.Header("Retry-After", strconv.Itoa(secs))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id":          c.Writer.Header().Get("X-Request-ID"),
			"code":                ErrCodeRateLimited,
			"message":             err.Error(),
			"retry_after_seconds": secs,
		})
		return
	}

	if ic, is := services.IsInvalidCode(err); is {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"request_id":         c.Writer.Header().Get("X-Request-ID"),
			"code":               ErrCodeInvalidCode,
			"message":            err.Error(),
			"attempts_remaining": ic.Remaining,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrCodeNotFound), errors.Is(err, services.ErrOrderNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidCode):
		fail(c, http.StatusUnprocessableEntity, ErrCodeInvalidCode, err.Error())
	case errors.Is(err, services.ErrCodeExpired):
		fail(c, http.StatusGone, ErrCodeCodeExpired, err.Error())
	case errors.Is(err, services.ErrCodeAlreadyUsed):
		fail(c, http.StatusConflict, ErrCodeCodeUsed, err.Error())
	case errors.Is(err, services.ErrMaxAttemptsExceeded):
		fail(c, http.StatusTooManyRequests, ErrCodeMaxAttempts, err.Error())
	case errors.Is(err, services.ErrMissingContact):
		fail(c, http.StatusBadRequest, ErrCodeMissingContact, err.Error())
	case errors.Is(err, services.ErrExhaustedRetries):
		fail(c, http.StatusServiceUnavailable, ErrCodeCodePoolExhausted, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
