package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/momtazchem/go-verify-backend/internal/domain"
	"github.com/momtazchem/go-verify-backend/internal/repo"
	"github.com/momtazchem/go-verify-backend/internal/scheduler"
	"github.com/momtazchem/go-verify-backend/internal/services"
)

// ---------- stub services ----------

type stubVerifySvc struct {
	issueRes    *services.IssueResult
	issueErr    error
	verifyRes   *services.VerifyResult
	verifyErr   error
	deliveryErr error
	stats       repo.DayStats
	statsErr    error
	codes       []domain.VerificationCode

	gotIssue    services.IssueRequest
	gotOrderID  string
	gotVerified string
}

func (s *stubVerifySvc) Issue(ctx context.Context, req services.IssueRequest) (*services.IssueResult, error) {
	s.gotIssue = req
	return s.issueRes, s.issueErr
}

func (s *stubVerifySvc) Verify(ctx context.Context, phone, email, code string) (*services.VerifyResult, error) {
	return s.verifyRes, s.verifyErr
}

func (s *stubVerifySvc) Resend(ctx context.Context, phone, email, lang string) (*services.IssueResult, error) {
	return s.issueRes, s.issueErr
}

func (s *stubVerifySvc) IssueDeliveryCode(ctx context.Context, orderID, lang string) (*services.IssueResult, error) {
	s.gotOrderID = orderID
	return s.issueRes, s.issueErr
}

func (s *stubVerifySvc) VerifyDelivery(ctx context.Context, orderID, code, verifiedBy, note string) error {
	s.gotOrderID = orderID
	s.gotVerified = verifiedBy
	return s.deliveryErr
}

func (s *stubVerifySvc) StatsForDay(ctx context.Context, dayKey string) (repo.DayStats, error) {
	if s.statsErr != nil {
		return repo.DayStats{}, s.statsErr
	}
	st := s.stats
	st.Day = dayKey
	return st, nil
}

func (s *stubVerifySvc) CodesForDay(ctx context.Context, dayKey string) ([]domain.VerificationCode, error) {
	return s.codes, nil
}

func (s *stubVerifySvc) HistoryForOrder(ctx context.Context, orderID string) ([]domain.VerificationCode, error) {
	s.gotOrderID = orderID
	return s.codes, nil
}

type stubReminders struct {
	report scheduler.RunReport
	err    error
	runs   int
}

func (s *stubReminders) Run(ctx context.Context) (scheduler.RunReport, error) {
	s.runs++
	return s.report, s.err
}

// ---------- harness ----------

func newTestRouter(svc *stubVerifySvc, rem *stubReminders) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(svc, rem)

	r := gin.New()
	r.POST("/verification/issue", h.IssueCode)
	r.POST("/verification/verify", h.VerifyCode)
	r.POST("/verification/resend", h.ResendCode)
	r.POST("/delivery/verify", h.VerifyDelivery)
	r.POST("/admin/reminders/run", h.RunReminders)
	r.GET("/admin/verification/stats", h.VerificationStats)
	r.GET("/admin/verification/codes", h.VerificationCodes)
	r.GET("/admin/orders/:id/codes", h.OrderCodeHistory)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return m
}

// ---------- issue / resend ----------

func TestIssueCode_RegistrationOTP(t *testing.T) {
	svc := &stubVerifySvc{issueRes: &services.IssueResult{
		CodeID:    "code-1",
		ExpiresAt: time.Date(2025, 3, 7, 10, 5, 0, 0, time.UTC),
		SentVia:   map[string]bool{"sms": true, "whatsapp": false, "email": true},
	}}
	r := newTestRouter(svc, &stubReminders{})

	w := doJSON(t, r, http.MethodPost, "/verification/issue", gin.H{
		"purpose":  "registration_otp",
		"phone":    "+989121234567",
		"email":    "Ali@Example.com",
		"language": "fa",
		"payload":  gin.H{"firstName": "Ali"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decodeMap(t, w)
	sent, _ := resp["sent_via"].(map[string]any)
	if sent["sms"] != true || sent["email"] != true || sent["whatsapp"] != false {
		t.Fatalf("sent_via = %v", resp["sent_via"])
	}
	if svc.gotIssue.Phone != "+989121234567" || svc.gotIssue.Email != "Ali@Example.com" {
		t.Fatalf("service got %+v", svc.gotIssue)
	}
	if !strings.Contains(string(svc.gotIssue.Registration), "firstName") {
		t.Fatalf("payload not forwarded: %s", svc.gotIssue.Registration)
	}
}

func TestIssueCode_DeliveryRequiresOrderID(t *testing.T) {
	r := newTestRouter(&stubVerifySvc{}, &stubReminders{})
	w := doJSON(t, r, http.MethodPost, "/verification/issue", gin.H{
		"purpose": "delivery_confirmation",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if resp := decodeMap(t, w); resp["code"] != ErrCodeBadRequest {
		t.Fatalf("code = %v", resp["code"])
	}
}

func TestIssueCode_UnknownPurpose(t *testing.T) {
	r := newTestRouter(&stubVerifySvc{}, &stubReminders{})
	w := doJSON(t, r, http.MethodPost, "/verification/issue", gin.H{"purpose": "password_reset"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestIssueCode_RateLimited(t *testing.T) {
	svc := &stubVerifySvc{issueErr: &services.RateLimitedError{RetryAfter: 42 * time.Second}}
	r := newTestRouter(svc, &stubReminders{})

	w := doJSON(t, r, http.MethodPost, "/verification/issue", gin.H{
		"purpose": "registration_otp",
		"phone":   "+989121234567",
	})

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "42" {
		t.Fatalf("Retry-After = %q", got)
	}
	resp := decodeMap(t, w)
	if resp["code"] != ErrCodeRateLimited {
		t.Fatalf("code = %v", resp["code"])
	}
	if resp["retry_after_seconds"] != float64(42) {
		t.Fatalf("retry_after_seconds = %v", resp["retry_after_seconds"])
	}
}

func TestIssueCode_AllChannelsFailedKeepsSentVia(t *testing.T) {
	svc := &stubVerifySvc{
		issueRes: &services.IssueResult{
			CodeID:  "code-1",
			SentVia: map[string]bool{"sms": false, "whatsapp": false, "email": false},
		},
		issueErr: services.ErrAllChannelsFailed,
	}
	r := newTestRouter(svc, &stubReminders{})

	w := doJSON(t, r, http.MethodPost, "/verification/issue", gin.H{
		"purpose": "registration_otp",
		"phone":   "+989121234567",
	})

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeMap(t, w)
	if resp["code"] != ErrCodeDeliveryFailed {
		t.Fatalf("code = %v", resp["code"])
	}
	if _, has := resp["sent_via"]; !has {
		t.Fatalf("sent_via missing from failure envelope: %s", w.Body.String())
	}
}

func TestResendCode_MissingContact(t *testing.T) {
	svc := &stubVerifySvc{issueErr: services.ErrMissingContact}
	r := newTestRouter(svc, &stubReminders{})

	w := doJSON(t, r, http.MethodPost, "/verification/resend", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if resp := decodeMap(t, w); resp["code"] != ErrCodeMissingContact {
		t.Fatalf("code = %v", resp["code"])
	}
}

// ---------- verify ----------

func TestVerifyCode_Success(t *testing.T) {
	svc := &stubVerifySvc{verifyRes: &services.VerifyResult{
		CodeID:       "code-1",
		Registration: json.RawMessage(`{"firstName":"Ali"}`),
	}}
	r := newTestRouter(svc, &stubReminders{})

	w := doJSON(t, r, http.MethodPost, "/verification/verify", gin.H{
		"phone": "+989121234567",
		"code":  "1234",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decodeMap(t, w)
	if resp["verified"] != true {
		t.Fatalf("verified = %v", resp["verified"])
	}
	reg, _ := resp["registration"].(map[string]any)
	if reg["firstName"] != "Ali" {
		t.Fatalf("registration = %v", resp["registration"])
	}
}

func TestVerifyCode_InvalidCarriesAttemptsRemaining(t *testing.T) {
	svc := &stubVerifySvc{verifyErr: &services.InvalidCodeError{Remaining: 2}}
	r := newTestRouter(svc, &stubReminders{})

	w := doJSON(t, r, http.MethodPost, "/verification/verify", gin.H{
		"phone": "+989121234567",
		"code":  "0000",
	})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeMap(t, w)
	if resp["code"] != ErrCodeInvalidCode {
		t.Fatalf("code = %v", resp["code"])
	}
	if resp["attempts_remaining"] != float64(2) {
		t.Fatalf("attempts_remaining = %v", resp["attempts_remaining"])
	}
}

func TestVerifyCode_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", services.ErrCodeNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"wrong code", services.ErrInvalidCode, http.StatusUnprocessableEntity, ErrCodeInvalidCode},
		{"expired", services.ErrCodeExpired, http.StatusGone, ErrCodeCodeExpired},
		{"already used", services.ErrCodeAlreadyUsed, http.StatusConflict, ErrCodeCodeUsed},
		{"attempt budget", services.ErrMaxAttemptsExceeded, http.StatusTooManyRequests, ErrCodeMaxAttempts},
		{"unexpected", context.DeadlineExceeded, http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubVerifySvc{verifyErr: tc.err}
			r := newTestRouter(svc, &stubReminders{})

			w := doJSON(t, r, http.MethodPost, "/verification/verify", gin.H{
				"phone": "+989121234567",
				"code":  "1234",
			})

			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d", w.Code, tc.status)
			}
			if resp := decodeMap(t, w); resp["code"] != tc.code {
				t.Fatalf("code = %v, want %s", resp["code"], tc.code)
			}
		})
	}
}

func TestVerifyCode_MissingCodeRejected(t *testing.T) {
	r := newTestRouter(&stubVerifySvc{}, &stubReminders{})
	w := doJSON(t, r, http.MethodPost, "/verification/verify", gin.H{"phone": "+98912"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

// ---------- delivery ----------

func TestVerifyDelivery_Success(t *testing.T) {
	svc := &stubVerifySvc{}
	r := newTestRouter(svc, &stubReminders{})

	w := doJSON(t, r, http.MethodPost, "/delivery/verify", gin.H{
		"order_id":   "ord-77",
		"code":       "4321",
		"courier_id": "courier-3",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if svc.gotOrderID != "ord-77" || svc.gotVerified != "courier-3" {
		t.Fatalf("service got order=%q verifier=%q", svc.gotOrderID, svc.gotVerified)
	}
}

func TestVerifyDelivery_OrderNotFound(t *testing.T) {
	svc := &stubVerifySvc{deliveryErr: services.ErrOrderNotFound}
	r := newTestRouter(svc, &stubReminders{})

	w := doJSON(t, r, http.MethodPost, "/delivery/verify", gin.H{
		"order_id": "ord-missing",
		"code":     "4321",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}
