package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/momtazchem/go-verify-backend/internal/domain"
	"github.com/momtazchem/go-verify-backend/internal/repo"
	"github.com/momtazchem/go-verify-backend/internal/scheduler"
	"github.com/momtazchem/go-verify-backend/internal/utils"
)

func TestRunReminders_ReturnsReport(t *testing.T) {
	rem := &stubReminders{report: scheduler.RunReport{
		SchedulesDue: 2,
		Considered:   5,
		Sent:         4,
		Failed:       1,
	}}
	r := newTestRouter(&stubVerifySvc{}, rem)

	w := doJSON(t, r, http.MethodPost, "/admin/reminders/run", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if rem.runs != 1 {
		t.Fatalf("runs = %d", rem.runs)
	}
	resp := decodeMap(t, w)
	if resp["sent"] != float64(4) || resp["failed"] != float64(1) {
		t.Fatalf("report = %v", resp)
	}
}

func TestRunReminders_Failure(t *testing.T) {
	rem := &stubReminders{err: errors.New("db down")}
	r := newTestRouter(&stubVerifySvc{}, rem)

	w := doJSON(t, r, http.MethodPost, "/admin/reminders/run", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if resp := decodeMap(t, w); resp["code"] != ErrCodeInternal {
		t.Fatalf("code = %v", resp["code"])
	}
}

func TestVerificationStats_ExplicitDate(t *testing.T) {
	svc := &stubVerifySvc{stats: repo.DayStats{Issued: 12, SMSSent: 10, Verified: 8}}
	r := newTestRouter(svc, &stubReminders{})

	w := doJSON(t, r, http.MethodGet, "/admin/verification/stats?date=2025-03-07", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decodeMap(t, w)
	if resp["day"] != "2025-03-07" {
		t.Fatalf("day = %v", resp["day"])
	}
	if resp["issued"] != float64(12) || resp["verified"] != float64(8) {
		t.Fatalf("stats = %v", resp)
	}
}

func TestVerificationStats_DefaultsToToday(t *testing.T) {
	svc := &stubVerifySvc{}
	r := newTestRouter(svc, &stubReminders{})

	w := doJSON(t, r, http.MethodGet, "/admin/verification/stats", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeMap(t, w)
	if resp["day"] != utils.DayKey(time.Now()) {
		t.Fatalf("day = %v", resp["day"])
	}
}

func TestVerificationStats_BadDate(t *testing.T) {
	r := newTestRouter(&stubVerifySvc{}, &stubReminders{})

	w := doJSON(t, r, http.MethodGet, "/admin/verification/stats?date=07-03-2025", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestVerificationCodes_ListsDay(t *testing.T) {
	svc := &stubVerifySvc{codes: []domain.VerificationCode{
		{ID: "c1", Code: "1234"},
		{ID: "c2", Code: "5678"},
	}}
	r := newTestRouter(svc, &stubReminders{})

	w := doJSON(t, r, http.MethodGet, "/admin/verification/codes?date=2025-03-07", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decodeMap(t, w)
	if resp["day"] != "2025-03-07" {
		t.Fatalf("day = %v", resp["day"])
	}
	codes, _ := resp["codes"].([]any)
	if len(codes) != 2 {
		t.Fatalf("codes = %v", resp["codes"])
	}
}

func TestOrderCodeHistory(t *testing.T) {
	svc := &stubVerifySvc{codes: []domain.VerificationCode{{ID: "c1", Code: "1234"}}}
	r := newTestRouter(svc, &stubReminders{})

	w := doJSON(t, r, http.MethodGet, "/admin/orders/ord-9/codes", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if svc.gotOrderID != "ord-9" {
		t.Fatalf("order id = %q", svc.gotOrderID)
	}
	resp := decodeMap(t, w)
	if resp["order_id"] != "ord-9" {
		t.Fatalf("order_id = %v", resp["order_id"])
	}
}
