// Admin endpoints: operational controls that sit behind the same API as the
// public verification surface.
//
//   - POST /admin/reminders/run        (trigger a reminder pass now)
//   - GET  /admin/verification/stats   (per-day ledger aggregates)
//   - GET  /admin/verification/codes   (ledger rows for a day)
//   - GET  /admin/orders/:id/codes     (code history for one order)
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/momtazchem/go-verify-backend/internal/utils"
)

// RunReminders handles POST /admin/reminders/run. It executes one reminder
// pass synchronously and returns the pass report, so operators can verify
// schedule wiring without waiting for the next cron tick.
func (h *Handlers) RunReminders(c *gin.Context) {
	report, err := h.reminders.Run(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "reminder pass failed")
		return
	}
	ok(c, http.StatusOK, report)
}

// VerificationStats handles GET /admin/verification/stats?date=YYYY-MM-DD.
// Date defaults to today (server-local).
func (h *Handlers) VerificationStats(c *gin.Context) {
	dayKey := c.Query("date")
	if dayKey == "" {
		dayKey = utils.DayKey(time.Now())
	} else if _, err := time.Parse("2006-01-02", dayKey); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "date must be YYYY-MM-DD")
		return
	}

	stats, err := h.verifySvc.StatsForDay(c.Request.Context(), dayKey)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load stats")
		return
	}
	ok(c, http.StatusOK, stats)
}

// VerificationCodes handles GET /admin/verification/codes?date=YYYY-MM-DD.
// It returns the raw ledger rows for the day, newest first. Date defaults to
// today.
func (h *Handlers) VerificationCodes(c *gin.Context) {
	dayKey := c.Query("date")
	if dayKey == "" {
		dayKey = utils.DayKey(time.Now())
	} else if _, err := time.Parse("2006-01-02", dayKey); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "date must be YYYY-MM-DD")
		return
	}

	codes, err := h.verifySvc.CodesForDay(c.Request.Context(), dayKey)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load codes")
		return
	}
	ok(c, http.StatusOK, gin.H{"day": dayKey, "codes": codes})
}

// OrderCodeHistory handles GET /admin/orders/:id/codes.
func (h *Handlers) OrderCodeHistory(c *gin.Context) {
	orderID := c.Param("id")
	if orderID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order id is required")
		return
	}

	codes, err := h.verifySvc.HistoryForOrder(c.Request.Context(), orderID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load code history")
		return
	}
	ok(c, http.StatusOK, gin.H{"order_id": orderID, "codes": codes})
}
