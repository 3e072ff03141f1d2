package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRateLimiter_EnforcesBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	rl := NewRateLimiter(0.0001, 2, KeyByIP()) // effectively no refill
	r.Use(rl.Handler())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
		statuses = append(statuses, w.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Fatalf("burst not honored: %v", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Fatalf("third request not limited: %v", statuses)
	}
}

func TestRateLimiter_429Shape(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	rl := NewRateLimiter(0.0001, 1, KeyByIP())
	r.Use(RequestID(), rl.Handler())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x", nil))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After missing")
	}
	body := w.Body.String()
	if !strings.Contains(body, "rate_limited") || !strings.Contains(body, "request_id") {
		t.Fatalf("body %q", body)
	}
}

func TestRateLimiter_KeysIsolated(t *testing.T) {
	rl := NewRateLimiter(0.0001, 1, KeyByIP())

	a := rl.getVisitor("ip:10.0.0.1")
	b := rl.getVisitor("ip:10.0.0.2")
	if a == b {
		t.Fatal("distinct keys share a bucket")
	}
	if !a.Allow() {
		t.Fatal("fresh bucket rejected first request")
	}
	if a.Allow() {
		t.Fatal("bucket refilled unexpectedly")
	}
	if !b.Allow() {
		t.Fatal("drain of one key starved another")
	}
}

func TestRateLimiter_CoercesBurst(t *testing.T) {
	rl := NewRateLimiter(1, 0, KeyByIP())
	if rl.burst != 1 {
		t.Fatalf("burst = %d, want 1", rl.burst)
	}
}
