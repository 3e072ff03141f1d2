package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/momtazchem/go-verify-backend/internal/config"
	"github.com/momtazchem/go-verify-backend/internal/domain"
	"github.com/momtazchem/go-verify-backend/internal/repo"
	"github.com/momtazchem/go-verify-backend/internal/scheduler"
	"github.com/momtazchem/go-verify-backend/internal/services"
)

// --- stub services satisfying the handler interfaces ---

type stubVerify struct{}

func (stubVerify) Issue(ctx context.Context, req services.IssueRequest) (*services.IssueResult, error) {
	return &services.IssueResult{
		CodeID:    "code-1",
		ExpiresAt: time.Now().Add(5 * time.Minute),
		SentVia:   map[string]bool{"sms": true},
	}, nil
}

func (stubVerify) Verify(ctx context.Context, phone, email, code string) (*services.VerifyResult, error) {
	return &services.VerifyResult{CodeID: "code-1"}, nil
}

func (stubVerify) Resend(ctx context.Context, phone, email, lang string) (*services.IssueResult, error) {
	return &services.IssueResult{SentVia: map[string]bool{"sms": true}}, nil
}

func (stubVerify) IssueDeliveryCode(ctx context.Context, orderID, lang string) (*services.IssueResult, error) {
	return &services.IssueResult{SentVia: map[string]bool{"sms": true}}, nil
}

func (stubVerify) VerifyDelivery(ctx context.Context, orderID, code, verifiedBy, note string) error {
	return nil
}

func (stubVerify) StatsForDay(ctx context.Context, dayKey string) (repo.DayStats, error) {
	return repo.DayStats{Day: dayKey}, nil
}

func (stubVerify) CodesForDay(ctx context.Context, dayKey string) ([]domain.VerificationCode, error) {
	return nil, nil
}

func (stubVerify) HistoryForOrder(ctx context.Context, orderID string) ([]domain.VerificationCode, error) {
	return nil, nil
}

type stubRunner struct{}

func (stubRunner) Run(ctx context.Context) (scheduler.RunReport, error) {
	return scheduler.RunReport{}, nil
}

func newRouter(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, stubVerify{}, stubRunner{}, cfg)
	return r
}

func baseConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   50,
		OTEL:        config.OTELConfig{ServiceName: "verify-test"},
	}
}

func TestRegisterRoutes_HealthMetricsFallbacks(t *testing.T) {
	r := newRouter(t, baseConfig())

	// Health
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}

	// Metrics endpoint serves Prometheus text format
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	if !bytes.Contains(body, []byte("http_requests_total")) {
		t.Fatalf("metrics body missing request counter")
	}

	// Unknown route gets the structured envelope
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("noroute status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"code":"not_found"`) {
		t.Fatalf("noroute body = %s", w.Body.String())
	}

	// Wrong method on a known route
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/verification/issue", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("nomethod status = %d", w.Code)
	}
}

func TestRegisterRoutes_CORSAllowAll(t *testing.T) {
	r := newRouter(t, baseConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("ACAO = %q", got)
	}
}

func TestRegisterRoutes_CORSAllowlistEcho(t *testing.T) {
	cfg := baseConfig()
	cfg.CORS.AllowedOrigins = []string{"https://shop.momtazchem.com"}
	r := newRouter(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://shop.momtazchem.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.momtazchem.com" {
		t.Fatalf("ACAO = %q", got)
	}

	// Unlisted origin gets no ACAO echo
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got == "https://evil.example" {
		t.Fatalf("unlisted origin echoed")
	}
}

func TestRegisterRoutes_SecurityHeadersAndRequestID(t *testing.T) {
	r := newRouter(t, baseConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID")
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("Cache-Control"); !strings.Contains(got, "no-store") {
		t.Fatalf("Cache-Control = %q", got)
	}
}

func TestRegisterRoutes_EndToEndThroughPipeline(t *testing.T) {
	r := newRouter(t, baseConfig())

	body := strings.NewReader(`{"purpose":"registration_otp","phone":"+989121234567"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/verification/issue", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"sent_via"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestRegisterRoutes_RateLimiterKicksIn(t *testing.T) {
	cfg := baseConfig()
	cfg.RateRPS = 1
	cfg.RateBurst = 2
	r := newRouter(t, cfg)

	var last int
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		last = w.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("status after burst = %d", last)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(8))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("tiny")))
	if w.Code != http.StatusOK {
		t.Fatalf("small body status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("x", 64))))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("large body status = %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, prefix := range []string{"", "/"} {
		r := gin.New()
		g := groupWithPrefix(r, prefix)
		g.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("prefix %q: status = %d", prefix, w.Code)
		}
	}

	r := gin.New()
	g := groupWithPrefix(r, "/api/v9")
	g.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v9/x", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
}
