// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server settings,
// logging, the verification-code parameters, channel provider credentials,
// rate limiting, and the reminder scheduler knobs.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// CodesConfig holds the verification-code lifecycle parameters.
type CodesConfig struct {
	OTPLength      int           // digits of a registration OTP (4..6)
	OTPExpiry      time.Duration // OTP validity window (createdAt+expiry)
	DeliveryLength int           // digits of a delivery-confirmation code
	MaxAttempts    int           // failed verifications before lockout
	UniqueRetries  int           // bound on the generate-until-unique loop
	ReissueWindow  time.Duration // minimum interval between issues per subject
	SweepInterval  time.Duration // background expired-code sweep cadence
}

// SMSConfig selects and configures the SMS gateway.
type SMSConfig struct {
	Enabled      bool
	Provider     string // twilio | infobip | custom
	AccountSID   string // twilio
	AuthToken    string // twilio
	APIKey       string // infobip / custom
	SenderNumber string
	Endpoint     string // custom gateway URL; infobip base override
	Timeout      time.Duration
}

// WhatsAppConfig selects and configures the WhatsApp gateway.
type WhatsAppConfig struct {
	Enabled     bool
	Provider    string // twilio | meta | ultramsg
	AccountSID  string // twilio
	AuthToken   string // twilio
	FromNumber  string // twilio sender, e.g. "whatsapp:+14155238886"
	AccessToken string // meta graph API
	InstanceID  string // meta phone-number id / ultramsg instance
	Endpoint    string // graph/ultramsg base override
	Timeout     time.Duration
}

// EmailAccount is one outgoing mail identity. Accounts are resolved per
// purpose so OTP traffic and general notifications leave from distinct
// addresses.
type EmailAccount struct {
	FromName  string
	FromEmail string
}

// EmailConfig configures the HTTP mail API and the purpose->account map.
type EmailConfig struct {
	Enabled  bool
	APIKey   string
	Endpoint string
	Timeout  time.Duration

	// Accounts maps a purpose/category key ("otp", "notification",
	// "reminder") to its outgoing account. Resolved at construction time,
	// never hardcoded at call sites.
	Accounts map[string]EmailAccount
}

// ReminderConfig holds the payment-deadline reminder scheduler knobs.
type ReminderConfig struct {
	Enabled  bool
	CronSpec string // cron expression for the tick, default hourly
	// HourTolerance widens the schedule's hour window so delayed or manual
	// runs still fire (default +-1 hour).
	HourTolerance int
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool
	APIBasePath string

	// App
	DBPath string // SQLite path

	// Edge rate limiting (token bucket, per user/IP)
	RateRPS   float64
	RateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Domain
	Codes    CodesConfig
	SMS      SMSConfig
	WhatsApp WhatsAppConfig
	Email    EmailConfig
	Reminder ReminderConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "verify.db"),

		// Edge rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Verification codes
		Codes: CodesConfig{
			OTPLength:      getint("OTP_LENGTH", 4),
			OTPExpiry:      getdur("OTP_EXPIRY", 5*time.Minute),
			DeliveryLength: getint("DELIVERY_CODE_LENGTH", 4),
			MaxAttempts:    getint("VERIFY_MAX_ATTEMPTS", 3),
			UniqueRetries:  getint("CODE_UNIQUE_RETRIES", 100),
			ReissueWindow:  getdur("CODE_REISSUE_WINDOW", time.Minute),
			SweepInterval:  getdur("CODE_SWEEP_INTERVAL", time.Hour),
		},

		// Channels
		SMS: SMSConfig{
			Enabled:      getbool("SMS_ENABLED", true),
			Provider:     strings.ToLower(getenv("SMS_PROVIDER", "twilio")),
			AccountSID:   getenv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:    getenv("TWILIO_AUTH_TOKEN", ""),
			APIKey:       getenv("SMS_API_KEY", ""),
			SenderNumber: getenv("SMS_SENDER_NUMBER", ""),
			Endpoint:     getenv("SMS_ENDPOINT", ""),
			Timeout:      getdur("SMS_TIMEOUT", 10*time.Second),
		},
		WhatsApp: WhatsAppConfig{
			Enabled:     getbool("WHATSAPP_ENABLED", true),
			Provider:    strings.ToLower(getenv("WHATSAPP_PROVIDER", "twilio")),
			AccountSID:  getenv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:   getenv("TWILIO_AUTH_TOKEN", ""),
			FromNumber:  getenv("TWILIO_WHATSAPP_FROM", ""),
			AccessToken: getenv("WHATSAPP_ACCESS_TOKEN", ""),
			InstanceID:  getenv("WHATSAPP_INSTANCE_ID", ""),
			Endpoint:    getenv("WHATSAPP_ENDPOINT", ""),
			Timeout:     getdur("WHATSAPP_TIMEOUT", 10*time.Second),
		},
		Email: EmailConfig{
			Enabled:  getbool("EMAIL_ENABLED", true),
			APIKey:   getenv("MAIL_API_KEY", ""),
			Endpoint: getenv("MAIL_API_ENDPOINT", "https://api.resend.com/emails"),
			Timeout:  getdur("EMAIL_TIMEOUT", 15*time.Second),
			Accounts: map[string]EmailAccount{
				"otp": {
					FromName:  getenv("MAIL_OTP_FROM_NAME", "Momtazchem Security"),
					FromEmail: getenv("MAIL_OTP_FROM", "security@momtazchem.com"),
				},
				"notification": {
					FromName:  getenv("MAIL_NOTIFY_FROM_NAME", "Momtazchem"),
					FromEmail: getenv("MAIL_NOTIFY_FROM", "noreply@momtazchem.com"),
				},
				"reminder": {
					FromName:  getenv("MAIL_REMINDER_FROM_NAME", "Momtazchem Finance"),
					FromEmail: getenv("MAIL_REMINDER_FROM", "finance@momtazchem.com"),
				},
			},
		},

		// Reminder scheduler
		Reminder: ReminderConfig{
			Enabled:       getbool("REMINDER_ENABLED", true),
			CronSpec:      getenv("REMINDER_CRON", "0 * * * *"),
			HourTolerance: getint("REMINDER_HOUR_TOLERANCE", 1),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-verify-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Codes.OTPLength < 4 || cfg.Codes.OTPLength > 6 {
		return cfg, errors.New("OTP_LENGTH must be between 4 and 6")
	}
	if cfg.Codes.DeliveryLength != 4 {
		return cfg, errors.New("DELIVERY_CODE_LENGTH must be 4")
	}
	if cfg.Codes.OTPExpiry <= 0 {
		return cfg, errors.New("OTP_EXPIRY must be > 0")
	}
	if cfg.Codes.MaxAttempts < 1 {
		return cfg, errors.New("VERIFY_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.Codes.UniqueRetries < 1 {
		return cfg, errors.New("CODE_UNIQUE_RETRIES must be >= 1")
	}
	if cfg.Codes.ReissueWindow <= 0 {
		return cfg, errors.New("CODE_REISSUE_WINDOW must be > 0")
	}
	switch cfg.SMS.Provider {
	case "twilio", "infobip", "custom":
	default:
		return cfg, errors.New("SMS_PROVIDER must be one of: twilio, infobip, custom")
	}
	switch cfg.WhatsApp.Provider {
	case "twilio", "meta", "ultramsg":
	default:
		return cfg, errors.New("WHATSAPP_PROVIDER must be one of: twilio, meta, ultramsg")
	}
	if cfg.Reminder.HourTolerance < 0 || cfg.Reminder.HourTolerance > 12 {
		return cfg, errors.New("REMINDER_HOUR_TOLERANCE must be in [0,12]")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
