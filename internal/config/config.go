// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, the audit database path, rate limiting,
// websocket tuning, payment polling cadence, and observability.
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-relay-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// WSConfig tunes the websocket transport.
type WSConfig struct {
	ReadBufferSize  int           // socket read buffer, bytes
	WriteBufferSize int           // socket write buffer, bytes
	SendQueueSize   int           // per-connection outbound queue length
	PingInterval    time.Duration // server ping cadence
	PongWait        time.Duration // max silence before a connection is dropped
	WriteWait       time.Duration // per-frame write deadline
	MaxMessageBytes int64         // max inbound frame size
	AllowedOrigins  []string      // empty means allow all
}

// BackendConfig locates the remote persistence/directory API.
type BackendConfig struct {
	BaseURL  string        // e.g. "http://damam.zeta-messenger.com/api"
	APIToken string        // server-to-server bearer credential
	Timeout  time.Duration // per-call HTTP timeout
}

// PaymentConfig controls the payment status poll supervisor.
type PaymentConfig struct {
	MoMoBaseURL      string        // MTN MoMo collections API base
	MoMoSubscription string        // Ocp-Apim-Subscription-Key
	MoMoEnvironment  string        // X-Target-Environment
	OrangeBaseURL    string        // Orange Money core API base
	OrangeAuthToken  string        // X-AUTH-TOKEN
	Interval         time.Duration // default tick cadence per job
	MaxAttempts      int           // default attempts before TimedOut
	NotifyOnTimeout  bool          // push a TIMEOUT payment_status instead of stopping silently
	SaveRetries      int           // bounded retries for the save-status call

	// Per-provider cadence overrides; zero falls back to Interval/MaxAttempts.
	MoMoInterval      time.Duration // PAYMENT_MOMO_POLL_INTERVAL
	MoMoMaxAttempts   int           // PAYMENT_MOMO_POLL_MAX_ATTEMPTS
	OrangeInterval    time.Duration // PAYMENT_ORANGE_POLL_INTERVAL
	OrangeMaxAttempts int           // PAYMENT_ORANGE_POLL_MAX_ATTEMPTS
}

// ChatConfig bounds the message routing pipeline.
type ChatConfig struct {
	WindowLimit  int           // messages per user per window
	Window       time.Duration // fixed rate window length
	MaxBodyRunes int           // body truncation limit
	HistoryCap   int           // in-memory history buffer capacity
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath  string // SQLite path for the audit store
	Chat    ChatConfig
	WS      WSConfig
	Backend BackendConfig
	Payment PaymentConfig

	// Edge rate limiting (HTTP token bucket; the per-user chat window is in Chat)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

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
		DBPath: getenv("DB_PATH", "relay.db"),
		Chat: ChatConfig{
			WindowLimit:  getint("CHAT_WINDOW_LIMIT", 30),
			Window:       getdur("CHAT_WINDOW", time.Minute),
			MaxBodyRunes: getint("CHAT_MAX_BODY_RUNES", 1000),
			HistoryCap:   getint("CHAT_HISTORY_CAP", 1000),
		},
		WS: WSConfig{
			ReadBufferSize:  getint("WS_READ_BUFFER", 1024),
			WriteBufferSize: getint("WS_WRITE_BUFFER", 1024),
			SendQueueSize:   getint("WS_SEND_QUEUE", 64),
			PingInterval:    getdur("WS_PING_INTERVAL", 30*time.Second),
			PongWait:        getdur("WS_PONG_WAIT", 75*time.Second),
			WriteWait:       getdur("WS_WRITE_WAIT", 10*time.Second),
			MaxMessageBytes: int64(getint("WS_MAX_MESSAGE_BYTES", 64<<10)),
			AllowedOrigins:  splitCSV(getenv("WS_ALLOWED_ORIGINS", "")),
		},
		Backend: BackendConfig{
			BaseURL:  getenv("BACKEND_BASE_URL", "http://damam.zeta-messenger.com/api"),
			APIToken: getenv("BACKEND_API_TOKEN", ""),
			Timeout:  getdur("BACKEND_TIMEOUT", 15*time.Second),
		},
		Payment: PaymentConfig{
			MoMoBaseURL:      getenv("MOMO_BASE_URL", "https://proxy.momoapi.mtn.com"),
			MoMoSubscription: getenv("MOMO_SUBSCRIPTION_KEY", ""),
			MoMoEnvironment:  getenv("MOMO_TARGET_ENV", "mtncameroon"),
			OrangeBaseURL:    getenv("ORANGE_BASE_URL", "https://api-s1.orange.cm"),
			OrangeAuthToken:  getenv("ORANGE_AUTH_TOKEN", ""),
			Interval:         getdur("PAYMENT_POLL_INTERVAL", 5*time.Second),
			MaxAttempts:      getint("PAYMENT_POLL_MAX_ATTEMPTS", 12),
			NotifyOnTimeout:  getbool("PAYMENT_NOTIFY_ON_TIMEOUT", false),
			SaveRetries:      getint("PAYMENT_SAVE_RETRIES", 3),

			// MoMo collections settle within seconds; poll it tighter by default.
			MoMoInterval:      getdur("PAYMENT_MOMO_POLL_INTERVAL", 2*time.Second),
			MoMoMaxAttempts:   getint("PAYMENT_MOMO_POLL_MAX_ATTEMPTS", 0),
			OrangeInterval:    getdur("PAYMENT_ORANGE_POLL_INTERVAL", 0),
			OrangeMaxAttempts: getint("PAYMENT_ORANGE_POLL_MAX_ATTEMPTS", 0),
		},

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

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-relay-backend"),
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
	cfg.Backend.BaseURL = strings.TrimRight(cfg.Backend.BaseURL, "/")
	cfg.Payment.MoMoBaseURL = strings.TrimRight(cfg.Payment.MoMoBaseURL, "/")
	cfg.Payment.OrangeBaseURL = strings.TrimRight(cfg.Payment.OrangeBaseURL, "/")

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
	if cfg.Chat.WindowLimit < 1 {
		return cfg, errors.New("CHAT_WINDOW_LIMIT must be >= 1")
	}
	if cfg.Chat.Window <= 0 {
		return cfg, errors.New("CHAT_WINDOW must be > 0")
	}
	if cfg.Chat.MaxBodyRunes < 1 {
		return cfg, errors.New("CHAT_MAX_BODY_RUNES must be >= 1")
	}
	if cfg.Chat.HistoryCap < 2 {
		return cfg, errors.New("CHAT_HISTORY_CAP must be >= 2")
	}
	if cfg.WS.SendQueueSize < 1 {
		return cfg, errors.New("WS_SEND_QUEUE must be >= 1")
	}
	if cfg.WS.PongWait <= cfg.WS.PingInterval {
		return cfg, errors.New("WS_PONG_WAIT must exceed WS_PING_INTERVAL")
	}
	if strings.TrimSpace(cfg.Backend.BaseURL) == "" {
		return cfg, errors.New("BACKEND_BASE_URL must not be empty")
	}
	if cfg.Backend.Timeout <= 0 {
		return cfg, errors.New("BACKEND_TIMEOUT must be > 0")
	}
	if cfg.Payment.Interval <= 0 {
		return cfg, errors.New("PAYMENT_POLL_INTERVAL must be > 0")
	}
	if cfg.Payment.MaxAttempts < 1 {
		return cfg, errors.New("PAYMENT_POLL_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.Payment.MoMoInterval < 0 || cfg.Payment.OrangeInterval < 0 {
		return cfg, errors.New("per-provider poll intervals must be >= 0 (0 uses PAYMENT_POLL_INTERVAL)")
	}
	if cfg.Payment.MoMoMaxAttempts < 0 || cfg.Payment.OrangeMaxAttempts < 0 {
		return cfg, errors.New("per-provider poll max attempts must be >= 0 (0 uses PAYMENT_POLL_MAX_ATTEMPTS)")
	}
	if cfg.Payment.SaveRetries < 0 {
		return cfg, errors.New("PAYMENT_SAVE_RETRIES must be >= 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
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
