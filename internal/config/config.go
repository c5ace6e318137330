package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env           string
	HTTPPort      string
	LogLevel      string
	PublicBaseURL string

	// OpenTelemetry (traces)
	OTELExporterOTLPEndpoint string
	OTELServiceName          string
	OTELSampleRatio          float64

	// Backends
	TaskStore     string // memory|postgres|redis
	TemplateStore string // file|postgres
	UserStore     string // memory|postgres
	BlobBackend   string // local|s3

	DatabaseURL string
	RedisAddr   string
	RedisDB     int

	// TaskRetention bounds how long finished tasks are kept (memory pruning, redis TTL).
	TaskRetention time.Duration

	NATSURL        string
	NATSStreamName string

	// Generative AI
	GeminiAPIKey string
	GeminiModel  string
	PiAPIKey     string
	PiAPIBaseURL string
	PiAPITimeout time.Duration

	WebhookSecret string

	// Payments
	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayBaseURL   string

	// Identity
	FirebaseProjectID string

	// Storage
	PublicDir       string
	TemplatesFile   string
	S3Bucket        string
	S3PublicBaseURL string
	SignedURLTTL    time.Duration
	MaxUploadBytes  int64

	// Deploy pipeline
	DeployProjectRoot string
	DeploySiteURL     string

	CORSAllowedOrigins []string
}

func Load() *Config {
	return &Config{
		Env:           getEnv("ENV", "dev"),
		HTTPPort:      getEnv("HTTP_PORT", "3000"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),

		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", ""),
		OTELSampleRatio:          getEnvAsFloat("OTEL_TRACES_SAMPLER_ARG", 0.1),

		TaskStore:     getEnv("TASK_STORE", "memory"),
		TemplateStore: getEnv("TEMPLATE_STORE", "file"),
		UserStore:     getEnv("USER_STORE", "memory"),
		BlobBackend:   getEnv("BLOB_BACKEND", "local"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisAddr:   getEnv("REDIS_ADDR", ""),
		RedisDB:     getEnvAsInt("REDIS_DB", 0),

		TaskRetention: getEnvAsDuration("TASK_RETENTION", 24*time.Hour),

		NATSURL:        getEnv("NATS_URL", ""),
		NATSStreamName: getEnv("NATS_STREAM_NAME", "LUSTRA"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash-image-preview"),
		PiAPIKey:     getEnv("PIAPI_API_KEY", ""),
		PiAPIBaseURL: strings.TrimRight(getEnv("PIAPI_BASE_URL", "https://api.piapi.ai"), "/"),
		PiAPITimeout: getEnvAsDuration("PIAPI_TIMEOUT", 30*time.Second),

		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),

		RazorpayKeyID:     getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret: getEnv("RAZORPAY_KEY_SECRET", ""),
		RazorpayBaseURL:   strings.TrimRight(getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"), "/"),

		FirebaseProjectID: getEnv("FIREBASE_PROJECT_ID", ""),

		PublicDir:       getEnv("PUBLIC_DIR", "public"),
		TemplatesFile:   getEnv("TEMPLATES_FILE", "templates.json"),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3PublicBaseURL: strings.TrimRight(getEnv("S3_PUBLIC_BASE_URL", ""), "/"),
		SignedURLTTL:    getEnvAsDuration("SIGNED_URL_TTL", time.Hour),
		MaxUploadBytes:  getEnvAsInt64("MAX_UPLOAD_BYTES", 50<<20),

		DeployProjectRoot: getEnv("DEPLOY_PROJECT_ROOT", ".."),
		DeploySiteURL:     getEnv("DEPLOY_SITE_URL", "https://lustra-ai.web.app"),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}

func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT is required")
	}

	// Credentials: the service cannot answer a single request correctly without them.
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.PiAPIKey == "" {
		return fmt.Errorf("PIAPI_API_KEY is required")
	}
	if c.RazorpayKeyID == "" {
		return fmt.Errorf("RAZORPAY_KEY_ID is required")
	}
	if c.RazorpayKeySecret == "" {
		return fmt.Errorf("RAZORPAY_KEY_SECRET is required")
	}
	if c.FirebaseProjectID == "" {
		return fmt.Errorf("FIREBASE_PROJECT_ID is required")
	}

	switch c.TaskStore {
	case "memory", "postgres", "redis":
	default:
		return fmt.Errorf("TASK_STORE must be memory|postgres|redis")
	}
	switch c.TemplateStore {
	case "file", "postgres":
	default:
		return fmt.Errorf("TEMPLATE_STORE must be file|postgres")
	}
	switch c.UserStore {
	case "memory", "postgres":
	default:
		return fmt.Errorf("USER_STORE must be memory|postgres")
	}
	switch c.BlobBackend {
	case "local", "s3":
	default:
		return fmt.Errorf("BLOB_BACKEND must be local|s3")
	}

	if c.NeedsDatabase() && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when a postgres store is selected")
	}
	if c.TaskStore == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when TASK_STORE=redis")
	}
	if c.BlobBackend == "s3" && c.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when BLOB_BACKEND=s3")
	}
	if c.PiAPITimeout <= 0 {
		return fmt.Errorf("PIAPI_TIMEOUT must be > 0")
	}
	if c.TaskRetention < 0 {
		return fmt.Errorf("TASK_RETENTION must be >= 0")
	}
	if c.OTELSampleRatio < 0 || c.OTELSampleRatio > 1 {
		return fmt.Errorf("OTEL_TRACES_SAMPLER_ARG must be within [0, 1]")
	}
	if c.SignedURLTTL <= 0 {
		return fmt.Errorf("SIGNED_URL_TTL must be > 0")
	}
	if c.MaxUploadBytes < 1<<20 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be >= 1MiB")
	}

	return nil
}

// NeedsDatabase reports whether any configured store is backed by Postgres.
func (c *Config) NeedsDatabase() bool {
	return c.TaskStore == "postgres" || c.TemplateStore == "postgres" || c.UserStore == "postgres"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvAsInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getEnvAsFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getEnvAsList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
