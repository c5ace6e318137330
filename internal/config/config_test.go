package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g")
	t.Setenv("PIAPI_API_KEY", "p")
	t.Setenv("RAZORPAY_KEY_ID", "rzp_id")
	t.Setenv("RAZORPAY_KEY_SECRET", "rzp_secret")
	t.Setenv("FIREBASE_PROJECT_ID", "lustra-ai")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "3000", cfg.HTTPPort)
	assert.Equal(t, "memory", cfg.TaskStore)
	assert.Equal(t, "file", cfg.TemplateStore)
	assert.Equal(t, "local", cfg.BlobBackend)
	assert.Equal(t, time.Hour, cfg.SignedURLTTL)
	assert.Equal(t, 24*time.Hour, cfg.TaskRetention)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.NeedsDatabase())
}

func TestValidate_MissingCredentials(t *testing.T) {
	tests := []struct {
		name    string
		unset   string
		wantErr string
	}{
		{"gemini", "GEMINI_API_KEY", "GEMINI_API_KEY is required"},
		{"piapi", "PIAPI_API_KEY", "PIAPI_API_KEY is required"},
		{"razorpay id", "RAZORPAY_KEY_ID", "RAZORPAY_KEY_ID is required"},
		{"razorpay secret", "RAZORPAY_KEY_SECRET", "RAZORPAY_KEY_SECRET is required"},
		{"firebase", "FIREBASE_PROJECT_ID", "FIREBASE_PROJECT_ID is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.unset, "")

			err := Load().Validate()
			require.Error(t, err)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestValidate_BackendDependencies(t *testing.T) {
	setRequired(t)
	t.Setenv("TASK_STORE", "postgres")

	err := Load().Validate()
	assert.EqualError(t, err, "DATABASE_URL is required when a postgres store is selected")

	t.Setenv("DATABASE_URL", "postgres://localhost/lustra")
	assert.NoError(t, Load().Validate())

	t.Setenv("TASK_STORE", "redis")
	assert.EqualError(t, Load().Validate(), "REDIS_ADDR is required when TASK_STORE=redis")

	t.Setenv("TASK_STORE", "etcd")
	assert.EqualError(t, Load().Validate(), "TASK_STORE must be memory|postgres|redis")
}

func TestGetEnvAsList(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, getEnvAsList("CORS_ALLOWED_ORIGINS", nil))
}

func TestValidate_SampleRatio(t *testing.T) {
	setRequired(t)
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.5")
	cfg := Load()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.5, cfg.OTELSampleRatio)

	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "2")
	assert.EqualError(t, Load().Validate(), "OTEL_TRACES_SAMPLER_ARG must be within [0, 1]")
}
