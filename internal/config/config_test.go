package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "triage", cfg.MongoDB)
	assert.Equal(t, "http://localhost:5001", cfg.ScoringURL)
	assert.Equal(t, 30*time.Second, cfg.ScoringTimeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
	assert.Equal(t, 3*time.Second, cfg.RateLimitDelay)
	assert.Equal(t, 0, cfg.AgeMin)
	assert.Equal(t, 120, cfg.AgeMax)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "9000")
	t.Setenv("AI_MAX_ATTEMPTS", "5")
	t.Setenv("AI_RETRY_DELAY", "500ms")
	t.Setenv("AI_RATE_LIMIT_DELAY", "10") // bare integers mean seconds

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, 10*time.Second, cfg.RateLimitDelay)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	t.Run("missing jwt secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("zero attempts", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("AI_MAX_ATTEMPTS", "0")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("inverted age range", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("PATIENT_AGE_MIN", "90")
		t.Setenv("PATIENT_AGE_MAX", "10")
		_, err := Load()
		require.Error(t, err)
	})
}
