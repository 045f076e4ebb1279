package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "REDIS_URL", "SUMMARIZER_API_KEY", "SUMMARIZER_MODEL",
		"SUMMARIZER_MAX_TOKENS", "SUMMARIZER_TEMPERATURE", "SUMMARIZER_TIMEOUT_SEC",
		"MAX_CONCURRENT_USERS", "WORKER_ID", "SCHEDULER_ENABLED", "ATTACHMENT_ROOT", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_MissingDatabaseURLFails(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUMMARIZER_API_KEY", "sk-test")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MissingSummarizerKeyFails(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/db")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("SUMMARIZER_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.SummarizerModel)
	assert.Equal(t, 3, cfg.MaxConcurrentUsers)
	assert.Equal(t, "attachments", cfg.AttachmentRoot)
	assert.True(t, cfg.SchedulerEnabled)
}

func TestLoad_RejectsNonPositiveConcurrency(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("SUMMARIZER_API_KEY", "sk-test")
	t.Setenv("MAX_CONCURRENT_USERS", "0")

	_, err := Load()
	assert.Error(t, err)
}
