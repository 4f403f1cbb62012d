package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envLookup(nil))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "data", cfg.Storage.DataDir)
	assert.Equal(t, 100, cfg.Study.FullTestQuestions)
	assert.Equal(t, 120*time.Minute, cfg.Study.FullTestLimit)
	assert.Equal(t, 10, cfg.Study.MiniTestQuestions)
	assert.Equal(t, 5*time.Minute, cfg.Study.MiniTestLimit)
	assert.Equal(t, "development", cfg.LogMode)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envLookup(map[string]string{
		"TELEGRAM_BOT_TOKEN":  "token",
		"ALLOWED_CHAT_ID":     "42",
		"STORAGE_BACKEND":     "redis",
		"REDIS_ADDR":          "cache:6379",
		"REDIS_DB":            "2",
		"MINI_TEST_QUESTIONS": "20",
		"MINI_TEST_MINUTES":   "8",
		"TIMEZONE":            "Asia/Tokyo",
		"LOG_MODE":            "production",
	}))
	require.NoError(t, err)

	assert.Equal(t, "token", cfg.Bot.Token)
	assert.Equal(t, int64(42), cfg.Bot.AllowedChatID)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "cache:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, 2, cfg.Storage.RedisDB)
	assert.Equal(t, 20, cfg.Study.MiniTestQuestions)
	assert.Equal(t, 8*time.Minute, cfg.Study.MiniTestLimit)
	assert.Equal(t, "Asia/Tokyo", cfg.Timezone.String())
	assert.Equal(t, "production", cfg.LogMode)
}

func TestFromEnvLegacyDBType(t *testing.T) {
	cfg, err := FromEnv(envLookup(map[string]string{
		"DB_TYPE":      "postgres",
		"DATABASE_URL": "postgres://localhost/passdrill?sslmode=disable",
	}))
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
}

func TestFromEnvErrors(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"STORAGE_BACKEND": "mongo"}},
		{"postgres without url", map[string]string{"STORAGE_BACKEND": "postgres"}},
		{"bad chat id", map[string]string{"ALLOWED_CHAT_ID": "abc"}},
		{"zero questions", map[string]string{"FULL_TEST_QUESTIONS": "0"}},
		{"bad minutes", map[string]string{"FULL_TEST_MINUTES": "two"}},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{"bad log mode", map[string]string{"LOG_MODE": "verbose"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromEnv(envLookup(tc.env))
			assert.Error(t, err)
		})
	}
}
