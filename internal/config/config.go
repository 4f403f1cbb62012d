// Package config loads the application settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Bot      BotConfig
	Storage  StorageConfig
	Study    StudyConfig
	LogMode  string         `validate:"required,oneof=development dev production prod"`
	Timezone *time.Location `validate:"required"`
	Seed     SeedConfig
}

// BotConfig contains the Telegram front-end settings.
type BotConfig struct {
	Token         string
	AllowedChatID int64 `validate:"gte=0"`
}

// StorageConfig selects where store snapshots are persisted.
type StorageConfig struct {
	Backend       string `validate:"required,oneof=sqlite postgres redis"`
	DatabaseURL   string `validate:"required_if=Backend postgres"`
	DataDir       string `validate:"required_if=Backend sqlite"`
	RedisAddr     string `validate:"required_if=Backend redis"`
	RedisPassword string
	RedisDB       int `validate:"gte=0"`
}

// StudyConfig describes the shape of study sessions.
type StudyConfig struct {
	FullTestQuestions    int           `validate:"gt=0"`
	FullTestLimit        time.Duration `validate:"gt=0"`
	MiniTestQuestions    int           `validate:"gt=0"`
	MiniTestLimit        time.Duration `validate:"gt=0"`
	FlashcardSessionSize int           `validate:"gt=0"`
}

// SeedConfig optionally replaces the embedded catalogs with spreadsheet files.
type SeedConfig struct {
	FlashcardsFile string
	QuestionsFile  string
}

// Default returns the configuration used when no environment overrides are present.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:   "sqlite",
			DataDir:   "data",
			RedisAddr: "localhost:6379",
		},
		Study: StudyConfig{
			FullTestQuestions:    100,
			FullTestLimit:        120 * time.Minute,
			MiniTestQuestions:    10,
			MiniTestLimit:        5 * time.Minute,
			FlashcardSessionSize: 10,
		},
		LogMode:  "development",
		Timezone: time.Local,
	}
}

// Load reads an optional .env file, applies environment overrides on top of Default and validates the result.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment may already be populated.
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, which has the signature of os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	get := func(name string) string {
		v, _ := lookup(name)
		return strings.TrimSpace(v)
	}

	cfg.Bot.Token = get("TELEGRAM_BOT_TOKEN")
	if v := get("ALLOWED_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ALLOWED_CHAT_ID %q: %w", v, err)
		}
		cfg.Bot.AllowedChatID = id
	}

	if v := get("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	} else if v := get("DB_TYPE"); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v := get("DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := get("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := get("REDIS_ADDR"); v != "" {
		cfg.Storage.RedisAddr = v
	}
	cfg.Storage.RedisPassword = get("REDIS_PASSWORD")

	ints := []struct {
		name string
		dst  *int
	}{
		{"REDIS_DB", &cfg.Storage.RedisDB},
		{"FULL_TEST_QUESTIONS", &cfg.Study.FullTestQuestions},
		{"MINI_TEST_QUESTIONS", &cfg.Study.MiniTestQuestions},
		{"FLASHCARD_SESSION_SIZE", &cfg.Study.FlashcardSessionSize},
	}
	for _, f := range ints {
		if v := get(f.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s %q: %w", f.name, v, err)
			}
			*f.dst = n
		}
	}

	minutes := []struct {
		name string
		dst  *time.Duration
	}{
		{"FULL_TEST_MINUTES", &cfg.Study.FullTestLimit},
		{"MINI_TEST_MINUTES", &cfg.Study.MiniTestLimit},
	}
	for _, f := range minutes {
		if v := get(f.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s %q: %w", f.name, v, err)
			}
			*f.dst = time.Duration(n) * time.Minute
		}
	}

	if v := get("LOG_MODE"); v != "" {
		cfg.LogMode = strings.ToLower(v)
	}
	if v := get("TIMEZONE"); v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE %q: %w", v, err)
		}
		cfg.Timezone = loc
	}

	cfg.Seed.FlashcardsFile = get("SEED_FLASHCARDS_FILE")
	cfg.Seed.QuestionsFile = get("SEED_QUESTIONS_FILE")

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Clock returns a function reporting the current time in the configured timezone.
func (c *Config) Clock() func() time.Time {
	loc := c.Timezone
	return func() time.Time {
		return time.Now().In(loc)
	}
}
