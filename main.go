package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/passdrill/internal/bot"
	"github.com/example/passdrill/internal/config"
	"github.com/example/passdrill/internal/database"
	"github.com/example/passdrill/internal/flashcards"
	"github.com/example/passdrill/internal/logger"
	"github.com/example/passdrill/internal/notifications"
	"github.com/example/passdrill/internal/persist"
	"github.com/example/passdrill/internal/progress"
	"github.com/example/passdrill/internal/quiz"
	"github.com/example/passdrill/internal/scheduler"
	"github.com/example/passdrill/internal/seed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logg.Sync()

	// Создаем канал для сигналов
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storage, archive, closeStorage, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		logg.Fatal("failed to open storage", "backend", cfg.Storage.Backend, "error", err)
	}
	defer closeStorage()

	cards, questions, err := seed.Load(cfg.Seed, logg)
	if err != nil {
		logg.Fatal("failed to load catalogs", "error", err)
	}

	clock := cfg.Clock()

	cardStore := flashcards.New(cards, storage, logg.With("store", "flashcards"), flashcards.WithClock(clock))
	cardStore.Restore(ctx)
	cardStore.LoadCatalog()

	bankOpts := []quiz.Option{quiz.WithClock(clock)}
	if cfg.Seed.QuestionsFile != "" {
		bankOpts = append(bankOpts, quiz.WithCatalogVersion(quiz.ImportedCatalogVersion(questions)))
	}
	bank := quiz.NewBank(questions, storage, logg.With("store", "questions"), bankOpts...)
	bank.Restore(ctx)
	bank.LoadCatalog()

	stores := bot.Stores{
		Flashcards: cardStore,
		Questions:  bank,
	}
	progressOpts := []progress.Option{progress.WithClock(clock)}
	if archive != nil {
		progressOpts = append(progressOpts, progress.WithResultSink(archive))
		stores.Archive = archive
	}
	stores.Progress = progress.NewStore(storage, logg.With("store", "progress"), progressOpts...)
	stores.Progress.Restore(ctx)

	// The scheduler needs the bot as notifier and the notification settings need the scheduler.
	// The bot is assigned before the scheduler starts, so the reminder job always sees it.
	var b *bot.Bot
	sched := scheduler.New(reminderFunc(func(due int) error { return b.SendStudyReminder(due) }),
		func() int { return cardStore.StrictDueCount("") }, cfg.Timezone, logg.With("component", "scheduler"))
	stores.Notifications = notifications.New(storage, sched, logg.With("store", "notifications"))

	b, err = bot.New(cfg.Bot, cfg.Study, stores, logg.With("component", "bot"))
	if err != nil {
		logg.Fatal("failed to create bot", "error", err)
	}

	sched.Start()
	defer sched.Stop()
	if err := stores.Notifications.Restore(ctx); err != nil {
		logg.Error("failed to schedule study reminder", "error", err)
	}

	// Проверка обновлений вопросов раз в день, повторные вызовы отсекаются внутри
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		check := func() {
			if _, err := bank.CheckForUpdates(ctx); err != nil {
				logg.Warn("question update check failed", "error", err)
			}
		}
		check()
		for {
			select {
			case <-ticker.C:
				check()
			case <-ctx.Done():
				return
			}
		}
	}()

	// Горутина для обработки сигналов
	go func() {
		sig := <-sigChan
		logg.Info("received signal", "signal", sig.String())
		cancel()
	}()

	logg.Info("bot started, press Ctrl+C to stop", "storage", cfg.Storage.Backend)
	if err := b.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error("bot error", "error", err)
	}
	logg.Info("bot stopped successfully")
}

// reminderFunc adapts a function to scheduler.Notifier
type reminderFunc func(dueCards int) error

func (f reminderFunc) SendStudyReminder(dueCards int) error {
	return f(dueCards)
}

// openStorage connects the configured backend. SQL backends also return the test result archive.
func openStorage(ctx context.Context, cfg config.StorageConfig) (persist.Storage, *database.TestResultRepository, func(), error) {
	if cfg.Backend == "redis" {
		rs, err := persist.NewRedisStorage(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "")
		if err != nil {
			return nil, nil, nil, err
		}
		return rs, nil, func() { _ = rs.Close() }, nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	closeDB := func() {
		if err := database.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}
	return database.NewKVRepository(db), database.NewTestResultRepository(db), closeDB, nil
}
