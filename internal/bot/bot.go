package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/passdrill/internal/config"
	"github.com/example/passdrill/internal/flashcards"
	"github.com/example/passdrill/internal/logger"
	"github.com/example/passdrill/internal/notifications"
	"github.com/example/passdrill/internal/progress"
	"github.com/example/passdrill/internal/quiz"
	"github.com/example/passdrill/internal/session"
	"github.com/example/passdrill/pkg/models"
)

// errNoChat is returned when a reminder is due before any chat has talked to the bot
var errNoChat = errors.New("bot: no chat to notify")

// errNotConnected is returned when a reminder is due before Start has reached Telegram
var errNotConnected = errors.New("bot: not connected")

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// sender is the part of the Telegram API the bot talks to
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TestArchive is the long-term record of finished tests kept by SQL storage
type TestArchive interface {
	Recent(ctx context.Context, limit int) ([]models.TestResult, error)
	CountByType(ctx context.Context) (map[models.TestKind]int, error)
}

// Stores groups the state the bot reads and mutates. Archive is nil when the backend keeps none.
type Stores struct {
	Flashcards    *flashcards.Store
	Questions     *quiz.Bank
	Progress      *progress.Store
	Notifications *notifications.Settings
	Archive       TestArchive
}

// cardBatch is a flashcard study run in progress
type cardBatch struct {
	cards    []models.Flashcard
	idx      int
	revealed bool
	passed   int
}

// Bot represents the Telegram bot application
type Bot struct {
	api    sender
	token  string
	cfg    config.BotConfig
	study  config.StudyConfig
	stores Stores
	log    *logger.Logger

	mu       sync.Mutex
	chatID   int64 // last chat served, the reminder target when no chat is configured
	quiz     *session.Session
	cards    *cardBatch
	sessOpts []session.Option
}

// New creates a new bot instance
func New(cfg config.BotConfig, study config.StudyConfig, stores Stores, log *logger.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}
	return newBot(nil, cfg, study, stores, log), nil
}

func newBot(api sender, cfg config.BotConfig, study config.StudyConfig, stores Stores, log *logger.Logger) *Bot {
	return &Bot{
		api:    api,
		token:  cfg.Token,
		cfg:    cfg,
		study:  study,
		stores: stores,
		log:    log,
		chatID: cfg.AllowedChatID,
	}
}

// Start connects to Telegram and handles updates until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	botAPI, err := tgbotapi.NewBotAPI(b.token)
	if err != nil {
		return fmt.Errorf("unable to create bot: %w", err)
	}
	b.mu.Lock()
	b.api = botAPI
	b.mu.Unlock()
	b.log.Info("authorized on telegram", "account", botAPI.Self.UserName)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := botAPI.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			botAPI.StopReceivingUpdates()
			b.Stop()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// Stop abandons the running quiz so its timer cannot fire after shutdown
func (b *Bot) Stop() {
	b.mu.Lock()
	s := b.quiz
	b.quiz = nil
	b.mu.Unlock()
	if s != nil {
		s.Abandon()
	}
	b.log.Info("bot stopped")
}

// SendStudyReminder implements the scheduler.Notifier interface
func (b *Bot) SendStudyReminder(dueCards int) error {
	b.mu.Lock()
	chatID := b.chatID
	b.mu.Unlock()
	if chatID == 0 {
		return errNoChat
	}

	msg := tgbotapi.NewMessage(chatID, reminderText(dueCards))
	msg.ReplyMarkup = createKeyboard(mainMenuButtons())
	if err := b.sendMessage(msg); err != nil {
		return err
	}
	b.log.Info("study reminder sent", "chat_id", chatID, "due_cards", dueCards)
	return nil
}

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	var (
		chat *tgbotapi.Chat
		err  error
	)
	switch {
	case update.Message != nil:
		chat = update.Message.Chat
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		chat = update.CallbackQuery.Message.Chat
	default:
		return
	}
	if chat == nil || !b.allowed(chat.ID) {
		return
	}

	b.mu.Lock()
	b.chatID = chat.ID
	b.mu.Unlock()

	if update.Message != nil {
		if update.Message.IsCommand() {
			err = b.HandleCommand(ctx, update.Message)
		} else {
			err = b.sendMessage(withMenu(tgbotapi.NewMessage(chat.ID, "コマンドを選んでください。/start でメニューを表示します。")))
		}
	} else {
		err = b.HandleCallback(ctx, update.CallbackQuery)
	}
	if err != nil {
		b.log.Error("failed to handle update", "error", err, "chat_id", chat.ID)
	}
}

// allowed reports whether chatID may use the bot
func (b *Bot) allowed(chatID int64) bool {
	return b.cfg.AllowedChatID == 0 || b.cfg.AllowedChatID == chatID
}

// client returns the Telegram API, nil before Start has connected
func (b *Bot) client() sender {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.api
}

func (b *Bot) sendMessage(msg tgbotapi.Chattable) error {
	api := b.client()
	if api == nil {
		return errNotConnected
	}
	if _, err := api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func withMenu(msg tgbotapi.MessageConfig) tgbotapi.MessageConfig {
	msg.ReplyMarkup = createKeyboard(mainMenuButtons())
	return msg
}

// mainMenuButtons returns the main menu layout
func mainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{{Text: "🃏 単語カード", CallbackData: "cards"}, {Text: "📝 ミニテスト", CallbackData: "mini"}},
		{{Text: "🧪 模擬試験", CallbackData: "full"}, {Text: "▶️ 再開", CallbackData: "resume"}},
		{{Text: "📊 学習状況", CallbackData: "stats"}, {Text: "🔔 通知設定", CallbackData: "notify"}},
	}
}
