package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/passdrill/internal/flashcards"
	"github.com/example/passdrill/internal/quiz"
	"github.com/example/passdrill/internal/session"
	"github.com/example/passdrill/internal/spaced_repetition"
	"github.com/example/passdrill/pkg/models"
)

// Constants for callback data
const (
	callbackResetConfirm = "reset_confirm"
	callbackCancelAction = "cancel_action"
	callbackNotifyToggle = "notify_toggle"
)

// HandleCommand handles bot commands
func (b *Bot) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	args := strings.TrimSpace(message.CommandArguments())

	switch message.Command() {
	case "start", "menu":
		return b.handleStart(chatID)
	case "help":
		return b.handleHelp(chatID)
	case "stats":
		return b.handleStats(ctx, chatID)
	case "history":
		return b.handleHistory(ctx, chatID)
	case "cards":
		return b.handleCards(chatID, args)
	case "mini":
		return b.handleMiniTest(chatID, args)
	case "full":
		return b.handleFullTest(chatID, args)
	case "resume":
		return b.handleResume(chatID)
	case "add":
		return b.handleAddCard(chatID, args)
	case "notify":
		return b.handleNotifyCommand(chatID, args)
	case "reset":
		return b.handleReset(chatID)
	default:
		return b.sendMessage(withMenu(tgbotapi.NewMessage(chatID, "不明なコマンドです。/help で使い方を表示します。")))
	}
}

// HandleCallback handles inline button presses
func (b *Bot) HandleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback == nil || callback.Message == nil || callback.Message.Chat == nil {
		return fmt.Errorf("invalid callback data: required fields are missing")
	}

	// Always send an answer to the callback query to remove the loading state
	if api := b.client(); api != nil {
		if _, err := api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
			b.log.Warn("failed to answer callback", "error", err)
		}
	}

	chatID := callback.Message.Chat.ID
	action, arg := splitCallback(callback.Data)

	switch action {
	case "menu":
		return b.handleStart(chatID)
	case "stats":
		return b.handleStats(ctx, chatID)
	case "history":
		return b.handleHistory(ctx, chatID)
	case "cards":
		return b.handleCards(chatID, arg)
	case "mini":
		return b.handleMiniTest(chatID, arg)
	case "full":
		return b.handleFullTest(chatID, arg)
	case "resume":
		return b.handleResume(chatID)
	case "notify":
		return b.handleNotifyCommand(chatID, "")
	case callbackNotifyToggle:
		return b.handleNotifyToggle(chatID)
	case callbackResetConfirm:
		return b.handleResetConfirm(chatID)
	case callbackCancelAction:
		return b.handleStart(chatID)
	case "card":
		return b.handleCardAction(chatID, arg)
	case "q":
		return b.handleQuizAction(chatID, arg)
	default:
		return b.sendMessage(tgbotapi.NewMessage(chatID, "⚠️ 不明な操作です"))
	}
}

func (b *Bot) handleStart(chatID int64) error {
	text := "👋 生成AIパスポート合格ドリルへようこそ！\n\n" +
		"🃏 単語カードで用語を覚え、📝 ミニテストと 🧪 模擬試験で実力を確認しましょう。\n" +
		"/help でコマンド一覧を表示します。"
	return b.sendMessage(withMenu(tgbotapi.NewMessage(chatID, text)))
}

func (b *Bot) handleHelp(chatID int64) error {
	text := "📖 コマンド一覧\n\n" +
		"/stats - 学習状況\n" +
		"/history - 最近のテスト結果\n" +
		"/cards [章番号] - 単語カード学習\n" +
		"/mini [章番号] - ミニテスト\n" +
		"/full - 模擬試験\n" +
		"/resume - 中断した模擬試験を再開\n" +
		"/add 用語 | 説明 | 章 - カードを追加\n" +
		"/notify [HH:MM|on|off] - 通知設定\n" +
		"/reset - 学習データをリセット\n\n" +
		"章番号:\n" + formatChapterList(b.stores.Flashcards.Chapters())
	return b.sendMessage(withMenu(tgbotapi.NewMessage(chatID, text)))
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) error {
	return b.sendMessage(withMenu(tgbotapi.NewMessage(chatID, formatStats(b.collectStats(ctx)))))
}

// historyLimit is how many archived tests /history lists
const historyLimit = 5

func (b *Bot) handleHistory(ctx context.Context, chatID int64) error {
	if b.stores.Archive == nil {
		return b.sendMessage(withMenu(tgbotapi.NewMessage(chatID, "テスト履歴はデータベース保存時のみ利用できます。")))
	}
	results, err := b.stores.Archive.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	return b.sendMessage(withMenu(tgbotapi.NewMessage(chatID, formatHistory(results))))
}

func (b *Bot) collectStats(ctx context.Context) statsView {
	cards := b.stores.Flashcards.All()
	questionIDs := b.stores.Questions.IDs()
	snap := b.stores.Progress.Snapshot()
	avg, hasAvg := b.stores.Progress.AverageRecentScore()

	var testCounts map[models.TestKind]int
	if b.stores.Archive != nil {
		counts, err := b.stores.Archive.CountByType(ctx)
		if err != nil {
			b.log.Warn("failed to count archived tests", "error", err)
		} else {
			testCounts = counts
		}
	}

	return statsView{
		TestCounts:        testCounts,
		Progress:          snap.Progress,
		MasteryRate:       b.stores.Progress.CombinedMasteryRate(cards, len(questionIDs)),
		MasteredCards:     b.stores.Flashcards.TotalMastered(),
		TotalCards:        len(cards),
		MasteredQuestions: b.stores.Progress.MasteredQuestionCount(questionIDs),
		TotalQuestions:    len(questionIDs),
		LearningDays:      snap.MonthlyLearningDays,
		LastScore:         snap.LastScore,
		RecentAverage:     avg,
		HasRecentAverage:  hasAvg,
		TodayAnswered:     b.stores.Progress.TodayAnsweredCount(),
		TodayCards:        b.stores.Flashcards.TodayStudiedCount(),
		ChapterProgress:   snap.ChapterProgress,
		RecentChapters:    b.stores.Progress.AverageRecentChapterScores(),
		Chapters:          b.stores.Flashcards.Chapters(),
	}
}

// handleCards shows the chapter overview, or starts a study batch when a chapter is given
func (b *Bot) handleCards(chatID int64, arg string) error {
	store := b.stores.Flashcards
	chapters := store.Chapters()

	if arg == "" {
		var rows [][]MenuButton
		lines := []string{"🃏 単語カード", ""}
		for i, ch := range chapters {
			lines = append(lines, fmt.Sprintf("%d. %s（復習 %d枚）", i+1, ch, store.StrictDueCount(ch)))
			rows = append(rows, []MenuButton{{Text: fmt.Sprintf("%d. %s", i+1, ch), CallbackData: fmt.Sprintf("cards:%d", i+1)}})
		}
		lines = append(lines, "", fmt.Sprintf("全分野の復習予定: %d枚", store.StrictDueCount("")))
		if store.HasCards() {
			rows = append(rows, []MenuButton{{Text: "全分野で学習", CallbackData: "cards:all"}})
		}
		rows = append(rows, []MenuButton{{Text: "⬅️ メニュー", CallbackData: "menu"}})
		msg := tgbotapi.NewMessage(chatID, strings.Join(lines, "\n"))
		msg.ReplyMarkup = createKeyboard(rows)
		return b.sendMessage(msg)
	}

	chapter := ""
	if arg != "all" {
		ch, ok := resolveChapter(arg, chapters)
		if !ok {
			return b.sendMessage(tgbotapi.NewMessage(chatID, "その章は見つかりません。\n"+formatChapterList(chapters)))
		}
		chapter = ch
	}

	cards, err := store.StudySet(chapter, b.study.FlashcardSessionSize)
	if errors.Is(err, flashcards.ErrNoCards) {
		return b.sendMessage(withMenu(tgbotapi.NewMessage(chatID, "学習予定のカードがありません。他の分野を選択するか、明日また確認してください。")))
	}
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.cards = &cardBatch{cards: cards}
	b.mu.Unlock()
	return b.showCard(chatID)
}

func (b *Bot) showCard(chatID int64) error {
	b.mu.Lock()
	batch := b.cards
	if batch == nil {
		b.mu.Unlock()
		return b.sendMessage(withMenu(tgbotapi.NewMessage(chatID, "学習中のカードはありません。")))
	}
	if batch.idx >= len(batch.cards) {
		passed, total := batch.passed, len(batch.cards)
		b.cards = nil
		b.mu.Unlock()
		text := fmt.Sprintf("🎉 %d枚中 %d枚を覚えました！\n今日学習したカード: %d枚", total, passed, b.stores.Flashcards.TodayStudiedCount())
		return b.sendMessage(withMenu(tgbotapi.NewMessage(chatID, text)))
	}
	card := batch.cards[batch.idx]
	revealed := batch.revealed
	idx, total := batch.idx, len(batch.cards)
	b.mu.Unlock()

	msg := tgbotapi.NewMessage(chatID, formatCard(card, idx, total, revealed))
	if revealed {
		msg.ReplyMarkup = createKeyboard([][]MenuButton{
			{{Text: "✅ 覚えた", CallbackData: "card:ok"}, {Text: "❌ まだ", CallbackData: "card:ng"}},
			{{Text: "⏹ 終了", CallbackData: "card:stop"}},
		})
	} else {
		msg.ReplyMarkup = createKeyboard([][]MenuButton{
			{{Text: "👀 答えを見る", CallbackData: "card:show"}},
			{{Text: "⏹ 終了", CallbackData: "card:stop"}},
		})
	}
	return b.sendMessage(msg)
}

func (b *Bot) handleCardAction(chatID int64, action string) error {
	b.mu.Lock()
	batch := b.cards
	if batch == nil || batch.idx >= len(batch.cards) {
		b.mu.Unlock()
		return b.showCard(chatID)
	}
	card := batch.cards[batch.idx]

	var quality spaced_repetition.QualityResponse
	switch action {
	case "show":
		batch.revealed = true
		b.mu.Unlock()
		return b.showCard(chatID)
	case "stop":
		b.cards = nil
		b.mu.Unlock()
		return b.handleStart(chatID)
	case "ok":
		quality = spaced_repetition.QualityPerfect
		batch.passed++
	case "ng":
		quality = spaced_repetition.QualityIncorrect
	default:
		b.mu.Unlock()
		return fmt.Errorf("unknown card action %q", action)
	}
	batch.idx++
	batch.revealed = false
	b.mu.Unlock()

	if _, ok := b.stores.Flashcards.ApplyReview(card.ID, quality); !ok {
		b.log.Warn("reviewed card no longer exists", "card_id", card.ID)
	}
	return b.showCard(chatID)
}

func (b *Bot) handleMiniTest(chatID int64, arg string) error {
	chapters := b.stores.Questions.Chapters()

	if arg == "" {
		rows := [][]MenuButton{{{Text: "全分野", CallbackData: "mini:all"}}}
		for i, ch := range chapters {
			rows = append(rows, []MenuButton{{Text: fmt.Sprintf("%d. %s", i+1, ch), CallbackData: fmt.Sprintf("mini:%d", i+1)}})
		}
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("📝 ミニテスト（%d問・%d分）\n分野を選んでください。",
			b.study.MiniTestQuestions, int(b.study.MiniTestLimit.Minutes())))
		msg.ReplyMarkup = createKeyboard(rows)
		return b.sendMessage(msg)
	}

	chapter := ""
	if arg != "all" {
		ch, ok := resolveChapter(arg, chapters)
		if !ok {
			return b.sendMessage(tgbotapi.NewMessage(chatID, "その章は見つかりません。\n"+formatChapterList(chapters)))
		}
		chapter = ch
	}

	questions, err := b.stores.Questions.SampleForMiniTest(b.study.MiniTestQuestions, chapter, b.stores.Progress.EverCorrect())
	if errors.Is(err, quiz.ErrNoQuestions) {
		return b.sendMessage(withMenu(tgbotapi.NewMessage(chatID, "この分野の問題がありません。")))
	}
	if err != nil {
		return err
	}
	return b.startQuiz(chatID, models.TestMini, questions, b.study.MiniTestLimit)
}

// handleFullTest starts a full test. A pending snapshot is only discarded when arg is "new".
func (b *Bot) handleFullTest(chatID int64, arg string) error {
	if _, ok := b.stores.Questions.LoadTestProgress(); ok && arg != "new" {
		msg := tgbotapi.NewMessage(chatID, "中断した模擬試験があります。/resume で再開できます。新しく始めると中断データは破棄されます。")
		msg.ReplyMarkup = createKeyboard([][]MenuButton{
			{{Text: "▶️ 再開", CallbackData: "resume"}, {Text: "🆕 新しく始める", CallbackData: "full:new"}},
		})
		return b.sendMessage(msg)
	}
	return b.startFullTest(chatID)
}

func (b *Bot) startFullTest(chatID int64) error {
	questions, err := b.stores.Questions.SampleForFullTest(b.study.FullTestQuestions)
	if errors.Is(err, quiz.ErrNoQuestions) {
		return b.sendMessage(withMenu(tgbotapi.NewMessage(chatID, "問題がありません。")))
	}
	if err != nil {
		return err
	}
	// Abandoning a running full test saves a snapshot, so drop it before clearing.
	b.abandonQuiz()
	b.stores.Questions.ClearTestProgress()
	return b.startQuiz(chatID, models.TestFull, questions, b.study.FullTestLimit)
}

func (b *Bot) handleResume(chatID int64) error {
	b.abandonQuiz()
	snapshot, ok := b.stores.Questions.LoadTestProgress()
	if !ok {
		return b.sendMessage(withMenu(tgbotapi.NewMessage(chatID, "中断した模擬試験はありません。")))
	}

	s, err := session.Resume(snapshot, b.stores.Progress, b.stores.Questions, b.sessionOptions(chatID)...)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.quiz = s
	b.mu.Unlock()
	return b.showQuestion(chatID, "")
}

func (b *Bot) startQuiz(chatID int64, kind models.TestKind, questions []models.Question, limit time.Duration) error {
	b.abandonQuiz()

	s, err := session.Start(kind, questions, limit, b.stores.Progress, b.stores.Questions, b.sessionOptions(chatID)...)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.quiz = s
	b.mu.Unlock()
	return b.showQuestion(chatID, "")
}

func (b *Bot) sessionOptions(chatID int64) []session.Option {
	opts := []session.Option{
		session.WithLogger(b.log),
		session.WithExpireHandler(func(s *session.Session, res session.Result) {
			b.handleQuizExpired(chatID, s, res)
		}),
	}
	return append(opts, b.sessOpts...)
}

// handleQuizExpired reports a session finished by its time limit. A newer quiz stays current.
func (b *Bot) handleQuizExpired(chatID int64, s *session.Session, res session.Result) {
	b.mu.Lock()
	if b.quiz == s {
		b.quiz = nil
	}
	b.mu.Unlock()
	if err := b.sendMessage(withMenu(tgbotapi.NewMessage(chatID, formatResult(res)))); err != nil {
		b.log.Error("failed to send timeout result", "error", err)
	}
}

// abandonQuiz drops the running quiz, saving or recording it as Abandon does
func (b *Bot) abandonQuiz() {
	b.mu.Lock()
	s := b.quiz
	b.quiz = nil
	b.mu.Unlock()
	if s != nil {
		s.Abandon()
	}
}

func (b *Bot) currentQuiz() *session.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.quiz
}

func (b *Bot) showQuestion(chatID int64, feedback string) error {
	s := b.currentQuiz()
	if s == nil {
		return b.sendMessage(withMenu(tgbotapi.NewMessage(chatID, "実施中のテストはありません。")))
	}
	snap := s.Snapshot()
	q, idx := s.Current()

	text := formatQuestion(questionView{
		Kind:      s.Kind(),
		Question:  q,
		Index:     idx,
		Total:     s.Len(),
		Answered:  s.AnsweredCount(),
		Flagged:   snap.Flagged[idx],
		Selected:  snap.Answers[idx],
		Remaining: s.Remaining(),
	})
	if feedback != "" {
		text = feedback + "\n\n" + text
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard(questionButtons(s.Kind(), len(q.Choices)))
	return b.sendMessage(msg)
}

func (b *Bot) handleQuizAction(chatID int64, action string) error {
	s := b.currentQuiz()
	if s == nil {
		return b.sendMessage(withMenu(tgbotapi.NewMessage(chatID, "実施中のテストはありません。")))
	}

	switch {
	case strings.HasPrefix(action, "ans:"):
		choice, err := strconv.Atoi(strings.TrimPrefix(action, "ans:"))
		if err != nil {
			return fmt.Errorf("invalid choice in callback data: %w", err)
		}
		q, idx := s.Current()
		correct, err := s.Answer(idx, choice)
		if errors.Is(err, session.ErrClosed) {
			return b.showQuestion(chatID, "")
		}
		if err != nil {
			return err
		}
		feedback := ""
		if s.Kind() == models.TestMini {
			feedback = formatFeedback(q, correct)
		}
		if idx == s.Len()-1 {
			return b.showQuestion(chatID, strings.TrimSpace(feedback+"\n最後の問題です。「終了」で採点します。"))
		}
		s.Move(1)
		return b.showQuestion(chatID, feedback)
	case action == "prev":
		s.Move(-1)
		return b.showQuestion(chatID, "")
	case action == "next":
		s.Move(1)
		return b.showQuestion(chatID, "")
	case action == "flag":
		if _, err := s.ToggleFlag(); err != nil && !errors.Is(err, session.ErrClosed) {
			return err
		}
		return b.showQuestion(chatID, "")
	case action == "finish":
		res, err := s.Finish()
		b.mu.Lock()
		if b.quiz == s {
			b.quiz = nil
		}
		b.mu.Unlock()
		if errors.Is(err, session.ErrClosed) {
			return b.handleStart(chatID)
		}
		if err != nil {
			return err
		}
		return b.sendMessage(withMenu(tgbotapi.NewMessage(chatID, formatResult(res))))
	case action == "quit":
		kind := s.Kind()
		b.abandonQuiz()
		text := "ミニテストを中断しました。回答済みの問題は記録されました。"
		if kind == models.TestFull {
			text = "模擬試験を中断しました。/resume で再開できます。"
		}
		return b.sendMessage(withMenu(tgbotapi.NewMessage(chatID, text)))
	default:
		return fmt.Errorf("unknown quiz action %q", action)
	}
}

// handleAddCard adds a flashcard from "/add term | definition | chapter"
func (b *Bot) handleAddCard(chatID int64, args string) error {
	parts := strings.Split(args, "|")
	if len(parts) != 3 {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "使い方: /add 用語 | 説明 | 章番号または章名"))
	}
	term := strings.TrimSpace(parts[0])
	definition := strings.TrimSpace(parts[1])
	chapter := strings.TrimSpace(parts[2])
	if ch, ok := resolveChapter(chapter, b.stores.Flashcards.Chapters()); ok {
		chapter = ch
	}
	if term == "" || definition == "" || chapter == "" {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "用語・説明・章はすべて必要です。"))
	}

	card := b.stores.Flashcards.AddFlashcard(term, definition, chapter)
	return b.sendMessage(withMenu(tgbotapi.NewMessage(chatID, fmt.Sprintf("✅ カードを追加しました（#%d %s）", card.ID, card.Term))))
}

func (b *Bot) handleNotifyCommand(chatID int64, args string) error {
	settings := b.stores.Notifications
	var err error

	switch strings.ToLower(args) {
	case "":
	case "on":
		err = settings.SetEnabled(true)
	case "off":
		err = settings.SetEnabled(false)
	default:
		err = settings.SetTime(args)
	}
	if err != nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "時刻は HH:MM 形式で指定してください（例: /notify 21:00）。"))
	}

	msg := tgbotapi.NewMessage(chatID, formatNotificationSettings(settings.Get()))
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "🔔 オン/オフ切替", CallbackData: callbackNotifyToggle}},
		{{Text: "⬅️ メニュー", CallbackData: "menu"}},
	})
	return b.sendMessage(msg)
}

func (b *Bot) handleNotifyToggle(chatID int64) error {
	if _, err := b.stores.Notifications.Toggle(); err != nil {
		return err
	}
	return b.handleNotifyCommand(chatID, "")
}

func (b *Bot) handleReset(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "⚠️ すべての学習データ（カードの復習状況・テスト履歴・中断した試験）を削除します。よろしいですか？")
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "削除する", CallbackData: callbackResetConfirm}, {Text: "キャンセル", CallbackData: callbackCancelAction}},
	})
	return b.sendMessage(msg)
}

func (b *Bot) handleResetConfirm(chatID int64) error {
	b.abandonQuiz()
	b.mu.Lock()
	b.cards = nil
	b.mu.Unlock()

	b.stores.Flashcards.ResetAll()
	b.stores.Progress.ResetAll()
	b.stores.Questions.ClearTestProgress()
	b.log.Info("all progress reset", "chat_id", chatID)
	return b.sendMessage(withMenu(tgbotapi.NewMessage(chatID, "リセットが完了しました。")))
}

// splitCallback splits "action:arg" callback data
func splitCallback(data string) (action, arg string) {
	if i := strings.Index(data, ":"); i >= 0 {
		return data[:i], data[i+1:]
	}
	return data, ""
}

// resolveChapter accepts a 1-based chapter number, a full chapter name or a unique prefix
func resolveChapter(arg string, chapters []string) (string, bool) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", false
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n >= 1 && n <= len(chapters) {
			return chapters[n-1], true
		}
		return "", false
	}
	var match string
	for _, ch := range chapters {
		if ch == arg {
			return ch, true
		}
		if strings.HasPrefix(ch, arg) {
			if match != "" {
				return "", false
			}
			match = ch
		}
	}
	return match, match != ""
}
