package bot

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/passdrill/internal/session"
	"github.com/example/passdrill/pkg/models"
)

// statsView is everything /stats shows
type statsView struct {
	Progress          int
	MasteryRate       int
	MasteredCards     int
	TotalCards        int
	MasteredQuestions int
	TotalQuestions    int
	LearningDays      int
	LastScore         *int
	RecentAverage     int
	HasRecentAverage  bool
	TodayAnswered     int
	TodayCards        int
	ChapterProgress   map[string]int
	RecentChapters    map[string]int
	Chapters          []string                // display order
	TestCounts        map[models.TestKind]int // nil when no archive is kept
}

func formatStats(v statsView) string {
	var sb strings.Builder
	sb.WriteString("📊 学習状況\n\n")
	fmt.Fprintf(&sb, "全体の進捗: %d%%\n", v.Progress)
	fmt.Fprintf(&sb, "習得率: %d%%（カード %d/%d・問題 %d/%d）\n",
		v.MasteryRate, v.MasteredCards, v.TotalCards, v.MasteredQuestions, v.TotalQuestions)
	fmt.Fprintf(&sb, "今月の学習日数: %d日\n", v.LearningDays)
	if v.HasRecentAverage {
		fmt.Fprintf(&sb, "模擬試験の平均（直近3回）: %d%%\n", v.RecentAverage)
	} else {
		sb.WriteString("模擬試験の平均: まだ受験していません\n")
	}
	if v.LastScore != nil {
		fmt.Fprintf(&sb, "前回のスコア: %d%%\n", *v.LastScore)
	}
	fmt.Fprintf(&sb, "今日の回答数: %d問・カード %d枚\n", v.TodayAnswered, v.TodayCards)
	if v.TestCounts != nil {
		fmt.Fprintf(&sb, "受験回数: 模擬試験 %d回・ミニテスト %d回\n", v.TestCounts[models.TestFull], v.TestCounts[models.TestMini])
	}

	chapters := orderedChapters(v.Chapters, v.ChapterProgress, v.RecentChapters)
	if len(chapters) > 0 {
		sb.WriteString("\n分野別:\n")
	}
	for _, ch := range chapters {
		score, ok := v.ChapterProgress[ch]
		line := "  " + ch + ": "
		if ok {
			line += fmt.Sprintf("%d%%", score)
		} else {
			line += "-"
		}
		if recent, ok := v.RecentChapters[ch]; ok {
			line += fmt.Sprintf("（直近平均 %d%%）", recent)
		}
		sb.WriteString(line + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatHistory lists archived tests, newest first
func formatHistory(results []models.TestResult) string {
	if len(results) == 0 {
		return "🗂 テスト履歴はまだありません。"
	}
	var sb strings.Builder
	sb.WriteString("🗂 最近のテスト結果\n")
	for _, r := range results {
		// Mini tests carry no overall score
		if r.Type == models.TestFull {
			fmt.Fprintf(&sb, "\n%s 模擬試験: %d%%（%d問回答）", r.Date, r.Score, r.AnsweredCount)
		} else {
			fmt.Fprintf(&sb, "\n%s ミニテスト: %d問回答", r.Date, r.AnsweredCount)
		}
	}
	return sb.String()
}

// orderedChapters lists the known chapters first, then any others found in the maps sorted by name
func orderedChapters(known []string, maps ...map[string]int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ch := range known {
		if seen[ch] {
			continue
		}
		seen[ch] = true
		out = append(out, ch)
	}
	var extra []string
	for _, m := range maps {
		for ch := range m {
			if !seen[ch] {
				seen[ch] = true
				extra = append(extra, ch)
			}
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// questionView is one quiz question as shown to the user
type questionView struct {
	Kind      models.TestKind
	Question  models.Question
	Index     int
	Total     int
	Answered  int
	Flagged   bool
	Selected  *int
	Remaining time.Duration
}

func formatQuestion(v questionView) string {
	var sb strings.Builder
	title := "📝 ミニテスト"
	if v.Kind == models.TestFull {
		title = "🧪 模擬試験"
	}
	fmt.Fprintf(&sb, "%s 問題 %d/%d", title, v.Index+1, v.Total)
	if v.Flagged {
		sb.WriteString(" 🚩")
	}
	fmt.Fprintf(&sb, "\n[%s]\n\n%s\n\n", v.Question.Chapter, v.Question.Text)
	for i, choice := range v.Question.Choices {
		mark := "  "
		if v.Selected != nil && *v.Selected == i {
			mark = "👉"
		}
		fmt.Fprintf(&sb, "%s%d. %s\n", mark, i+1, choice)
	}
	fmt.Fprintf(&sb, "\n⏱ 残り %s・回答済み %d/%d", formatDuration(v.Remaining), v.Answered, v.Total)
	return sb.String()
}

func questionButtons(kind models.TestKind, choices int) [][]MenuButton {
	var answers []MenuButton
	for i := 0; i < choices; i++ {
		answers = append(answers, MenuButton{Text: fmt.Sprintf("%d", i+1), CallbackData: fmt.Sprintf("q:ans:%d", i)})
	}
	nav := []MenuButton{{Text: "◀️", CallbackData: "q:prev"}}
	if kind == models.TestFull {
		nav = append(nav, MenuButton{Text: "🚩", CallbackData: "q:flag"})
	}
	nav = append(nav, MenuButton{Text: "▶️", CallbackData: "q:next"})
	return [][]MenuButton{
		answers,
		nav,
		{{Text: "✅ 終了", CallbackData: "q:finish"}, {Text: "⏸ 中断", CallbackData: "q:quit"}},
	}
}

func formatFeedback(q models.Question, correct bool) string {
	text := "⭕ 正解！"
	if !correct {
		text = fmt.Sprintf("❌ 不正解。正解は %d. %s", q.AnswerIndex+1, q.Choices[q.AnswerIndex])
	}
	if q.Explanation != "" {
		text += "\n💡 " + q.Explanation
	}
	return text
}

func formatResult(res session.Result) string {
	var sb strings.Builder
	if res.TimedOut {
		sb.WriteString("⏰ 時間切れです。\n")
	}
	title := "ミニテスト"
	if res.Kind == models.TestFull {
		title = "模擬試験"
	}
	fmt.Fprintf(&sb, "🏁 %s結果\n\nスコア: %d%%\n正解: %d/%d（回答 %d問）\n", title, res.Score, res.Correct, res.Total, res.AnsweredCount)

	chapters := orderedChapters(nil, res.ChapterScores)
	if len(chapters) > 1 {
		sb.WriteString("\n分野別:\n")
		for _, ch := range chapters {
			fmt.Fprintf(&sb, "  %s: %d%%\n", ch, res.ChapterScores[ch])
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatCard(card models.Flashcard, idx, total int, revealed bool) string {
	text := fmt.Sprintf("🃏 %d/%d [%s]\n\n%s", idx+1, total, card.Chapter, card.Term)
	if revealed {
		text += "\n\n" + card.Definition
	}
	return text
}

func formatChapterList(chapters []string) string {
	lines := make([]string, len(chapters))
	for i, ch := range chapters {
		lines[i] = fmt.Sprintf("%d. %s", i+1, ch)
	}
	return strings.Join(lines, "\n")
}

func formatNotificationSettings(s models.NotificationSettings) string {
	state := "オフ"
	if s.Enabled {
		state = "オン"
	}
	return fmt.Sprintf("🔔 通知設定\n\n毎日の学習リマインダー: %s\n通知時刻: %s\n\n/notify HH:MM で時刻を変更できます。", state, s.Time)
}

func reminderText(dueCards int) string {
	text := "📚 今日の学習を始めましょう！10問だけ解いて実力アップ！"
	if dueCards > 0 {
		text += fmt.Sprintf("\n復習予定のカードが %d枚あります。", dueCards)
	}
	return text
}

// formatDuration renders d as MM:SS, or H:MM:SS from one hour up
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
