// Package progress aggregates session outcomes into chapter progress, test history,
// question mastery and the monthly study streak.
package progress

import (
	"time"

	"github.com/example/passdrill/internal/scoring"
	"github.com/example/passdrill/pkg/models"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"

	// masteryWindow is how many recent outcomes are kept per question.
	masteryWindow = 2
	// recentWindow is how many history entries the recent averages look at.
	recentWindow = 3
)

// SessionRecord is the outcome of one finished or abandoned quiz session.
type SessionRecord struct {
	Answered      []models.AnsweredQuestion
	Kind          models.TestKind
	Score         *int           // nil when the session produced no overall score
	ChapterScores map[string]int // nil when the session produced no chapter scores
}

// NewState returns an empty state for the month of now.
func NewState(now time.Time) models.ProgressState {
	return models.ProgressState{
		ChapterProgress:      map[string]int{},
		CurrentMonth:         now.Format(monthLayout),
		TestHistory:          []models.TestResult{},
		QuestionMastery:      map[int][]bool{},
		QuestionsEverCorrect: map[int]bool{},
	}
}

// Apply returns the state after recording rec at now. The input state is not modified.
func Apply(s models.ProgressState, rec SessionRecord, now time.Time) models.ProgressState {
	next := s.Clone()
	today := now.Format(dayLayout)

	// Month rollover runs before the streak increment, even for empty sessions.
	if month := now.Format(monthLayout); next.CurrentMonth != month {
		next.MonthlyLearningDays = 0
		next.CurrentMonth = month
	}

	if rec.Score != nil {
		score := *rec.Score
		next.LastScore = &score
	}

	if len(rec.Answered) == 0 {
		return next
	}

	result := models.TestResult{
		Date:          today,
		Type:          rec.Kind,
		AnsweredCount: len(rec.Answered),
		ChapterScores: map[string]int{},
	}
	if rec.Score != nil {
		result.Score = *rec.Score
	}
	for chapter, score := range rec.ChapterScores {
		result.ChapterScores[chapter] = score
	}
	next.TestHistory = append(next.TestHistory, result)

	for chapter, score := range ChapterScores(rec.Answered) {
		next.ChapterProgress[chapter] = score
	}
	values := make([]int, 0, len(next.ChapterProgress))
	for _, v := range next.ChapterProgress {
		values = append(values, v)
	}
	next.Progress = scoring.Mean(values)

	if next.LastStudyDate != today {
		next.MonthlyLearningDays++
		next.LastStudyDate = today
	}

	for _, a := range rec.Answered {
		history := append(next.QuestionMastery[a.ID], a.Correct)
		if len(history) > masteryWindow {
			history = history[len(history)-masteryWindow:]
		}
		next.QuestionMastery[a.ID] = history
		if a.Correct {
			next.QuestionsEverCorrect[a.ID] = true
		}
	}

	return next
}

// ChapterScores groups answers by chapter and returns round(100*correct/total) per chapter.
func ChapterScores(answered []models.AnsweredQuestion) map[string]int {
	correct := make(map[string]int)
	total := make(map[string]int)
	for _, a := range answered {
		total[a.Chapter]++
		if a.Correct {
			correct[a.Chapter]++
		}
	}
	scores := make(map[string]int, len(total))
	for chapter, n := range total {
		scores[chapter] = scoring.Percent(correct[chapter], n)
	}
	return scores
}

// AverageRecentScore averages the scores of the last three full tests. ok is false when no full
// test has been recorded.
func AverageRecentScore(s models.ProgressState) (avg int, ok bool) {
	var scores []int
	for i := len(s.TestHistory) - 1; i >= 0 && len(scores) < recentWindow; i-- {
		if s.TestHistory[i].Type == models.TestFull {
			scores = append(scores, s.TestHistory[i].Score)
		}
	}
	if len(scores) == 0 {
		return 0, false
	}
	return scoring.Mean(scores), true
}

// AverageRecentChapterScores averages each chapter's score over the last three history entries.
// Chapters without a score in those entries are omitted.
func AverageRecentChapterScores(s models.ProgressState) map[string]int {
	start := len(s.TestHistory) - recentWindow
	if start < 0 {
		start = 0
	}
	collected := make(map[string][]int)
	for _, r := range s.TestHistory[start:] {
		for chapter, score := range r.ChapterScores {
			collected[chapter] = append(collected[chapter], score)
		}
	}
	out := make(map[string]int, len(collected))
	for chapter, scores := range collected {
		out[chapter] = scoring.Mean(scores)
	}
	return out
}

// TodayAnsweredCount sums the answered counts of the history entries dated today.
func TodayAnsweredCount(s models.ProgressState, now time.Time) int {
	today := now.Format(dayLayout)
	n := 0
	for _, r := range s.TestHistory {
		if r.Date == today {
			n += r.AnsweredCount
		}
	}
	return n
}

// CombinedMasteryRate is the share of mastered items across questions and flashcards, 0-100.
func CombinedMasteryRate(s models.ProgressState, flashcards []models.Flashcard, totalQuestions int) int {
	mastered := len(s.QuestionsEverCorrect)
	for _, c := range flashcards {
		if c.IsMastered() {
			mastered++
		}
	}
	return scoring.Percent(mastered, totalQuestions+len(flashcards))
}

// MasteredQuestionCount counts the ever-correct questions among questionIDs.
func MasteredQuestionCount(s models.ProgressState, questionIDs []int) int {
	n := 0
	for _, id := range questionIDs {
		if s.QuestionsEverCorrect[id] {
			n++
		}
	}
	return n
}
