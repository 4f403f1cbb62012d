package models

// ProgressState is the persisted state of the progress aggregator
type ProgressState struct {
	Progress             int            `json:"progress"` // Mean of ChapterProgress, 0-100
	LastScore            *int           `json:"last_score"`
	ChapterProgress      map[string]int `json:"chapter_progress"`
	MonthlyLearningDays  int            `json:"monthly_learning_days"`
	LastStudyDate        string         `json:"last_study_date,omitempty"` // empty until the first session
	CurrentMonth         string         `json:"current_month"`             // YYYY-MM
	TestHistory          []TestResult   `json:"test_history"`
	QuestionMastery      map[int][]bool `json:"question_mastery"` // at most the 2 latest outcomes
	QuestionsEverCorrect map[int]bool   `json:"questions_ever_correct"`
}

// Clone returns a deep copy of the state.
func (s ProgressState) Clone() ProgressState {
	out := s
	if s.LastScore != nil {
		v := *s.LastScore
		out.LastScore = &v
	}
	out.ChapterProgress = make(map[string]int, len(s.ChapterProgress))
	for k, v := range s.ChapterProgress {
		out.ChapterProgress[k] = v
	}
	out.TestHistory = make([]TestResult, len(s.TestHistory))
	for i, r := range s.TestHistory {
		scores := make(map[string]int, len(r.ChapterScores))
		for k, v := range r.ChapterScores {
			scores[k] = v
		}
		r.ChapterScores = scores
		out.TestHistory[i] = r
	}
	out.QuestionMastery = make(map[int][]bool, len(s.QuestionMastery))
	for k, v := range s.QuestionMastery {
		out.QuestionMastery[k] = append([]bool(nil), v...)
	}
	out.QuestionsEverCorrect = make(map[int]bool, len(s.QuestionsEverCorrect))
	for k, v := range s.QuestionsEverCorrect {
		out.QuestionsEverCorrect[k] = v
	}
	return out
}
