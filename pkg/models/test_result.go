package models

// TestKind distinguishes full exams from short practice tests
type TestKind string

const (
	// TestFull is the full-length timed exam
	TestFull TestKind = "full"
	// TestMini is a short practice test, optionally limited to one chapter
	TestMini TestKind = "mini"
)

// TestResult is one entry of the append-only test history
type TestResult struct {
	Date          string         `json:"date"` // Calendar day, YYYY-MM-DD
	Score         int            `json:"score"` // 0-100
	Type          TestKind       `json:"type"`
	ChapterScores map[string]int `json:"chapter_scores"`
	AnsweredCount int            `json:"answered_count"`
}

// TestProgress is the resumable state of an interrupted full test
type TestProgress struct {
	Questions     []Question `json:"questions"`
	Answers       []*int     `json:"answers"` // nil slot = not answered yet
	Flagged       []bool     `json:"flagged"`
	TimeRemaining int        `json:"time_remaining"` // seconds
	CurrentIndex  int        `json:"current_index"`
}

// Clone returns a deep copy of the snapshot.
func (p TestProgress) Clone() TestProgress {
	out := p
	out.Questions = make([]Question, len(p.Questions))
	for i, q := range p.Questions {
		out.Questions[i] = q.Clone()
	}
	out.Answers = make([]*int, len(p.Answers))
	for i, a := range p.Answers {
		if a != nil {
			v := *a
			out.Answers[i] = &v
		}
	}
	out.Flagged = append([]bool(nil), p.Flagged...)
	return out
}
