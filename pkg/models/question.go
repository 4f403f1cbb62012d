package models

// Question is a multiple-choice quiz question from the static catalog
type Question struct {
	ID          int      `json:"id"`
	Chapter     string   `json:"chapter"`
	Text        string   `json:"text"`
	Choices     []string `json:"choices"`
	AnswerIndex int      `json:"answer_index"`
	Explanation string   `json:"explanation,omitempty"`
}

// IsCorrect reports whether choice is the right answer.
func (q Question) IsCorrect(choice int) bool {
	return choice == q.AnswerIndex
}

// AnsweredQuestion is the outcome of one question in a finished session
type AnsweredQuestion struct {
	ID      int    `json:"id"`
	Chapter string `json:"chapter"`
	Correct bool   `json:"correct"`
}

// Clone returns a copy that shares no memory with q.
func (q Question) Clone() Question {
	out := q
	out.Choices = append([]string(nil), q.Choices...)
	return out
}
