package models

import "time"

// ReviewState holds the SM-2 scheduling fields of a card that has been reviewed at least once.
type ReviewState struct {
	NextReview  time.Time `json:"next_review"`
	Interval    int       `json:"interval"` // Current interval in days
	Repetitions int       `json:"repetitions"`
	EaseFactor  float64   `json:"ease_factor"`
}

// Flashcard is a term/definition pair belonging to a chapter
type Flashcard struct {
	ID         int          `json:"id"`
	Term       string       `json:"term"`
	Definition string       `json:"definition"`
	Chapter    string       `json:"chapter"`
	Review     *ReviewState `json:"review,omitempty"` // nil until the first review
}

// IsDue reports whether the card should be studied at now. Unreviewed cards are always due.
func (c Flashcard) IsDue(now time.Time) bool {
	return c.Review == nil || !c.Review.NextReview.After(now)
}

// Repetitions returns the consecutive successful reviews, 0 for unreviewed cards.
func (c Flashcard) Repetitions() int {
	if c.Review == nil {
		return 0
	}
	return c.Review.Repetitions
}

// IsMastered reports whether the card has been recalled successfully at least once.
func (c Flashcard) IsMastered() bool {
	return c.Repetitions() >= 1
}

// Clone returns a copy that shares no memory with c.
func (c Flashcard) Clone() Flashcard {
	out := c
	if c.Review != nil {
		r := *c.Review
		out.Review = &r
	}
	return out
}
