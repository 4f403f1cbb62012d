package spaced_repetition

import (
	"math"
	"time"

	"github.com/example/passdrill/pkg/models"
)

// Defaults applied to a card that has never been reviewed
const (
	DefaultInterval    = 1
	DefaultEaseFactor  = 2.5
	DefaultRepetitions = 0
)

// SM2 implements a simplified SuperMemo-2 algorithm with a binary pass/fail outcome
type SM2 struct {
	// Ответ засчитывается только при этом качестве
	PassQuality QualityResponse
	// Нижняя граница фактора легкости
	MinEaseFactor float64
	// Прибавка к фактору легкости при успешном ответе
	EaseBonus float64
	// Штраф к фактору легкости при ошибке
	EasePenalty float64
	// Интервалы для первых успешных повторений, дальше interval * easeFactor
	InitialIntervals []int
}

// NewSM2 создает новый экземпляр SM2 с настройками по умолчанию
func NewSM2() *SM2 {
	return &SM2{
		PassQuality:      QualityPerfect,
		MinEaseFactor:    1.3,
		EaseBonus:        0.1,
		EasePenalty:      0.2,
		InitialIntervals: []int{1, 6},
	}
}

// QualityResponse represents the quality of response in SM-2
type QualityResponse int

const (
	// Complete blackout, unable to recall
	QualityBlackout QualityResponse = 0
	// Incorrect response but remembered upon seeing the correct answer
	QualityIncorrect QualityResponse = 1
	// Incorrect response but the correct answer felt familiar
	QualityIncorrectFamiliar QualityResponse = 2
	// Correct response but required significant effort
	QualityCorrectDifficult QualityResponse = 3
	// Correct response after some hesitation
	QualityCorrectHesitation QualityResponse = 4
	// Perfect response with no hesitation
	QualityPerfect QualityResponse = 5
)

// Passed reports whether quality counts as a successful recall.
func (sm *SM2) Passed(quality QualityResponse) bool {
	return quality == sm.PassQuality
}

// Next returns the review state after a review with the given quality.
// prev is nil for a card that has never been reviewed; it is not modified.
func (sm *SM2) Next(prev *models.ReviewState, quality QualityResponse, now time.Time) models.ReviewState {
	repetitions := DefaultRepetitions
	interval := DefaultInterval
	easeFactor := DefaultEaseFactor
	if prev != nil {
		repetitions = prev.Repetitions
		interval = prev.Interval
		easeFactor = prev.EaseFactor
	}

	if sm.Passed(quality) {
		repetitions++
		if repetitions <= len(sm.InitialIntervals) {
			interval = sm.InitialIntervals[repetitions-1]
		} else {
			// The interval grows with the ease factor from before this review
			interval = int(math.Round(float64(interval) * easeFactor))
		}
		easeFactor = math.Max(sm.MinEaseFactor, easeFactor+sm.EaseBonus)
	} else {
		repetitions = 0
		interval = DefaultInterval
		easeFactor = math.Max(sm.MinEaseFactor, easeFactor-sm.EasePenalty)
	}

	return models.ReviewState{
		NextReview:  now.AddDate(0, 0, interval),
		Interval:    interval,
		Repetitions: repetitions,
		EaseFactor:  easeFactor,
	}
}
