package flashcards

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/passdrill/internal/logger"
	"github.com/example/passdrill/internal/persist"
	"github.com/example/passdrill/internal/spaced_repetition"
	"github.com/example/passdrill/pkg/models"
)

var seedCards = []models.Flashcard{
	{ID: 1, Term: "AI", Definition: "artificial intelligence", Chapter: "ch1"},
	{ID: 2, Term: "ML", Definition: "machine learning", Chapter: "ch1"},
	{ID: 3, Term: "LLM", Definition: "large language model", Chapter: "ch2"},
	{ID: 4, Term: "RAG", Definition: "retrieval augmented generation", Chapter: "ch2"},
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestStore(t *testing.T, storage persist.Storage) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}
	s := New(seedCards, storage, logger.Nop(), WithClock(clock.Now))
	s.LoadCatalog()
	return s, clock
}

func TestFilterWithFallback(t *testing.T) {
	even := func(n int) bool { return n%2 == 0 }
	big := func(n int) bool { return n > 10 }
	small := func(n int) bool { return n < 3 }

	assert.Equal(t, []int{2, 4}, FilterWithFallback([]int{1, 2, 3, 4}, even, nil))
	assert.Equal(t, []int{1, 2}, FilterWithFallback([]int{1, 2, 3, 4}, big, small))
	assert.Equal(t, []int{1, 2, 3, 4}, FilterWithFallback([]int{1, 2, 3, 4}, big, nil))
	assert.Empty(t, FilterWithFallback([]int{}, even, nil))
}

func TestLoadCatalog(t *testing.T) {
	storage := persist.NewMemoryStorage()
	s, _ := newTestStore(t, storage)

	cards := s.All()
	require.Len(t, cards, 4)
	for _, c := range cards {
		assert.Nil(t, c.Review)
	}

	_, ok := s.ApplyReview(1, spaced_repetition.QualityPerfect)
	require.True(t, ok)

	// A second load is a no-op for known ids.
	s.LoadCatalog()
	cards = s.All()
	require.Len(t, cards, 4)
	require.NotNil(t, cards[0].Review)
	assert.Equal(t, 1, cards[0].Review.Repetitions)

	// New seed entries are appended without touching existing progress.
	grown := append(append([]models.Flashcard(nil), seedCards...), models.Flashcard{ID: 5, Term: "GPU", Chapter: "ch3"})
	reloaded := New(grown, storage, logger.Nop(), WithClock(s.now))
	reloaded.Restore(context.Background())
	reloaded.LoadCatalog()

	cards = reloaded.All()
	require.Len(t, cards, 5)
	assert.Equal(t, 5, cards[4].ID)
	require.NotNil(t, cards[0].Review)
	assert.Equal(t, 1, cards[0].Review.Repetitions)
}

func TestDueCardsNeverEmpty(t *testing.T) {
	s, _ := newTestStore(t, persist.NewMemoryStorage())

	assert.Len(t, s.DueCards(), 4)

	for _, c := range seedCards {
		s.ApplyReview(c.ID, spaced_repetition.QualityPerfect)
	}
	assert.Equal(t, 0, s.StrictDueCount(""))
	// Nothing is due, so the whole collection comes back.
	assert.Len(t, s.DueCards(), 4)
}

func TestDueCardsForChapter(t *testing.T) {
	s, clock := newTestStore(t, persist.NewMemoryStorage())

	s.ApplyReview(1, spaced_repetition.QualityPerfect)

	due := s.DueCardsForChapter("ch1")
	require.Len(t, due, 1)
	assert.Equal(t, 2, due[0].ID)
	assert.Equal(t, 1, s.StrictDueCount("ch1"))
	assert.Equal(t, 3, s.StrictDueCount(""))

	s.ApplyReview(2, spaced_repetition.QualityPerfect)
	assert.Equal(t, 0, s.StrictDueCount("ch1"))
	// Fallback to every card of the chapter.
	due = s.DueCardsForChapter("ch1")
	require.Len(t, due, 2)
	assert.Equal(t, 1, due[0].ID)

	assert.Empty(t, s.DueCardsForChapter("missing"))

	// Interval 1 means due again the next day.
	clock.t = clock.t.AddDate(0, 0, 1)
	assert.Equal(t, 2, s.StrictDueCount("ch1"))
}

func TestStudySet(t *testing.T) {
	s, _ := newTestStore(t, persist.NewMemoryStorage())

	cards, err := s.StudySet("", 3)
	require.NoError(t, err)
	assert.Len(t, cards, 3)

	cards, err = s.StudySet("ch2", 0)
	require.NoError(t, err)
	assert.Len(t, cards, 2)

	_, err = s.StudySet("missing", 10)
	assert.True(t, errors.Is(err, ErrNoCards))

	empty := New(nil, persist.NewMemoryStorage(), logger.Nop())
	_, err = empty.StudySet("", 10)
	assert.ErrorIs(t, err, ErrNoCards)
	assert.False(t, empty.HasCards())
}

func TestApplyReview(t *testing.T) {
	s, clock := newTestStore(t, persist.NewMemoryStorage())

	card, ok := s.ApplyReview(3, spaced_repetition.QualityPerfect)
	require.True(t, ok)
	card, ok = s.ApplyReview(3, spaced_repetition.QualityPerfect)
	require.True(t, ok)
	require.NotNil(t, card.Review)
	assert.Equal(t, 2, card.Review.Repetitions)
	assert.Equal(t, 6, card.Review.Interval)
	assert.Equal(t, clock.t.AddDate(0, 0, 6), card.Review.NextReview)

	card, _ = s.ApplyReview(3, spaced_repetition.QualityIncorrect)
	assert.Equal(t, 0, card.Review.Repetitions)
	assert.Equal(t, 1, card.Review.Interval)
	assert.GreaterOrEqual(t, card.Review.EaseFactor, 1.3)

	_, ok = s.ApplyReview(999, spaced_repetition.QualityPerfect)
	assert.False(t, ok)
	assert.Equal(t, 1, s.TodayStudiedCount())
}

func TestStudiedToday(t *testing.T) {
	s, clock := newTestStore(t, persist.NewMemoryStorage())

	s.ApplyReview(1, spaced_repetition.QualityPerfect)
	s.ApplyReview(1, spaced_repetition.QualityIncorrect)
	s.ApplyReview(2, spaced_repetition.QualityPerfect)
	assert.Equal(t, 2, s.TodayStudiedCount())

	clock.t = clock.t.AddDate(0, 0, 1)
	assert.Equal(t, 0, s.TodayStudiedCount())

	s.ApplyReview(3, spaced_repetition.QualityPerfect)
	assert.Equal(t, 1, s.TodayStudiedCount())
}

func TestMasteryAndReset(t *testing.T) {
	s, _ := newTestStore(t, persist.NewMemoryStorage())

	s.ApplyReview(1, spaced_repetition.QualityPerfect)
	s.ApplyReview(2, spaced_repetition.QualityPerfect)
	s.ApplyReview(3, spaced_repetition.QualityIncorrect)
	assert.Equal(t, 2, s.TotalMastered())

	s.ResetAll()
	assert.Equal(t, 0, s.TotalMastered())
	assert.Equal(t, 0, s.TodayStudiedCount())
	assert.Len(t, s.All(), 4)
	assert.Equal(t, 4, s.StrictDueCount(""))
}

func TestAddFlashcardAndChapters(t *testing.T) {
	s, _ := newTestStore(t, persist.NewMemoryStorage())

	card := s.AddFlashcard("GPU", "graphics processing unit", "ch3")
	assert.Equal(t, 5, card.ID)
	assert.Nil(t, card.Review)
	assert.Equal(t, []string{"ch1", "ch2", "ch3"}, s.Chapters())
}

func TestPersistence(t *testing.T) {
	storage := persist.NewMemoryStorage()
	s, clock := newTestStore(t, storage)
	s.ApplyReview(4, spaced_repetition.QualityPerfect)

	restored := New(seedCards, storage, logger.Nop(), WithClock(clock.Now))
	restored.Restore(context.Background())
	assert.Equal(t, 1, restored.TotalMastered())
	assert.Equal(t, 1, restored.TodayStudiedCount())
}

func TestStorageFailures(t *testing.T) {
	storage := persist.NewMemoryStorage()
	storage.FailWrites = true
	s, _ := newTestStore(t, storage)

	// Saves fail but the in-memory state stays authoritative.
	_, ok := s.ApplyReview(1, spaced_repetition.QualityPerfect)
	require.True(t, ok)
	assert.Equal(t, 1, s.TotalMastered())

	storage.FailReads = true
	restored := New(seedCards, storage, logger.Nop())
	restored.Restore(context.Background())
	assert.False(t, restored.HasCards())
	restored.LoadCatalog()
	assert.Len(t, restored.All(), 4)
}

func TestReturnedCardsAreCopies(t *testing.T) {
	s, _ := newTestStore(t, persist.NewMemoryStorage())
	s.ApplyReview(1, spaced_repetition.QualityPerfect)

	cards := s.All()
	cards[0].Review.Repetitions = 42
	cards[1].Term = "changed"

	fresh := s.All()
	assert.Equal(t, 1, fresh[0].Review.Repetitions)
	assert.Equal(t, "ML", fresh[1].Term)
}
