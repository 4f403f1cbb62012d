package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/passdrill/internal/logger"
	"github.com/example/passdrill/internal/persist"
	"github.com/example/passdrill/pkg/models"
)

type recordingSink struct {
	results []models.TestResult
	err     error
}

func (r *recordingSink) Archive(_ context.Context, result models.TestResult) error {
	r.results = append(r.results, result)
	return r.err
}

func TestStoreRecordAndRestore(t *testing.T) {
	storage := persist.NewMemoryStorage()
	now := day(2024, 5, 10)
	clock := func() time.Time { return now }
	sink := &recordingSink{}

	s := NewStore(storage, logger.Nop(), WithClock(clock), WithResultSink(sink))
	s.RecordSession(SessionRecord{
		Answered:      answers("ch1", true, false),
		Kind:          models.TestFull,
		Score:         intPtr(50),
		ChapterScores: map[string]int{"ch1": 50},
	})
	s.RecordSession(SessionRecord{Kind: models.TestMini})

	assert.Equal(t, 2, s.TodayAnsweredCount())
	avg, ok := s.AverageRecentScore()
	require.True(t, ok)
	assert.Equal(t, 50, avg)
	assert.Equal(t, map[string]int{"ch1": 50}, s.AverageRecentChapterScores())
	assert.Equal(t, map[int]bool{1: true}, s.EverCorrect())
	assert.Equal(t, 1, s.MasteredQuestionCount([]int{1, 2}))
	assert.Equal(t, 25, s.CombinedMasteryRate([]models.Flashcard{{ID: 1}, {ID: 2}}, 2))

	// Only sessions that appended a result reach the sink.
	require.Len(t, sink.results, 1)
	assert.Equal(t, 50, sink.results[0].Score)

	restored := NewStore(storage, logger.Nop(), WithClock(clock))
	restored.Restore(context.Background())
	assert.Equal(t, s.Snapshot(), restored.Snapshot())
}

func TestStoreReset(t *testing.T) {
	storage := persist.NewMemoryStorage()
	now := day(2024, 5, 10)
	s := NewStore(storage, logger.Nop(), WithClock(func() time.Time { return now }))
	s.RecordSession(SessionRecord{Answered: answers("ch1", true), Kind: models.TestMini})

	now = day(2024, 7, 2)
	s.ResetAll()

	snap := s.Snapshot()
	assert.Equal(t, NewState(now), snap)
	assert.Equal(t, "2024-07", snap.CurrentMonth)
}

func TestStoreStorageFailures(t *testing.T) {
	storage := persist.NewMemoryStorage()
	storage.FailWrites = true
	sink := &recordingSink{err: errors.New("db down")}
	now := day(2024, 5, 10)

	s := NewStore(storage, logger.Nop(), WithClock(func() time.Time { return now }), WithResultSink(sink))
	s.RecordSession(SessionRecord{Answered: answers("ch1", true), Kind: models.TestMini})
	assert.Equal(t, 1, s.TodayAnsweredCount())

	storage.FailReads = true
	restored := NewStore(storage, logger.Nop(), WithClock(func() time.Time { return now }))
	restored.Restore(context.Background())
	assert.Equal(t, NewState(now), restored.Snapshot())
}

func TestStoreRestoreFillsDefaults(t *testing.T) {
	storage := persist.NewMemoryStorage()
	require.NoError(t, storage.Set(context.Background(), persist.ProgressKey, []byte(`{"progress":40}`)))

	now := day(2024, 5, 10)
	s := NewStore(storage, logger.Nop(), WithClock(func() time.Time { return now }))
	s.Restore(context.Background())

	snap := s.Snapshot()
	assert.Equal(t, 40, snap.Progress)
	assert.Equal(t, "2024-05", snap.CurrentMonth)
	assert.NotNil(t, snap.QuestionMastery)

	s.RecordSession(SessionRecord{Answered: answers("ch1", true), Kind: models.TestMini})
	assert.Equal(t, 100, s.Snapshot().Progress)
}
