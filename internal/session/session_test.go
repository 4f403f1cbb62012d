package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/passdrill/internal/progress"
	"github.com/example/passdrill/pkg/models"
)

type fakeRecorder struct {
	mu      sync.Mutex
	records []progress.SessionRecord
}

func (f *fakeRecorder) RecordSession(rec progress.SessionRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
}

func (f *fakeRecorder) Records() []progress.SessionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]progress.SessionRecord(nil), f.records...)
}

type fakeSnapshots struct {
	mu      sync.Mutex
	saved   *models.TestProgress
	cleared int
}

func (f *fakeSnapshots) SaveTestProgress(p models.TestProgress) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = &p
}

func (f *fakeSnapshots) ClearTestProgress() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = nil
	f.cleared++
}

func testQuestions() []models.Question {
	return []models.Question{
		{ID: 1, Chapter: "ch1", Choices: []string{"a", "b"}, AnswerIndex: 0},
		{ID: 2, Chapter: "ch1", Choices: []string{"a", "b"}, AnswerIndex: 1},
		{ID: 3, Chapter: "ch2", Choices: []string{"a", "b"}, AnswerIndex: 0},
		{ID: 4, Chapter: "ch2", Choices: []string{"a", "b"}, AnswerIndex: 1},
	}
}

func TestStartWithoutQuestions(t *testing.T) {
	_, err := Start(models.TestMini, nil, time.Minute, &fakeRecorder{}, nil)
	assert.ErrorIs(t, err, ErrNoQuestions)

	_, err = Resume(models.TestProgress{}, &fakeRecorder{}, nil)
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestFullTestFinish(t *testing.T) {
	rec := &fakeRecorder{}
	snaps := &fakeSnapshots{}
	s, err := Start(models.TestFull, testQuestions(), time.Hour, rec, snaps)
	require.NoError(t, err)

	correct, err := s.Answer(0, 0)
	require.NoError(t, err)
	assert.True(t, correct)
	correct, err = s.Answer(1, 0)
	require.NoError(t, err)
	assert.False(t, correct)
	_, err = s.Answer(2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, s.AnsweredCount())

	res, err := s.Finish()
	require.NoError(t, err)
	assert.Equal(t, 50, res.Score)
	assert.Equal(t, 2, res.Correct)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 3, res.AnsweredCount)
	assert.Equal(t, map[string]int{"ch1": 50, "ch2": 50}, res.ChapterScores)

	records := rec.Records()
	require.Len(t, records, 1)
	assert.Len(t, records[0].Answered, 4)
	require.NotNil(t, records[0].Score)
	assert.Equal(t, 50, *records[0].Score)
	assert.Equal(t, res.ChapterScores, records[0].ChapterScores)
	assert.Equal(t, 1, snaps.cleared)

	_, err = s.Finish()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Answer(3, 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMiniTestFinishRecordsOutcomesOnly(t *testing.T) {
	rec := &fakeRecorder{}
	s, err := Start(models.TestMini, testQuestions(), time.Minute, rec, nil)
	require.NoError(t, err)
	_, err = s.Answer(0, 0)
	require.NoError(t, err)

	res, err := s.Finish()
	require.NoError(t, err)
	assert.Equal(t, 25, res.Score)

	records := rec.Records()
	require.Len(t, records, 1)
	assert.Equal(t, models.TestMini, records[0].Kind)
	assert.Nil(t, records[0].Score)
	assert.Nil(t, records[0].ChapterScores)
	assert.Len(t, records[0].Answered, 4)
}

func TestAnswerValidation(t *testing.T) {
	s, err := Start(models.TestMini, testQuestions(), time.Minute, &fakeRecorder{}, nil)
	require.NoError(t, err)
	defer s.Abandon()

	_, err = s.Answer(4, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = s.Answer(0, 2)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestNavigationAndFlags(t *testing.T) {
	s, err := Start(models.TestFull, testQuestions(), time.Hour, &fakeRecorder{}, &fakeSnapshots{})
	require.NoError(t, err)
	defer s.Abandon()

	assert.Equal(t, 0, s.Move(-1))
	assert.Equal(t, 2, s.Move(2))
	assert.Equal(t, 3, s.Move(5))

	flagged, err := s.ToggleFlag()
	require.NoError(t, err)
	assert.True(t, flagged)
	assert.Equal(t, []int{3}, s.Flagged())

	s.Move(-3)
	q, idx := s.Current()
	assert.Equal(t, 0, idx)
	assert.Equal(t, 1, q.ID)
}

func TestMiniTestAbandon(t *testing.T) {
	rec := &fakeRecorder{}
	s, err := Start(models.TestMini, testQuestions(), time.Minute, rec, nil)
	require.NoError(t, err)
	s.Abandon()
	assert.Empty(t, rec.Records())
	assert.True(t, s.Closed())

	s, err = Start(models.TestMini, testQuestions(), time.Minute, rec, nil)
	require.NoError(t, err)
	_, err = s.Answer(1, 1)
	require.NoError(t, err)
	s.Abandon()

	records := rec.Records()
	require.Len(t, records, 1)
	assert.Equal(t, []models.AnsweredQuestion{{ID: 2, Chapter: "ch1", Correct: true}}, records[0].Answered)
}

func TestFullTestAbandonAndResume(t *testing.T) {
	rec := &fakeRecorder{}
	snaps := &fakeSnapshots{}
	s, err := Start(models.TestFull, testQuestions(), time.Hour, rec, snaps)
	require.NoError(t, err)
	_, err = s.Answer(0, 0)
	require.NoError(t, err)
	s.Move(1)
	_, err = s.ToggleFlag()
	require.NoError(t, err)
	s.Abandon()

	assert.Empty(t, rec.Records())
	require.NotNil(t, snaps.saved)
	snapshot := *snaps.saved
	assert.Equal(t, 1, snapshot.CurrentIndex)
	assert.Equal(t, []bool{false, true, false, false}, snapshot.Flagged)
	require.NotNil(t, snapshot.Answers[0])
	assert.Equal(t, 0, *snapshot.Answers[0])
	assert.InDelta(t, 3600, snapshot.TimeRemaining, 5)

	resumed, err := Resume(snapshot, rec, snaps)
	require.NoError(t, err)
	assert.Equal(t, models.TestFull, resumed.Kind())
	_, idx := resumed.Current()
	assert.Equal(t, 1, idx)
	assert.Equal(t, 1, resumed.AnsweredCount())
	assert.Equal(t, []int{1}, resumed.Flagged())

	res, err := resumed.Finish()
	require.NoError(t, err)
	assert.Equal(t, 25, res.Score)
	assert.Nil(t, snaps.saved)
}

func TestTimeLimitForcesFinish(t *testing.T) {
	rec := &fakeRecorder{}
	expired := make(chan Result, 1)
	var expiredSession *Session
	s, err := Start(models.TestFull, testQuestions(), 3*time.Second, rec, &fakeSnapshots{},
		WithTick(time.Millisecond),
		WithExpireHandler(func(got *Session, r Result) {
			expiredSession = got
			expired <- r
		}),
	)
	require.NoError(t, err)
	_, err = s.Answer(0, 0)
	require.NoError(t, err)

	select {
	case res := <-expired:
		assert.True(t, res.TimedOut)
		assert.Equal(t, 25, res.Score)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not expire")
	}
	assert.Same(t, s, expiredSession)
	assert.True(t, s.Closed())
	assert.Equal(t, time.Duration(0), s.Remaining())
	assert.Len(t, rec.Records(), 1)
}

func TestAbandonStopsTimer(t *testing.T) {
	rec := &fakeRecorder{}
	s, err := Start(models.TestMini, testQuestions(), 5*time.Second, rec, nil,
		WithTick(time.Millisecond),
		WithExpireHandler(func(*Session, Result) { t.Error("expired after abandon") }),
	)
	require.NoError(t, err)
	s.Abandon()

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.Records())
}

func TestExpiryAfterAbandonIsIgnored(t *testing.T) {
	rec := &fakeRecorder{}
	called := false
	s, err := Start(models.TestMini, testQuestions(), 5*time.Second, rec, nil,
		WithTick(time.Hour),
		WithExpireHandler(func(*Session, Result) { called = true }),
	)
	require.NoError(t, err)
	_, err = s.Answer(0, 0)
	require.NoError(t, err)
	s.Abandon()
	require.Len(t, rec.Records(), 1)

	// The countdown may still deliver an expiry that raced with Stop.
	s.expire()
	assert.False(t, called)
	assert.Len(t, rec.Records(), 1)
}

func TestCountdown(t *testing.T) {
	fired := make(chan struct{}, 2)
	c := StartCountdown(2, time.Millisecond, func() { fired <- struct{}{} })

	require.Eventually(t, func() bool { return len(fired) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, c.Remaining())
	c.Stop()
	c.Stop()

	stopped := StartCountdown(1000, time.Millisecond, func() { fired <- struct{}{} })
	stopped.Stop()
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, fired, 1)
}
