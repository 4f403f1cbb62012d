package progress

import (
	"context"
	"sync"
	"time"

	"github.com/example/passdrill/internal/logger"
	"github.com/example/passdrill/internal/persist"
	"github.com/example/passdrill/pkg/models"
)

const saveTimeout = 5 * time.Second

// ResultSink receives every test result appended to the history.
type ResultSink interface {
	Archive(ctx context.Context, result models.TestResult) error
}

// Store owns the progress state. All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	state   models.ProgressState
	storage persist.Storage
	sink    ResultSink
	log     *logger.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithResultSink archives recorded test results to sink.
func WithResultSink(sink ResultSink) Option {
	return func(s *Store) { s.sink = sink }
}

// NewStore creates a store holding an empty state.
func NewStore(storage persist.Storage, log *logger.Logger, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = NewState(s.now())
	return s
}

// Restore loads the persisted state. A missing or unreadable snapshot keeps the empty state.
func (s *Store) Restore(ctx context.Context) {
	var st models.ProgressState
	ok, err := persist.LoadJSON(ctx, s.storage, persist.ProgressKey, &st)
	if err != nil {
		s.log.Warn("failed to restore progress, starting empty", "error", err)
		return
	}
	if !ok {
		return
	}
	fillDefaults(&st, s.now())
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// RecordSession applies rec and persists the result.
func (s *Store) RecordSession(rec SessionRecord) {
	s.mu.Lock()
	prevLen := len(s.state.TestHistory)
	s.state = Apply(s.state, rec, s.now())
	var appended []models.TestResult
	if len(s.state.TestHistory) > prevLen {
		appended = append(appended, s.state.TestHistory[prevLen:]...)
	}
	s.saveLocked()
	s.mu.Unlock()

	if s.sink == nil {
		return
	}
	for _, r := range appended {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		if err := s.sink.Archive(ctx, r); err != nil {
			s.log.Warn("failed to archive test result", "error", err, "type", r.Type)
		}
		cancel()
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() models.ProgressState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// EverCorrect returns a copy of the ids answered correctly at least once.
func (s *Store) EverCorrect() map[int]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]bool, len(s.state.QuestionsEverCorrect))
	for id, v := range s.state.QuestionsEverCorrect {
		out[id] = v
	}
	return out
}

// AverageRecentScore averages the last three full-test scores.
func (s *Store) AverageRecentScore() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AverageRecentScore(s.state)
}

// AverageRecentChapterScores averages chapter scores over the last three tests.
func (s *Store) AverageRecentChapterScores() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AverageRecentChapterScores(s.state)
}

// TodayAnsweredCount returns how many questions were answered today.
func (s *Store) TodayAnsweredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return TodayAnsweredCount(s.state, s.now())
}

// CombinedMasteryRate joins question and flashcard mastery into one percentage.
func (s *Store) CombinedMasteryRate(flashcards []models.Flashcard, totalQuestions int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CombinedMasteryRate(s.state, flashcards, totalQuestions)
}

// MasteredQuestionCount counts ever-correct questions still present in the catalog.
func (s *Store) MasteredQuestionCount(questionIDs []int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MasteredQuestionCount(s.state, questionIDs)
}

// ResetAll discards all progress.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = NewState(s.now())
	s.saveLocked()
}

func (s *Store) saveLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := persist.SaveJSON(ctx, s.storage, persist.ProgressKey, s.state); err != nil {
		s.log.Warn("failed to save progress", "error", err)
	}
}

// fillDefaults replaces missing collections of a decoded state with empty ones.
func fillDefaults(st *models.ProgressState, now time.Time) {
	if st.ChapterProgress == nil {
		st.ChapterProgress = map[string]int{}
	}
	if st.TestHistory == nil {
		st.TestHistory = []models.TestResult{}
	}
	if st.QuestionMastery == nil {
		st.QuestionMastery = map[int][]bool{}
	}
	if st.QuestionsEverCorrect == nil {
		st.QuestionsEverCorrect = map[int]bool{}
	}
	if st.CurrentMonth == "" {
		st.CurrentMonth = now.Format(monthLayout)
	}
}
