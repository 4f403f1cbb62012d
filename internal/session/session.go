// Package session runs one timed quiz session over questions sampled from the bank.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/example/passdrill/internal/logger"
	"github.com/example/passdrill/internal/progress"
	"github.com/example/passdrill/internal/scoring"
	"github.com/example/passdrill/pkg/models"
)

var (
	// ErrNoQuestions is returned when a session is started without questions.
	ErrNoQuestions = errors.New("session: no questions")
	// ErrClosed is returned by operations on a finished or abandoned session.
	ErrClosed = errors.New("session: closed")
	// ErrOutOfRange is returned for a question or choice index that does not exist.
	ErrOutOfRange = errors.New("session: index out of range")
)

// Recorder receives the outcome of a session.
type Recorder interface {
	RecordSession(rec progress.SessionRecord)
}

// SnapshotStore keeps the single resumable full test.
type SnapshotStore interface {
	SaveTestProgress(p models.TestProgress)
	ClearTestProgress()
}

// Result summarises a finished session.
type Result struct {
	Kind          models.TestKind
	Score         int
	Correct       int
	Total         int
	AnsweredCount int
	ChapterScores map[string]int
	TimedOut      bool
}

// Session is a quiz in progress. All methods are safe for concurrent use.
type Session struct {
	mu        sync.Mutex
	kind      models.TestKind
	questions []models.Question
	answers   []*int
	flagged   []bool
	current   int
	closed    bool

	recorder  Recorder
	snapshots SnapshotStore
	log       *logger.Logger
	tick      time.Duration
	onExpire  func(*Session, Result)
	countdown *Countdown
}

// Option configures a Session.
type Option func(*Session)

// WithTick overrides the countdown tick, one second by default.
func WithTick(d time.Duration) Option {
	return func(s *Session) { s.tick = d }
}

// WithExpireHandler is called with the session and its result when the time limit forces it to finish.
func WithExpireHandler(fn func(*Session, Result)) Option {
	return func(s *Session) { s.onExpire = fn }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Session) { s.log = log }
}

// Start begins a session over questions with the given time limit.
func Start(kind models.TestKind, questions []models.Question, limit time.Duration, recorder Recorder, snapshots SnapshotStore, opts ...Option) (*Session, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	s := newSession(kind, recorder, snapshots, opts)
	s.questions = make([]models.Question, len(questions))
	for i, q := range questions {
		s.questions[i] = q.Clone()
	}
	s.answers = make([]*int, len(questions))
	s.flagged = make([]bool, len(questions))
	s.startCountdown(int(limit / time.Second))
	return s, nil
}

// Resume continues an interrupted full test from its snapshot.
func Resume(p models.TestProgress, recorder Recorder, snapshots SnapshotStore, opts ...Option) (*Session, error) {
	if len(p.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	s := newSession(models.TestFull, recorder, snapshots, opts)
	p = p.Clone()
	s.questions = p.Questions
	s.answers = resize(p.Answers, len(p.Questions))
	s.flagged = make([]bool, len(p.Questions))
	copy(s.flagged, p.Flagged)
	if p.CurrentIndex >= 0 && p.CurrentIndex < len(p.Questions) {
		s.current = p.CurrentIndex
	}
	s.startCountdown(p.TimeRemaining)
	return s, nil
}

func newSession(kind models.TestKind, recorder Recorder, snapshots SnapshotStore, opts []Option) *Session {
	s := &Session{
		kind:      kind,
		recorder:  recorder,
		snapshots: snapshots,
		log:       logger.Nop(),
		tick:      time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) startCountdown(seconds int) {
	if seconds <= 0 {
		seconds = 1
	}
	s.countdown = StartCountdown(seconds, s.tick, s.expire)
}

// Kind returns the session type.
func (s *Session) Kind() models.TestKind {
	return s.kind
}

// Len returns the number of questions.
func (s *Session) Len() int {
	return len(s.questions)
}

// Current returns the question under the cursor and its index.
func (s *Session) Current() (models.Question, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questions[s.current].Clone(), s.current
}

// Answer records choice for the question at index and reports whether it is correct.
// A later answer to the same question replaces the earlier one.
func (s *Session) Answer(index, choice int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	if index < 0 || index >= len(s.questions) {
		return false, ErrOutOfRange
	}
	q := s.questions[index]
	if choice < 0 || choice >= len(q.Choices) {
		return false, ErrOutOfRange
	}
	c := choice
	s.answers[index] = &c
	return q.IsCorrect(choice), nil
}

// ToggleFlag flips the review flag of the current question and returns the new value.
func (s *Session) ToggleFlag() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	s.flagged[s.current] = !s.flagged[s.current]
	return s.flagged[s.current], nil
}

// Move shifts the cursor by delta, clamped to the question range, and returns the new index.
func (s *Session) Move(delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current + delta
	if next < 0 {
		next = 0
	}
	if next >= len(s.questions) {
		next = len(s.questions) - 1
	}
	s.current = next
	return s.current
}

// AnsweredCount returns how many questions have an answer.
func (s *Session) AnsweredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return countAnswered(s.answers)
}

// Flagged returns the indexes of flagged questions.
func (s *Session) Flagged() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for i, f := range s.flagged {
		if f {
			out = append(out, i)
		}
	}
	return out
}

// Remaining returns the time left.
func (s *Session) Remaining() time.Duration {
	return time.Duration(s.countdown.Remaining()) * time.Second
}

// Closed reports whether the session has been finished or abandoned.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Finish stops the timer, scores the session and records it. Unanswered questions count as wrong.
func (s *Session) Finish() (Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{}, ErrClosed
	}
	s.closed = true
	s.countdown.Stop()
	res, rec := s.scoreLocked()
	s.mu.Unlock()

	s.recorder.RecordSession(rec)
	if s.kind == models.TestFull && s.snapshots != nil {
		s.snapshots.ClearTestProgress()
	}
	return res, nil
}

// Abandon stops the session without scoring it. A full test is saved for Resume; a mini test
// records the questions answered so far.
func (s *Session) Abandon() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.countdown.Stop()

	var (
		snapshot models.TestProgress
		answered []models.AnsweredQuestion
	)
	if s.kind == models.TestFull {
		snapshot = s.snapshotLocked()
	} else {
		for i, q := range s.questions {
			if s.answers[i] != nil {
				answered = append(answered, outcome(q, s.answers[i]))
			}
		}
	}
	s.mu.Unlock()

	if s.kind == models.TestFull {
		if s.snapshots != nil {
			s.snapshots.SaveTestProgress(snapshot)
		}
		return
	}
	if len(answered) > 0 {
		s.recorder.RecordSession(progress.SessionRecord{Answered: answered, Kind: s.kind})
	}
}

// Snapshot returns the resumable state of the session.
func (s *Session) Snapshot() models.TestProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) expire() {
	res, err := s.Finish()
	if errors.Is(err, ErrClosed) {
		return
	}
	res.TimedOut = true
	s.log.Info("session time limit reached", "kind", s.kind, "score", res.Score)
	if s.onExpire != nil {
		s.onExpire(s, res)
	}
}

func (s *Session) scoreLocked() (Result, progress.SessionRecord) {
	answered := make([]models.AnsweredQuestion, len(s.questions))
	correct := 0
	for i, q := range s.questions {
		answered[i] = outcome(q, s.answers[i])
		if answered[i].Correct {
			correct++
		}
	}

	res := Result{
		Kind:          s.kind,
		Score:         scoring.Percent(correct, len(s.questions)),
		Correct:       correct,
		Total:         len(s.questions),
		AnsweredCount: countAnswered(s.answers),
		ChapterScores: progress.ChapterScores(answered),
	}

	rec := progress.SessionRecord{Answered: answered, Kind: s.kind}
	if s.kind == models.TestFull {
		score := res.Score
		rec.Score = &score
		rec.ChapterScores = res.ChapterScores
	}
	return res, rec
}

func (s *Session) snapshotLocked() models.TestProgress {
	remaining := 0
	if s.countdown != nil {
		remaining = s.countdown.Remaining()
	}
	return models.TestProgress{
		Questions:     s.questions,
		Answers:       s.answers,
		Flagged:       s.flagged,
		TimeRemaining: remaining,
		CurrentIndex:  s.current,
	}.Clone()
}

func outcome(q models.Question, answer *int) models.AnsweredQuestion {
	return models.AnsweredQuestion{
		ID:      q.ID,
		Chapter: q.Chapter,
		Correct: answer != nil && q.IsCorrect(*answer),
	}
}

func countAnswered(answers []*int) int {
	n := 0
	for _, a := range answers {
		if a != nil {
			n++
		}
	}
	return n
}

func resize(answers []*int, n int) []*int {
	out := make([]*int, n)
	copy(out, answers)
	return out
}
