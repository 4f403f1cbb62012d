// Package flashcards owns the flashcard collection and its spaced-repetition schedule.
package flashcards

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/passdrill/internal/logger"
	"github.com/example/passdrill/internal/persist"
	"github.com/example/passdrill/internal/spaced_repetition"
	"github.com/example/passdrill/pkg/models"
)

// ErrNoCards is returned when a study set would be empty.
var ErrNoCards = errors.New("flashcards: no cards available")

const dateLayout = "2006-01-02"

const saveTimeout = 5 * time.Second

// state is the persisted part of the store.
type state struct {
	Flashcards      []models.Flashcard `json:"flashcards"`
	StudiedToday    []int              `json:"studied_today"`
	LastStudiedDate string             `json:"last_studied_date,omitempty"`
}

// Store holds the flashcard collection. All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	state   state
	seed    []models.Flashcard
	sm2     *spaced_repetition.SM2
	storage persist.Storage
	log     *logger.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store. seed is the catalog merged in by LoadCatalog.
func New(seed []models.Flashcard, storage persist.Storage, log *logger.Logger, opts ...Option) *Store {
	s := &Store{
		seed:    seed,
		sm2:     spaced_repetition.NewSM2(),
		storage: storage,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads the persisted snapshot. A missing or unreadable snapshot leaves the store empty.
func (s *Store) Restore(ctx context.Context) {
	var st state
	ok, err := persist.LoadJSON(ctx, s.storage, persist.FlashcardsKey, &st)
	if err != nil {
		s.log.Warn("failed to restore flashcards, starting empty", "error", err)
		return
	}
	if !ok {
		return
	}
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// LoadCatalog merges the seed catalog into the collection. Cards already held keep their review state.
func (s *Store) LoadCatalog() {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[int]bool, len(s.state.Flashcards))
	for _, c := range s.state.Flashcards {
		existing[c.ID] = true
	}

	added := 0
	for _, c := range s.seed {
		if existing[c.ID] {
			continue
		}
		card := c.Clone()
		card.Review = nil
		s.state.Flashcards = append(s.state.Flashcards, card)
		existing[c.ID] = true
		added++
	}

	if added > 0 {
		s.log.Info("flashcard catalog merged", "added", added, "total", len(s.state.Flashcards))
		s.saveLocked()
	}
}

// All returns a copy of every card.
func (s *Store) All() []models.Flashcard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCards(s.state.Flashcards)
}

// HasCards reports whether the collection is non-empty.
func (s *Store) HasCards() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.Flashcards) > 0
}

// DueCards returns the cards due now, or the whole collection when nothing is due.
func (s *Store) DueCards() []models.Flashcard {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	due := FilterWithFallback(s.state.Flashcards, func(c models.Flashcard) bool { return c.IsDue(now) }, nil)
	return cloneCards(due)
}

// DueCardsForChapter returns the due cards of chapter ("" for all chapters). When none are due
// it falls back to every card of the chapter.
func (s *Store) DueCardsForChapter(chapter string) []models.Flashcard {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	inChapter := chapterFilter(chapter)
	due := FilterWithFallback(s.state.Flashcards,
		func(c models.Flashcard) bool { return inChapter(c) && c.IsDue(now) },
		inChapter,
	)
	return cloneCards(due)
}

// StrictDueCount counts the due cards of chapter ("" for all chapters) without any fallback.
func (s *Store) StrictDueCount(chapter string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	inChapter := chapterFilter(chapter)
	n := 0
	for _, c := range s.state.Flashcards {
		if inChapter(c) && c.IsDue(now) {
			n++
		}
	}
	return n
}

// StudySet returns at most limit cards to study for chapter. A limit of 0 or less means no limit.
func (s *Store) StudySet(chapter string, limit int) ([]models.Flashcard, error) {
	cards := s.DueCardsForChapter(chapter)
	if len(cards) == 0 {
		if chapter == "" {
			return nil, ErrNoCards
		}
		return nil, fmt.Errorf("%w in chapter %q", ErrNoCards, chapter)
	}
	if limit > 0 && len(cards) > limit {
		cards = cards[:limit]
	}
	return cards, nil
}

// ApplyReview schedules the next review of the card. Unknown ids are ignored and reported with ok=false.
func (s *Store) ApplyReview(cardID int, quality spaced_repetition.QualityResponse) (models.Flashcard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(cardID)
	if idx < 0 {
		return models.Flashcard{}, false
	}

	now := s.now()
	card := &s.state.Flashcards[idx]
	next := s.sm2.Next(card.Review, quality, now)
	card.Review = &next

	today := now.Format(dateLayout)
	if s.state.LastStudiedDate != today {
		s.state.StudiedToday = nil
		s.state.LastStudiedDate = today
	}
	if !containsInt(s.state.StudiedToday, cardID) {
		s.state.StudiedToday = append(s.state.StudiedToday, cardID)
	}

	s.saveLocked()
	return card.Clone(), true
}

// AddFlashcard appends a user-authored card with the next free id.
func (s *Store) AddFlashcard(term, definition, chapter string) models.Flashcard {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxID := 0
	for _, c := range s.state.Flashcards {
		if c.ID > maxID {
			maxID = c.ID
		}
	}
	card := models.Flashcard{ID: maxID + 1, Term: term, Definition: definition, Chapter: chapter}
	s.state.Flashcards = append(s.state.Flashcards, card)
	s.saveLocked()
	return card
}

// ResetAll clears every card's review state and the studied-today record.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Flashcards {
		s.state.Flashcards[i].Review = nil
	}
	s.state.StudiedToday = nil
	s.state.LastStudiedDate = ""
	s.saveLocked()
}

// TotalMastered counts the cards recalled successfully at least once.
func (s *Store) TotalMastered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.state.Flashcards {
		if c.IsMastered() {
			n++
		}
	}
	return n
}

// TodayStudiedCount returns how many distinct cards were reviewed today.
func (s *Store) TodayStudiedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.LastStudiedDate != s.now().Format(dateLayout) {
		return 0
	}
	return len(s.state.StudiedToday)
}

// Chapters returns the distinct chapters in catalog order.
func (s *Store) Chapters() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var chapters []string
	for _, c := range s.state.Flashcards {
		if !seen[c.Chapter] {
			seen[c.Chapter] = true
			chapters = append(chapters, c.Chapter)
		}
	}
	return chapters
}

func (s *Store) indexLocked(cardID int) int {
	for i, c := range s.state.Flashcards {
		if c.ID == cardID {
			return i
		}
	}
	return -1
}

// saveLocked writes the snapshot. Failures are logged and dropped; memory stays authoritative.
func (s *Store) saveLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := persist.SaveJSON(ctx, s.storage, persist.FlashcardsKey, s.state); err != nil {
		s.log.Warn("failed to save flashcards", "error", err)
	}
}

func chapterFilter(chapter string) func(models.Flashcard) bool {
	return func(c models.Flashcard) bool {
		return chapter == "" || c.Chapter == chapter
	}
}

func cloneCards(cards []models.Flashcard) []models.Flashcard {
	out := make([]models.Flashcard, len(cards))
	for i, c := range cards {
		out[i] = c.Clone()
	}
	return out
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
