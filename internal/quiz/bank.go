// Package quiz holds the question catalog, test sampling and the resumable full-test snapshot.
package quiz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/example/passdrill/internal/logger"
	"github.com/example/passdrill/internal/persist"
	"github.com/example/passdrill/pkg/models"
)

// CatalogVersion is the version of the bundled question catalog. A stored catalog with another
// version is replaced on load.
const CatalogVersion = "1.0.1"

// ImportedCatalogVersion tags a catalog read from a spreadsheet, so that a changed file replaces
// the stored catalog on the next start.
func ImportedCatalogVersion(questions []models.Question) string {
	data, err := json.Marshal(questions)
	if err != nil {
		return CatalogVersion + "+imported"
	}
	sum := sha256.Sum256(data)
	return CatalogVersion + "+" + hex.EncodeToString(sum[:6])
}

// ErrNoQuestions is returned when a sample would be empty.
var ErrNoQuestions = errors.New("quiz: no questions available")

const saveTimeout = 5 * time.Second

type state struct {
	Version      string               `json:"version"`
	Questions    []models.Question    `json:"questions"`
	TestProgress *models.TestProgress `json:"test_progress,omitempty"`
}

// Bank owns the question catalog. All methods are safe for concurrent use.
type Bank struct {
	mu      sync.Mutex
	state   state
	catalog []models.Question
	version string
	storage persist.Storage
	log     *logger.Logger
	now     func() time.Time
	rnd     *rand.Rand
}

// Option configures a Bank.
type Option func(*Bank)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Bank) { b.now = now }
}

// WithRand sets the random source used for shuffling.
func WithRand(rnd *rand.Rand) Option {
	return func(b *Bank) { b.rnd = rnd }
}

// WithCatalogVersion sets the version tag of the catalog passed to NewBank.
func WithCatalogVersion(version string) Option {
	return func(b *Bank) { b.version = version }
}

// NewBank creates an empty bank. catalog is the bundled question set installed by LoadCatalog.
func NewBank(catalog []models.Question, storage persist.Storage, log *logger.Logger, opts ...Option) *Bank {
	b := &Bank{
		catalog: catalog,
		version: CatalogVersion,
		storage: storage,
		log:     log,
		now:     time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Restore loads the persisted catalog and snapshot. On failure the bank stays empty.
func (b *Bank) Restore(ctx context.Context) {
	var st state
	ok, err := persist.LoadJSON(ctx, b.storage, persist.QuestionsKey, &st)
	if err != nil {
		b.log.Warn("failed to restore questions, starting empty", "error", err)
		return
	}
	if !ok {
		return
	}
	b.mu.Lock()
	b.state = st
	b.mu.Unlock()
}

// LoadCatalog installs the configured catalog when the bank is empty or holds another version.
func (b *Bank) LoadCatalog() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.state.Questions) > 0 && b.state.Version == b.version {
		return
	}
	if len(b.state.Questions) > 0 {
		b.log.Info("replacing stale question catalog", "stored_version", b.state.Version, "version", b.version)
	}
	b.state.Questions = cloneQuestions(b.catalog)
	b.state.Version = b.version
	b.saveLocked()
}

// Questions returns a copy of the catalog.
func (b *Bank) Questions() []models.Question {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneQuestions(b.state.Questions)
}

// Version returns the version tag of the held catalog.
func (b *Bank) Version() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Version
}

// Count returns the catalog size.
func (b *Bank) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.state.Questions)
}

// IDs returns the ids of every question in catalog order.
func (b *Bank) IDs() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]int, len(b.state.Questions))
	for i, q := range b.state.Questions {
		ids[i] = q.ID
	}
	return ids
}

// Chapters returns the distinct chapters in catalog order.
func (b *Bank) Chapters() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[string]bool)
	var chapters []string
	for _, q := range b.state.Questions {
		if !seen[q.Chapter] {
			seen[q.Chapter] = true
			chapters = append(chapters, q.Chapter)
		}
	}
	return chapters
}

// SampleForFullTest returns count questions for a full test. A catalog of at most count questions
// is returned whole in catalog order.
func (b *Bank) SampleForFullTest(count int) ([]models.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.state.Questions) == 0 || count <= 0 {
		return nil, ErrNoQuestions
	}
	pool := cloneQuestions(b.state.Questions)
	if len(pool) <= count {
		return pool, nil
	}
	return b.shuffleTake(pool, count), nil
}

// SampleForMiniTest returns up to count questions from chapter ("" for all chapters). Questions
// never answered correctly are preferred when there are enough of them.
func (b *Bank) SampleForMiniTest(count int, chapter string, everCorrect map[int]bool) ([]models.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if count <= 0 {
		return nil, ErrNoQuestions
	}
	var filtered []models.Question
	for _, q := range b.state.Questions {
		if chapter == "" || q.Chapter == chapter {
			filtered = append(filtered, q.Clone())
		}
	}

	if len(filtered) == 0 {
		if chapter == "" {
			return nil, ErrNoQuestions
		}
		return nil, fmt.Errorf("%w in chapter %q", ErrNoQuestions, chapter)
	}
	if len(filtered) <= count {
		return filtered, nil
	}

	var unmastered []models.Question
	for _, q := range filtered {
		if !everCorrect[q.ID] {
			unmastered = append(unmastered, q)
		}
	}
	if len(unmastered) >= count {
		return b.shuffleTake(unmastered, count), nil
	}
	// Not enough fresh questions: draw from the whole filtered pool, including ever-correct ones.
	return b.shuffleTake(filtered, count), nil
}

// SaveTestProgress stores the snapshot of an interrupted full test, replacing any previous one.
func (b *Bank) SaveTestProgress(p models.TestProgress) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := p.Clone()
	b.state.TestProgress = &cp
	b.saveLocked()
}

// LoadTestProgress returns the stored snapshot, if any.
func (b *Bank) LoadTestProgress() (models.TestProgress, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.TestProgress == nil {
		return models.TestProgress{}, false
	}
	return b.state.TestProgress.Clone(), true
}

// ClearTestProgress discards the stored snapshot.
func (b *Bank) ClearTestProgress() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.TestProgress == nil {
		return
	}
	b.state.TestProgress = nil
	b.saveLocked()
}

// shuffleTake shuffles pool in place and returns its first count entries.
func (b *Bank) shuffleTake(pool []models.Question, count int) []models.Question {
	b.rnd.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	return pool[:count]
}

func (b *Bank) saveLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := persist.SaveJSON(ctx, b.storage, persist.QuestionsKey, b.state); err != nil {
		b.log.Warn("failed to save questions", "error", err)
	}
}

func cloneQuestions(questions []models.Question) []models.Question {
	out := make([]models.Question, len(questions))
	for i, q := range questions {
		out[i] = q.Clone()
	}
	return out
}
