package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/passdrill/internal/logger"
)

// reminderTag marks the daily study reminder job
const reminderTag = "study-reminder"

// Scheduler manages the daily study reminder
type Scheduler struct {
	mu        sync.Mutex
	scheduler *gocron.Scheduler
	notifier  Notifier
	dueCards  func() int
	log       *logger.Logger
}

// Notifier interface for sending notifications
type Notifier interface {
	SendStudyReminder(dueCards int) error
}

// New creates a new scheduler instance. dueCards reports how many flashcards are due when the reminder fires.
func New(notifier Notifier, dueCards func() int, loc *time.Location, log *logger.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		notifier:  notifier,
		dueCards:  dueCards,
		log:       log,
	}
}

// Start runs the scheduler in a non-blocking manner
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Schedule replaces any pending reminder with a daily one at hhmm ("HH:MM")
func (s *Scheduler) Schedule(hhmm string) error {
	if _, err := ParseTime(hhmm); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	if _, err := s.scheduler.Every(1).Day().At(hhmm).Tag(reminderTag).Do(s.sendReminder); err != nil {
		return fmt.Errorf("failed to schedule reminder at %s: %w", hhmm, err)
	}
	s.log.Info("study reminder scheduled", "time", hhmm)
	return nil
}

// CancelAll removes every pending reminder
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// NextRun returns when the reminder fires next
func (s *Scheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, err := s.scheduler.FindJobsByTag(reminderTag)
	if err != nil || len(jobs) == 0 {
		return time.Time{}, false
	}
	return jobs[0].NextRun(), true
}

// RunNow sends the reminder immediately
func (s *Scheduler) RunNow() error {
	due := 0
	if s.dueCards != nil {
		due = s.dueCards()
	}
	return s.notifier.SendStudyReminder(due)
}

func (s *Scheduler) cancelLocked() {
	// gocron reports an error when no job carries the tag
	_ = s.scheduler.RemoveByTag(reminderTag)
}

func (s *Scheduler) sendReminder() {
	if err := s.RunNow(); err != nil {
		s.log.Error("failed to send study reminder", "error", err)
	}
}

// ParseTime validates an "HH:MM" string and returns the hour and minute as a duration since midnight
func ParseTime(hhmm string) (time.Duration, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil || len(hhmm) != 5 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", hhmm)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
