// Package notifications persists the daily reminder settings and keeps the scheduler in sync with them.
package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/example/passdrill/internal/logger"
	"github.com/example/passdrill/internal/persist"
	"github.com/example/passdrill/internal/scheduler"
	"github.com/example/passdrill/pkg/models"
)

// DefaultTime is the reminder time used until the user picks one.
const DefaultTime = "21:00"

const saveTimeout = 5 * time.Second

// Scheduler arranges the daily reminder.
type Scheduler interface {
	Schedule(hhmm string) error
	CancelAll()
}

// Settings owns the reminder settings. All methods are safe for concurrent use.
type Settings struct {
	mu        sync.Mutex
	state     models.NotificationSettings
	storage   persist.Storage
	scheduler Scheduler
	log       *logger.Logger
}

// New returns settings with reminders enabled at DefaultTime.
func New(storage persist.Storage, sched Scheduler, log *logger.Logger) *Settings {
	return &Settings{
		state:     models.NotificationSettings{Enabled: true, Time: DefaultTime},
		storage:   storage,
		scheduler: sched,
		log:       log,
	}
}

// Restore loads the persisted settings and applies them to the scheduler.
func (s *Settings) Restore(ctx context.Context) error {
	var st models.NotificationSettings
	ok, err := persist.LoadJSON(ctx, s.storage, persist.NotificationsKey, &st)
	if err != nil {
		s.log.Warn("failed to restore notification settings, using defaults", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		if _, err := scheduler.ParseTime(st.Time); err != nil {
			st.Time = DefaultTime
		}
		s.state = st
	}
	return s.applyLocked()
}

// Get returns the current settings.
func (s *Settings) Get() models.NotificationSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Toggle flips the enabled flag, rescheduling or cancelling the reminder, and returns the new value.
func (s *Settings) Toggle() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Enabled = !s.state.Enabled
	s.saveLocked()
	return s.state.Enabled, s.applyLocked()
}

// SetEnabled sets the enabled flag.
func (s *Settings) SetEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Enabled == enabled {
		return nil
	}
	s.state.Enabled = enabled
	s.saveLocked()
	return s.applyLocked()
}

// SetTime changes the reminder time. hhmm must be "HH:MM".
func (s *Settings) SetTime(hhmm string) error {
	if _, err := scheduler.ParseTime(hhmm); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Time = hhmm
	s.saveLocked()
	return s.applyLocked()
}

func (s *Settings) applyLocked() error {
	if !s.state.Enabled {
		s.scheduler.CancelAll()
		return nil
	}
	return s.scheduler.Schedule(s.state.Time)
}

func (s *Settings) saveLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := persist.SaveJSON(ctx, s.storage, persist.NotificationsKey, s.state); err != nil {
		s.log.Warn("failed to save notification settings", "error", err)
	}
}
