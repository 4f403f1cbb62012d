package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/passdrill/internal/logger"
)

type fakeNotifier struct {
	mu    sync.Mutex
	calls []int
	err   error
}

func (f *fakeNotifier) SendStudyReminder(dueCards int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dueCards)
	return f.err
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"21:00", 21 * time.Hour, false},
		{"07:05", 7*time.Hour + 5*time.Minute, false},
		{"00:00", 0, false},
		{"24:00", 0, true},
		{"7:05", 0, true},
		{"21:60", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScheduleReplacesReminder(t *testing.T) {
	s := New(&fakeNotifier{}, nil, time.UTC, logger.Nop())
	s.Start()
	defer s.Stop()

	require.NoError(t, s.Schedule("21:00"))
	require.NoError(t, s.Schedule("07:30"))

	jobs, err := s.scheduler.FindJobsByTag(reminderTag)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	next, ok := s.NextRun()
	require.True(t, ok)
	assert.Equal(t, 7, next.Hour())
	assert.Equal(t, 30, next.Minute())

	assert.Error(t, s.Schedule("bad"))
	_, ok = s.NextRun()
	assert.True(t, ok, "an invalid time keeps the current reminder")

	s.CancelAll()
	_, ok = s.NextRun()
	assert.False(t, ok)
	s.CancelAll()
}

func TestRunNow(t *testing.T) {
	n := &fakeNotifier{}
	s := New(n, func() int { return 7 }, time.UTC, logger.Nop())
	require.NoError(t, s.RunNow())
	assert.Equal(t, []int{7}, n.calls)

	n.err = errors.New("telegram down")
	assert.Error(t, s.RunNow())

	// Failures inside the scheduled job are only logged.
	s.sendReminder()
	assert.Len(t, n.calls, 3)
}
