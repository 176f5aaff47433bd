package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDailySpec(t *testing.T) {
	spec, err := buildDailySpec("08:30")
	require.NoError(t, err)
	assert.Equal(t, "0 30 8 * * *", spec)

	for _, bad := range []string{"", "8", "24:00", "12:60", "aa:10", "1:2:3"} {
		_, err := buildDailySpec(bad)
		assert.Error(t, err, bad)
	}
}

func TestSchedulerService_ScheduleInterval(t *testing.T) {
	s := NewSchedulerService(time.UTC, zerolog.Nop())

	_, err := s.ScheduleInterval(0, func() {})
	assert.Error(t, err)

	id, err := s.ScheduleInterval(500*time.Millisecond, func() {})
	require.NoError(t, err)
	_, err = s.ScheduleDaily("07:15", func() {})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Entries())

	s.Remove(id)
	assert.Equal(t, 1, s.Entries())
}

func TestSchedulerService_RunsJobsUntilCancelled(t *testing.T) {
	s := NewSchedulerService(time.UTC, zerolog.Nop())
	var calls atomic.Int32
	_, err := s.ScheduleInterval(time.Second, func() { calls.Add(1) })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerService_RecoversPanickingJob(t *testing.T) {
	s := NewSchedulerService(time.UTC, zerolog.Nop())
	var calls atomic.Int32
	_, err := s.ScheduleInterval(time.Second, func() {
		calls.Add(1)
		panic("boom")
	})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, 4*time.Second, 50*time.Millisecond)
}
