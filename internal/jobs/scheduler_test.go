package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsJobsOnStartAndTick(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(
		Job{Name: "tick", Interval: 20 * time.Millisecond, Run: func(context.Context) error {
			runs.Add(1)
			return nil
		}},
		Job{Name: "off", Run: func(context.Context) error { return nil }},
	)
	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
	s.Stop()

	after := runs.Load()
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, after, runs.Load())

	st := s.Status()
	require.Len(t, st, 1)
	require.Equal(t, "tick", st[0].Name)
	require.Zero(t, st[0].Failures)
}

func TestRunNowRecordsFailures(t *testing.T) {
	s := NewScheduler(Job{Name: "broken", Interval: time.Hour, Run: func(context.Context) error {
		return errors.New("db down")
	}})

	err := s.RunNow(context.Background(), "broken")
	require.ErrorContains(t, err, "db down")
	st := s.Status()[0]
	require.Equal(t, 1, st.Runs)
	require.Equal(t, 1, st.Failures)
	require.Equal(t, "db down", st.LastError)

	require.ErrorIs(t, s.RunNow(context.Background(), "missing"), ErrUnknownJob)
}

func TestStopWithoutStart(t *testing.T) {
	s := NewScheduler()
	s.Stop()
	require.Empty(t, s.Status())
}
