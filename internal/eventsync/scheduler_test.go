package eventsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSyncer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *countingSyncer) SyncEvents(ctx context.Context) (SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return SyncResult{}, s.err
	}
	return SyncResult{Reachable: true, EventsFetched: 3}, nil
}

func (s *countingSyncer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingReporter struct {
	mu        sync.Mutex
	completed []SyncResult
	failed    []error
}

func (r *recordingReporter) BroadcastSyncCompleted(result SyncResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, result)
}

func (r *recordingReporter) BroadcastSyncError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, err)
}

func (r *recordingReporter) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.completed), len(r.failed)
}

func TestScheduler_SyncsOnStart(t *testing.T) {
	syncer := &countingSyncer{}
	reporter := &recordingReporter{}
	s := NewScheduler(syncer, reporter)

	require.NoError(t, s.Start("@every 1h", true))
	defer s.Stop()

	require.Eventually(t, func() bool {
		completed, _ := reporter.counts()
		return completed == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, syncer.count())

	next := s.NextRun()
	require.NotNil(t, next)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *next, time.Minute)
	assert.Equal(t, "@every 1h", s.Schedule())
}

func TestScheduler_ReportsFailures(t *testing.T) {
	syncer := &countingSyncer{err: errors.New("boom")}
	reporter := &recordingReporter{}
	s := NewScheduler(syncer, reporter)

	require.NoError(t, s.Start("@every 1h", false))
	defer s.Stop()
	assert.Zero(t, syncer.count())

	s.TriggerSync()
	require.Eventually(t, func() bool {
		_, failed := reporter.counts()
		return failed == 1
	}, time.Second, 5*time.Millisecond)
}

// blockingSyncer runs until its context ends.
type blockingSyncer struct {
	started chan struct{}
}

func (s *blockingSyncer) SyncEvents(ctx context.Context) (SyncResult, error) {
	close(s.started)
	<-ctx.Done()
	return SyncResult{}, ctx.Err()
}

func TestScheduler_StopAbandonsRunningSync(t *testing.T) {
	syncer := &blockingSyncer{started: make(chan struct{})}
	reporter := &recordingReporter{}
	s := NewScheduler(syncer, reporter)
	require.NoError(t, s.Start("@every 1h", true))

	select {
	case <-syncer.started:
	case <-time.After(time.Second):
		t.Fatal("sync did not start")
	}

	s.Stop()
	completed, failed := reporter.counts()
	assert.Zero(t, completed)
	assert.Zero(t, failed, "shutdown is not reported as a sync failure")
}

func TestScheduler_Reschedule(t *testing.T) {
	s := NewScheduler(&countingSyncer{}, nil)
	require.NoError(t, s.Start("30m", false))
	defer s.Stop()
	assert.Equal(t, "@every 30m0s", s.Schedule())

	require.NoError(t, s.Reschedule("0 * * * *"))
	assert.Equal(t, "0 * * * *", s.Schedule())
	assert.Len(t, s.cron.Entries(), 1)

	assert.Error(t, s.Reschedule("not a schedule"))
	assert.Equal(t, "0 * * * *", s.Schedule(), "a bad schedule keeps the previous one")
}

func TestNormalizeSchedule(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "empty uses default", in: "", want: DefaultSchedule},
		{name: "bare duration", in: "10m", want: "@every 10m0s"},
		{name: "every descriptor", in: "@every 5m", want: "@every 5m"},
		{name: "cron expression", in: "*/15 * * * *", want: "*/15 * * * *"},
		{name: "hourly", in: "@hourly", want: "@hourly"},
		{name: "too frequent", in: "10s", wantErr: true},
		{name: "garbage", in: "whenever", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSchedule(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
