package eventsync

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule is used when no schedule is configured.
const DefaultSchedule = "@every 15m"

// Reporter receives the outcome of scheduled syncs.
type Reporter interface {
	BroadcastSyncCompleted(result SyncResult)
	BroadcastSyncError(err error)
}

// Syncer is the part of the Coordinator the scheduler drives.
type Syncer interface {
	SyncEvents(ctx context.Context) (SyncResult, error)
}

// Scheduler runs SyncEvents periodically.
type Scheduler struct {
	cron     *cron.Cron
	syncer   Syncer
	reporter Reporter

	mu       sync.RWMutex
	entryID  cron.EntryID
	schedule string

	// ctx bounds jobs started by the scheduler; cancel stops them on Stop.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a sync scheduler. reporter may be nil.
func NewScheduler(syncer Syncer, reporter Reporter) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(),
		syncer:   syncer,
		reporter: reporter,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start schedules syncs on the given spec and starts the scheduler.
// When syncNow is set a sync also runs immediately.
func (s *Scheduler) Start(schedule string, syncNow bool) error {
	log.Println("Starting event sync scheduler...")

	if err := s.Reschedule(schedule); err != nil {
		return err
	}
	s.cron.Start()

	if syncNow {
		s.TriggerSync()
	}

	log.Printf("Event sync scheduler started (%s)", s.Schedule())
	return nil
}

// Stop shuts down the scheduler and waits for running syncs.
func (s *Scheduler) Stop() {
	log.Println("Stopping event sync scheduler...")
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	log.Println("Event sync scheduler stopped")
}

// Reschedule replaces the periodic sync schedule.
func (s *Scheduler) Reschedule(schedule string) error {
	spec, err := NormalizeSchedule(schedule)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if spec == s.schedule && s.entryID != 0 {
		return nil
	}

	entryID, err := s.cron.AddFunc(spec, s.runSync)
	if err != nil {
		return fmt.Errorf("scheduling sync %q: %w", spec, err)
	}
	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}

	s.entryID = entryID
	s.schedule = spec
	log.Printf("Scheduled event sync %s", spec)
	return nil
}

// TriggerSync runs a sync in the background.
func (s *Scheduler) TriggerSync() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSync()
	}()
}

// Schedule returns the active schedule spec.
func (s *Scheduler) Schedule() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schedule
}

// NextRun returns the next scheduled sync time, or nil when nothing is scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.entryID == 0 {
		return nil
	}
	entry := s.cron.Entry(s.entryID)
	if entry.Next.IsZero() {
		return nil
	}
	next := entry.Next
	return &next
}

func (s *Scheduler) runSync() {
	if s.ctx.Err() != nil {
		return
	}

	log.Println("Syncing events...")
	result, err := s.syncer.SyncEvents(s.ctx)
	if err != nil {
		if s.ctx.Err() != nil {
			log.Println("Event sync abandoned: scheduler stopped")
			return
		}
		log.Printf("Event sync failed: %v", err)
		if s.reporter != nil {
			s.reporter.BroadcastSyncError(err)
		}
		return
	}

	if result.Reachable {
		log.Printf("Event sync completed: %d events", result.EventsFetched)
	} else {
		log.Println("Event sync skipped: remote source unreachable")
	}
	if s.reporter != nil {
		s.reporter.BroadcastSyncCompleted(result)
	}
}

// NormalizeSchedule turns a configured schedule into a cron spec. It accepts
// standard five-field cron expressions, descriptors such as "@hourly" or
// "@every 10m", and bare durations such as "10m".
func NormalizeSchedule(schedule string) (string, error) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return DefaultSchedule, nil
	}

	if d, err := time.ParseDuration(schedule); err == nil {
		if d < time.Minute {
			return "", fmt.Errorf("sync interval %s is shorter than one minute", d)
		}
		schedule = "@every " + d.String()
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return "", fmt.Errorf("invalid sync schedule %q: %w", schedule, err)
	}
	return schedule, nil
}
