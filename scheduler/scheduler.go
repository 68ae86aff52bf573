// Package scheduler keeps the served product set in step with the published
// extract. It checks the source on a daily timetable, rebuilds the set
// through the pipeline when a new release is out and swaps it into the data
// store.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giygas/dpd-api/interfaces"
	"github.com/giygas/dpd-api/logging"
	"github.com/go-co-op/gocron"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// staleCheck is how long the monitor tolerates without a successful
// source check before warning.
const staleCheck = 25 * time.Hour

// Scheduler handles data updates and health monitoring using dependency injection
type Scheduler struct {
	dataStore interfaces.DataStore
	watcher   interfaces.SourceWatcher
	pipeline  interfaces.Pipeline
	validator interfaces.DataValidator

	updateTimes     string
	monitorInterval time.Duration
	scheduler       *gocron.Scheduler

	lastCheck atomic.Value // time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewScheduler creates a new scheduler instance with injected dependencies.
// updateTimes is a gocron At() expression such as "06:00;18:00".
func NewScheduler(
	dataStore interfaces.DataStore,
	watcher interfaces.SourceWatcher,
	pipeline interfaces.Pipeline,
	validator interfaces.DataValidator,
	updateTimes string,
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		dataStore:       dataStore,
		watcher:         watcher,
		pipeline:        pipeline,
		validator:       validator,
		updateTimes:     updateTimes,
		monitorInterval: time.Hour,
		scheduler:       gocron.NewScheduler(time.Local),
		ctx:             ctx,
		cancel:          cancel,
	}
	s.lastCheck.Store(time.Time{})
	return s
}

// Start runs a first refresh, then schedules the daily ones and the health
// monitor. The first refresh is forced when the store is empty. Its failure
// only stops the start when there is nothing to serve.
func (s *Scheduler) Start() error {
	empty := len(s.dataStore.GetProducts()) == 0
	if _, err := s.Refresh(s.ctx, empty); err != nil {
		if empty {
			logging.Error("Failed to perform initial data load", "error", err)
			return fmt.Errorf("initial data load failed: %w", err)
		}
		logging.Warn("Initial refresh failed, serving the stored products", "error", err)
	}

	s.scheduler.SingletonModeAll()
	_, err := s.scheduler.Every(1).Days().At(s.updateTimes).Do(func() {
		if _, err := s.Refresh(s.ctx, false); err != nil {
			logging.Error("Failed to update data", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule updates", "error", err, "update_times", s.updateTimes)
		return fmt.Errorf("failed to schedule updates: %w", err)
	}

	s.scheduler.StartAsync()
	s.startHealthMonitoring()

	logging.Info("Scheduler started", "update_times", s.updateTimes)
	return nil
}

// Stop cancels a running refresh and stops the timetable and the monitor
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.scheduler.Stop()
	})
}

// LastCheck returns when the source was last checked successfully
func (s *Scheduler) LastCheck() time.Time {
	if t, ok := s.lastCheck.Load().(time.Time); ok {
		return t
	}
	return time.Time{}
}

// startHealthMonitoring warns when the source has not been reachable for a day
func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(s.monitorInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.checkStaleness(time.Now())
			}
		}
	}()
}

func (s *Scheduler) checkStaleness(now time.Time) bool {
	last := s.LastCheck()
	if last.IsZero() || now.Sub(last) > staleCheck {
		logging.Warn("Source hasn't been checked successfully in over 25 hours",
			"last_check", last,
			"last_update", s.dataStore.GetLastUpdated())
		return true
	}
	return false
}
