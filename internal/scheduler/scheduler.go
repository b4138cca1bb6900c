package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"jobscout/internal/config"
)

// RunFunc executes one batch run
type RunFunc func(ctx context.Context) error

// Scheduler runs the batch periodically in watch mode. Runs never
// overlap: a cycle that is still in flight when the next tick fires makes
// the new tick a no-op.
type Scheduler struct {
	cron    *cron.Cron
	entryID cron.EntryID
	cfg     *config.SchedulerConfig
	run     RunFunc
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu        sync.RWMutex
	isRunning bool
	inFlight  bool
}

// NewScheduler creates a new scheduler around one batch run function
func NewScheduler(cfg *config.SchedulerConfig, run RunFunc) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		cfg:    cfg,
		run:    run,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	schedule := fmt.Sprintf("0 */%d * * * *", s.cfg.IntervalMinutes)

	entryID, err := s.cron.AddFunc(schedule, s.cycle)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with interval: %d minutes", s.cfg.IntervalMinutes)
	return nil
}

// Stop stops the scheduler and cancels any in-flight run
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// cycle executes one scheduled batch run
func (s *Scheduler) cycle() {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		logrus.Warn("Previous batch run still in flight, skipping this cycle")
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	s.wg.Add(1)
	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
		s.wg.Done()
	}()

	start := time.Now()
	logrus.Info("Starting scheduled batch run")

	if err := s.run(s.ctx); err != nil {
		logrus.Errorf("Scheduled batch run failed: %v", err)
		return
	}

	logrus.Infof("Scheduled batch run completed in %v", time.Since(start))
}

// GetNextRun returns the time of the next scheduled run
func (s *Scheduler) GetNextRun() time.Time {
	if !s.IsRunning() {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Wait waits for any in-flight run to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
