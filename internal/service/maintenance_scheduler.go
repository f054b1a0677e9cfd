package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultMaintenanceInterval = time.Hour

// MaintenanceRun is the context handed to every job of one tick.
type MaintenanceRun struct {
	Day    time.Time
	Alerts AlertTracker
}

// MaintenanceJob is one periodic task. Jobs must tolerate running again on
// the same day.
type MaintenanceJob struct {
	Name string
	Run  func(ctx context.Context, run *MaintenanceRun) error
}

// MaintenanceScheduler runs its jobs on a fixed interval until stopped.
type MaintenanceScheduler struct {
	jobs     []MaintenanceJob
	alerts   AlertTracker
	interval time.Duration
	log      *logrus.Logger
	now      func() time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  atomic.Bool
	stopped  atomic.Bool
}

func NewMaintenanceScheduler(alerts AlertTracker, interval time.Duration, log *logrus.Logger, jobs ...MaintenanceJob) *MaintenanceScheduler {
	if interval <= 0 {
		interval = defaultMaintenanceInterval
	}
	return &MaintenanceScheduler{
		jobs:     jobs,
		alerts:   alerts,
		interval: interval,
		log:      log,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start launches the ticker loop. Only the first call has an effect.
func (s *MaintenanceScheduler) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}

	s.wg.Add(1)
	go s.loop()
	s.log.Infof("Maintenance scheduler started: interval=%v, jobs=%d", s.interval, len(s.jobs))
}

// Stop gracefully shuts down the scheduler.
// Safe to call multiple times.
func (s *MaintenanceScheduler) Stop() {
	if s.stopped.CompareAndSwap(false, true) {
		close(s.stopChan)
		s.wg.Wait()
		s.log.Info("Maintenance scheduler stopped")
	}
}

func (s *MaintenanceScheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			_ = s.RunOnce(ctx)
			cancel()
		}
	}
}

// RunOnce runs every job once. A failing job is logged and does not stop the
// others; the returned error joins all failures.
func (s *MaintenanceScheduler) RunOnce(ctx context.Context) error {
	run := &MaintenanceRun{
		Day:    s.now(),
		Alerts: s.alerts,
	}

	var errs []error
	for _, job := range s.jobs {
		start := time.Now()
		if err := job.Run(ctx, run); err != nil {
			if errors.Is(err, ErrRunInProgress) {
				s.log.Infof("Maintenance job %s skipped: already running", job.Name)
				continue
			}
			s.log.Warnf("Failed maintenance job %s: %+v", job.Name, err)
			errs = append(errs, err)
			continue
		}
		s.log.Debugf("Maintenance job %s finished in %v", job.Name, time.Since(start))
	}
	return errors.Join(errs...)
}
