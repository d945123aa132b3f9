package scheduler

import (
	"complywatch/internal/providers"
	"complywatch/internal/services"
	"complywatch/internal/storage"
	"complywatch/internal/structures"
	"context"
	"github.com/roylee0704/gron"
	"go.uber.org/atomic"
	"sync"
	"time"
)

type SchedulerInterface interface {
	Init()
	Stop()
	Restore() error
	Persist() error
}

// Scheduler owns the process-local timers: periodic snapshots of the memory
// store and, when trigger.internalClock is set, the scan, alert and digest
// passes that an external cron would otherwise call over HTTP.
type Scheduler struct {
	config      *structures.Config
	logger      providers.Logger
	clock       providers.Clock
	scans       services.ScanTriggerServiceInterface
	alerts      services.AlertServiceInterface
	digests     services.DigestServiceInterface
	fileManager *storage.FileManager
	metrics     providers.MetricsProviderInterface
	cron        *gron.Cron
	opsMu       sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
}

func (s *Scheduler) Init() {
	s.cron = gron.New()
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if s.fileManager != nil && s.config.Storage.SaveInterval > 0 {
		s.cron.AddFunc(gron.Every(s.config.Storage.SaveInterval), func() {
			_ = s.Persist()
		})
	}

	if s.config.Trigger.InternalClock {
		s.cron.AddFunc(gron.Every(s.config.Scan.Interval), exclusive(s.runScans))
		s.cron.AddFunc(gron.Every(s.config.Alerts.BatchInterval), exclusive(s.runAlerts))
		s.cron.AddFunc(gron.Every(s.config.Digest.Interval), exclusive(s.runDigest))
		s.logger.Infof(providers.TypeApp, "Internal clock enabled: scans every %s, alerts every %s, digest every %s",
			s.config.Scan.Interval, s.config.Alerts.BatchInterval, s.config.Digest.Interval)
	}

	s.cron.Start()
}

// exclusive drops a tick while the previous run of the same job is still going.
func exclusive(job func()) func() {
	running := atomic.NewBool(false)
	return func() {
		if !running.CompareAndSwap(false, true) {
			return
		}
		defer running.Store(false)
		job()
	}
}

func (s *Scheduler) runScans() {
	if _, err := s.scans.RunDueWebsiteScans(s.ctx, s.clock.Now()); err != nil {
		s.logger.Errorf(providers.TypeScan, "Scan pass failed: %s", err)
	}
}

func (s *Scheduler) runAlerts() {
	now := s.clock.Now()
	if _, err := s.alerts.EvaluateScheduledAlerts(s.ctx, s.config.Alerts.WindowStart(now), now); err != nil {
		s.logger.Errorf(providers.TypeAlert, "Scheduled alert pass failed: %s", err)
	}
}

func (s *Scheduler) runDigest() {
	now := s.clock.Now()
	if _, err := s.digests.SendWeeklyMonitoringEmails(s.ctx, s.config.Digest.WindowStart(now), now); err != nil {
		s.logger.Errorf(providers.TypeDigest, "Digest pass failed: %s", err)
	}
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Scheduler) Restore() error {
	if s.fileManager == nil {
		return nil
	}
	return s.fileManager.LoadFromFile(s.config.Storage.FilePath)
}

func (s *Scheduler) Persist() error {
	if s.fileManager == nil {
		return nil
	}
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	start := time.Now()
	err := s.fileManager.SaveToFile(s.config.Storage.FilePath)
	s.metrics.ObservePersistenceDuration(time.Since(start))
	if err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while persisting data: %s", err)
		return err
	}
	s.logger.Debugf(providers.TypeApp, "Persisted store to %s", s.config.Storage.FilePath)
	return nil
}

func NewScheduler(config *structures.Config, logger providers.Logger, clock providers.Clock, scans services.ScanTriggerServiceInterface,
	alerts services.AlertServiceInterface, digests services.DigestServiceInterface, fileManager *storage.FileManager,
	metrics providers.MetricsProviderInterface) SchedulerInterface {
	return &Scheduler{
		config:      config,
		logger:      logger,
		clock:       clock,
		scans:       scans,
		alerts:      alerts,
		digests:     digests,
		fileManager: fileManager,
		metrics:     metrics,
	}
}
