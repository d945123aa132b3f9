package services

import (
	"complywatch/internal/models"
	"complywatch/internal/policy"
	"complywatch/internal/providers"
	"complywatch/internal/storage"
	"complywatch/internal/structures"
	"context"
	"fmt"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

const (
	defaultDispatchTimeout = 30 * time.Second
	claimMargin            = 10 * time.Second
)

type ScanPassResult struct {
	Triggered int              `json:"triggered"`
	Due       int              `json:"due"`
	Conflicts int              `json:"conflicts"`
	Failed    int              `json:"failed"`
	Jobs      []models.ScanJob `json:"jobs"`
}

type ScanTriggerServiceInterface interface {
	RunDueWebsiteScans(ctx context.Context, now time.Time) (*ScanPassResult, error)
}

type ScanTriggerService struct {
	conf     *structures.Config
	store    storage.WebsiteStoreInterface
	catalog  *models.PlanCatalog
	executor ScanExecutorInterface
	metrics  providers.MetricsProviderInterface
	logger   providers.Logger
}

type scanCounters struct {
	triggered *atomic.Int64
	failed    *atomic.Int64
	conflicts *atomic.Int64
}

// RunDueWebsiteScans dispatches a scan for every monitored website that is due
// at now. Each website is claimed in storage before dispatch, so overlapping
// passes never trigger the same website twice. Only a failure to list
// websites aborts the pass.
func (s *ScanTriggerService) RunDueWebsiteScans(ctx context.Context, now time.Time) (*ScanPassResult, error) {
	started := time.Now()
	now = now.UTC().Truncate(time.Microsecond)

	websites, err := s.store.ListMonitoredWebsites(ctx)
	if err != nil {
		return nil, fmt.Errorf("list monitored websites: %w", err)
	}

	due := make([]models.Website, 0, len(websites))
	for _, w := range websites {
		plan := resolvePlan(s.catalog, s.logger, providers.TypeScan, w.Plan, "website "+w.ID)
		if policy.IsScanDue(plan.Frequency, w.LastScanAt, now) {
			due = append(due, w)
		}
	}

	result := &ScanPassResult{Due: len(due), Jobs: make([]models.ScanJob, len(due))}
	counters := scanCounters{
		triggered: atomic.NewInt64(0),
		failed:    atomic.NewInt64(0),
		conflicts: atomic.NewInt64(0),
	}

	g := new(errgroup.Group)
	g.SetLimit(max(s.conf.Scan.Concurrency, 1))
	for i, w := range due {
		result.Jobs[i] = models.ScanJob{WebsiteID: w.ID, Status: models.ScanJobPending, TriggeredAt: now}
		if ctx.Err() != nil {
			continue
		}
		g.Go(func() error {
			result.Jobs[i].Status = s.trigger(ctx, w, now, counters)
			return nil
		})
	}
	_ = g.Wait()

	result.Triggered = int(counters.triggered.Load())
	result.Failed = int(counters.failed.Load())
	result.Conflicts = int(counters.conflicts.Load())

	s.metrics.ObserveScanPass(result.Triggered, result.Failed, result.Conflicts, time.Since(started))
	s.logger.Infof(providers.TypeScan, "Scan pass: %d due, %d triggered, %d conflicts, %d failed",
		result.Due, result.Triggered, result.Conflicts, result.Failed)

	return result, nil
}

// trigger claims one website and dispatches it. Once the claim is taken the
// rest runs to completion even if ctx is cancelled.
func (s *ScanTriggerService) trigger(ctx context.Context, w models.Website, now time.Time, c scanCounters) models.ScanJobStatus {
	if ctx.Err() != nil {
		return models.ScanJobPending
	}
	detached := context.WithoutCancel(ctx)

	claimed, err := s.store.ClaimScan(detached, w.ID, w.LastScanAt, now, s.claimWindow())
	if err != nil {
		c.failed.Inc()
		s.logger.Errorf(providers.TypeScan, "Claim failed for website %s: %s", w.ID, err)
		return models.ScanJobFailed
	}
	if !claimed {
		c.conflicts.Inc()
		s.logger.Debugf(providers.TypeScan, "Website %s already claimed by another pass", w.ID)
		return models.ScanJobPending
	}

	dctx, cancel := context.WithTimeout(detached, s.dispatchTimeout())
	err = s.executor.Dispatch(dctx, w)
	cancel()

	if err != nil {
		c.failed.Inc()
		s.logger.Warnf(providers.TypeScan, "Dispatch failed for website %s: %s", w.ID, err)
		if rerr := s.store.ReleaseScan(detached, w.ID, now, w.LastScanAt); rerr != nil {
			s.logger.Errorf(providers.TypeScan, "Rollback failed for website %s: %s", w.ID, rerr)
		}
		return models.ScanJobFailed
	}

	c.triggered.Inc()
	s.logger.Debugf(providers.TypeScan, "Dispatched scan for website %s (%s)", w.ID, w.URL)
	return models.ScanJobDispatched
}

func (s *ScanTriggerService) dispatchTimeout() time.Duration {
	if s.conf.Scan.DispatchTimeout > 0 {
		return s.conf.Scan.DispatchTimeout
	}
	return defaultDispatchTimeout
}

// claimWindow never lets a claim expire while its dispatch can still be
// running.
func (s *ScanTriggerService) claimWindow() time.Duration {
	return max(s.conf.Scan.ClaimWindow, s.dispatchTimeout()+claimMargin)
}

func NewScanTriggerService(conf *structures.Config, store storage.StoreInterface, catalog *models.PlanCatalog,
	executor ScanExecutorInterface, metrics providers.MetricsProviderInterface, logger providers.Logger) ScanTriggerServiceInterface {
	return &ScanTriggerService{
		conf:     conf,
		store:    store,
		catalog:  catalog,
		executor: executor,
		metrics:  metrics,
		logger:   logger,
	}
}
