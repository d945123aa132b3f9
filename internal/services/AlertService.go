package services

import (
	"complywatch/internal/models"
	"complywatch/internal/policy"
	"complywatch/internal/providers"
	"complywatch/internal/storage"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const maxGateAttempts = 5

type SnapshotResult struct {
	Snapshot models.ComplianceSnapshot `json:"snapshot"`
	Alert    *models.AlertRecord       `json:"alert,omitempty"`
}

type AlertPassResult struct {
	Websites   int `json:"websites"`
	Evaluated  int `json:"evaluated"`
	Raised     int `json:"raised"`
	Suppressed int `json:"suppressed"`
	Failed     int `json:"failed"`
}

type AlertServiceInterface interface {
	ProcessSnapshot(ctx context.Context, websiteID string, score int, createdAt time.Time) (*SnapshotResult, error)
	EvaluateScheduledAlerts(ctx context.Context, since, now time.Time) (*AlertPassResult, error)
	ListAlerts(ctx context.Context, websiteID string) ([]models.AlertRecord, error)
	AcknowledgeAlert(ctx context.Context, alertID string) (string, error)
}

type AlertService struct {
	store   storage.StoreInterface
	catalog *models.PlanCatalog
	mailer  MailerInterface
	cache   providers.CacheProviderInterface
	clock   providers.Clock
	metrics providers.MetricsProviderInterface
	logger  providers.Logger
}

// ProcessSnapshot stores a scan result. Realtime plans are evaluated against
// the previous snapshot straight away; scheduled-only plans wait for the
// batch pass.
func (s *AlertService) ProcessSnapshot(ctx context.Context, websiteID string, score int, createdAt time.Time) (*SnapshotResult, error) {
	if score < 0 || score > 100 {
		return nil, ErrInvalidScore
	}

	website, err := s.store.GetWebsite(ctx, websiteID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrWebsiteNotFound, websiteID)
	}
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC().Truncate(time.Microsecond)
	if createdAt.IsZero() {
		createdAt = now
	}
	snapshot := models.ComplianceSnapshot{
		ID:        uuid.NewString(),
		WebsiteID: website.ID,
		Score:     score,
		CreatedAt: createdAt.UTC().Truncate(time.Microsecond),
	}
	if err := s.store.AppendSnapshot(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("append snapshot: %w", err)
	}

	result := &SnapshotResult{Snapshot: snapshot}
	plan := resolvePlan(s.catalog, s.logger, providers.TypeAlert, website.Plan, "website "+website.ID)
	if !plan.Alerting.Enabled || plan.Alerting.Mode != models.AlertModeRealtime {
		return result, nil
	}

	alert, err := s.evaluate(context.WithoutCancel(ctx), *website, plan, snapshot, now)
	if err != nil {
		return result, err
	}
	result.Alert = alert
	return result, nil
}

// EvaluateScheduledAlerts walks the snapshots taken in (since, now] for every
// scheduled-only website. Transitions that already have a record are skipped,
// so overlapping or repeated runs produce no extra alerts.
func (s *AlertService) EvaluateScheduledAlerts(ctx context.Context, since, now time.Time) (*AlertPassResult, error) {
	if !since.Before(now) {
		return nil, ErrInvalidWindow
	}
	now = now.UTC().Truncate(time.Microsecond)

	websites, err := s.store.ListMonitoredWebsites(ctx)
	if err != nil {
		return nil, fmt.Errorf("list monitored websites: %w", err)
	}

	result := &AlertPassResult{}
	for _, w := range websites {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		plan := resolvePlan(s.catalog, s.logger, providers.TypeAlert, w.Plan, "website "+w.ID)
		if !plan.Alerting.Enabled || plan.Alerting.Mode != models.AlertModeScheduledOnly {
			continue
		}
		result.Websites++

		snapshots, err := s.store.ListSnapshots(ctx, w.ID, since, now)
		if err != nil {
			result.Failed++
			s.logger.Errorf(providers.TypeAlert, "List snapshots for website %s: %s", w.ID, err)
			continue
		}
		for _, snap := range snapshots {
			result.Evaluated++
			alert, err := s.evaluate(context.WithoutCancel(ctx), w, plan, snap, now)
			if err != nil {
				result.Failed++
				s.logger.Errorf(providers.TypeAlert, "Evaluate snapshot %s of website %s: %s", snap.ID, w.ID, err)
				continue
			}
			if alert == nil {
				continue
			}
			if alert.Suppressed {
				result.Suppressed++
			} else {
				result.Raised++
			}
		}
	}

	s.logger.Infof(providers.TypeAlert, "Scheduled alert pass: %d websites, %d snapshots, %d raised, %d suppressed, %d failed",
		result.Websites, result.Evaluated, result.Raised, result.Suppressed, result.Failed)
	return result, nil
}

// evaluate compares snap with the snapshot preceding it and records the alert
// decision. It returns nil when the drop does not qualify or the transition
// was already recorded.
func (s *AlertService) evaluate(ctx context.Context, w models.Website, plan models.PlanConfig, snap models.ComplianceSnapshot, now time.Time) (*models.AlertRecord, error) {
	previous, err := s.store.LatestSnapshotBefore(ctx, w.ID, snap.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("previous snapshot: %w", err)
	}
	if previous == nil {
		return nil, nil
	}

	candidate, ok := policy.EvaluateDrop(snap.Score, previous.Score, plan.Alerting.DropThreshold)
	if !ok {
		return nil, nil
	}
	record := *candidate
	record.ID = uuid.NewString()
	record.WebsiteID = w.ID
	record.SnapshotID = snap.ID
	record.CreatedAt = now

	for attempt := 0; attempt < maxGateAttempts; attempt++ {
		last, err := s.store.LastAlertAt(ctx, w.ID, record.Category)
		if err != nil {
			return nil, fmt.Errorf("last alert time: %w", err)
		}
		record.Suppressed = !policy.Admit(last, plan.Alerting.CooldownHours, now)

		err = s.store.RecordAlert(ctx, record, last)
		switch {
		case err == nil:
			s.cache.Delete(AlertsCacheKey(w.ID))
			s.metrics.IncAlerts(string(record.Severity), record.Suppressed)
			if record.Suppressed {
				s.logger.Infof(providers.TypeAlert, "Suppressed %s alert for website %s (%d -> %d), cooldown active",
					record.Severity, w.ID, record.PreviousScore, record.CurrentScore)
			} else {
				s.logger.Infof(providers.TypeAlert, "Raised %s alert for website %s (%d -> %d)",
					record.Severity, w.ID, record.PreviousScore, record.CurrentScore)
				s.notify(ctx, w, record)
			}
			return &record, nil
		case errors.Is(err, storage.ErrDuplicate):
			s.logger.Debugf(providers.TypeAlert, "Snapshot %s of website %s already evaluated", snap.ID, w.ID)
			return nil, nil
		case errors.Is(err, storage.ErrConflict):
			s.logger.Debugf(providers.TypeAlert, "Cooldown for website %s moved concurrently, retrying", w.ID)
			continue
		default:
			return nil, fmt.Errorf("record alert: %w", err)
		}
	}
	return nil, ErrCooldownContention
}

func (s *AlertService) notify(ctx context.Context, w models.Website, record models.AlertRecord) {
	owner, err := s.store.GetUser(ctx, w.UserID)
	if err != nil {
		s.logger.Warnf(providers.TypeAlert, "No owner for website %s, alert %s not mailed: %s", w.ID, record.ID, err)
		return
	}
	if err := s.mailer.Send(ctx, renderAlert(owner.Email, w, record)); err != nil {
		s.logger.Errorf(providers.TypeAlert, "Mailing alert %s to %s failed: %s", record.ID, owner.Email, err)
	}
}

func (s *AlertService) ListAlerts(ctx context.Context, websiteID string) ([]models.AlertRecord, error) {
	if _, err := s.store.GetWebsite(ctx, websiteID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrWebsiteNotFound, websiteID)
		}
		return nil, err
	}
	return s.store.ListAlerts(ctx, websiteID, time.Time{}, s.clock.Now())
}

func (s *AlertService) AcknowledgeAlert(ctx context.Context, alertID string) (string, error) {
	websiteID, err := s.store.AcknowledgeAlert(ctx, alertID)
	if err != nil {
		return "", err
	}
	s.cache.Delete(AlertsCacheKey(websiteID))
	return websiteID, nil
}

// AlertsCacheKey is the response cache entry holding a website's alert list.
func AlertsCacheKey(websiteID string) string {
	return "alerts:" + websiteID
}

func NewAlertService(store storage.StoreInterface, catalog *models.PlanCatalog, mailer MailerInterface,
	cache providers.CacheProviderInterface, clock providers.Clock, metrics providers.MetricsProviderInterface, logger providers.Logger) AlertServiceInterface {
	return &AlertService{
		store:   store,
		catalog: catalog,
		mailer:  mailer,
		cache:   cache,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}
