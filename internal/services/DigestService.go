package services

import (
	"complywatch/internal/models"
	"complywatch/internal/providers"
	"complywatch/internal/storage"
	"complywatch/internal/structures"
	"context"
	"fmt"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

type DigestPassResult struct {
	ProcessedUsers int `json:"processedUsers"`
	EmailedUsers   int `json:"emailedUsers"`
	Skipped        int `json:"skipped"`
	Failed         int `json:"failed"`
}

type DigestServiceInterface interface {
	SendWeeklyMonitoringEmails(ctx context.Context, since, now time.Time) (*DigestPassResult, error)
}

type DigestService struct {
	conf    *structures.Config
	store   storage.StoreInterface
	catalog *models.PlanCatalog
	mailer  MailerInterface
	metrics providers.MetricsProviderInterface
	logger  providers.Logger
}

type digestCounters struct {
	processed *atomic.Int64
	emailed   *atomic.Int64
	skipped   *atomic.Int64
	failed    *atomic.Int64
}

// SendWeeklyMonitoringEmails mails a summary of (since, now] to every user
// whose plan includes alerting. Each user is claimed in the digest ledger for
// the window starting at since, so a repeated run never mails anyone twice.
func (s *DigestService) SendWeeklyMonitoringEmails(ctx context.Context, since, now time.Time) (*DigestPassResult, error) {
	if !since.Before(now) {
		return nil, ErrInvalidWindow
	}
	started := time.Now()
	since = since.UTC().Truncate(time.Microsecond)
	now = now.UTC().Truncate(time.Microsecond)

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	c := digestCounters{
		processed: atomic.NewInt64(0),
		emailed:   atomic.NewInt64(0),
		skipped:   atomic.NewInt64(0),
		failed:    atomic.NewInt64(0),
	}

	g := new(errgroup.Group)
	g.SetLimit(max(s.conf.Digest.Concurrency, 1))
	for _, u := range users {
		plan := resolvePlan(s.catalog, s.logger, providers.TypeDigest, u.Plan, "user "+u.ID)
		if !plan.Alerting.Enabled {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			s.process(context.WithoutCancel(ctx), u, since, now, c)
			return nil
		})
	}
	_ = g.Wait()

	result := &DigestPassResult{
		ProcessedUsers: int(c.processed.Load()),
		EmailedUsers:   int(c.emailed.Load()),
		Skipped:        int(c.skipped.Load()),
		Failed:         int(c.failed.Load()),
	}
	s.metrics.ObserveDigestPass(result.ProcessedUsers, result.EmailedUsers, time.Since(started))
	s.logger.Infof(providers.TypeDigest, "Digest pass since %s: %d processed, %d emailed, %d skipped, %d failed",
		since.Format(time.RFC3339), result.ProcessedUsers, result.EmailedUsers, result.Skipped, result.Failed)
	return result, nil
}

func (s *DigestService) process(ctx context.Context, u models.User, since, now time.Time, c digestCounters) {
	claimed, err := s.store.ClaimDigest(ctx, u.ID, since, now)
	if err != nil {
		c.failed.Inc()
		s.logger.Errorf(providers.TypeDigest, "Claim digest for user %s: %s", u.ID, err)
		return
	}
	if !claimed {
		c.skipped.Inc()
		s.logger.Debugf(providers.TypeDigest, "User %s already processed for window %s", u.ID, since.Format(time.RFC3339))
		return
	}

	payload, err := s.buildPayload(ctx, u, since, now)
	if err != nil {
		c.failed.Inc()
		s.logger.Errorf(providers.TypeDigest, "Build digest for user %s: %s", u.ID, err)
		s.release(ctx, u.ID, since)
		return
	}

	if !payload.HasActivity() {
		if err := s.store.CompleteDigest(ctx, u.ID, since, models.DigestEmpty); err != nil {
			s.logger.Errorf(providers.TypeDigest, "Mark empty digest for user %s: %s", u.ID, err)
		}
		c.processed.Inc()
		return
	}

	if err := s.mailer.Send(ctx, renderDigest(payload)); err != nil {
		c.failed.Inc()
		s.logger.Errorf(providers.TypeDigest, "Send digest to user %s: %s", u.ID, err)
		s.release(ctx, u.ID, since)
		return
	}

	if err := s.store.CompleteDigest(ctx, u.ID, since, models.DigestSent); err != nil {
		s.logger.Errorf(providers.TypeDigest, "Mark digest sent for user %s: %s", u.ID, err)
	}
	c.processed.Inc()
	c.emailed.Inc()
}

func (s *DigestService) release(ctx context.Context, userID string, since time.Time) {
	if err := s.store.ReleaseDigest(ctx, userID, since); err != nil {
		s.logger.Errorf(providers.TypeDigest, "Release digest claim for user %s: %s", userID, err)
	}
}

func (s *DigestService) buildPayload(ctx context.Context, u models.User, since, now time.Time) (*models.DigestPayload, error) {
	websites, err := s.store.ListWebsitesByUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	payload := &models.DigestPayload{UserID: u.ID, Email: u.Email, Since: since, Until: now}
	for _, w := range websites {
		entry := models.WebsiteDigest{WebsiteID: w.ID, URL: w.URL}

		snapshots, err := s.store.ListSnapshots(ctx, w.ID, since, now)
		if err != nil {
			return nil, err
		}
		entry.Scans = len(snapshots)
		if len(snapshots) > 0 {
			latest := snapshots[len(snapshots)-1].Score
			entry.LatestScore = &latest

			baseline := snapshots[0].Score
			before, err := s.store.LatestSnapshotBefore(ctx, w.ID, snapshots[0].CreatedAt)
			if err != nil {
				return nil, err
			}
			if before != nil {
				baseline = before.Score
			}
			entry.ScoreChange = latest - baseline
		}

		alerts, err := s.store.ListAlerts(ctx, w.ID, since, now)
		if err != nil {
			return nil, err
		}
		for _, a := range alerts {
			if a.Suppressed {
				entry.SuppressedAlerts++
			} else {
				entry.Alerts++
			}
		}

		payload.Websites = append(payload.Websites, entry)
	}
	return payload, nil
}

func NewDigestService(conf *structures.Config, store storage.StoreInterface, catalog *models.PlanCatalog,
	mailer MailerInterface, metrics providers.MetricsProviderInterface, logger providers.Logger) DigestServiceInterface {
	return &DigestService{
		conf:    conf,
		store:   store,
		catalog: catalog,
		mailer:  mailer,
		metrics: metrics,
		logger:  logger,
	}
}
