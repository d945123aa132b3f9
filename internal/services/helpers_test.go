package services

import (
	"complywatch/internal/models"
	"complywatch/internal/storage"
	"complywatch/internal/structures"
	"complywatch/internal/testutil"
	"time"
)

var baseNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func ago(d time.Duration) *time.Time {
	t := baseNow.Add(-d)
	return &t
}

func testConfig() *structures.Config {
	return &structures.Config{
		Scan: structures.ScanConfig{
			Interval:        time.Minute,
			ClaimWindow:     10 * time.Minute,
			Concurrency:     4,
			DispatchTimeout: time.Second,
		},
		Alerts: structures.AlertsConfig{BatchInterval: time.Hour},
		Digest: structures.DigestConfig{
			Interval:    24 * time.Hour,
			Lookback:    7 * 24 * time.Hour,
			Concurrency: 2,
		},
	}
}

type fixture struct {
	conf     *structures.Config
	store    *storage.MemoryStore
	catalog  *models.PlanCatalog
	executor *testutil.MockExecutor
	mailer   *testutil.MockMailer
	cache    *testutil.MockCache
	clock    *testutil.FixedClock
	metrics  *testutil.MockMetrics
	logger   *testutil.MockLogger
}

func newFixture() *fixture {
	return &fixture{
		conf:     testConfig(),
		store:    storage.NewMemoryStore(),
		catalog:  models.NewPlanCatalog(),
		executor: &testutil.MockExecutor{},
		mailer:   &testutil.MockMailer{},
		cache:    testutil.NewMockCache(),
		clock:    testutil.NewFixedClock(baseNow),
		metrics:  &testutil.MockMetrics{},
		logger:   &testutil.MockLogger{},
	}
}

func (f *fixture) website(id string, plan models.PlanTier, lastScanAt *time.Time) {
	owner := "owner-" + id
	f.store.PutUser(models.User{ID: owner, Email: id + "@example.com", Plan: plan})
	f.store.PutWebsite(models.Website{
		ID:         id,
		UserID:     owner,
		URL:        "https://" + id + ".example.com",
		Plan:       plan,
		Monitored:  true,
		LastScanAt: lastScanAt,
	})
}

func (f *fixture) scanService() *ScanTriggerService {
	return NewScanTriggerService(f.conf, f.store, f.catalog, f.executor, f.metrics, f.logger).(*ScanTriggerService)
}

func (f *fixture) alertService() *AlertService {
	return NewAlertService(f.store, f.catalog, f.mailer, f.cache, f.clock, f.metrics, f.logger).(*AlertService)
}

func (f *fixture) digestService() *DigestService {
	return NewDigestService(f.conf, f.store, f.catalog, f.mailer, f.metrics, f.logger).(*DigestService)
}
