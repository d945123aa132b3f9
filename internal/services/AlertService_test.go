package services

import (
	"complywatch/internal/models"
	"complywatch/internal/storage"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allAlerts(t *testing.T, f *fixture, websiteID string) []models.AlertRecord {
	t.Helper()
	alerts, err := f.store.ListAlerts(context.Background(), websiteID, time.Time{}, baseNow.Add(365*24*time.Hour))
	require.NoError(t, err)
	return alerts
}

func TestProcessSnapshot_BusinessDropThenCooldown(t *testing.T) {
	f := newFixture()
	f.website("biz", models.PlanBusiness, nil)
	svc := f.alertService()
	ctx := context.Background()

	_, err := svc.ProcessSnapshot(ctx, "biz", 80, baseNow.Add(-time.Hour))
	require.NoError(t, err)

	res, err := svc.ProcessSnapshot(ctx, "biz", 70, baseNow)
	require.NoError(t, err)
	require.NotNil(t, res.Alert)
	assert.Equal(t, models.SeverityWarning, res.Alert.Severity)
	assert.Equal(t, -10, res.Alert.Delta)
	assert.False(t, res.Alert.Suppressed)
	require.Len(t, f.mailer.Messages(), 1)
	assert.Equal(t, "biz@example.com", f.mailer.Messages()[0].To)

	f.clock.Advance(time.Hour)
	res, err = svc.ProcessSnapshot(ctx, "biz", 60, f.clock.Now())
	require.NoError(t, err)
	require.NotNil(t, res.Alert)
	assert.True(t, res.Alert.Suppressed)
	assert.Len(t, f.mailer.Messages(), 1, "suppressed alert is not mailed")

	last, err := f.store.LastAlertAt(ctx, "biz", models.CategoryComplianceDrop)
	require.NoError(t, err)
	assert.True(t, last.Equal(baseNow), "suppressed alert leaves the cooldown untouched")

	f.clock.Advance(12 * time.Hour)
	res, err = svc.ProcessSnapshot(ctx, "biz", 50, f.clock.Now())
	require.NoError(t, err)
	require.NotNil(t, res.Alert)
	assert.False(t, res.Alert.Suppressed)

	alerts := allAlerts(t, f, "biz")
	require.Len(t, alerts, 3)
	assert.Equal(t, 1, f.metrics.Suppressed)
	assert.Equal(t, 2, f.metrics.Alerts)
}

func TestProcessSnapshot_AgencyCriticalDrop(t *testing.T) {
	f := newFixture()
	f.website("agency", models.PlanAgency, nil)
	svc := f.alertService()
	ctx := context.Background()

	_, err := svc.ProcessSnapshot(ctx, "agency", 90, baseNow.Add(-15*time.Minute))
	require.NoError(t, err)
	res, err := svc.ProcessSnapshot(ctx, "agency", 74, baseNow)
	require.NoError(t, err)

	require.NotNil(t, res.Alert)
	assert.Equal(t, models.SeverityCritical, res.Alert.Severity)
	assert.Equal(t, -16, res.Alert.Delta)
	assert.Equal(t, res.Snapshot.ID, res.Alert.SnapshotID)
	assert.False(t, res.Alert.Suppressed)
}

func TestProcessSnapshot_FreePlanNeverAlerts(t *testing.T) {
	f := newFixture()
	f.website("free", models.PlanFree, nil)
	svc := f.alertService()
	ctx := context.Background()

	_, err := svc.ProcessSnapshot(ctx, "free", 95, baseNow.Add(-time.Hour))
	require.NoError(t, err)
	res, err := svc.ProcessSnapshot(ctx, "free", 20, baseNow)
	require.NoError(t, err)

	assert.Nil(t, res.Alert)
	assert.Empty(t, allAlerts(t, f, "free"))
	assert.Empty(t, f.mailer.Messages())
}

func TestProcessSnapshot_DropEqualToThresholdDoesNotFire(t *testing.T) {
	f := newFixture()
	f.website("biz", models.PlanBusiness, nil)
	svc := f.alertService()
	ctx := context.Background()

	_, err := svc.ProcessSnapshot(ctx, "biz", 80, baseNow.Add(-time.Hour))
	require.NoError(t, err)
	res, err := svc.ProcessSnapshot(ctx, "biz", 75, baseNow)
	require.NoError(t, err)
	assert.Nil(t, res.Alert)
}

func TestProcessSnapshot_FirstSnapshotHasNoBaseline(t *testing.T) {
	f := newFixture()
	f.website("agency", models.PlanAgency, nil)

	res, err := f.alertService().ProcessSnapshot(context.Background(), "agency", 10, baseNow)
	require.NoError(t, err)
	assert.Nil(t, res.Alert)
	assert.Equal(t, 10, res.Snapshot.Score)
	assert.NotEmpty(t, res.Snapshot.ID)
}

func TestProcessSnapshot_DefaultsCreatedAtToClock(t *testing.T) {
	f := newFixture()
	f.website("agency", models.PlanAgency, nil)

	res, err := f.alertService().ProcessSnapshot(context.Background(), "agency", 88, time.Time{})
	require.NoError(t, err)
	assert.True(t, res.Snapshot.CreatedAt.Equal(baseNow))
}

func TestProcessSnapshot_ScheduledOnlyWaitsForBatch(t *testing.T) {
	f := newFixture()
	f.website("starter", models.PlanStarter, nil)
	svc := f.alertService()
	ctx := context.Background()

	_, err := svc.ProcessSnapshot(ctx, "starter", 90, baseNow.Add(-7*24*time.Hour))
	require.NoError(t, err)
	res, err := svc.ProcessSnapshot(ctx, "starter", 70, baseNow)
	require.NoError(t, err)
	assert.Nil(t, res.Alert)
	assert.Empty(t, allAlerts(t, f, "starter"))
}

func TestProcessSnapshot_Validation(t *testing.T) {
	f := newFixture()
	f.website("biz", models.PlanBusiness, nil)
	svc := f.alertService()

	_, err := svc.ProcessSnapshot(context.Background(), "biz", 101, baseNow)
	assert.ErrorIs(t, err, ErrInvalidScore)
	_, err = svc.ProcessSnapshot(context.Background(), "biz", -1, baseNow)
	assert.ErrorIs(t, err, ErrInvalidScore)
	_, err = svc.ProcessSnapshot(context.Background(), "missing", 50, baseNow)
	assert.ErrorIs(t, err, ErrWebsiteNotFound)
}

func TestProcessSnapshot_MailerFailureKeepsAlert(t *testing.T) {
	f := newFixture()
	f.website("biz", models.PlanBusiness, nil)
	f.mailer.SendFn = func(context.Context, models.MailMessage) error { return errors.New("smtp down") }
	svc := f.alertService()
	ctx := context.Background()

	_, err := svc.ProcessSnapshot(ctx, "biz", 80, baseNow.Add(-time.Hour))
	require.NoError(t, err)
	res, err := svc.ProcessSnapshot(ctx, "biz", 60, baseNow)
	require.NoError(t, err)
	require.NotNil(t, res.Alert)
	assert.False(t, res.Alert.Suppressed)
	assert.Len(t, allAlerts(t, f, "biz"), 1)
	assert.Equal(t, 1, f.logger.Count("error"))
}

func TestEvaluateScheduledAlerts_StarterWindow(t *testing.T) {
	f := newFixture()
	f.website("starter", models.PlanStarter, nil)
	f.website("biz", models.PlanBusiness, nil)
	svc := f.alertService()
	ctx := context.Background()
	since := baseNow.Add(-7 * 24 * time.Hour)

	_, err := svc.ProcessSnapshot(ctx, "starter", 90, since.Add(-time.Hour))
	require.NoError(t, err)
	_, err = svc.ProcessSnapshot(ctx, "starter", 75, since.Add(time.Hour))
	require.NoError(t, err)
	_, err = svc.ProcessSnapshot(ctx, "starter", 60, since.Add(48*time.Hour))
	require.NoError(t, err)

	result, err := svc.EvaluateScheduledAlerts(ctx, since, baseNow)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Websites, "realtime websites are left to the snapshot path")
	assert.Equal(t, 2, result.Evaluated)
	assert.Equal(t, 1, result.Raised)
	assert.Equal(t, 1, result.Suppressed)
	assert.Len(t, f.mailer.Messages(), 1)

	again, err := svc.EvaluateScheduledAlerts(ctx, since, baseNow)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Raised)
	assert.Equal(t, 0, again.Suppressed)
	assert.Len(t, allAlerts(t, f, "starter"), 2)
}

func TestEvaluateScheduledAlerts_OverlappingRunsRaiseOnce(t *testing.T) {
	f := newFixture()
	f.website("starter", models.PlanStarter, nil)
	svc := f.alertService()
	ctx := context.Background()
	since := baseNow.Add(-7 * 24 * time.Hour)

	_, err := svc.ProcessSnapshot(ctx, "starter", 95, since.Add(time.Hour))
	require.NoError(t, err)
	_, err = svc.ProcessSnapshot(ctx, "starter", 70, since.Add(2*time.Hour))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.EvaluateScheduledAlerts(ctx, since, baseNow)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	alerts := allAlerts(t, f, "starter")
	require.Len(t, alerts, 1)
	assert.False(t, alerts[0].Suppressed)
	assert.Len(t, f.mailer.Messages(), 1)
}

func TestEvaluateScheduledAlerts_InvalidWindow(t *testing.T) {
	f := newFixture()
	_, err := f.alertService().EvaluateScheduledAlerts(context.Background(), baseNow, baseNow)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestListAndAcknowledgeAlerts(t *testing.T) {
	f := newFixture()
	f.website("biz", models.PlanBusiness, nil)
	svc := f.alertService()
	ctx := context.Background()

	_, err := svc.ProcessSnapshot(ctx, "biz", 80, baseNow.Add(-time.Hour))
	require.NoError(t, err)
	res, err := svc.ProcessSnapshot(ctx, "biz", 60, baseNow)
	require.NoError(t, err)

	websiteID, err := svc.AcknowledgeAlert(ctx, res.Alert.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Alert.WebsiteID, websiteID)
	alerts, err := svc.ListAlerts(ctx, "biz")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Acknowledged)

	_, err = svc.ListAlerts(ctx, "missing")
	assert.ErrorIs(t, err, ErrWebsiteNotFound)
}

func TestAlertListCacheDroppedOnEveryLedgerChange(t *testing.T) {
	f := newFixture()
	f.website("biz", models.PlanBusiness, nil)
	f.website("starter", models.PlanStarter, nil)
	svc := f.alertService()
	ctx := context.Background()

	_, err := svc.ProcessSnapshot(ctx, "biz", 80, baseNow.Add(-time.Hour))
	require.NoError(t, err)
	f.cache.Set(AlertsCacheKey("biz"), []byte("[]"))
	res, err := svc.ProcessSnapshot(ctx, "biz", 60, baseNow)
	require.NoError(t, err)
	require.NotNil(t, res.Alert)
	_, cached := f.cache.Get(AlertsCacheKey("biz"))
	assert.False(t, cached, "realtime alert")

	f.cache.Set(AlertsCacheKey("biz"), []byte("[]"))
	_, err = svc.AcknowledgeAlert(ctx, res.Alert.ID)
	require.NoError(t, err)
	_, cached = f.cache.Get(AlertsCacheKey("biz"))
	assert.False(t, cached, "acknowledgement")

	_, err = svc.ProcessSnapshot(ctx, "starter", 90, baseNow.Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = svc.ProcessSnapshot(ctx, "starter", 70, baseNow.Add(-time.Hour))
	require.NoError(t, err)
	f.cache.Set(AlertsCacheKey("starter"), []byte("[]"))
	result, err := svc.EvaluateScheduledAlerts(ctx, baseNow.Add(-3*time.Hour), baseNow)
	require.NoError(t, err)
	require.Equal(t, 1, result.Raised)
	_, cached = f.cache.Get(AlertsCacheKey("starter"))
	assert.False(t, cached, "scheduled batch alert")
}

func TestAcknowledgeAlert_UnknownKeepsCache(t *testing.T) {
	f := newFixture()
	f.cache.Set(AlertsCacheKey("biz"), []byte("[]"))

	_, err := f.alertService().AcknowledgeAlert(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Len(t, f.cache.Data, 1)
}
