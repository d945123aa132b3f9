package controllers

import (
	"complywatch/internal/models"
	"complywatch/internal/services"
	"context"
	"time"
)

// --- local mocks (scoped to controller tests) ---

type mockAlerts struct {
	snapshotCalls []int
	snapshotErr   error
	alerts        []models.AlertRecord
	listErr       error
	listCalls     int
	acked         []string
	ackErr        error
	batchSince    time.Time
	batchErr      error
}

func (m *mockAlerts) ProcessSnapshot(_ context.Context, websiteID string, score int, createdAt time.Time) (*services.SnapshotResult, error) {
	m.snapshotCalls = append(m.snapshotCalls, score)
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}
	return &services.SnapshotResult{Snapshot: models.ComplianceSnapshot{ID: "snap-1", WebsiteID: websiteID, Score: score, CreatedAt: createdAt}}, nil
}

func (m *mockAlerts) EvaluateScheduledAlerts(_ context.Context, since, _ time.Time) (*services.AlertPassResult, error) {
	m.batchSince = since
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	return &services.AlertPassResult{Websites: 1, Raised: 1}, nil
}

func (m *mockAlerts) ListAlerts(_ context.Context, _ string) ([]models.AlertRecord, error) {
	m.listCalls++
	return m.alerts, m.listErr
}

func (m *mockAlerts) AcknowledgeAlert(_ context.Context, alertID string) (string, error) {
	m.acked = append(m.acked, alertID)
	if m.ackErr != nil {
		return "", m.ackErr
	}
	return "w1", nil
}

type mockScans struct {
	calls  int
	delay  time.Duration
	result *services.ScanPassResult
	err    error
}

func (m *mockScans) RunDueWebsiteScans(_ context.Context, _ time.Time) (*services.ScanPassResult, error) {
	m.calls++
	time.Sleep(m.delay)
	return m.result, m.err
}

type mockDigests struct {
	since  time.Time
	result *services.DigestPassResult
	err    error
}

func (m *mockDigests) SendWeeklyMonitoringEmails(_ context.Context, since, _ time.Time) (*services.DigestPassResult, error) {
	m.since = since
	return m.result, m.err
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(context.Context) error { return m.err }
