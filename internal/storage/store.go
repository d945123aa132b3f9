package storage

import (
	"complywatch/internal/models"
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an alert for the same snapshot transition
	// was already recorded.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict is returned when a compare-and-set lost against a concurrent
	// writer.
	ErrConflict = errors.New("concurrent update conflict")
)

type WebsiteStoreInterface interface {
	ListMonitoredWebsites(ctx context.Context) ([]models.Website, error)
	GetWebsite(ctx context.Context, id string) (*models.Website, error)
	ListWebsitesByUser(ctx context.Context, userID string) ([]models.Website, error)
	// ClaimScan atomically moves last_scan_at from expected to now and marks
	// the website in flight. It reports false when another pass got there
	// first or an unexpired claim is still held.
	ClaimScan(ctx context.Context, websiteID string, expected *time.Time, now time.Time, claimWindow time.Duration) (bool, error)
	// ReleaseScan undoes a claim made at claimedAt, restoring previous.
	ReleaseScan(ctx context.Context, websiteID string, claimedAt time.Time, previous *time.Time) error
}

type SnapshotStoreInterface interface {
	AppendSnapshot(ctx context.Context, snapshot models.ComplianceSnapshot) error
	// LatestSnapshotBefore returns nil without error when no earlier snapshot exists.
	LatestSnapshotBefore(ctx context.Context, websiteID string, before time.Time) (*models.ComplianceSnapshot, error)
	// ListSnapshots returns snapshots in (from, to], oldest first.
	ListSnapshots(ctx context.Context, websiteID string, from, to time.Time) ([]models.ComplianceSnapshot, error)
}

type AlertStoreInterface interface {
	LastAlertAt(ctx context.Context, websiteID string, category models.AlertCategory) (*time.Time, error)
	// RecordAlert appends the record. For a non-suppressed record it also moves
	// the category's last alert time from expected to record.CreatedAt in the
	// same transaction, failing with ErrConflict if expected is stale.
	RecordAlert(ctx context.Context, record models.AlertRecord, expected *time.Time) error
	// ListAlerts returns alerts created in (from, to], oldest first. A zero
	// from means no lower bound.
	ListAlerts(ctx context.Context, websiteID string, from, to time.Time) ([]models.AlertRecord, error)
	// AcknowledgeAlert marks the alert acknowledged and returns its website.
	AcknowledgeAlert(ctx context.Context, alertID string) (string, error)
}

type UserStoreInterface interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type DigestLedgerInterface interface {
	// ClaimDigest marks the user processed for the window starting at
	// windowStart. It reports false if the user was already claimed.
	ClaimDigest(ctx context.Context, userID string, windowStart time.Time, now time.Time) (bool, error)
	CompleteDigest(ctx context.Context, userID string, windowStart time.Time, status models.DigestStatus) error
	ReleaseDigest(ctx context.Context, userID string, windowStart time.Time) error
}

type StoreInterface interface {
	WebsiteStoreInterface
	SnapshotStoreInterface
	AlertStoreInterface
	UserStoreInterface
	DigestLedgerInterface
	Ping(ctx context.Context) error
	Close()
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func cooldownKey(websiteID string, category models.AlertCategory) string {
	return websiteID + "|" + string(category)
}

func digestKey(userID string, windowStart time.Time) string {
	return userID + "|" + windowStart.UTC().Format(time.RFC3339Nano)
}
