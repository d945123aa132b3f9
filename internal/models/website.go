package models

import "time"

type Website struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	URL           string     `json:"url"`
	Plan          PlanTier   `json:"plan"`
	Monitored     bool       `json:"monitored"`
	LastScanAt    *time.Time `json:"last_scan_at,omitempty"`
	ScanClaimedAt *time.Time `json:"scan_claimed_at,omitempty"`
}

type User struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Plan  PlanTier `json:"plan"`
}

// ComplianceSnapshot is a single score reported by the scanner. Snapshots are
// append-only.
type ComplianceSnapshot struct {
	ID        string    `json:"id"`
	WebsiteID string    `json:"website_id"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

type ScanJobStatus string

const (
	ScanJobPending    ScanJobStatus = "pending"
	ScanJobDispatched ScanJobStatus = "dispatched"
	ScanJobFailed     ScanJobStatus = "failed"
)

// ScanJob only lives for the duration of one scheduler pass.
type ScanJob struct {
	WebsiteID   string        `json:"website_id"`
	Status      ScanJobStatus `json:"status"`
	TriggeredAt time.Time     `json:"triggered_at"`
}
