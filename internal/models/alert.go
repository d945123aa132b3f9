package models

import "time"

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type AlertCategory string

const CategoryComplianceDrop AlertCategory = "compliance_drop"

// AlertRecord is an entry of the append-only alert ledger. Suppressed alerts
// are kept for audit; only Acknowledged changes after creation.
type AlertRecord struct {
	ID            string        `json:"id"`
	WebsiteID     string        `json:"website_id"`
	SnapshotID    string        `json:"snapshot_id"`
	Category      AlertCategory `json:"category"`
	PreviousScore int           `json:"previous_score"`
	CurrentScore  int           `json:"current_score"`
	Delta         int           `json:"delta"`
	Severity      Severity      `json:"severity"`
	CreatedAt     time.Time     `json:"created_at"`
	Suppressed    bool          `json:"suppressed"`
	Acknowledged  bool          `json:"acknowledged"`
}

type DigestStatus string

const (
	DigestProcessing DigestStatus = "processing"
	DigestSent       DigestStatus = "sent"
	DigestEmpty      DigestStatus = "empty"
)

type WebsiteDigest struct {
	WebsiteID        string `json:"website_id"`
	URL              string `json:"url"`
	Scans            int    `json:"scans"`
	LatestScore      *int   `json:"latest_score,omitempty"`
	ScoreChange      int    `json:"score_change"`
	Alerts           int    `json:"alerts"`
	SuppressedAlerts int    `json:"suppressed_alerts"`
}

type DigestPayload struct {
	UserID   string          `json:"user_id"`
	Email    string          `json:"email"`
	Since    time.Time       `json:"since"`
	Until    time.Time       `json:"until"`
	Websites []WebsiteDigest `json:"websites"`
}

// HasActivity reports whether anything happened on the user's websites
// inside the window.
func (d *DigestPayload) HasActivity() bool {
	for _, w := range d.Websites {
		if w.Scans > 0 || w.Alerts > 0 || w.SuppressedAlerts > 0 {
			return true
		}
	}
	return false
}
