package policy

import (
	"complywatch/internal/models"
	"time"
)

const (
	dailyInterval  = 24 * time.Hour
	weeklyInterval = 7 * 24 * time.Hour
)

// IsScanDue decides whether a website on the given frequency class should be
// scanned at now. Continuous websites are eligible on every pass; spacing for
// them comes from the scheduler's claim window.
func IsScanDue(freq models.FrequencyClass, lastScanAt *time.Time, now time.Time) bool {
	switch freq {
	case models.FrequencyOnce:
		return lastScanAt == nil
	case models.FrequencyDaily:
		return lastScanAt == nil || now.Sub(*lastScanAt) >= dailyInterval
	case models.FrequencyWeekly:
		return lastScanAt == nil || now.Sub(*lastScanAt) >= weeklyInterval
	case models.FrequencyContinuous:
		return true
	default:
		return false
	}
}

// NextScanAt is for display only. Gating always re-evaluates IsScanDue.
func NextScanAt(from time.Time, intervalMinutes int) time.Time {
	return from.Add(time.Duration(intervalMinutes) * time.Minute)
}
