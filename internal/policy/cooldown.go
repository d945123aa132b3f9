package policy

import "time"

// Admit reports whether a qualified alert leaves the cooldown window and may
// be dispatched. A suppressed alert must not move lastAlertAt.
func Admit(lastAlertAt *time.Time, cooldownHours int, now time.Time) bool {
	if lastAlertAt == nil {
		return true
	}
	return now.Sub(*lastAlertAt) >= time.Duration(cooldownHours)*time.Hour
}
