package policy

import "complywatch/internal/models"

// CriticalDrop is the fixed severity cut, independent of the plan threshold.
const CriticalDrop = 15

// EvaluateDrop returns an alert candidate when the score fell by strictly more
// than dropThreshold points. The returned record only carries the score fields;
// identity and timestamps are filled in by the caller.
func EvaluateDrop(currentScore, previousScore, dropThreshold int) (*models.AlertRecord, bool) {
	delta := currentScore - previousScore
	if delta >= -dropThreshold {
		return nil, false
	}

	severity := models.SeverityWarning
	if delta <= -CriticalDrop {
		severity = models.SeverityCritical
	}

	return &models.AlertRecord{
		Category:      models.CategoryComplianceDrop,
		PreviousScore: previousScore,
		CurrentScore:  currentScore,
		Delta:         delta,
		Severity:      severity,
	}, true
}
