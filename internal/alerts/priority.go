package alerts

import (
	"time"

	"dispatch-service/internal/models"
)

// ComputePriority derives the discrete priority from severity and type.
// Escalation overrides this with a locked urgent priority; callers must
// check Alert.PriorityLocked before reapplying.
func ComputePriority(severity models.Severity, alertType models.AlertType) models.Priority {
	if severity == models.SeverityCritical {
		return models.PriorityUrgent
	}
	switch alertType {
	case models.TypeMedical, models.TypeFire, models.TypeViolence:
		return models.PriorityUrgent
	}
	switch severity {
	case models.SeverityHigh:
		return models.PriorityHigh
	case models.SeverityMedium:
		return models.PriorityMedium
	}
	return models.PriorityLow
}

// severityBase maps severity onto the urgency baseline.
func severityBase(severity models.Severity) float64 {
	switch severity {
	case models.SeverityCritical:
		return 4
	case models.SeverityHigh:
		return 3
	case models.SeverityMedium:
		return 2
	default:
		return 1
	}
}

const (
	urgencyMultiplierCap = 3
	urgencyMax           = 10
)

// UrgencyScore ranks alerts for dashboards. It grows with time since
// creation: base × (1 + min(elapsedMinutes/30, 3)), capped at 10.
// Distinct from Priority; never persisted.
func UrgencyScore(severity models.Severity, createdAt, now time.Time) float64 {
	elapsed := now.Sub(createdAt).Minutes()
	if elapsed < 0 {
		elapsed = 0
	}
	multiplier := elapsed / 30
	if multiplier > urgencyMultiplierCap {
		multiplier = urgencyMultiplierCap
	}
	score := severityBase(severity) * (1 + multiplier)
	if score > urgencyMax {
		score = urgencyMax
	}
	return score
}
