package alerts

import (
	"fmt"
	"time"

	"dispatch-service/internal/models"
)

// EscalationCooldown is the minimum gap between escalations on one alert.
// Evaluated lazily against the last escalation entry, not by a timer.
const EscalationCooldown = 24 * time.Hour

// Escalate appends an escalation entry, hands the alert to a new lead,
// forces priority to urgent (locked until resolution), and raises an active
// alert to acknowledged.
func Escalate(a *models.Alert, by, to, reason string, now time.Time) error {
	if a.Status.Terminal() {
		return invalidTransition(a.Status, a.Status)
	}
	if last := a.LastEscalation(); last != nil {
		if since := now.Sub(last.Timestamp); since < EscalationCooldown {
			return newError(KindEscalationTooSoon, "alert %s was escalated %s ago; minimum gap is %s", a.Code, since.Round(time.Minute), EscalationCooldown)
		}
	}
	if to == "" {
		return newError(KindNoEscalationTarget, "no escalation target available for alert %s", a.Code)
	}

	a.Escalations = append(a.Escalations, models.Escalation{
		EscalatedBy: by,
		EscalatedTo: to,
		Reason:      reason,
		Timestamp:   now,
	})
	a.LeadHandler = to
	a.Priority = models.PriorityUrgent
	a.PriorityLocked = true

	appendUpdate(a, by, fmt.Sprintf("alert escalated to %s: %s", to, reason), true, now)

	if a.Status == models.StatusActive {
		if err := Acknowledge(a, to, now); err != nil {
			return err
		}
	}
	return nil
}

// PickEscalationTarget selects an administrator not already on the alert's
// team. Returns "" when nobody qualifies.
func PickEscalationTarget(a *models.Alert, admins []string) string {
	for _, admin := range admins {
		if a.ActiveAssignment(admin) == nil && admin != a.LeadHandler {
			return admin
		}
	}
	return ""
}
