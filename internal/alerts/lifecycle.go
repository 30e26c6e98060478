package alerts

import (
	"fmt"
	"time"

	"dispatch-service/internal/models"
)

// transitions is the allowed status graph. Status only ever moves forward;
// terminal states have no outgoing edges.
var transitions = map[models.Status][]models.Status{
	models.StatusActive:       {models.StatusAcknowledged, models.StatusCancelled, models.StatusFalseAlarm},
	models.StatusAcknowledged: {models.StatusResponding, models.StatusResolved, models.StatusCancelled, models.StatusFalseAlarm},
	models.StatusResponding:   {models.StatusResolved},
}

// CanTransition reports whether the status graph permits from → to.
func CanTransition(from, to models.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func invalidTransition(from, to models.Status) *Error {
	return newError(KindInvalidTransition, "cannot move alert from %s to %s", from, to)
}

// appendUpdate records one log entry. Every status-affecting mutation
// appends exactly one.
func appendUpdate(a *models.Alert, author, message string, public bool, now time.Time) {
	a.Updates = append(a.Updates, models.AlertUpdate{
		Author:    author,
		Message:   message,
		Timestamp: now,
		Public:    public,
	})
}

// Acknowledge verifies an active alert. Sets AcknowledgedAt once and
// records the verifier.
func Acknowledge(a *models.Alert, by string, now time.Time) error {
	if a.Status != models.StatusActive {
		return invalidTransition(a.Status, models.StatusAcknowledged)
	}
	a.Status = models.StatusAcknowledged
	if a.AcknowledgedAt == nil {
		t := now
		a.AcknowledgedAt = &t
	}
	a.Verified = true
	a.VerifiedBy = by
	if a.VerifiedAt == nil {
		t := now
		a.VerifiedAt = &t
	}
	appendUpdate(a, by, "alert acknowledged and verified", true, now)
	return nil
}

// BeginResponse moves an acknowledged alert into responding. It is also
// invoked implicitly when a responder reaches on_scene; callers that want
// the implicit rule use BeginResponseIfNeeded.
func BeginResponse(a *models.Alert, by string, now time.Time) error {
	if a.Status != models.StatusAcknowledged {
		return invalidTransition(a.Status, models.StatusResponding)
	}
	a.Status = models.StatusResponding
	if a.ResponseStartedAt == nil {
		t := now
		a.ResponseStartedAt = &t
	}
	appendUpdate(a, by, "response started", true, now)
	return nil
}

// BeginResponseIfNeeded is the named side-effect rule: a responder reaching
// the scene starts the response phase unless it already started.
func BeginResponseIfNeeded(a *models.Alert, by string, now time.Time) error {
	if a.Status == models.StatusResponding {
		return nil
	}
	return BeginResponse(a, by, now)
}

// Resolve closes an alert from acknowledged or responding. Sets ResolvedAt
// exactly once and forces every live assignment to completed.
func Resolve(a *models.Alert, by, resolution, actionTaken string, now time.Time) error {
	if a.Status != models.StatusAcknowledged && a.Status != models.StatusResponding {
		return invalidTransition(a.Status, models.StatusResolved)
	}
	a.Status = models.StatusResolved
	if a.ResolvedAt == nil {
		t := now
		a.ResolvedAt = &t
	}
	a.Resolution = resolution
	a.ActionTaken = actionTaken
	for i := range a.ResponseTeam {
		if a.ResponseTeam[i].Active() {
			a.ResponseTeam[i].Status = models.ResponderCompleted
		}
	}
	msg := "alert resolved"
	if actionTaken != "" {
		msg = fmt.Sprintf("alert resolved: %s", actionTaken)
	}
	appendUpdate(a, by, msg, true, now)
	return nil
}

// Cancel withdraws an alert. Only the original reporter or an administrator
// may cancel, and only while the alert is active or acknowledged.
func Cancel(a *models.Alert, by string, isAdmin bool, now time.Time) error {
	if by != a.ReporterID && !isAdmin {
		return newError(KindAccessDenied, "only the reporter or an administrator can cancel alert %s", a.Code)
	}
	if a.Status != models.StatusActive && a.Status != models.StatusAcknowledged {
		return invalidTransition(a.Status, models.StatusCancelled)
	}
	a.Status = models.StatusCancelled
	appendUpdate(a, by, "alert cancelled", true, now)
	return nil
}

// MarkFalseAlarm closes an alert as unfounded. Restricted to administrators
// and the verifier who acknowledged it.
func MarkFalseAlarm(a *models.Alert, by string, isAdmin bool, now time.Time) error {
	if !isAdmin && (a.VerifiedBy == "" || by != a.VerifiedBy) {
		return newError(KindAccessDenied, "only an administrator or the verifier can mark alert %s as a false alarm", a.Code)
	}
	if a.Status != models.StatusActive && a.Status != models.StatusAcknowledged {
		return invalidTransition(a.Status, models.StatusFalseAlarm)
	}
	a.Status = models.StatusFalseAlarm
	appendUpdate(a, by, "alert marked as false alarm", true, now)
	return nil
}

// Reclassify changes severity and/or type and recomputes priority unless an
// escalation locked it at urgent.
func Reclassify(a *models.Alert, severity models.Severity, alertType models.AlertType, by string, now time.Time) {
	a.Severity = severity
	a.Type = alertType
	if !a.PriorityLocked {
		a.Priority = ComputePriority(severity, alertType)
	}
	appendUpdate(a, by, fmt.Sprintf("alert reclassified to %s/%s", alertType, severity), false, now)
}
