package alerts

import (
	"fmt"
	"time"

	"dispatch-service/internal/models"
)

// AssignResponder appends a new assignment with status assigned. A responder
// may only hold one live assignment per alert. Assigning to an active alert
// acknowledges it first (named rule: first assignment implies verification).
func AssignResponder(a *models.Alert, responderID string, role models.ResponderRole, eta *time.Time, now time.Time) error {
	if a.Status.Terminal() {
		return invalidTransition(a.Status, a.Status)
	}
	if existing := a.ActiveAssignment(responderID); existing != nil {
		return newError(KindDuplicateAssignment, "responder %s already has a live assignment on alert %s", responderID, a.Code)
	}
	if a.Status == models.StatusActive {
		if err := Acknowledge(a, responderID, now); err != nil {
			return err
		}
	}
	a.ResponseTeam = append(a.ResponseTeam, models.ResponderAssignment{
		ResponderID:      responderID,
		Role:             role,
		Status:           models.ResponderAssigned,
		AssignedAt:       now,
		EstimatedArrival: eta,
	})
	appendUpdate(a, responderID, fmt.Sprintf("responder assigned with role %s", role), true, now)
	return nil
}

// responderOrder defines the forward-only assignment progression.
var responderOrder = map[models.ResponderStatus]int{
	models.ResponderAssigned:  0,
	models.ResponderEnRoute:   1,
	models.ResponderOnScene:   2,
	models.ResponderCompleted: 3,
}

// UpdateResponderStatus advances a responder's assignment. Reaching on_scene
// triggers the response phase on the alert; the lifecycle entry is appended
// after the responder-status entry so the log reflects cause before effect.
func UpdateResponderStatus(a *models.Alert, responderID string, status models.ResponderStatus, actualArrival *time.Time, now time.Time) error {
	assignment := a.ActiveAssignment(responderID)
	if assignment == nil {
		return newError(KindResponderNotFound, "responder %s has no live assignment on alert %s", responderID, a.Code)
	}
	if status == assignment.Status {
		// Repeated reports of the same status are harmless; don't log them twice.
		return nil
	}
	if responderOrder[status] < responderOrder[assignment.Status] {
		return newError(KindInvalidTransition, "cannot move responder %s from %s back to %s", responderID, assignment.Status, status)
	}
	assignment.Status = status
	if status == models.ResponderOnScene {
		if actualArrival != nil {
			assignment.ActualArrival = actualArrival
		} else if assignment.ActualArrival == nil {
			t := now
			assignment.ActualArrival = &t
		}
	}
	appendUpdate(a, responderID, fmt.Sprintf("responder status changed to %s", status), true, now)

	if status == models.ResponderOnScene {
		if err := BeginResponseIfNeeded(a, responderID, now); err != nil {
			return err
		}
	}
	return nil
}

// Volunteer self-assigns a responder with a role taken from their profile.
// A second volunteer call while already assigned is a success no-op, unlike
// AssignResponder which rejects duplicates.
func Volunteer(a *models.Alert, responderID string, role models.ResponderRole, message string, now time.Time) error {
	if a.Status.Terminal() {
		return invalidTransition(a.Status, a.Status)
	}
	if existing := a.ActiveAssignment(responderID); existing != nil {
		return nil
	}
	if err := AssignResponder(a, responderID, role, nil, now); err != nil {
		return err
	}
	if message != "" {
		appendUpdate(a, responderID, message, true, now)
	}
	return nil
}
