package models

import "time"

// CreateAlertRequest is the input structure for reporting a new emergency.
type CreateAlertRequest struct {
	Type          AlertType `json:"type" binding:"required"`
	Severity      Severity  `json:"severity" binding:"required"`
	Title         string    `json:"title" binding:"required,max=200"`
	Description   string    `json:"description" binding:"max=2000"`
	Location      Location  `json:"location" binding:"required"`
	ContactNumber string    `json:"contact_number"`
	Anonymous     bool      `json:"anonymous"`
}

// UpdateStatusRequest drives a lifecycle transition.
type UpdateStatusRequest struct {
	Status      Status `json:"status" binding:"required"`
	Message     string `json:"message"`
	Resolution  string `json:"resolution"`
	ActionTaken string `json:"action_taken"`
}

// AssignResponderRequest adds a responder to an alert's team.
type AssignResponderRequest struct {
	ResponderID      string        `json:"responder_id" binding:"required"`
	Role             ResponderRole `json:"role" binding:"required"`
	EstimatedArrival *time.Time    `json:"estimated_arrival"`
}

// UpdateResponderStatusRequest moves a responder along assigned → en_route → on_scene → completed.
type UpdateResponderStatusRequest struct {
	Status        ResponderStatus `json:"status" binding:"required"`
	ActualArrival *time.Time      `json:"actual_arrival"`
}

// VolunteerRequest lets a responder self-assign; role comes from their profile.
type VolunteerRequest struct {
	Message string `json:"message"`
}

// EscalateRequest raises an alert's handling authority.
type EscalateRequest struct {
	Reason string `json:"reason" binding:"required"`
	To     string `json:"to"`
}

// AddUpdateRequest appends a free-text entry to an alert's update log.
type AddUpdateRequest struct {
	Message string `json:"message" binding:"required,max=1000"`
	Public  bool   `json:"public"`
}

// BroadcastRequest pushes an announcement to the responder room.
type BroadcastRequest struct {
	Message string `json:"message" binding:"required,max=1000"`
}

// ListAlertsFilter narrows alert listings; all fields optional.
type ListAlertsFilter struct {
	Status     Status    `form:"status"`
	Type       AlertType `form:"type"`
	Severity   Severity  `form:"severity"`
	ReporterID string    `form:"reporter_id"`
	Limit      int       `form:"limit"`
	Offset     int       `form:"offset"`
}

// CreateContactRequest registers an emergency contact for a reporter.
type CreateContactRequest struct {
	Name     string `json:"name" binding:"required"`
	UserID   string `json:"user_id"`
	Phone    string `json:"phone"`
	Email    string `json:"email" binding:"omitempty,email"`
	ChatID   int64  `json:"chat_id"`
	Relation string `json:"relation"`
}
