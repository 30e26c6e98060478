package models

import (
	"time"
)

// AlertType classifies what kind of emergency was reported.
type AlertType string

const (
	TypeMedical               AlertType = "medical"
	TypeSecurity              AlertType = "security"
	TypeNaturalDisaster       AlertType = "natural_disaster"
	TypeAccident              AlertType = "accident"
	TypeFire                  AlertType = "fire"
	TypeTheft                 AlertType = "theft"
	TypeViolence              AlertType = "violence"
	TypeMissingPerson         AlertType = "missing_person"
	TypeInfrastructureFailure AlertType = "infrastructure_failure"
	TypeOther                 AlertType = "other"
)

// Valid reports whether t is a known alert type.
func (t AlertType) Valid() bool {
	switch t {
	case TypeMedical, TypeSecurity, TypeNaturalDisaster, TypeAccident, TypeFire,
		TypeTheft, TypeViolence, TypeMissingPerson, TypeInfrastructureFailure, TypeOther:
		return true
	}
	return false
}

// Severity is the reporter-supplied seriousness of an alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Status is the lifecycle state of an alert.
type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusResponding   Status = "responding"
	StatusResolved     Status = "resolved"
	StatusFalseAlarm   Status = "false_alarm"
	StatusCancelled    Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusAcknowledged, StatusResponding, StatusResolved, StatusFalseAlarm, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status ends the lifecycle.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusFalseAlarm || s == StatusCancelled
}

// Priority is derived from severity and type; see alerts.ComputePriority.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ResponderRole identifies the function a responder fills on a team.
type ResponderRole string

const (
	RoleFirstResponder ResponderRole = "first_responder"
	RoleMedical        ResponderRole = "medical"
	RoleSecurity       ResponderRole = "security"
	RoleFire           ResponderRole = "fire"
	RoleCoordinator    ResponderRole = "coordinator"
)

func (r ResponderRole) Valid() bool {
	switch r {
	case RoleFirstResponder, RoleMedical, RoleSecurity, RoleFire, RoleCoordinator:
		return true
	}
	return false
}

// ResponderStatus tracks a single responder's progress on an alert.
type ResponderStatus string

const (
	ResponderAssigned  ResponderStatus = "assigned"
	ResponderEnRoute   ResponderStatus = "en_route"
	ResponderOnScene   ResponderStatus = "on_scene"
	ResponderCompleted ResponderStatus = "completed"
)

func (r ResponderStatus) Valid() bool {
	switch r {
	case ResponderAssigned, ResponderEnRoute, ResponderOnScene, ResponderCompleted:
		return true
	}
	return false
}

// Location is the free-text plus coordinate description of where an alert happened.
type Location struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Address    string  `json:"address,omitempty"`
	Landmark   string  `json:"landmark,omitempty"`
	Area       string  `json:"area,omitempty"`
	City       string  `json:"city,omitempty"`
	State      string  `json:"state,omitempty"`
	PostalCode string  `json:"postal_code,omitempty"`
}

// ResponderAssignment is one responder's participation record on one alert.
type ResponderAssignment struct {
	ResponderID      string          `json:"responder_id"`
	Role             ResponderRole   `json:"role"`
	Status           ResponderStatus `json:"status"`
	AssignedAt       time.Time       `json:"assigned_at"`
	EstimatedArrival *time.Time      `json:"estimated_arrival,omitempty"`
	ActualArrival    *time.Time      `json:"actual_arrival,omitempty"`
}

// Active reports whether the assignment still counts against the
// one-live-assignment-per-responder rule.
func (a ResponderAssignment) Active() bool {
	return a.Status != ResponderCompleted
}

// AlertUpdate is one append-only entry in an alert's update log.
type AlertUpdate struct {
	Author    string    `json:"author"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Public    bool      `json:"public"`
}

// Escalation is one append-only entry in an alert's escalation log.
type Escalation struct {
	EscalatedBy string    `json:"escalated_by"`
	EscalatedTo string    `json:"escalated_to"`
	Reason      string    `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
}

// Alert is the central record of one reported emergency and its handling lifecycle.
type Alert struct {
	Code          string    `json:"code"`
	Type          AlertType `json:"type"`
	Severity      Severity  `json:"severity"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Location      Location  `json:"location"`
	ReporterID    string    `json:"reporter_id"`
	ContactNumber string    `json:"contact_number,omitempty"`
	Anonymous     bool      `json:"anonymous"`

	Status   Status   `json:"status"`
	Priority Priority `json:"priority"`
	// PriorityLocked pins priority at urgent after an escalation until resolution.
	PriorityLocked bool `json:"priority_locked"`

	CreatedAt         time.Time  `json:"created_at"`
	AcknowledgedAt    *time.Time `json:"acknowledged_at,omitempty"`
	ResponseStartedAt *time.Time `json:"response_started_at,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`

	ResponseTeam []ResponderAssignment `json:"response_team"`
	Updates      []AlertUpdate         `json:"updates"`
	Escalations  []Escalation          `json:"escalations"`

	Verified   bool       `json:"verified"`
	VerifiedBy string     `json:"verified_by,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`

	// LeadHandler is the identity currently responsible for the alert;
	// reassigned by escalation.
	LeadHandler string `json:"lead_handler,omitempty"`

	Resolution  string `json:"resolution,omitempty"`
	ActionTaken string `json:"action_taken,omitempty"`
}

// EscalationCount is derived from the escalation log.
func (a *Alert) EscalationCount() int {
	return len(a.Escalations)
}

// ActiveAssignment returns the live assignment for responderID, if any.
func (a *Alert) ActiveAssignment(responderID string) *ResponderAssignment {
	for i := range a.ResponseTeam {
		if a.ResponseTeam[i].ResponderID == responderID && a.ResponseTeam[i].Active() {
			return &a.ResponseTeam[i]
		}
	}
	return nil
}

// LastEscalation returns the most recent escalation entry, or nil.
func (a *Alert) LastEscalation() *Escalation {
	if len(a.Escalations) == 0 {
		return nil
	}
	return &a.Escalations[len(a.Escalations)-1]
}

// EmergencyContact is a person notified out-of-band when their reporter raises an alert.
type EmergencyContact struct {
	ID         string    `json:"id"`
	ReporterID string    `json:"reporter_id"`
	UserID     string    `json:"user_id,omitempty"` // platform identity, joins the user room
	Name       string    `json:"name"`
	Phone      string    `json:"phone,omitempty"`
	Email      string    `json:"email,omitempty"`
	ChatID     int64     `json:"chat_id,omitempty"` // telegram chat
	Relation   string    `json:"relation,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
