package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dispatch-service/internal/dispatch"
	"dispatch-service/internal/identity"
	"dispatch-service/internal/logging"
	"dispatch-service/internal/models"
)

// ContactStore looks up the emergency contacts registered for a reporter.
type ContactStore interface {
	ListByReporter(ctx context.Context, reporterID string) ([]models.EmergencyContact, error)
}

// Notifier delivers out-of-band notifications (telegram/sms/email) to
// emergency contacts. Implementations must not block the caller.
type Notifier interface {
	NotifyNewAlert(alert models.Alert, contacts []models.EmergencyContact)
}

// Actor identifies who is performing a mutation.
type Actor struct {
	ID        string
	Admin     bool
	Responder bool
}

// onTeam reports whether the actor may act for alert a beyond reporting:
// administrators, the lead handler, and live team members.
func (actor Actor) onTeam(a *models.Alert) bool {
	return actor.Admin || actor.ID == a.LeadHandler || a.ActiveAssignment(actor.ID) != nil
}

// Service owns the alert lifecycle. All mutations on one alert are
// serialized; the router fan-out happens after the store commit and never
// fails the mutation.
type Service struct {
	store    Store
	router   dispatch.Router
	dir      identity.Directory
	contacts ContactStore
	notifier Notifier
	logger   *logging.Logger
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService wires the engine. contacts and notifier may be nil when
// out-of-band notification is not deployed.
func NewService(store Store, router dispatch.Router, dir identity.Directory, contacts ContactStore, notifier Notifier, logger *logging.Logger) *Service {
	return &Service{
		store:    store,
		router:   router,
		dir:      dir,
		contacts: contacts,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
}

// SetClock overrides the time source, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// lockAlert serializes mutations per alert code.
func (s *Service) lockAlert(code string) func() {
	s.mu.Lock()
	l, ok := s.locks[code]
	if !ok {
		l = &sync.Mutex{}
		s.locks[code] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// maxCodeAttempts bounds code regeneration when an insert hits a collision.
const maxCodeAttempts = 5

// newCode builds the human-shareable alert code, e.g. EMG-20260828-A3F9.
func (s *Service) newCode() string {
	suffix := strings.ToUpper(uuid.New().String()[:4])
	return fmt.Sprintf("EMG-%s-%s", s.now().Format("20060102"), suffix)
}

// Create validates and stores a new alert, then pushes emergency:new-alert
// to the responder room and to each registered emergency contact's room.
func (s *Service) Create(ctx context.Context, reporterID string, req models.CreateAlertRequest) (*models.Alert, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	now := s.now()
	alert := &models.Alert{
		Type:          req.Type,
		Severity:      req.Severity,
		Title:         req.Title,
		Description:   req.Description,
		Location:      req.Location,
		ReporterID:    reporterID,
		ContactNumber: req.ContactNumber,
		Anonymous:     req.Anonymous,
		Status:        models.StatusActive,
		Priority:      ComputePriority(req.Severity, req.Type),
		CreatedAt:     now,
	}
	appendUpdate(alert, reporterID, "alert reported", true, now)

	// The short code suffix can collide; regenerate and retry on conflict.
	insertErr := ErrDuplicateCode
	for attempt := 0; attempt < maxCodeAttempts && errors.Is(insertErr, ErrDuplicateCode); attempt++ {
		alert.Code = s.newCode()
		insertErr = s.store.Insert(ctx, alert)
	}
	if insertErr != nil {
		return nil, insertErr
	}
	s.logger.Infof("Created alert %s (%s/%s, priority %s)", alert.Code, alert.Type, alert.Severity, alert.Priority)

	rooms := []string{dispatch.RoomResponders}
	var contacts []models.EmergencyContact
	if s.contacts != nil {
		var err error
		contacts, err = s.contacts.ListByReporter(ctx, reporterID)
		if err != nil {
			s.logger.Errorf("Contact lookup failed for reporter %s: %v", reporterID, err)
		}
		for _, c := range contacts {
			if c.UserID != "" {
				rooms = append(rooms, dispatch.UserRoom(c.UserID))
			}
		}
	}
	s.router.PublishToMany(rooms, dispatch.EventNewAlert, dispatch.NewAlertPayload{Alert: *alert})

	if s.notifier != nil && len(contacts) > 0 {
		s.notifier.NotifyNewAlert(*alert, contacts)
	}
	return alert, nil
}

// GetByCode loads one alert.
func (s *Service) GetByCode(ctx context.Context, code string) (*models.Alert, error) {
	return s.store.GetByCode(ctx, code)
}

// List returns a filtered, paginated page of alerts plus the total count.
func (s *Service) List(ctx context.Context, f models.ListAlertsFilter) ([]models.Alert, int, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.store.List(ctx, f)
}

// mutate runs fn against a freshly loaded alert under the per-alert lock and
// saves the result. fn must either fully succeed or leave no trace; the
// domain functions uphold that by failing before any mutation.
func (s *Service) mutate(ctx context.Context, code string, fn func(a *models.Alert) error) (*models.Alert, error) {
	unlock := s.lockAlert(code)
	defer unlock()

	alert, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := fn(alert); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// publishUpdate pushes the latest log entry to the alert's room.
func (s *Service) publishUpdate(alert *models.Alert) {
	var last models.AlertUpdate
	if len(alert.Updates) > 0 {
		last = alert.Updates[len(alert.Updates)-1]
	}
	s.router.Publish(dispatch.AlertRoom(alert.Code), dispatch.EventUpdate, dispatch.UpdatePayload{
		Code:     alert.Code,
		Status:   alert.Status,
		Priority: alert.Priority,
		Update:   last,
	})
}

// UpdateStatus drives a lifecycle transition requested by actor.
func (s *Service) UpdateStatus(ctx context.Context, code string, actor Actor, req models.UpdateStatusRequest) (*models.Alert, error) {
	if !req.Status.Valid() {
		return nil, newError(KindValidation, "unknown status %q", req.Status)
	}
	now := s.now()
	alert, err := s.mutate(ctx, code, func(a *models.Alert) error {
		switch req.Status {
		case models.StatusAcknowledged:
			if !actor.Admin && !actor.Responder {
				return newError(KindAccessDenied, "actor %s cannot acknowledge alert %s", actor.ID, a.Code)
			}
			return Acknowledge(a, actor.ID, now)
		case models.StatusResponding:
			if !actor.onTeam(a) {
				return newError(KindAccessDenied, "actor %s cannot start the response on alert %s", actor.ID, a.Code)
			}
			return BeginResponse(a, actor.ID, now)
		case models.StatusResolved:
			if !actor.onTeam(a) {
				return newError(KindAccessDenied, "actor %s cannot resolve alert %s", actor.ID, a.Code)
			}
			return Resolve(a, actor.ID, req.Resolution, req.ActionTaken, now)
		case models.StatusCancelled:
			return Cancel(a, actor.ID, actor.Admin, now)
		case models.StatusFalseAlarm:
			return MarkFalseAlarm(a, actor.ID, actor.Admin, now)
		default:
			return invalidTransition(a.Status, req.Status)
		}
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infof("Alert %s moved to %s by %s", code, req.Status, actor.ID)
	s.publishUpdate(alert)
	return alert, nil
}

// AssignResponder adds a responder to the alert's team. Administrators can
// assign anyone; a responder can assign themselves.
func (s *Service) AssignResponder(ctx context.Context, code string, actor Actor, req models.AssignResponderRequest) (*models.Alert, error) {
	if !actor.Admin && actor.ID != req.ResponderID {
		return nil, newError(KindAccessDenied, "actor %s cannot assign responder %s", actor.ID, req.ResponderID)
	}
	if !req.Role.Valid() {
		return nil, newError(KindValidation, "unknown responder role %q", req.Role)
	}
	now := s.now()
	alert, err := s.mutate(ctx, code, func(a *models.Alert) error {
		return AssignResponder(a, req.ResponderID, req.Role, req.EstimatedArrival, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infof("Responder %s assigned to alert %s as %s", req.ResponderID, code, req.Role)
	s.publishResponse(alert, req.ResponderID, models.ResponderAssigned)
	s.publishUpdate(alert)
	return alert, nil
}

// UpdateResponderStatus advances one responder's assignment.
func (s *Service) UpdateResponderStatus(ctx context.Context, code string, actor Actor, responderID string, req models.UpdateResponderStatusRequest) (*models.Alert, error) {
	if !actor.Admin && actor.ID != responderID {
		return nil, newError(KindAccessDenied, "actor %s cannot update responder %s", actor.ID, responderID)
	}
	if !req.Status.Valid() {
		return nil, newError(KindValidation, "unknown responder status %q", req.Status)
	}
	now := s.now()
	alert, err := s.mutate(ctx, code, func(a *models.Alert) error {
		return UpdateResponderStatus(a, responderID, req.Status, req.ActualArrival, now)
	})
	if err != nil {
		return nil, err
	}
	s.publishResponse(alert, responderID, req.Status)
	s.publishUpdate(alert)
	return alert, nil
}

// Volunteer self-assigns the actor with the role from their profile.
// Idempotent for an already-assigned responder.
func (s *Service) Volunteer(ctx context.Context, code string, actorID, message string) (*models.Alert, error) {
	role, err := s.dir.ResponderRole(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("responder role lookup failed: %w", err)
	}
	now := s.now()
	alert, err := s.mutate(ctx, code, func(a *models.Alert) error {
		return Volunteer(a, actorID, role, message, now)
	})
	if err != nil {
		return nil, err
	}
	s.publishResponse(alert, actorID, models.ResponderAssigned)
	s.publishUpdate(alert)
	return alert, nil
}

// AddUpdate appends a free-text log entry. Restricted to the reporter, the
// team, the lead handler, and administrators.
func (s *Service) AddUpdate(ctx context.Context, code string, actor Actor, req models.AddUpdateRequest) (*models.Alert, error) {
	now := s.now()
	alert, err := s.mutate(ctx, code, func(a *models.Alert) error {
		if !actor.onTeam(a) && actor.ID != a.ReporterID {
			return newError(KindAccessDenied, "actor %s cannot post updates to alert %s", actor.ID, a.Code)
		}
		appendUpdate(a, actor.ID, req.Message, req.Public, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishUpdate(alert)
	return alert, nil
}

// Escalate raises the alert's handling authority. When no target is named,
// any available administrator not already on the alert is chosen.
func (s *Service) Escalate(ctx context.Context, code string, actor Actor, req models.EscalateRequest) (*models.Alert, error) {
	now := s.now()
	alert, err := s.mutate(ctx, code, func(a *models.Alert) error {
		to := req.To
		if to == "" {
			admins, err := s.dir.AvailableAdmins(ctx)
			if err != nil {
				return fmt.Errorf("admin lookup failed: %w", err)
			}
			to = PickEscalationTarget(a, admins)
		}
		return Escalate(a, actor.ID, to, req.Reason, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infof("Alert %s escalated by %s to %s", code, actor.ID, alert.LeadHandler)
	s.publishUpdate(alert)
	return alert, nil
}

// Broadcast pushes an announcement to every on-duty responder. Admin only.
func (s *Service) Broadcast(actor Actor, message string) error {
	if !actor.Admin {
		return newError(KindAccessDenied, "actor %s cannot broadcast", actor.ID)
	}
	s.router.Publish(dispatch.RoomResponders, dispatch.EventBroadcast, dispatch.BroadcastPayload{
		From:    actor.ID,
		Message: message,
	})
	return nil
}

func (s *Service) publishResponse(alert *models.Alert, responderID string, status models.ResponderStatus) {
	s.router.Publish(dispatch.AlertRoom(alert.Code), dispatch.EventResponse, dispatch.ResponsePayload{
		Code:            alert.Code,
		ResponderID:     responderID,
		ResponderStatus: status,
		AlertStatus:     alert.Status,
	})
}

const maxDescriptionLen = 2000

func validateCreate(req models.CreateAlertRequest) error {
	if !req.Type.Valid() {
		return newError(KindValidation, "unknown alert type %q", req.Type)
	}
	if !req.Severity.Valid() {
		return newError(KindValidation, "unknown severity %q", req.Severity)
	}
	if strings.TrimSpace(req.Title) == "" {
		return newError(KindValidation, "title is required")
	}
	if len(req.Description) > maxDescriptionLen {
		return newError(KindValidation, "description exceeds %d characters", maxDescriptionLen)
	}
	loc := req.Location
	if loc.Latitude < -90 || loc.Latitude > 90 {
		return newError(KindValidation, "latitude %.4f out of range", loc.Latitude)
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		return newError(KindValidation, "longitude %.4f out of range", loc.Longitude)
	}
	return nil
}
