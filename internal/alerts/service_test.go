package alerts

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-service/internal/dispatch"
	"dispatch-service/internal/identity"
	"dispatch-service/internal/logging"
	"dispatch-service/internal/models"
)

// recorderRouter captures every publish so tests can assert on fan-out
// without a live hub.
type recorderRouter struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Room  string
	Event string
}

func (r *recorderRouter) Register(sub dispatch.Subscriber) {}
func (r *recorderRouter) Join(connID, room string)         {}
func (r *recorderRouter) Leave(connID, room string)        {}
func (r *recorderRouter) Disconnect(connID string)         {}

func (r *recorderRouter) Publish(room, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Room: room, Event: event})
}

func (r *recorderRouter) PublishToMany(rooms []string, event string, payload interface{}) {
	for _, room := range rooms {
		r.Publish(room, event, payload)
	}
}

func (r *recorderRouter) published(room, event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, e := range r.events {
		if e.Room == room && e.Event == event {
			n++
		}
	}
	return n
}

func newTestService(t *testing.T) (*Service, *MemStore, *recorderRouter, *identity.StaticDirectory) {
	t.Helper()
	store := NewMemStore()
	router := &recorderRouter{}
	dir := identity.NewStaticDirectory()
	svc := NewService(store, router, dir, nil, nil, logging.NewNop())
	return svc, store, router, dir
}

func validCreateRequest() models.CreateAlertRequest {
	return models.CreateAlertRequest{
		Type:     models.TypeMedical,
		Severity: models.SeverityCritical,
		Title:    "Student collapsed near the gym",
		Location: models.Location{Latitude: 10.880, Longitude: 106.805},
	}
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("critical medical alert opens urgent", func(t *testing.T) {
		svc, _, router, _ := newTestService(t)

		alert, err := svc.Create(ctx, "reporter1", validCreateRequest())
		require.NoError(t, err)

		assert.Equal(t, models.StatusActive, alert.Status)
		assert.Equal(t, models.PriorityUrgent, alert.Priority)
		assert.True(t, strings.HasPrefix(alert.Code, "EMG-"))
		require.Len(t, alert.Updates, 1)
		assert.Equal(t, 1, router.published(dispatch.RoomResponders, dispatch.EventNewAlert))
	})

	t.Run("validation failures never reach the store", func(t *testing.T) {
		svc, store, router, _ := newTestService(t)

		cases := []func(r *models.CreateAlertRequest){
			func(r *models.CreateAlertRequest) { r.Type = "tsunami" },
			func(r *models.CreateAlertRequest) { r.Severity = "extreme" },
			func(r *models.CreateAlertRequest) { r.Title = "  " },
			func(r *models.CreateAlertRequest) { r.Description = strings.Repeat("x", 2001) },
			func(r *models.CreateAlertRequest) { r.Location.Latitude = 91 },
			func(r *models.CreateAlertRequest) { r.Location.Longitude = -181 },
		}
		for _, mutate := range cases {
			req := validCreateRequest()
			mutate(&req)
			_, err := svc.Create(ctx, "reporter1", req)
			require.Error(t, err)
			assert.True(t, IsKind(err, KindValidation))
		}
		_, total, err := store.List(ctx, models.ListAlertsFilter{})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Zero(t, router.published(dispatch.RoomResponders, dispatch.EventNewAlert))
	})
}

// TestServiceLifecycleScenario walks one alert through report, assignment,
// arrival, and resolution, checking the state after each step.
func TestServiceLifecycleScenario(t *testing.T) {
	ctx := context.Background()
	svc, _, router, _ := newTestService(t)

	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	clock := base
	svc.SetClock(func() time.Time { return clock })

	alert, err := svc.Create(ctx, "reporter1", validCreateRequest())
	require.NoError(t, err)
	require.Equal(t, models.PriorityUrgent, alert.Priority)

	// Admin assigns a medical responder; the active alert gets acknowledged.
	clock = base.Add(2 * time.Minute)
	alert, err = svc.AssignResponder(ctx, alert.Code, Actor{ID: "admin1", Admin: true}, models.AssignResponderRequest{
		ResponderID: "r1",
		Role:        models.RoleMedical,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAcknowledged, alert.Status)
	assert.True(t, alert.Verified)

	// Responder reaches the scene; response phase starts implicitly.
	clock = base.Add(10 * time.Minute)
	alert, err = svc.UpdateResponderStatus(ctx, alert.Code, Actor{ID: "r1"}, "r1", models.UpdateResponderStatusRequest{
		Status: models.ResponderOnScene,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusResponding, alert.Status)
	require.NotNil(t, alert.ResponseStartedAt)
	assert.Equal(t, base.Add(10*time.Minute), *alert.ResponseStartedAt)

	// Resolution completes the team.
	clock = base.Add(40 * time.Minute)
	alert, err = svc.UpdateStatus(ctx, alert.Code, Actor{ID: "r1"}, models.UpdateStatusRequest{
		Status:      models.StatusResolved,
		Resolution:  "patient stabilized",
		ActionTaken: "ambulance transport",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, alert.Status)
	require.NotNil(t, alert.ResolvedAt)
	require.Len(t, alert.ResponseTeam, 1)
	assert.Equal(t, models.ResponderCompleted, alert.ResponseTeam[0].Status)

	room := dispatch.AlertRoom(alert.Code)
	assert.Equal(t, 3, router.published(room, dispatch.EventUpdate), "assign, on_scene, resolve each publish an update")
	assert.Equal(t, 2, router.published(room, dispatch.EventResponse))
}

func TestServiceAuthorization(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)
	alert, err := svc.Create(ctx, "reporter1", validCreateRequest())
	require.NoError(t, err)

	t.Run("responder cannot assign someone else", func(t *testing.T) {
		_, err := svc.AssignResponder(ctx, alert.Code, Actor{ID: "r1"}, models.AssignResponderRequest{
			ResponderID: "r2",
			Role:        models.RoleMedical,
		})
		require.Error(t, err)
		assert.True(t, IsKind(err, KindAccessDenied))
	})

	t.Run("outsider cannot post updates", func(t *testing.T) {
		_, err := svc.AddUpdate(ctx, alert.Code, Actor{ID: "stranger"}, models.AddUpdateRequest{Message: "anything"})
		require.Error(t, err)
		assert.True(t, IsKind(err, KindAccessDenied))
	})

	t.Run("plain user cannot acknowledge", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, alert.Code, Actor{ID: "bystander"}, models.UpdateStatusRequest{
			Status: models.StatusAcknowledged,
		})
		require.Error(t, err)
		assert.True(t, IsKind(err, KindAccessDenied))
	})

	t.Run("responder can acknowledge", func(t *testing.T) {
		fresh, err := svc.Create(ctx, "reporter1", validCreateRequest())
		require.NoError(t, err)

		fresh, err = svc.UpdateStatus(ctx, fresh.Code, Actor{ID: "r9", Responder: true}, models.UpdateStatusRequest{
			Status: models.StatusAcknowledged,
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusAcknowledged, fresh.Status)
	})

	t.Run("off-team responder cannot resolve", func(t *testing.T) {
		fresh, err := svc.Create(ctx, "reporter1", validCreateRequest())
		require.NoError(t, err)
		fresh, err = svc.UpdateStatus(ctx, fresh.Code, Actor{ID: "r9", Responder: true}, models.UpdateStatusRequest{
			Status: models.StatusAcknowledged,
		})
		require.NoError(t, err)

		_, err = svc.UpdateStatus(ctx, fresh.Code, Actor{ID: "r2", Responder: true}, models.UpdateStatusRequest{
			Status: models.StatusResolved,
		})
		require.Error(t, err)
		assert.True(t, IsKind(err, KindAccessDenied))
	})

	t.Run("broadcast is admin only", func(t *testing.T) {
		err := svc.Broadcast(Actor{ID: "r1"}, "clear the area")
		require.Error(t, err)
		assert.True(t, IsKind(err, KindAccessDenied))
		require.NoError(t, svc.Broadcast(Actor{ID: "admin1", Admin: true}, "clear the area"))
	})
}

func TestServiceVolunteer(t *testing.T) {
	ctx := context.Background()
	svc, _, _, dir := newTestService(t)
	dir.Roles["r1"] = models.RoleFire

	alert, err := svc.Create(ctx, "reporter1", validCreateRequest())
	require.NoError(t, err)

	alert, err = svc.Volunteer(ctx, alert.Code, "r1", "two minutes out")
	require.NoError(t, err)
	require.Len(t, alert.ResponseTeam, 1)
	assert.Equal(t, models.RoleFire, alert.ResponseTeam[0].Role, "role comes from the directory profile")

	// Repeat volunteering is a no-op, not an error.
	alert, err = svc.Volunteer(ctx, alert.Code, "r1", "two minutes out")
	require.NoError(t, err)
	assert.Len(t, alert.ResponseTeam, 1)
}

func TestServiceEscalateDefaultTarget(t *testing.T) {
	ctx := context.Background()
	svc, _, _, dir := newTestService(t)
	dir.Admins["admin1"] = true
	dir.Admins["admin2"] = true

	alert, err := svc.Create(ctx, "reporter1", validCreateRequest())
	require.NoError(t, err)

	alert, err = svc.Escalate(ctx, alert.Code, Actor{ID: "admin1", Admin: true}, models.EscalateRequest{Reason: "unattended"})
	require.NoError(t, err)
	assert.Equal(t, "admin1", alert.LeadHandler, "first admin in sorted order not already on the team")
	assert.Equal(t, models.PriorityUrgent, alert.Priority)
	assert.True(t, alert.PriorityLocked)
}

func TestServiceUnknownAlert(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)

	_, err := svc.GetByCode(ctx, "EMG-20240101-ZZZZ")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNotFound))

	_, err = svc.UpdateStatus(ctx, "EMG-20240101-ZZZZ", Actor{ID: "admin1", Admin: true}, models.UpdateStatusRequest{
		Status: models.StatusAcknowledged,
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNotFound))
}

// collidingStore fails the first n inserts as code collisions.
type collidingStore struct {
	*MemStore
	collisions int
	codes      []string
}

func (s *collidingStore) Insert(ctx context.Context, a *models.Alert) error {
	s.codes = append(s.codes, a.Code)
	if s.collisions > 0 {
		s.collisions--
		return fmt.Errorf("alert %s: %w", a.Code, ErrDuplicateCode)
	}
	return s.MemStore.Insert(ctx, a)
}

func TestServiceCreateRetriesCodeCollision(t *testing.T) {
	ctx := context.Background()
	store := &collidingStore{MemStore: NewMemStore(), collisions: 2}
	svc := NewService(store, &recorderRouter{}, identity.NewStaticDirectory(), nil, nil, logging.NewNop())

	alert, err := svc.Create(ctx, "reporter1", validCreateRequest())
	require.NoError(t, err)

	require.Len(t, store.codes, 3, "two collisions then a success")
	assert.NotEqual(t, store.codes[0], store.codes[2], "a fresh code is generated per attempt")
	assert.Equal(t, store.codes[2], alert.Code)

	stored, err := store.GetByCode(ctx, alert.Code)
	require.NoError(t, err)
	assert.Equal(t, alert.Code, stored.Code)
}

func TestServiceListPagination(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t)

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, "reporter1", validCreateRequest())
		require.NoError(t, err)
	}

	page, total, err := svc.List(ctx, models.ListAlertsFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 2)

	// Limit defaults and caps are applied by the service.
	page, _, err = svc.List(ctx, models.ListAlertsFilter{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, page, 5)
}
