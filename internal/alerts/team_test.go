package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-service/internal/models"
)

func TestAssignResponder(t *testing.T) {
	t.Run("assigning to active alert acknowledges it", func(t *testing.T) {
		a := newTestAlert(models.StatusActive)
		require.NoError(t, AssignResponder(a, "r1", models.RoleMedical, nil, time.Now()))

		assert.Equal(t, models.StatusAcknowledged, a.Status)
		require.Len(t, a.ResponseTeam, 1)
		assert.Equal(t, models.ResponderAssigned, a.ResponseTeam[0].Status)
		assert.Equal(t, models.RoleMedical, a.ResponseTeam[0].Role)
	})

	t.Run("duplicate live assignment is rejected", func(t *testing.T) {
		a := newTestAlert(models.StatusActive)
		require.NoError(t, AssignResponder(a, "r1", models.RoleMedical, nil, time.Now()))

		err := AssignResponder(a, "r1", models.RoleSecurity, nil, time.Now())
		require.Error(t, err)
		assert.True(t, IsKind(err, KindDuplicateAssignment))
		assert.Len(t, a.ResponseTeam, 1)
	})

	t.Run("completed assignment frees the responder", func(t *testing.T) {
		a := newTestAlert(models.StatusAcknowledged)
		require.NoError(t, AssignResponder(a, "r1", models.RoleMedical, nil, time.Now()))
		a.ResponseTeam[0].Status = models.ResponderCompleted

		require.NoError(t, AssignResponder(a, "r1", models.RoleMedical, nil, time.Now()))
		assert.Len(t, a.ResponseTeam, 2)
	})

	t.Run("cannot assign to terminal alert", func(t *testing.T) {
		a := newTestAlert(models.StatusResolved)
		err := AssignResponder(a, "r1", models.RoleMedical, nil, time.Now())
		require.Error(t, err)
		assert.True(t, IsKind(err, KindInvalidTransition))
	})
}

func TestUpdateResponderStatus(t *testing.T) {
	t.Run("unknown responder", func(t *testing.T) {
		a := newTestAlert(models.StatusAcknowledged)
		err := UpdateResponderStatus(a, "ghost", models.ResponderEnRoute, nil, time.Now())
		require.Error(t, err)
		assert.True(t, IsKind(err, KindResponderNotFound))
	})

	t.Run("on_scene starts the response with ordered log entries", func(t *testing.T) {
		a := newTestAlert(models.StatusActive)
		require.NoError(t, AssignResponder(a, "r1", models.RoleMedical, nil, time.Now()))
		before := len(a.Updates)

		require.NoError(t, UpdateResponderStatus(a, "r1", models.ResponderOnScene, nil, time.Now()))

		assert.Equal(t, models.StatusResponding, a.Status)
		require.NotNil(t, a.ResponseStartedAt)
		require.NotNil(t, a.ResponseTeam[0].ActualArrival)

		// Cause before effect: responder-status entry, then response-started entry.
		require.Len(t, a.Updates, before+2)
		assert.Contains(t, a.Updates[before].Message, "on_scene")
		assert.Contains(t, a.Updates[before+1].Message, "response started")
	})

	t.Run("second on_scene does not restart the response", func(t *testing.T) {
		a := newTestAlert(models.StatusActive)
		require.NoError(t, AssignResponder(a, "r1", models.RoleMedical, nil, time.Now()))
		require.NoError(t, AssignResponder(a, "r2", models.RoleSecurity, nil, time.Now()))
		require.NoError(t, UpdateResponderStatus(a, "r1", models.ResponderOnScene, nil, time.Now()))
		started := *a.ResponseStartedAt

		require.NoError(t, UpdateResponderStatus(a, "r2", models.ResponderOnScene, nil, time.Now().Add(time.Minute)))
		assert.Equal(t, started, *a.ResponseStartedAt, "responseStartedAt is set exactly once")
	})

	t.Run("repeated same status is a no-op", func(t *testing.T) {
		a := newTestAlert(models.StatusActive)
		require.NoError(t, AssignResponder(a, "r1", models.RoleMedical, nil, time.Now()))
		require.NoError(t, UpdateResponderStatus(a, "r1", models.ResponderEnRoute, nil, time.Now()))
		entries := len(a.Updates)

		require.NoError(t, UpdateResponderStatus(a, "r1", models.ResponderEnRoute, nil, time.Now()))
		assert.Equal(t, models.ResponderEnRoute, a.ResponseTeam[0].Status)
		assert.Len(t, a.Updates, entries, "repeated status must not duplicate log entries")
	})

	t.Run("backward transition is rejected", func(t *testing.T) {
		a := newTestAlert(models.StatusActive)
		require.NoError(t, AssignResponder(a, "r1", models.RoleMedical, nil, time.Now()))
		require.NoError(t, UpdateResponderStatus(a, "r1", models.ResponderOnScene, nil, time.Now()))

		err := UpdateResponderStatus(a, "r1", models.ResponderEnRoute, nil, time.Now())
		require.Error(t, err)
		assert.True(t, IsKind(err, KindInvalidTransition))
	})
}

func TestVolunteer(t *testing.T) {
	t.Run("first volunteer assigns", func(t *testing.T) {
		a := newTestAlert(models.StatusActive)
		require.NoError(t, Volunteer(a, "r1", models.RoleFirstResponder, "on my way", time.Now()))
		require.Len(t, a.ResponseTeam, 1)
		assert.Equal(t, models.StatusAcknowledged, a.Status)
	})

	t.Run("second volunteer is a success no-op", func(t *testing.T) {
		a := newTestAlert(models.StatusActive)
		require.NoError(t, Volunteer(a, "r1", models.RoleFirstResponder, "", time.Now()))
		entries := len(a.Updates)

		require.NoError(t, Volunteer(a, "r1", models.RoleFirstResponder, "", time.Now()))
		assert.Len(t, a.ResponseTeam, 1)
		assert.Len(t, a.Updates, entries, "no-op volunteer must not touch the log")
	})
}
