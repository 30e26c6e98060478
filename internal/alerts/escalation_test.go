package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-service/internal/models"
)

func TestEscalate(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	t.Run("first escalation locks priority and acknowledges", func(t *testing.T) {
		a := newTestAlert(models.StatusActive)
		a.Severity = models.SeverityLow
		a.Type = models.TypeOther
		a.Priority = ComputePriority(a.Severity, a.Type)

		require.NoError(t, Escalate(a, "admin1", "admin2", "no response for hours", now))

		assert.Equal(t, models.StatusAcknowledged, a.Status)
		assert.Equal(t, models.PriorityUrgent, a.Priority)
		assert.True(t, a.PriorityLocked)
		assert.Equal(t, "admin2", a.LeadHandler)
		require.Len(t, a.Escalations, 1)
		assert.Equal(t, "admin1", a.Escalations[0].EscalatedBy)
	})

	t.Run("second escalation inside the cooldown is rejected", func(t *testing.T) {
		a := newTestAlert(models.StatusActive)
		require.NoError(t, Escalate(a, "admin1", "admin2", "stalled", now))

		err := Escalate(a, "admin1", "admin3", "still stalled", now.Add(23*time.Hour))
		require.Error(t, err)
		assert.True(t, IsKind(err, KindEscalationTooSoon))
		assert.Len(t, a.Escalations, 1)
	})

	t.Run("escalation after the cooldown succeeds", func(t *testing.T) {
		a := newTestAlert(models.StatusActive)
		require.NoError(t, Escalate(a, "admin1", "admin2", "stalled", now))

		require.NoError(t, Escalate(a, "admin1", "admin3", "still stalled", now.Add(25*time.Hour)))
		assert.Len(t, a.Escalations, 2)
		assert.Equal(t, "admin3", a.LeadHandler)
	})

	t.Run("urgency stays locked through reclassification", func(t *testing.T) {
		a := newTestAlert(models.StatusActive)
		require.NoError(t, Escalate(a, "admin1", "admin2", "stalled", now))

		Reclassify(a, models.SeverityLow, models.TypeOther, "admin2", now.Add(time.Hour))
		assert.Equal(t, models.PriorityUrgent, a.Priority, "escalated priority is sticky")
	})

	t.Run("no target available", func(t *testing.T) {
		a := newTestAlert(models.StatusActive)
		err := Escalate(a, "admin1", "", "stalled", now)
		require.Error(t, err)
		assert.True(t, IsKind(err, KindNoEscalationTarget))
		assert.Empty(t, a.Escalations)
	})

	t.Run("terminal alert cannot be escalated", func(t *testing.T) {
		a := newTestAlert(models.StatusResolved)
		err := Escalate(a, "admin1", "admin2", "stalled", now)
		require.Error(t, err)
		assert.True(t, IsKind(err, KindInvalidTransition))
	})
}

func TestPickEscalationTarget(t *testing.T) {
	now := time.Now()

	a := newTestAlert(models.StatusAcknowledged)
	require.NoError(t, AssignResponder(a, "admin1", models.RoleSecurity, nil, now))

	t.Run("skips assigned admins", func(t *testing.T) {
		assert.Equal(t, "admin2", PickEscalationTarget(a, []string{"admin1", "admin2"}))
	})

	t.Run("skips the current lead", func(t *testing.T) {
		a.LeadHandler = "admin2"
		assert.Equal(t, "admin3", PickEscalationTarget(a, []string{"admin1", "admin2", "admin3"}))
	})

	t.Run("empty when nobody qualifies", func(t *testing.T) {
		assert.Empty(t, PickEscalationTarget(a, []string{"admin1", "admin2"}))
	})
}
