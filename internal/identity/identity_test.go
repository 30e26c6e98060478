package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-service/internal/models"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestJWTVerifier(t *testing.T) {
	v := NewJWTVerifier("test-secret")

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, "test-secret", jwt.MapClaims{
			"sub":  "u1",
			"role": "responder",
			"unit": "dorm-a",
			"exp":  time.Now().Add(time.Hour).Unix(),
		})
		claims, err := v.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
		assert.Equal(t, "responder", claims.Role)
		assert.Equal(t, "dorm-a", claims.Unit)
		assert.False(t, claims.Admin())
	})

	t.Run("admin role", func(t *testing.T) {
		token := signToken(t, "test-secret", jwt.MapClaims{
			"sub":  "a1",
			"role": "admin",
			"exp":  time.Now().Add(time.Hour).Unix(),
		})
		claims, err := v.Verify(token)
		require.NoError(t, err)
		assert.True(t, claims.Admin())
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "other-secret", jwt.MapClaims{
			"sub": "u1",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		_, err := v.Verify(token)
		require.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, "test-secret", jwt.MapClaims{
			"sub": "u1",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		_, err := v.Verify(token)
		require.Error(t, err)
	})

	t.Run("missing subject", func(t *testing.T) {
		token := signToken(t, "test-secret", jwt.MapClaims{
			"role": "responder",
			"exp":  time.Now().Add(time.Hour).Unix(),
		})
		_, err := v.Verify(token)
		require.Error(t, err)
	})
}

func TestStaticDirectory(t *testing.T) {
	ctx := context.Background()
	d := NewStaticDirectory()
	d.Admins["a2"] = true
	d.Admins["a1"] = true
	d.Roles["r1"] = models.RoleMedical
	d.Units["reporter1"] = "dorm-a"

	admins, err := d.AvailableAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, admins, "sorted for deterministic escalation targets")

	role, err := d.ResponderRole(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleMedical, role)

	role, err = d.ResponderRole(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, models.RoleFirstResponder, role)

	unit, err := d.ResolveUnit(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, "unassigned", unit)
}
