package identity

import (
	"context"
	"fmt"
	"sort"

	"github.com/golang-jwt/jwt/v5"

	"dispatch-service/internal/models"
)

// Claims is the verified identity attached to each request or connection.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"` // reporter, responder, admin
	Unit   string `json:"unit,omitempty"`
}

// Admin reports whether the identity carries administrative authority.
func (c *Claims) Admin() bool {
	return c.Role == "admin"
}

// TokenVerifier is the external authentication collaborator.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// JWTVerifier verifies HMAC-signed tokens issued by the identity service.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

type tokenClaims struct {
	Role string `json:"role"`
	Unit string `json:"unit,omitempty"`
	jwt.RegisteredClaims
}

// Verify parses and validates a bearer token, returning its claims.
func (v *JWTVerifier) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token missing subject")
	}
	return &Claims{UserID: claims.Subject, Role: claims.Role, Unit: claims.Unit}, nil
}

// Directory resolves identities to domain attributes. Personnel data lives in
// an external system; the engine only needs these lookups.
type Directory interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
	ResponderRole(ctx context.Context, userID string) (models.ResponderRole, error)
	AvailableAdmins(ctx context.Context) ([]string, error)
	ResolveUnit(ctx context.Context, reporterID string) (string, error)
}

// StaticDirectory is a map-backed Directory for deployments where personnel
// data is provisioned at startup, and for tests.
type StaticDirectory struct {
	Admins map[string]bool
	Roles  map[string]models.ResponderRole
	Units  map[string]string
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		Admins: make(map[string]bool),
		Roles:  make(map[string]models.ResponderRole),
		Units:  make(map[string]string),
	}
}

func (d *StaticDirectory) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return d.Admins[userID], nil
}

func (d *StaticDirectory) ResponderRole(ctx context.Context, userID string) (models.ResponderRole, error) {
	if role, ok := d.Roles[userID]; ok {
		return role, nil
	}
	return models.RoleFirstResponder, nil
}

func (d *StaticDirectory) AvailableAdmins(ctx context.Context) ([]string, error) {
	var out []string
	for id, ok := range d.Admins {
		if ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (d *StaticDirectory) ResolveUnit(ctx context.Context, reporterID string) (string, error) {
	if unit, ok := d.Units[reporterID]; ok {
		return unit, nil
	}
	return "unassigned", nil
}
