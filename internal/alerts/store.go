package alerts

import (
	"context"
	"errors"

	"dispatch-service/internal/models"
)

// ErrDuplicateCode signals an Insert that lost the code-uniqueness race.
// The service reacts by generating a fresh code and retrying.
var ErrDuplicateCode = errors.New("alert code already exists")

// Bounds is a latitude/longitude bounding box used as the proximity pre-filter.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Store is the durable alert collaborator. Implementations must provide
// per-document atomic read-modify-write; GetByCode returns a KindNotFound
// domain error for unknown codes. Insert reports a code collision with
// ErrDuplicateCode. Alerts are never hard-deleted.
type Store interface {
	Insert(ctx context.Context, a *models.Alert) error
	GetByCode(ctx context.Context, code string) (*models.Alert, error)
	Save(ctx context.Context, a *models.Alert) error
	List(ctx context.Context, f models.ListAlertsFilter) ([]models.Alert, int, error)

	CountByStatus(ctx context.Context) (map[models.Status]int, error)
	CountBySeverity(ctx context.Context) (map[models.Severity]int, error)
	CountByType(ctx context.Context) (map[models.AlertType]int, error)
	AverageResolutionMinutes(ctx context.Context) (float64, error)
	ReporterCounts(ctx context.Context) (map[string]int, error)

	// ActiveInBounds returns non-terminal alerts whose location falls inside b.
	ActiveInBounds(ctx context.Context, b Bounds) ([]models.Alert, error)
}
