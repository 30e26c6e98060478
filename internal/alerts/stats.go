package alerts

import (
	"context"
	"math"
	"time"

	"dispatch-service/internal/identity"
	"dispatch-service/internal/models"
)

const earthRadiusKm = 6371

// Statistics is the aggregate view computed on demand from the store.
type Statistics struct {
	Total                    int                      `json:"total"`
	ByStatus                 map[models.Status]int    `json:"by_status"`
	BySeverity               map[models.Severity]int  `json:"by_severity"`
	ByType                   map[models.AlertType]int `json:"by_type"`
	ByUnit                   map[string]int           `json:"by_unit"`
	AverageResolutionMinutes float64                  `json:"average_resolution_minutes"`
}

// NearbyAlert pairs an alert with its urgency score for sorting dashboards.
type NearbyAlert struct {
	Alert   models.Alert `json:"alert"`
	Urgency float64      `json:"urgency"`
}

// Aggregator computes read-only statistics. No caching; results are
// consistent with the store at call time.
type Aggregator struct {
	store Store
	dir   identity.Directory
	now   func() time.Time
}

func NewAggregator(store Store, dir identity.Directory) *Aggregator {
	return &Aggregator{store: store, dir: dir, now: time.Now}
}

// SetClock overrides the time source, for tests.
func (g *Aggregator) SetClock(now func() time.Time) {
	g.now = now
}

// Stats assembles the aggregate view.
func (g *Aggregator) Stats(ctx context.Context) (*Statistics, error) {
	byStatus, err := g.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	bySeverity, err := g.store.CountBySeverity(ctx)
	if err != nil {
		return nil, err
	}
	byType, err := g.store.CountByType(ctx)
	if err != nil {
		return nil, err
	}
	avg, err := g.store.AverageResolutionMinutes(ctx)
	if err != nil {
		return nil, err
	}

	reporters, err := g.store.ReporterCounts(ctx)
	if err != nil {
		return nil, err
	}
	byUnit := make(map[string]int)
	for reporterID, n := range reporters {
		unit, err := g.dir.ResolveUnit(ctx, reporterID)
		if err != nil {
			unit = "unknown"
		}
		byUnit[unit] += n
	}

	total := 0
	for _, n := range byStatus {
		total += n
	}

	return &Statistics{
		Total:                    total,
		ByStatus:                 byStatus,
		BySeverity:               bySeverity,
		ByType:                   byType,
		ByUnit:                   byUnit,
		AverageResolutionMinutes: avg,
	}, nil
}

// FindNearby returns non-terminal alerts within radiusKm of (lat, lng),
// using a bounding-box pre-filter of radiusKm/6371 radians. The box is an
// approximation: it degrades near the poles and across the antimeridian,
// which is accepted for this deployment footprint.
func (g *Aggregator) FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]NearbyAlert, error) {
	if radiusKm <= 0 {
		return nil, newError(KindValidation, "radius must be positive, got %.2f", radiusKm)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, newError(KindValidation, "coordinates (%.4f, %.4f) out of range", lat, lng)
	}

	delta := (radiusKm / earthRadiusKm) * (180 / math.Pi)
	lngDelta := delta
	if cos := math.Cos(lat * math.Pi / 180); cos > 0.01 {
		lngDelta = delta / cos
	}
	bounds := Bounds{
		MinLat: lat - delta,
		MaxLat: lat + delta,
		MinLng: lng - lngDelta,
		MaxLng: lng + lngDelta,
	}

	candidates, err := g.store.ActiveInBounds(ctx, bounds)
	if err != nil {
		return nil, err
	}

	now := g.now()
	out := make([]NearbyAlert, 0, len(candidates))
	for _, a := range candidates {
		out = append(out, NearbyAlert{
			Alert:   a,
			Urgency: UrgencyScore(a.Severity, a.CreatedAt, now),
		})
	}
	return out, nil
}
