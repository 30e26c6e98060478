package alerts

import (
	"context"
	"fmt"
	"sync"

	"dispatch-service/internal/models"
)

// MemStore is an in-memory Store used by tests and single-node development.
type MemStore struct {
	mu     sync.RWMutex
	alerts map[string]models.Alert
	order  []string
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{alerts: make(map[string]models.Alert)}
}

func (s *MemStore) Insert(ctx context.Context, a *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.alerts[a.Code]; exists {
		return fmt.Errorf("alert %s: %w", a.Code, ErrDuplicateCode)
	}
	s.alerts[a.Code] = cloneAlert(*a)
	s.order = append(s.order, a.Code)
	return nil
}

func (s *MemStore) GetByCode(ctx context.Context, code string) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[code]
	if !ok {
		return nil, newError(KindNotFound, "alert %s not found", code)
	}
	out := cloneAlert(a)
	return &out, nil
}

func (s *MemStore) Save(ctx context.Context, a *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[a.Code]; !ok {
		return newError(KindNotFound, "alert %s not found", a.Code)
	}
	s.alerts[a.Code] = cloneAlert(*a)
	return nil
}

func (s *MemStore) List(ctx context.Context, f models.ListAlertsFilter) ([]models.Alert, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Alert
	// newest first, matching the SQL implementation's ORDER BY created_at DESC
	for i := len(s.order) - 1; i >= 0; i-- {
		a := s.alerts[s.order[i]]
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		if f.Severity != "" && a.Severity != f.Severity {
			continue
		}
		if f.ReporterID != "" && a.ReporterID != f.ReporterID {
			continue
		}
		matched = append(matched, cloneAlert(a))
	}

	total := len(matched)
	offset := f.Offset
	if offset > total {
		offset = total
	}
	matched = matched[offset:]
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (s *MemStore) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.Status]int)
	for _, a := range s.alerts {
		out[a.Status]++
	}
	return out, nil
}

func (s *MemStore) CountBySeverity(ctx context.Context) (map[models.Severity]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.Severity]int)
	for _, a := range s.alerts {
		out[a.Severity]++
	}
	return out, nil
}

func (s *MemStore) CountByType(ctx context.Context) (map[models.AlertType]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.AlertType]int)
	for _, a := range s.alerts {
		out[a.Type]++
	}
	return out, nil
}

func (s *MemStore) AverageResolutionMinutes(ctx context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum float64
	var n int
	for _, a := range s.alerts {
		if a.ResolvedAt != nil {
			sum += a.ResolvedAt.Sub(a.CreatedAt).Minutes()
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

func (s *MemStore) ReporterCounts(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int)
	for _, a := range s.alerts {
		out[a.ReporterID]++
	}
	return out, nil
}

func (s *MemStore) ActiveInBounds(ctx context.Context, b Bounds) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Alert
	for _, code := range s.order {
		a := s.alerts[code]
		if a.Status.Terminal() {
			continue
		}
		lat, lng := a.Location.Latitude, a.Location.Longitude
		if lat < b.MinLat || lat > b.MaxLat || lng < b.MinLng || lng > b.MaxLng {
			continue
		}
		out = append(out, cloneAlert(a))
	}
	return out, nil
}

// cloneAlert deep-copies slices so callers never share backing arrays with
// the stored document.
func cloneAlert(a models.Alert) models.Alert {
	out := a
	out.ResponseTeam = append([]models.ResponderAssignment(nil), a.ResponseTeam...)
	out.Updates = append([]models.AlertUpdate(nil), a.Updates...)
	out.Escalations = append([]models.Escalation(nil), a.Escalations...)
	return out
}
