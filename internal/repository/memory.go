package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"safewatch-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryAlertRepository keeps alerts in process memory. It backs
// STORE_DRIVER=memory and the service tests.
type MemoryAlertRepository struct {
	mu     sync.RWMutex
	alerts map[primitive.ObjectID]*models.Alert
	seq    map[primitive.ObjectID]uint64
	next   uint64
	now    func() time.Time
}

func NewMemoryAlertRepository() *MemoryAlertRepository {
	return &MemoryAlertRepository{
		alerts: make(map[primitive.ObjectID]*models.Alert),
		seq:    make(map[primitive.ObjectID]uint64),
		now:    time.Now,
	}
}

// SetClock overrides the time source used for createdAt/updatedAt.
func (r *MemoryAlertRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *MemoryAlertRepository) Create(_ context.Context, alert *models.Alert) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := storeTime(r.now())
	stored := *alert
	stored.ID = primitive.NewObjectID()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	r.next++
	r.alerts[stored.ID] = &stored
	r.seq[stored.ID] = r.next

	return cloneAlert(&stored), nil
}

func (r *MemoryAlertRepository) FindByID(_ context.Context, id string) (*models.Alert, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrAlertNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	alert, ok := r.alerts[objectID]
	if !ok {
		return nil, ErrAlertNotFound
	}
	return cloneAlert(alert), nil
}

func (r *MemoryAlertRepository) FindAll(_ context.Context) ([]*models.Alert, error) {
	return r.filter(func(*models.Alert) bool { return true }), nil
}

func (r *MemoryAlertRepository) FindByOwner(_ context.Context, ownerID string) ([]*models.Alert, error) {
	return r.filter(func(a *models.Alert) bool { return a.OwnerID == ownerID }), nil
}

func (r *MemoryAlertRepository) filter(keep func(*models.Alert) bool) []*models.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	alerts := make([]*models.Alert, 0, len(r.alerts))
	for _, alert := range r.alerts {
		if keep(alert) {
			alerts = append(alerts, cloneAlert(alert))
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if !alerts[i].CreatedAt.Equal(alerts[j].CreatedAt) {
			return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
		}
		return r.seq[alerts[i].ID] > r.seq[alerts[j].ID]
	})
	return alerts
}

func (r *MemoryAlertRepository) Update(_ context.Context, id string, patch *models.AlertPatch) (*models.Alert, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrAlertNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[objectID]
	if !ok {
		return nil, ErrAlertNotFound
	}

	if patch != nil {
		patch.Apply(alert)
	}
	alert.UpdatedAt = storeTime(r.now())

	return cloneAlert(alert), nil
}

func (r *MemoryAlertRepository) Delete(_ context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrAlertNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.alerts[objectID]; !ok {
		return ErrAlertNotFound
	}
	delete(r.alerts, objectID)
	delete(r.seq, objectID)
	return nil
}

func (r *MemoryAlertRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.alerts)), nil
}

func (r *MemoryAlertRepository) MediaRefs(_ context.Context) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := make(map[string]struct{})
	for _, alert := range r.alerts {
		if alert.MediaRef != "" {
			refs[alert.MediaRef] = struct{}{}
		}
	}
	return refs, nil
}

func cloneAlert(a *models.Alert) *models.Alert {
	c := *a
	if a.Latitude != nil {
		lat := *a.Latitude
		c.Latitude = &lat
	}
	if a.Longitude != nil {
		lng := *a.Longitude
		c.Longitude = &lng
	}
	return &c
}
