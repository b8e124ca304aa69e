// Package memory is a process-local repository used for development runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aradsms/mock_provider/internal/mock_provider_service/domain"
)

type resourceKey struct {
	kind domain.ResourceKind
	sid  string
}

// Repository keeps every record in maps guarded by one mutex.
type Repository struct {
	mu        sync.RWMutex
	resources map[resourceKey]*domain.Resource
	order     []resourceKey
	events    []*domain.DeliveryEvent
	logs      []*domain.CallbackLog
	nextEvent int64
	nextLog   int64
}

var _ domain.Repository = (*Repository)(nil)

func New() *Repository {
	return &Repository{resources: make(map[resourceKey]*domain.Resource)}
}

func (r *Repository) CreateResource(_ context.Context, res *domain.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := resourceKey{res.Kind, res.SID}
	if _, exists := r.resources[key]; exists {
		return fmt.Errorf("%s %s already exists", res.Kind, res.SID)
	}
	cp := *res
	r.resources[key] = &cp
	r.order = append(r.order, key)
	return nil
}

func (r *Repository) GetResource(_ context.Context, kind domain.ResourceKind, sid string) (*domain.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.resources[resourceKey{kind, sid}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *Repository) UpdateStatus(_ context.Context, kind domain.ResourceKind, sid string, status domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.resources[resourceKey{kind, sid}]
	if !ok {
		return domain.ErrNotFound
	}
	res.Status = status
	res.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Repository) ListResources(_ context.Context, kind domain.ResourceKind, limit, offset int) ([]*domain.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Resource
	for i := len(r.order) - 1; i >= 0; i-- {
		key := r.order[i]
		if key.kind != kind {
			continue
		}
		cp := *r.resources[key]
		out = append(out, &cp)
	}
	return page(out, limit, offset), nil
}

func (r *Repository) CreateDeliveryEvent(_ context.Context, event *domain.DeliveryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextEvent++
	event.ID = r.nextEvent
	cp := *event
	r.events = append(r.events, &cp)
	return nil
}

func (r *Repository) ListDeliveryEvents(_ context.Context, kind domain.ResourceKind, sid string) ([]*domain.DeliveryEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.DeliveryEvent
	for _, e := range r.events {
		if e.ResourceKind == kind && e.ResourceSID == sid {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *Repository) CreateCallbackLog(_ context.Context, log *domain.CallbackLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextLog++
	log.ID = r.nextLog
	cp := *log
	r.logs = append(r.logs, &cp)
	return nil
}

func (r *Repository) GetCallbackLog(_ context.Context, id int64) (*domain.CallbackLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, l := range r.logs {
		if l.ID == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *Repository) ListCallbackLogs(_ context.Context, limit, offset int) ([]*domain.CallbackLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.CallbackLog, 0, len(r.logs))
	for _, l := range r.logs {
		cp := *l
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, limit, offset), nil
}

func (r *Repository) Statistics(_ context.Context) (domain.Statistics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats domain.Statistics
	for key := range r.resources {
		switch key.kind {
		case domain.ResourceKindMessage:
			stats.Messages++
		case domain.ResourceKindCall:
			stats.Calls++
		}
	}
	stats.Callbacks = int64(len(r.logs))
	return stats, nil
}

func (r *Repository) ClearResources(_ context.Context, kind domain.ResourceKind) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clearResourcesLocked(kind), nil
}

func (r *Repository) clearResourcesLocked(kind domain.ResourceKind) int64 {
	var deleted int64
	kept := r.order[:0]
	for _, key := range r.order {
		if key.kind == kind {
			delete(r.resources, key)
			deleted++
			continue
		}
		kept = append(kept, key)
	}
	r.order = kept

	events := r.events[:0]
	for _, e := range r.events {
		if e.ResourceKind != kind {
			events = append(events, e)
		}
	}
	r.events = events
	return deleted
}

func (r *Repository) ClearCallbackLogs(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := int64(len(r.logs))
	r.logs = nil
	return n, nil
}

func (r *Repository) ClearAll(_ context.Context) (domain.ClearedCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := domain.ClearedCounts{
		Messages:  r.clearResourcesLocked(domain.ResourceKindMessage),
		Calls:     r.clearResourcesLocked(domain.ResourceKindCall),
		Callbacks: int64(len(r.logs)),
	}
	r.logs = nil
	return counts, nil
}

func (r *Repository) Close() error { return nil }

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
