package domain

import "context"

type ResourceRepository interface {
	CreateResource(ctx context.Context, res *Resource) error
	// GetResource returns ErrNotFound when no resource of that kind has the SID.
	GetResource(ctx context.Context, kind ResourceKind, sid string) (*Resource, error)
	// UpdateStatus returns ErrNotFound when the resource no longer exists.
	UpdateStatus(ctx context.Context, kind ResourceKind, sid string, status Status) error
	// ListResources returns newest first.
	ListResources(ctx context.Context, kind ResourceKind, limit, offset int) ([]*Resource, error)
}

type DeliveryEventRepository interface {
	CreateDeliveryEvent(ctx context.Context, event *DeliveryEvent) error
	// ListDeliveryEvents returns the events of one resource in creation order.
	ListDeliveryEvents(ctx context.Context, kind ResourceKind, sid string) ([]*DeliveryEvent, error)
}

type CallbackLogRepository interface {
	CreateCallbackLog(ctx context.Context, log *CallbackLog) error
	GetCallbackLog(ctx context.Context, id int64) (*CallbackLog, error)
	// ListCallbackLogs returns newest first.
	ListCallbackLogs(ctx context.Context, limit, offset int) ([]*CallbackLog, error)
}

// MaintenanceRepository backs the statistics and clear endpoints.
type MaintenanceRepository interface {
	Statistics(ctx context.Context) (Statistics, error)
	// ClearResources deletes every resource of kind together with its delivery events.
	ClearResources(ctx context.Context, kind ResourceKind) (int64, error)
	ClearCallbackLogs(ctx context.Context) (int64, error)
	ClearAll(ctx context.Context) (ClearedCounts, error)
}

// Repository is the full store used by the service.
type Repository interface {
	ResourceRepository
	DeliveryEventRepository
	CallbackLogRepository
	MaintenanceRepository
	Close() error
}
