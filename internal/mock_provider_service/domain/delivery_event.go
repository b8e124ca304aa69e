package domain

import "time"

const EventTypeStatusUpdate = "status_update"

// DeliveryEvent records one status transition of a resource.
type DeliveryEvent struct {
	ID           int64
	ResourceSID  string
	ResourceKind ResourceKind
	EventType    string
	Status       Status
	// CallbackSent is true when a webhook for this transition was delivered.
	CallbackSent bool
	CreatedAt    time.Time
}

// Statistics summarises stored record counts.
type Statistics struct {
	Messages  int64 `json:"messages"`
	Calls     int64 `json:"calls"`
	Callbacks int64 `json:"callbacks"`
}

// ClearedCounts reports how many records a clear-all removed.
type ClearedCounts struct {
	Messages  int64 `json:"messages"`
	Calls     int64 `json:"calls"`
	Callbacks int64 `json:"callbacks"`
}
