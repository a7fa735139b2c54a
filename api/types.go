package api

import (
	"context"

	"event-scheduler/changefeed"
	"event-scheduler/domain"
)

// Storage abstracts the event store for resolvers. Lookups that find nothing
// return a nil event and a nil error.
type Storage interface {
	ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error)
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	InsertEvent(ctx context.Context, ev domain.Event) (string, error)
	UpdateEvent(ctx context.Context, id string, upd domain.EventUpdate) (*domain.Event, error)
	DeleteEvent(ctx context.Context, id string) (*domain.Event, error)
	Ping(ctx context.Context) error
}

// Notifier receives a change for every successful mutation. It reports false
// when the change had to be dropped.
type Notifier interface {
	Notify(change changefeed.Change) bool
}
