// Package storage persists events in a document store. Mongo is the primary
// backend; Azure Tables serves deployments that only have a storage account.
// Either can be wrapped in a Redis read-through Cache.
package storage

import (
	"context"

	"event-scheduler/domain"
)

// Backend is the contract every event store satisfies. Lookups of unknown
// ids return a nil event and a nil error.
type Backend interface {
	ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error)
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	InsertEvent(ctx context.Context, ev domain.Event) (string, error)
	UpdateEvent(ctx context.Context, id string, upd domain.EventUpdate) (*domain.Event, error)
	DeleteEvent(ctx context.Context, id string) (*domain.Event, error)
	Ping(ctx context.Context) error
}
