// Package changefeed publishes a notification for every persisted event
// mutation so other services can react without polling the store.
package changefeed

import (
	"sync/atomic"
	"time"
)

// Kind names the mutation that produced a change.
type Kind string

const (
	EventCreated Kind = "event-created"
	EventUpdated Kind = "event-updated"
	EventDeleted Kind = "event-deleted"
)

// Change is the message body published for one mutation.
type Change struct {
	Type Kind   `json:"type"`
	ID   string `json:"id"`
	Time int64  `json:"time"`
}

// NewChange stamps a change with a strictly increasing timestamp.
func NewChange(kind Kind, id string) Change {
	return Change{Type: kind, ID: id, Time: nextTimestamp()}
}

var lastTimestamp int64

func nextTimestamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastTimestamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastTimestamp, last, now) {
			return now
		}
	}
}
