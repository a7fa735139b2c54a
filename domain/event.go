package domain

import (
	"slices"
	"time"
)

// Event is a scheduled item owned by the store.
type Event struct {
	ID             string          `json:"_id"`
	Title          string          `json:"title" validate:"required"`
	Description    string          `json:"description"`
	StartTime      time.Time       `json:"startTime"`
	EndTime        time.Time       `json:"endTime"`
	Location       string          `json:"location"`
	IsRecurring    bool            `json:"isRecurring"`
	RecurrenceRule *RecurrenceRule `json:"recurrenceRule" validate:"omitempty,oneof=daily weekly monthly"`
}

// Normalize clears the recurrence rule of non-recurring events.
func (e *Event) Normalize() {
	if !e.IsRecurring {
		e.RecurrenceRule = nil
	}
}

// EventInput carries the fields of an event to be created.
type EventInput struct {
	Title          string
	Description    string
	StartTime      time.Time
	EndTime        time.Time
	Location       string
	IsRecurring    bool
	RecurrenceRule *RecurrenceRule
}

// Prepare normalizes the input and checks it against the event invariants.
// The returned event has no identity yet.
func (in EventInput) Prepare() (Event, error) {
	ev := Event{
		Title:          in.Title,
		Description:    in.Description,
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		Location:       in.Location,
		IsRecurring:    in.IsRecurring,
		RecurrenceRule: in.RecurrenceRule,
	}
	ev.Normalize()
	if err := ValidateEvent(ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// EventFilter restricts a listing to events starting within [From, To].
// Nil bounds are open.
type EventFilter struct {
	From *time.Time
	To   *time.Time
}

// Matches reports whether ev starts inside the filter window.
func (f EventFilter) Matches(ev Event) bool {
	if f.From != nil && ev.StartTime.Before(*f.From) {
		return false
	}
	if f.To != nil && ev.StartTime.After(*f.To) {
		return false
	}
	return true
}

// SortByStart orders events ascending by start time, keeping insertion order
// for equal start times.
func SortByStart(events []Event) {
	slices.SortStableFunc(events, func(a, b Event) int {
		return a.StartTime.Compare(b.StartTime)
	})
}
