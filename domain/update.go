package domain

import "time"

// EventUpdate is a partial update. Only supplied fields are written; a
// supplied nil RecurrenceRule clears the stored rule.
type EventUpdate struct {
	Title          Optional[string]
	Description    Optional[string]
	StartTime      Optional[time.Time]
	EndTime        Optional[time.Time]
	Location       Optional[string]
	IsRecurring    Optional[bool]
	RecurrenceRule Optional[*RecurrenceRule]
}

// IsEmpty reports whether no field was supplied.
func (u EventUpdate) IsEmpty() bool {
	return !u.Title.IsSet() && !u.Description.IsSet() && !u.StartTime.IsSet() &&
		!u.EndTime.IsSet() && !u.Location.IsSet() && !u.IsRecurring.IsSet() &&
		!u.RecurrenceRule.IsSet()
}

// Apply returns ev with every supplied field overwritten. Identity is kept.
func (u EventUpdate) Apply(ev Event) Event {
	if v, ok := u.Title.Get(); ok {
		ev.Title = v
	}
	if v, ok := u.Description.Get(); ok {
		ev.Description = v
	}
	if v, ok := u.StartTime.Get(); ok {
		ev.StartTime = v
	}
	if v, ok := u.EndTime.Get(); ok {
		ev.EndTime = v
	}
	if v, ok := u.Location.Get(); ok {
		ev.Location = v
	}
	if v, ok := u.IsRecurring.Get(); ok {
		ev.IsRecurring = v
	}
	if v, ok := u.RecurrenceRule.Get(); ok {
		ev.RecurrenceRule = v
	}
	return ev
}

// Overwrite returns an update that writes every mutable field of ev.
func Overwrite(ev Event) EventUpdate {
	return EventUpdate{
		Title:          Some(ev.Title),
		Description:    Some(ev.Description),
		StartTime:      Some(ev.StartTime),
		EndTime:        Some(ev.EndTime),
		Location:       Some(ev.Location),
		IsRecurring:    Some(ev.IsRecurring),
		RecurrenceRule: Some(ev.RecurrenceRule),
	}
}

// Prepare merges u into current and validates the merged record. The
// returned update overwrites every field with that record; a partial write
// could combine with a concurrent update into an invalid one.
func (u EventUpdate) Prepare(current Event) (EventUpdate, Event, error) {
	merged := u.Apply(current)
	merged.Normalize()
	if err := ValidateEvent(merged); err != nil {
		return EventUpdate{}, Event{}, err
	}
	return Overwrite(merged), merged, nil
}
