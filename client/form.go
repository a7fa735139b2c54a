package client

import (
	"sort"
	"strings"
	"time"

	"event-scheduler/domain"
)

// Form is the editable state of an event before submission.
type Form struct {
	Title          string
	Description    string
	StartTime      time.Time
	EndTime        time.Time
	Location       string
	IsRecurring    bool
	RecurrenceRule string
}

// NewForm prefills a form from initial, or from now when creating.
func NewForm(initial *Event, now time.Time) Form {
	if initial == nil {
		return Form{StartTime: now, EndTime: now}
	}
	f := Form{
		Title:       initial.Title,
		Description: initial.Description,
		StartTime:   initial.StartTime,
		EndTime:     initial.EndTime,
		Location:    initial.Location,
	}
	if initial.IsRecurring != nil {
		f.IsRecurring = *initial.IsRecurring
	}
	if initial.RecurrenceRule != nil {
		f.RecurrenceRule = *initial.RecurrenceRule
	}
	return f
}

// FormErrors maps a field name to the message shown next to it.
type FormErrors map[string]string

func (e FormErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = f + ": " + e[f]
	}
	return strings.Join(msgs, "; ")
}

// Validate applies the same checks the form runs before submitting.
func (f Form) Validate() error {
	errs := FormErrors{}
	if strings.TrimSpace(f.Title) == "" {
		errs["title"] = "Title is required"
	}
	if strings.TrimSpace(f.Description) == "" {
		errs["description"] = "Description is required"
	}
	if f.StartTime.IsZero() {
		errs["startTime"] = "Start time is required"
	}
	if f.EndTime.IsZero() {
		errs["endTime"] = "End time is required"
	} else if !f.EndTime.After(f.StartTime) {
		errs["endTime"] = "End time must be after start time"
	}
	if strings.TrimSpace(f.Location) == "" {
		errs["location"] = "Location is required"
	}
	if f.IsRecurring {
		if f.RecurrenceRule == "" {
			errs["recurrenceRule"] = "Rule is required for recurring events"
		} else if _, err := domain.ParseRecurrenceRule(f.RecurrenceRule); err != nil {
			errs["recurrenceRule"] = err.Error()
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Input is the variables payload for creation. The rule is null whenever the
// event does not recur, whatever is left in the rule field.
func (f Form) Input() map[string]any {
	var rule any
	if f.IsRecurring {
		rule = f.RecurrenceRule
	}
	return map[string]any{
		"title":          f.Title,
		"description":    f.Description,
		"startTime":      domain.FormatTime(f.StartTime),
		"endTime":        domain.FormatTime(f.EndTime),
		"location":       f.Location,
		"isRecurring":    f.IsRecurring,
		"recurrenceRule": rule,
	}
}

// Changes returns the subset of Input whose values differ from original.
// Dates compare by wire string so equal instants in other zones are not
// reported. Fields the original never loaded are skipped.
func (f Form) Changes(original Event) map[string]any {
	input := f.Input()
	before := map[string]any{
		"title":       original.Title,
		"description": original.Description,
		"startTime":   domain.FormatTime(original.StartTime),
		"endTime":     domain.FormatTime(original.EndTime),
		"location":    original.Location,
	}
	if original.IsRecurring != nil {
		before["isRecurring"] = *original.IsRecurring
	}
	if original.RecurrenceRule != nil {
		before["recurrenceRule"] = *original.RecurrenceRule
	} else {
		before["recurrenceRule"] = nil
	}

	changed := map[string]any{}
	for key, value := range input {
		prev, loaded := before[key]
		if !loaded {
			continue
		}
		if prev != value {
			changed[key] = value
		}
	}
	return changed
}
