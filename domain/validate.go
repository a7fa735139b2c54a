package domain

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateEvent checks the invariants every stored event satisfies:
// a non-empty title, both timestamps present with the end strictly after the
// start, and a known recurrence rule whenever the event recurs.
func ValidateEvent(ev Event) error {
	if err := validate.Struct(ev); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return err
	}
	if ev.StartTime.IsZero() {
		return &InvalidArgumentError{Field: "startTime", Reason: "Start time is required."}
	}
	if ev.EndTime.IsZero() {
		return &InvalidArgumentError{Field: "endTime", Reason: "End time is required."}
	}
	if !ev.EndTime.After(ev.StartTime) {
		return &InvalidArgumentError{Field: "endTime", Reason: "End time must be after start time."}
	}
	if ev.IsRecurring && ev.RecurrenceRule == nil {
		return &InvalidArgumentError{Field: "recurrenceRule", Reason: "Recurrence rule is required for recurring events."}
	}
	return nil
}

func fieldError(fe validator.FieldError) error {
	switch fe.Field() {
	case "title":
		return &InvalidArgumentError{Field: "title", Reason: "Title is required."}
	case "recurrenceRule":
		return &InvalidArgumentError{Field: "recurrenceRule", Reason: "Recurrence rule must be one of daily, weekly, monthly."}
	}
	return &InvalidArgumentError{Field: fe.Field(), Reason: fe.Error()}
}
