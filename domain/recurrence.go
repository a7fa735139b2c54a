package domain

import "fmt"

// RecurrenceRule is stored verbatim and never expanded.
type RecurrenceRule string

const (
	RecurrenceDaily   RecurrenceRule = "daily"
	RecurrenceWeekly  RecurrenceRule = "weekly"
	RecurrenceMonthly RecurrenceRule = "monthly"
)

// RecurrenceRules lists the accepted rules in display order.
var RecurrenceRules = []RecurrenceRule{RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly}

func (r RecurrenceRule) Valid() bool {
	switch r {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

// ParseRecurrenceRule returns the rule named by s.
func ParseRecurrenceRule(s string) (RecurrenceRule, error) {
	r := RecurrenceRule(s)
	if !r.Valid() {
		return "", &InvalidArgumentError{Field: "recurrenceRule", Reason: fmt.Sprintf("Unknown recurrence rule %q.", s)}
	}
	return r, nil
}

// RulePtr is a convenience for building optional rules.
func RulePtr(r RecurrenceRule) *RecurrenceRule { return &r }
