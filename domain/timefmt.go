package domain

import (
	"fmt"
	"time"
)

// WireLayout is the ISO-8601 form used on the wire: UTC with millisecond
// precision, e.g. 2024-01-01T09:00:00.000Z.
const WireLayout = "2006-01-02T15:04:05.000Z07:00"

// Layouts without a zone are read as UTC.
var inboundLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// FormatTime renders t in wire form.
func FormatTime(t time.Time) string {
	return t.UTC().Format(WireLayout)
}

// ParseTime reads an ISO-8601 timestamp. The result is in UTC and truncated
// to milliseconds, the precision the stores keep.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range inboundLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Millisecond), nil
		}
	}
	return time.Time{}, &InvalidArgumentError{Reason: fmt.Sprintf("Invalid date %q: expected an ISO-8601 string.", s)}
}

// NormalizeTime returns t as it reads back after a trip through the wire form.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
