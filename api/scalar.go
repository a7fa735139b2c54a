package api

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"event-scheduler/domain"
)

// Date is the GraphQL Date scalar. It travels as an ISO-8601 string and
// rejects every other input kind instead of silently turning it into null.
// Coercion failures are kept on the value and reported by the resolver
// through Err.
type Date struct {
	time.Time
	err error
}

func (Date) ImplementsGraphQLType(name string) bool {
	return name == "Date"
}

func (d *Date) UnmarshalGraphQL(input interface{}) error {
	s, ok := input.(string)
	if !ok {
		d.err = fmt.Errorf("Date must be an ISO-8601 string, got %T.", input)
		return nil
	}
	d.Time, d.err = domain.ParseTime(s)
	return nil
}

// Err reports why the input could not be read as a date.
func (d Date) Err() error {
	return d.err
}

func (d Date) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(domain.FormatTime(d.Time))
}

// NullDate is a Date input that tells an explicit null apart from an omitted
// field.
type NullDate struct {
	Value *Date
	Set   bool
}

func (NullDate) ImplementsGraphQLType(name string) bool {
	return name == "Date"
}

func (n *NullDate) UnmarshalGraphQL(input interface{}) error {
	n.Set = true
	if input == nil {
		return nil
	}
	var d Date
	_ = d.UnmarshalGraphQL(input)
	n.Value = &d
	return nil
}

func (n *NullDate) Nullable() {}
