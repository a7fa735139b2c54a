package client

import (
	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"event-scheduler/schema"
)

// Operation is a named GraphQL document sent by the client.
type Operation struct {
	Name     string
	Document string
}

var (
	GetUpcomingEvents = Operation{
		Name: "GetUpcomingEvents",
		Document: `query GetUpcomingEvents {
  events {
    _id
    title
    startTime
    location
  }
}`,
	}

	GetEventByID = Operation{
		Name: "GetEventById",
		Document: `query GetEventById($id: ID!) {
  event(id: $id) {
    _id
    title
    description
    startTime
    endTime
    location
    isRecurring
    recurrenceRule
  }
}`,
	}

	AddEvent = Operation{
		Name: "AddEvent",
		Document: `mutation AddEvent($input: EventInput!) {
  addEvent(input: $input) {
    _id
    title
  }
}`,
	}

	UpdateEvent = Operation{
		Name: "UpdateEvent",
		Document: `mutation UpdateEvent($id: ID!, $input: UpdateEventInput!) {
  updateEvent(id: $id, input: $input) {
    _id
    title
    description
    startTime
    endTime
    location
    isRecurring
    recurrenceRule
  }
}`,
	}

	DeleteEvent = Operation{
		Name: "DeleteEvent",
		Document: `mutation DeleteEvent($id: ID!) {
  deleteEvent(id: $id) {
    _id
  }
}`,
	}

	FilterEventsByDate = Operation{
		Name: "EventsByDateRange",
		Document: `query EventsByDateRange($startDate: Date!, $endDate: Date!) {
  eventsByDateRange(startDate: $startDate, endDate: $endDate) {
    _id
    title
    startTime
    location
  }
}`,
	}
)

// Operations lists every document the client may send.
var Operations = []Operation{
	GetUpcomingEvents,
	GetEventByID,
	AddEvent,
	UpdateEvent,
	DeleteEvent,
	FilterEventsByDate,
}

// ValidateOperations checks ops against the server schema without contacting
// the server.
func ValidateOperations(ops ...Operation) error {
	s, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: schema.SDL})
	if err != nil {
		return errors.Wrap(err, "load schema")
	}
	for _, op := range ops {
		doc, errs := gqlparser.LoadQuery(s, op.Document)
		if len(errs) > 0 {
			return errors.Wrapf(errs, "operation %s", op.Name)
		}
		if doc.Operations.ForName(op.Name) == nil {
			return errors.Errorf("operation %s: document does not define it", op.Name)
		}
	}
	return nil
}
