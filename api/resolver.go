package api

import (
	"context"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"event-scheduler/changefeed"
	"event-scheduler/domain"
	"event-scheduler/schema"
)

const tracerName = "event-scheduler/api"

// Resolver is the GraphQL root for queries and mutations. The store is
// injected once at construction and shared by every request.
type Resolver struct {
	store    Storage
	notifier Notifier
	logger   *log.Logger
	tracer   trace.Tracer
}

// NewResolver creates a root resolver. notifier may be nil.
func NewResolver(store Storage, notifier Notifier, logger *log.Logger) *Resolver {
	if store == nil {
		panic("api.NewResolver: store is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Resolver{
		store:    store,
		notifier: notifier,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// NewSchema parses the shared SDL against r.
func NewSchema(r *Resolver) (*graphql.Schema, error) {
	return graphql.ParseSchema(schema.SDL, r,
		graphql.UseStringDescriptions(),
		graphql.Logger(panicLogger{r.logger}),
	)
}

type eventInput struct {
	Title          string
	Description    string
	StartTime      Date
	EndTime        Date
	Location       string
	IsRecurring    *bool
	RecurrenceRule *string
}

func (in eventInput) toDomain() (domain.EventInput, error) {
	start, err := dateArg("startTime", in.StartTime)
	if err != nil {
		return domain.EventInput{}, err
	}
	end, err := dateArg("endTime", in.EndTime)
	if err != nil {
		return domain.EventInput{}, err
	}
	out := domain.EventInput{
		Title:       in.Title,
		Description: in.Description,
		StartTime:   start,
		EndTime:     end,
		Location:    in.Location,
	}
	if in.IsRecurring != nil {
		out.IsRecurring = *in.IsRecurring
	}
	if in.RecurrenceRule != nil {
		out.RecurrenceRule = domain.RulePtr(domain.RecurrenceRule(*in.RecurrenceRule))
	}
	return out, nil
}

type updateEventInput struct {
	Title          graphql.NullString
	Description    graphql.NullString
	StartTime      NullDate
	EndTime        NullDate
	Location       graphql.NullString
	IsRecurring    graphql.NullBool
	RecurrenceRule graphql.NullString
}

func (in updateEventInput) toDomain() (domain.EventUpdate, error) {
	var upd domain.EventUpdate
	var err error
	if upd.Title, err = requiredString("title", in.Title); err != nil {
		return upd, err
	}
	if upd.Description, err = requiredString("description", in.Description); err != nil {
		return upd, err
	}
	if upd.Location, err = requiredString("location", in.Location); err != nil {
		return upd, err
	}
	if upd.StartTime, err = requiredDate("startTime", in.StartTime); err != nil {
		return upd, err
	}
	if upd.EndTime, err = requiredDate("endTime", in.EndTime); err != nil {
		return upd, err
	}
	if in.IsRecurring.Set {
		upd.IsRecurring = domain.Some(in.IsRecurring.Value != nil && *in.IsRecurring.Value)
	}
	if in.RecurrenceRule.Set {
		var rule *domain.RecurrenceRule
		if in.RecurrenceRule.Value != nil {
			rule = domain.RulePtr(domain.RecurrenceRule(*in.RecurrenceRule.Value))
		}
		upd.RecurrenceRule = domain.Some(rule)
	}
	return upd, nil
}

func requiredString(field string, v graphql.NullString) (domain.Optional[string], error) {
	if !v.Set {
		return domain.None[string](), nil
	}
	if v.Value == nil {
		return domain.None[string](), &domain.InvalidArgumentError{Field: field, Reason: field + " cannot be null."}
	}
	return domain.Some(*v.Value), nil
}

func requiredDate(field string, v NullDate) (domain.Optional[time.Time], error) {
	if !v.Set {
		return domain.None[time.Time](), nil
	}
	if v.Value == nil {
		return domain.None[time.Time](), &domain.InvalidArgumentError{Field: field, Reason: field + " cannot be null."}
	}
	t, err := dateArg(field, *v.Value)
	if err != nil {
		return domain.None[time.Time](), err
	}
	return domain.Some(t), nil
}

func dateArg(field string, d Date) (time.Time, error) {
	if err := d.Err(); err != nil {
		return time.Time{}, &domain.InvalidArgumentError{Field: field, Reason: err.Error()}
	}
	return d.Time, nil
}

// Events lists every event ordered by start time.
func (r *Resolver) Events(ctx context.Context) ([]*eventResolver, error) {
	ctx, span := r.startSpan(ctx, "Query.events")
	defer span.End()

	events, err := r.store.ListEvents(ctx, domain.EventFilter{})
	if err != nil {
		return nil, r.fail(span, "events", err)
	}
	return wrapEvents(events), nil
}

// Event returns a single event or null when the id is unknown.
func (r *Resolver) Event(ctx context.Context, args struct{ ID graphql.ID }) (*eventResolver, error) {
	ctx, span := r.startSpan(ctx, "Query.event", attribute.String("event.id", string(args.ID)))
	defer span.End()

	id := string(args.ID)
	if err := domain.ValidateID(id); err != nil {
		return nil, r.fail(span, "event", err)
	}
	ev, err := r.store.GetEvent(ctx, id)
	if err != nil {
		return nil, r.fail(span, "event", err)
	}
	return wrapEvent(ev), nil
}

// EventsByDateRange lists events starting within [startDate, endDate].
func (r *Resolver) EventsByDateRange(ctx context.Context, args struct {
	StartDate Date
	EndDate   Date
}) ([]*eventResolver, error) {
	ctx, span := r.startSpan(ctx, "Query.eventsByDateRange")
	defer span.End()

	from, err := dateArg("startDate", args.StartDate)
	if err != nil {
		return nil, r.fail(span, "eventsByDateRange", err)
	}
	to, err := dateArg("endDate", args.EndDate)
	if err != nil {
		return nil, r.fail(span, "eventsByDateRange", err)
	}
	events, err := r.store.ListEvents(ctx, domain.EventFilter{From: &from, To: &to})
	if err != nil {
		return nil, r.fail(span, "eventsByDateRange", err)
	}
	return wrapEvents(events), nil
}

// AddEvent validates and stores a new event, returning it as persisted.
func (r *Resolver) AddEvent(ctx context.Context, args struct{ Input eventInput }) (*eventResolver, error) {
	ctx, span := r.startSpan(ctx, "Mutation.addEvent")
	defer span.End()

	in, err := args.Input.toDomain()
	if err != nil {
		return nil, r.fail(span, "addEvent", err)
	}
	ev, err := in.Prepare()
	if err != nil {
		return nil, r.fail(span, "addEvent", err)
	}
	id, err := r.store.InsertEvent(ctx, ev)
	if err != nil {
		return nil, r.fail(span, "addEvent", err)
	}
	span.SetAttributes(attribute.String("event.id", id))
	stored, err := r.store.GetEvent(ctx, id)
	if err != nil {
		return nil, r.fail(span, "addEvent", err)
	}
	r.notify(changefeed.EventCreated, id)
	return wrapEvent(stored), nil
}

// UpdateEvent writes the supplied fields of an existing event. The merged
// record must still satisfy the event invariants. Unknown ids yield null.
func (r *Resolver) UpdateEvent(ctx context.Context, args struct {
	ID    graphql.ID
	Input updateEventInput
}) (*eventResolver, error) {
	ctx, span := r.startSpan(ctx, "Mutation.updateEvent", attribute.String("event.id", string(args.ID)))
	defer span.End()

	id := string(args.ID)
	if err := domain.ValidateID(id); err != nil {
		return nil, r.fail(span, "updateEvent", err)
	}
	upd, err := args.Input.toDomain()
	if err != nil {
		return nil, r.fail(span, "updateEvent", err)
	}
	current, err := r.store.GetEvent(ctx, id)
	if err != nil {
		return nil, r.fail(span, "updateEvent", err)
	}
	if current == nil {
		return nil, nil
	}
	if upd.IsEmpty() {
		return wrapEvent(current), nil
	}
	upd, _, err = upd.Prepare(*current)
	if err != nil {
		return nil, r.fail(span, "updateEvent", err)
	}
	updated, err := r.store.UpdateEvent(ctx, id, upd)
	if err != nil {
		return nil, r.fail(span, "updateEvent", err)
	}
	if updated == nil {
		return nil, nil
	}
	r.notify(changefeed.EventUpdated, id)
	return wrapEvent(updated), nil
}

// DeleteEvent removes an event and returns its last state, or null when the
// id is unknown.
func (r *Resolver) DeleteEvent(ctx context.Context, args struct{ ID graphql.ID }) (*eventResolver, error) {
	ctx, span := r.startSpan(ctx, "Mutation.deleteEvent", attribute.String("event.id", string(args.ID)))
	defer span.End()

	id := string(args.ID)
	if err := domain.ValidateID(id); err != nil {
		return nil, r.fail(span, "deleteEvent", err)
	}
	deleted, err := r.store.DeleteEvent(ctx, id)
	if err != nil {
		return nil, r.fail(span, "deleteEvent", err)
	}
	if deleted == nil {
		return nil, nil
	}
	r.notify(changefeed.EventDeleted, id)
	return wrapEvent(deleted), nil
}

func (r *Resolver) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (r *Resolver) fail(span trace.Span, field string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	rerr := newResolverError(err)
	resolverErrors.WithLabelValues(field, rerr.code).Inc()
	if rerr.code == codeInternal {
		r.logger.WithFields(log.Fields{"field": field, "error": err.Error()}).Error("resolver failed")
	}
	return rerr
}

func (r *Resolver) notify(kind changefeed.Kind, id string) {
	if r.notifier == nil {
		return
	}
	if !r.notifier.Notify(changefeed.NewChange(kind, id)) {
		r.logger.WithFields(log.Fields{"type": kind, "id": id}).Warn("change notification dropped")
	}
}

type eventResolver struct {
	ev domain.Event
}

func wrapEvent(ev *domain.Event) *eventResolver {
	if ev == nil {
		return nil
	}
	return &eventResolver{ev: *ev}
}

func wrapEvents(events []domain.Event) []*eventResolver {
	out := make([]*eventResolver, len(events))
	for i := range events {
		out[i] = &eventResolver{ev: events[i]}
	}
	return out
}

func (e *eventResolver) ID() graphql.ID      { return graphql.ID(e.ev.ID) }
func (e *eventResolver) Title() string       { return e.ev.Title }
func (e *eventResolver) Description() string { return e.ev.Description }
func (e *eventResolver) StartTime() Date     { return Date{Time: e.ev.StartTime} }
func (e *eventResolver) EndTime() Date       { return Date{Time: e.ev.EndTime} }
func (e *eventResolver) Location() string    { return e.ev.Location }

func (e *eventResolver) IsRecurring() *bool {
	v := e.ev.IsRecurring
	return &v
}

func (e *eventResolver) RecurrenceRule() *string {
	if e.ev.RecurrenceRule == nil {
		return nil
	}
	s := string(*e.ev.RecurrenceRule)
	return &s
}
