package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	graphql "github.com/graph-gophers/graphql-go"
	gqlerrors "github.com/graph-gophers/graphql-go/errors"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"event-scheduler/domain"
)

type eventJSON struct {
	ID             string  `json:"_id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	StartTime      string  `json:"startTime"`
	EndTime        string  `json:"endTime"`
	Location       string  `json:"location"`
	IsRecurring    *bool   `json:"isRecurring"`
	RecurrenceRule *string `json:"recurrenceRule"`
}

type gqlError struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions"`
}

type gqlResponse struct {
	Data struct {
		Events            []eventJSON `json:"events"`
		Event             *eventJSON  `json:"event"`
		EventsByDateRange []eventJSON `json:"eventsByDateRange"`
		AddEvent          *eventJSON  `json:"addEvent"`
		UpdateEvent       *eventJSON  `json:"updateEvent"`
		DeleteEvent       *eventJSON  `json:"deleteEvent"`
	} `json:"data"`
	Errors []gqlError `json:"errors"`
}

const eventFields = `_id title description startTime endTime location isRecurring recurrenceRule`

const (
	addEventMutation    = `mutation AddEvent($input: EventInput!) { addEvent(input: $input) { ` + eventFields + ` } }`
	updateEventMutation = `mutation UpdateEvent($id: ID!, $input: UpdateEventInput!) { updateEvent(id: $id, input: $input) { ` + eventFields + ` } }`
	deleteEventMutation = `mutation DeleteEvent($id: ID!) { deleteEvent(id: $id) { ` + eventFields + ` } }`
	eventQuery          = `query GetEventById($id: ID!) { event(id: $id) { ` + eventFields + ` } }`
	eventsQuery         = `query GetUpcomingEvents { events { ` + eventFields + ` } }`
	rangeQuery          = `query EventsByDateRange($startDate: Date!, $endDate: Date!) { eventsByDateRange(startDate: $startDate, endDate: $endDate) { ` + eventFields + ` } }`
)

type harness struct {
	store    *memStore
	notifier *recordingNotifier
	logger   *log.Logger
	hook     *test.Hook
	handler  echo.HandlerFunc
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger, hook := test.NewNullLogger()
	h := &harness{store: newMemStore(), notifier: &recordingNotifier{}, logger: logger, hook: hook}
	schema, err := NewSchema(NewResolver(h.store, h.notifier, logger))
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	h.handler = serveGraphQL(schema, logger)
	return h
}

func (h *harness) post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, graphqlRoute, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.handler(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

func (h *harness) exec(t *testing.T, query string, vars map[string]any) gqlResponse {
	t.Helper()
	body, err := sonic.Marshal(map[string]any{"query": query, "variables": vars})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	rec := h.post(t, string(body))
	var resp gqlResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return resp
}

func standupInput() map[string]any {
	return map[string]any{
		"title":       "Standup",
		"description": "Daily sync",
		"startTime":   "2024-01-01T09:00:00Z",
		"endTime":     "2024-01-01T09:15:00Z",
		"location":    "Room A",
	}
}

func (h *harness) addStandup(t *testing.T) eventJSON {
	t.Helper()
	resp := h.exec(t, addEventMutation, map[string]any{"input": standupInput()})
	if len(resp.Errors) > 0 {
		t.Fatalf("addEvent failed: %#v", resp.Errors)
	}
	if resp.Data.AddEvent == nil {
		t.Fatal("addEvent returned null")
	}
	return *resp.Data.AddEvent
}

func requireInvalidArgument(t *testing.T, resp gqlResponse) {
	t.Helper()
	if len(resp.Errors) != 1 {
		t.Fatalf("expected one error, got %#v", resp.Errors)
	}
	if code := resp.Errors[0].Extensions["code"]; code != codeInvalidArgument {
		t.Fatalf("expected %s code, got %v (%s)", codeInvalidArgument, code, resp.Errors[0].Message)
	}
}

func TestAddEventReturnsPersistedRecord(t *testing.T) {
	h := newHarness(t)
	ev := h.addStandup(t)

	if err := domain.ValidateID(ev.ID); err != nil {
		t.Fatalf("expected assigned ObjectID, got %q", ev.ID)
	}
	if ev.Title != "Standup" || ev.Description != "Daily sync" || ev.Location != "Room A" {
		t.Fatalf("unexpected event: %#v", ev)
	}
	if ev.StartTime != "2024-01-01T09:00:00.000Z" || ev.EndTime != "2024-01-01T09:15:00.000Z" {
		t.Fatalf("unexpected times: %s - %s", ev.StartTime, ev.EndTime)
	}
	if ev.IsRecurring == nil || *ev.IsRecurring {
		t.Fatalf("expected isRecurring false, got %v", ev.IsRecurring)
	}
	if ev.RecurrenceRule != nil {
		t.Fatalf("expected null recurrence rule, got %q", *ev.RecurrenceRule)
	}
	if h.store.Len() != 1 {
		t.Fatalf("expected one stored event, got %d", h.store.Len())
	}
}

func TestAddEventRejectsEndNotAfterStart(t *testing.T) {
	for name, end := range map[string]string{
		"equal":  "2024-01-01T09:00:00Z",
		"before": "2024-01-01T08:00:00Z",
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			in := standupInput()
			in["endTime"] = end
			resp := h.exec(t, addEventMutation, map[string]any{"input": in})
			requireInvalidArgument(t, resp)
			if resp.Errors[0].Message != "End time must be after start time." {
				t.Fatalf("unexpected message: %q", resp.Errors[0].Message)
			}
			if resp.Data.AddEvent != nil {
				t.Fatal("expected null addEvent")
			}
			if h.store.Len() != 0 {
				t.Fatal("expected nothing persisted")
			}
		})
	}
}

func TestRecurringEventRoundTrip(t *testing.T) {
	h := newHarness(t)
	in := standupInput()
	in["isRecurring"] = true
	in["recurrenceRule"] = "weekly"
	resp := h.exec(t, addEventMutation, map[string]any{"input": in})
	if len(resp.Errors) > 0 {
		t.Fatalf("addEvent failed: %#v", resp.Errors)
	}
	ev := resp.Data.AddEvent
	if ev.IsRecurring == nil || !*ev.IsRecurring || ev.RecurrenceRule == nil || *ev.RecurrenceRule != "weekly" {
		t.Fatalf("unexpected recurrence: %#v", ev)
	}

	in["recurrenceRule"] = "yearly"
	resp = h.exec(t, addEventMutation, map[string]any{"input": in})
	requireInvalidArgument(t, resp)
}

func TestMalformedIDsNeverReachStore(t *testing.T) {
	h := newHarness(t)
	for _, tc := range []struct {
		name  string
		query string
		vars  map[string]any
	}{
		{"event", eventQuery, map[string]any{"id": "not-an-id"}},
		{"update", updateEventMutation, map[string]any{"id": "1234", "input": map[string]any{"title": "x"}}},
		{"delete", deleteEventMutation, map[string]any{"id": "zzzzzzzzzzzzzzzzzzzzzzzz"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			resp := h.exec(t, tc.query, tc.vars)
			requireInvalidArgument(t, resp)
			if resp.Errors[0].Message != "Invalid event ID format" {
				t.Fatalf("unexpected message: %q", resp.Errors[0].Message)
			}
		})
	}
	if calls := h.store.Calls(); calls != 0 {
		t.Fatalf("expected no store calls, got %d", calls)
	}
}

func TestUnknownIDsResolveToNull(t *testing.T) {
	h := newHarness(t)
	id := domain.NewID()
	for _, q := range []string{eventQuery, deleteEventMutation} {
		resp := h.exec(t, q, map[string]any{"id": id})
		if len(resp.Errors) > 0 {
			t.Fatalf("expected no errors, got %#v", resp.Errors)
		}
		if resp.Data.Event != nil || resp.Data.DeleteEvent != nil {
			t.Fatal("expected null result")
		}
	}
	resp := h.exec(t, updateEventMutation, map[string]any{"id": id, "input": map[string]any{"location": "Room B"}})
	if len(resp.Errors) > 0 || resp.Data.UpdateEvent != nil {
		t.Fatalf("expected null update, got %#v", resp)
	}
}

func TestUpdateLocationOnly(t *testing.T) {
	h := newHarness(t)
	created := h.addStandup(t)

	resp := h.exec(t, updateEventMutation, map[string]any{"id": created.ID, "input": map[string]any{"location": "Room B"}})
	if len(resp.Errors) > 0 {
		t.Fatalf("update failed: %#v", resp.Errors)
	}
	want := created
	want.Location = "Room B"
	got := *resp.Data.UpdateEvent
	if got.ID != want.ID || got.Title != want.Title || got.Description != want.Description ||
		got.StartTime != want.StartTime || got.EndTime != want.EndTime || got.Location != want.Location {
		t.Fatalf("unexpected update result: %#v", got)
	}
}

func TestUpdateRevalidatesMergedRecord(t *testing.T) {
	h := newHarness(t)
	created := h.addStandup(t)

	resp := h.exec(t, updateEventMutation, map[string]any{"id": created.ID, "input": map[string]any{"endTime": "2024-01-01T08:59:00Z"}})
	requireInvalidArgument(t, resp)

	resp = h.exec(t, eventQuery, map[string]any{"id": created.ID})
	if resp.Data.Event == nil || resp.Data.Event.EndTime != created.EndTime {
		t.Fatalf("expected stored event unchanged, got %#v", resp.Data.Event)
	}

	resp = h.exec(t, updateEventMutation, map[string]any{"id": created.ID, "input": map[string]any{"title": nil}})
	requireInvalidArgument(t, resp)
}

func TestInterleavedUpdatesKeepEndAfterStart(t *testing.T) {
	h := newHarness(t)
	created := h.addStandup(t)

	var other gqlResponse
	h.store.afterGet = func() {
		other = h.exec(t, updateEventMutation, map[string]any{"id": created.ID, "input": map[string]any{"endTime": "2024-01-01T09:05:00Z"}})
	}
	resp := h.exec(t, updateEventMutation, map[string]any{"id": created.ID, "input": map[string]any{"startTime": "2024-01-01T09:10:00Z"}})
	if len(resp.Errors) > 0 || len(other.Errors) > 0 {
		t.Fatalf("updates failed: %#v / %#v", resp.Errors, other.Errors)
	}
	if other.Data.UpdateEvent == nil || other.Data.UpdateEvent.EndTime != "2024-01-01T09:05:00.000Z" {
		t.Fatalf("expected the interleaved update to run first, got %#v", other.Data.UpdateEvent)
	}

	stored, ok := h.store.Event(created.ID)
	if !ok {
		t.Fatal("event disappeared")
	}
	if !stored.EndTime.After(stored.StartTime) {
		t.Fatalf("stored record violates end > start: %s - %s", stored.StartTime, stored.EndTime)
	}
	if got := resp.Data.UpdateEvent; got.StartTime != "2024-01-01T09:10:00.000Z" || got.EndTime != "2024-01-01T09:15:00.000Z" {
		t.Fatalf("expected the last writer's validated record, got %#v", got)
	}
}

func TestUpdateClearsRecurrence(t *testing.T) {
	h := newHarness(t)
	in := standupInput()
	in["isRecurring"] = true
	in["recurrenceRule"] = "daily"
	created := h.exec(t, addEventMutation, map[string]any{"input": in}).Data.AddEvent

	resp := h.exec(t, updateEventMutation, map[string]any{"id": created.ID, "input": map[string]any{"isRecurring": false}})
	if len(resp.Errors) > 0 {
		t.Fatalf("update failed: %#v", resp.Errors)
	}
	got := resp.Data.UpdateEvent
	if got.IsRecurring == nil || *got.IsRecurring || got.RecurrenceRule != nil {
		t.Fatalf("expected recurrence cleared, got %#v", got)
	}
}

func TestEmptyUpdateReturnsCurrentRecord(t *testing.T) {
	h := newHarness(t)
	created := h.addStandup(t)
	before := h.store.Calls()

	resp := h.exec(t, updateEventMutation, map[string]any{"id": created.ID, "input": map[string]any{}})
	if len(resp.Errors) > 0 || resp.Data.UpdateEvent == nil || resp.Data.UpdateEvent.Title != "Standup" {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if calls := h.store.Calls() - before; calls != 1 {
		t.Fatalf("expected only the lookup to hit the store, got %d calls", calls)
	}
}

func TestDeleteThenGetReturnsNull(t *testing.T) {
	h := newHarness(t)
	created := h.addStandup(t)

	resp := h.exec(t, deleteEventMutation, map[string]any{"id": created.ID})
	if len(resp.Errors) > 0 || resp.Data.DeleteEvent == nil {
		t.Fatalf("delete failed: %#v", resp)
	}
	if resp.Data.DeleteEvent.Title != "Standup" {
		t.Fatalf("expected pre-deletion snapshot, got %#v", resp.Data.DeleteEvent)
	}

	resp = h.exec(t, eventQuery, map[string]any{"id": created.ID})
	if len(resp.Errors) > 0 || resp.Data.Event != nil {
		t.Fatalf("expected null event after delete, got %#v", resp)
	}

	kinds := h.notifier.Kinds()
	if len(kinds) != 2 || kinds[0] != "event-created" || kinds[1] != "event-deleted" {
		t.Fatalf("unexpected change notifications: %v", kinds)
	}
}

func TestEventsOrderedByStart(t *testing.T) {
	h := newHarness(t)
	for _, start := range []string{"2024-03-03T10:00:00Z", "2024-03-01T10:00:00Z", "2024-03-02T10:00:00Z"} {
		in := standupInput()
		in["startTime"] = start
		in["endTime"] = strings.Replace(start, "10:00", "11:00", 1)
		if resp := h.exec(t, addEventMutation, map[string]any{"input": in}); len(resp.Errors) > 0 {
			t.Fatalf("add: %#v", resp.Errors)
		}
	}

	resp := h.exec(t, eventsQuery, nil)
	if len(resp.Data.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(resp.Data.Events))
	}
	for i := 1; i < len(resp.Data.Events); i++ {
		if resp.Data.Events[i-1].StartTime > resp.Data.Events[i].StartTime {
			t.Fatalf("events out of order: %#v", resp.Data.Events)
		}
	}
}

func TestEventsByDateRangeIsInclusive(t *testing.T) {
	h := newHarness(t)
	for _, start := range []string{"2024-03-01T10:00:00Z", "2024-03-02T10:00:00Z", "2024-03-03T10:00:00Z"} {
		in := standupInput()
		in["startTime"] = start
		in["endTime"] = strings.Replace(start, "10:00", "11:00", 1)
		h.exec(t, addEventMutation, map[string]any{"input": in})
	}

	resp := h.exec(t, rangeQuery, map[string]any{"startDate": "2024-03-02T10:00:00.000Z", "endDate": "2024-03-03T10:00:00Z"})
	if len(resp.Errors) > 0 {
		t.Fatalf("range failed: %#v", resp.Errors)
	}
	if len(resp.Data.EventsByDateRange) != 2 {
		t.Fatalf("expected 2 events in range, got %#v", resp.Data.EventsByDateRange)
	}
	if resp.Data.EventsByDateRange[0].StartTime != "2024-03-02T10:00:00.000Z" {
		t.Fatalf("unexpected first event: %#v", resp.Data.EventsByDateRange[0])
	}

	resp = h.exec(t, rangeQuery, map[string]any{"startDate": "2024-03-04", "endDate": "2024-03-01"})
	if len(resp.Errors) > 0 || len(resp.Data.EventsByDateRange) != 0 {
		t.Fatalf("expected empty inverted range, got %#v", resp)
	}
}

func TestDateScalarRejectsNonStrings(t *testing.T) {
	h := newHarness(t)
	h.addStandup(t)

	for name, tc := range map[string]struct {
		query string
		vars  map[string]any
	}{
		"numeric_variable":    {rangeQuery, map[string]any{"startDate": 1704099600, "endDate": "2024-03-01"}},
		"numeric_literal":     {`{ eventsByDateRange(startDate: 5, endDate: "2024-03-01") { _id } }`, nil},
		"unparsable_variable": {rangeQuery, map[string]any{"startDate": "2024-03-01", "endDate": "yesterday"}},
		"unparsable_literal":  {`{ eventsByDateRange(startDate: "not a date", endDate: "2024-03-01") { _id } }`, nil},
		"add_event_input": {addEventMutation, map[string]any{"input": func() map[string]any {
			in := standupInput()
			in["startTime"] = "yesterday"
			return in
		}()}},
		"update_event_input": {`mutation { updateEvent(id: "65a0f0e1b2c3d4e5f6a7b8c9", input: {endTime: 7}) { _id } }`, nil},
	} {
		t.Run(name, func(t *testing.T) {
			body, err := sonic.Marshal(map[string]any{"query": tc.query, "variables": tc.vars})
			if err != nil {
				t.Fatalf("marshal request: %v", err)
			}
			rec := h.post(t, string(body))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
			}
			var resp gqlResponse
			if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
			}
			requireInvalidArgument(t, resp)
			if len(resp.Data.EventsByDateRange) != 0 || resp.Data.AddEvent != nil || resp.Data.UpdateEvent != nil {
				t.Fatalf("expected no data for failed coercion, got %s", rec.Body.String())
			}
		})
	}
	if h.store.Len() != 1 {
		t.Fatalf("expected only the seeded event, got %d", h.store.Len())
	}
}

func TestExecutedDistinguishesRequestErrors(t *testing.T) {
	pathless := &graphql.Response{
		Data:   []byte(`{}`),
		Errors: []*gqlerrors.QueryError{{Message: "got null for non-null"}},
	}
	if executed(pathless) {
		t.Fatal("errors without a field path should count as not executed")
	}
	resolved := &graphql.Response{
		Data:   []byte(`null`),
		Errors: []*gqlerrors.QueryError{{Message: "boom", Path: []interface{}{"events"}}},
	}
	if !executed(resolved) {
		t.Fatal("resolver errors should count as executed")
	}
	if !executed(&graphql.Response{Data: []byte(`{"events":[]}`)}) {
		t.Fatal("successful responses should count as executed")
	}
}

func TestStoreFailureSurfacesInternalError(t *testing.T) {
	h := newHarness(t)
	h.store.err = errors.New("connection reset")

	resp := h.exec(t, eventsQuery, nil)
	if len(resp.Errors) != 1 {
		t.Fatalf("expected one error, got %#v", resp.Errors)
	}
	if resp.Errors[0].Extensions["code"] != codeInternal {
		t.Fatalf("unexpected code: %v", resp.Errors[0].Extensions["code"])
	}
	if !strings.Contains(resp.Errors[0].Message, "connection reset") {
		t.Fatalf("unexpected message: %q", resp.Errors[0].Message)
	}
	found := false
	for _, entry := range h.hook.AllEntries() {
		if entry.Message == "resolver failed" && entry.Data["field"] == "events" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected resolver failure to be logged")
	}
}

func TestDroppedNotificationIsLogged(t *testing.T) {
	h := newHarness(t)
	h.notifier.reject = true
	h.addStandup(t)

	found := false
	for _, entry := range h.hook.AllEntries() {
		if entry.Message == "change notification dropped" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected dropped notification warning")
	}
}

func TestServeGraphQLRejectsBadRequests(t *testing.T) {
	h := newHarness(t)
	for name, body := range map[string]string{
		"not_json":    `{"query":`,
		"empty_query": `{"query":""}`,
		"invalid_doc": `{"query":"{ nope }"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := h.post(t, body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400 got %d: %s", rec.Code, rec.Body.String())
			}
			var resp gqlResponse
			if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if len(resp.Errors) == 0 {
				t.Fatal("expected errors in body")
			}
		})
	}
}

func TestServeGraphQLLogsRequestMetrics(t *testing.T) {
	h := newHarness(t)
	body := `{"query":"query GetUpcomingEvents { events { _id } }","operationName":"GetUpcomingEvents"}`
	rec := h.post(t, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	entry := h.hook.LastEntry()
	if entry == nil || entry.Message != "graphql.request.metrics" {
		t.Fatalf("expected metrics log entry, got %#v", entry)
	}
	if entry.Data["operation"] != "GetUpcomingEvents" {
		t.Fatalf("unexpected operation: %v", entry.Data["operation"])
	}
	if entry.Data["route"] != graphqlRoute {
		t.Fatalf("unexpected route: %v", entry.Data["route"])
	}
	if entry.Data["error_count"] != 0 {
		t.Fatalf("unexpected error count: %v", entry.Data["error_count"])
	}
	if _, ok := entry.Data["exec_ms"]; !ok {
		t.Fatalf("expected exec_ms field, got %#v", entry.Data)
	}
}

func TestRequestMetricsOmitsUnsetDurations(t *testing.T) {
	logger, hook := test.NewNullLogger()
	m := newRequestMetrics(logger, "req-1")
	m.start = m.start.Add(-5 * time.Millisecond)
	m.ObserveDecode(0)
	m.SetErrorStage("decode")
	m.SetErrorCount(-1)
	m.Log(http.StatusBadRequest, errors.New("bad"))

	entry := hook.LastEntry()
	if _, ok := entry.Data["decode_ms"]; ok {
		t.Fatal("expected decode_ms to be omitted")
	}
	if entry.Data["error_stage"] != "decode" || entry.Data["request_id"] != "req-1" || entry.Data["error"] != "bad" {
		t.Fatalf("unexpected fields: %#v", entry.Data)
	}
	if entry.Data["error_count"] != 0 {
		t.Fatalf("expected clamped error count, got %v", entry.Data["error_count"])
	}
}

func TestHealthz(t *testing.T) {
	e := echo.New()
	store := newMemStore()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)
	if err := healthz(store)(c); err != nil {
		t.Fatalf("healthz: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	store.pingErr = errors.New("no primary")
	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)
	if err := healthz(store)(c); err != nil {
		t.Fatalf("healthz: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 got %d", rec.Code)
	}
}
