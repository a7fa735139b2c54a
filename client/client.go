// Package client talks to the event scheduler GraphQL endpoint and holds the
// form logic used when creating and editing events.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"event-scheduler/domain"
)

// Event is the client view of a stored event. Fields missing from the
// selection set stay at their zero value.
type Event struct {
	ID             string    `json:"_id" yaml:"_id"`
	Title          string    `json:"title" yaml:"title"`
	Description    string    `json:"description,omitempty" yaml:"description,omitempty"`
	StartTime      time.Time `json:"startTime" yaml:"startTime"`
	EndTime        time.Time `json:"endTime" yaml:"endTime,omitempty"`
	Location       string    `json:"location" yaml:"location"`
	IsRecurring    *bool     `json:"isRecurring,omitempty" yaml:"isRecurring,omitempty"`
	RecurrenceRule *string   `json:"recurrenceRule,omitempty" yaml:"recurrenceRule,omitempty"`
}

// Error is one entry of a GraphQL errors array.
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Code returns extensions.code, if any.
func (e Error) Code() string {
	code, _ := e.Extensions["code"].(string)
	return code
}

// Errors is returned when the server answered with GraphQL errors.
type Errors []Error

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Message
	}
	return strings.Join(msgs, "; ")
}

// Client wraps http.Client with helpers for GraphQL requests.
type Client struct {
	Endpoint string
	HTTP     *http.Client
}

// New creates a new Client.
func New(endpoint string) *Client {
	return &Client{Endpoint: endpoint, HTTP: &http.Client{Timeout: 30 * time.Second}}
}

type request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   sonic.NoCopyRawMessage `json:"data"`
	Errors Errors                 `json:"errors"`
}

// Do sends op and decodes its data into out. GraphQL errors are returned as
// Errors even when partial data was decoded.
func (c *Client) Do(ctx context.Context, op Operation, vars map[string]any, out any) error {
	body, err := sonic.Marshal(request{Query: op.Document, OperationName: op.Name, Variables: vars})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var decoded response
	if err := sonic.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("%s: unexpected response (status %d): %w", op.Name, resp.StatusCode, err)
	}
	if out != nil && len(decoded.Data) > 0 && string(decoded.Data) != "null" {
		if err := sonic.Unmarshal(decoded.Data, out); err != nil {
			return fmt.Errorf("%s: decode data: %w", op.Name, err)
		}
	}
	if len(decoded.Errors) > 0 {
		return decoded.Errors
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", op.Name, resp.StatusCode)
	}
	return nil
}

// Events lists upcoming events.
func (c *Client) Events(ctx context.Context) ([]Event, error) {
	var data struct {
		Events []Event `json:"events"`
	}
	if err := c.Do(ctx, GetUpcomingEvents, nil, &data); err != nil {
		return nil, err
	}
	return data.Events, nil
}

// Event fetches one event. A nil event means the id is unknown.
func (c *Client) Event(ctx context.Context, id string) (*Event, error) {
	var data struct {
		Event *Event `json:"event"`
	}
	if err := c.Do(ctx, GetEventByID, map[string]any{"id": id}, &data); err != nil {
		return nil, err
	}
	return data.Event, nil
}

// EventsByDateRange lists events starting within [start, end].
func (c *Client) EventsByDateRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	var data struct {
		Events []Event `json:"eventsByDateRange"`
	}
	vars := map[string]any{
		"startDate": domain.FormatTime(start),
		"endDate":   domain.FormatTime(end),
	}
	if err := c.Do(ctx, FilterEventsByDate, vars, &data); err != nil {
		return nil, err
	}
	return data.Events, nil
}

// AddEvent creates an event from a submitted form.
func (c *Client) AddEvent(ctx context.Context, f Form) (*Event, error) {
	var data struct {
		Event *Event `json:"addEvent"`
	}
	if err := c.Do(ctx, AddEvent, map[string]any{"input": f.Input()}, &data); err != nil {
		return nil, err
	}
	return data.Event, nil
}

// UpdateEvent sends the changed fields of an edited event.
func (c *Client) UpdateEvent(ctx context.Context, id string, changes map[string]any) (*Event, error) {
	var data struct {
		Event *Event `json:"updateEvent"`
	}
	if err := c.Do(ctx, UpdateEvent, map[string]any{"id": id, "input": changes}, &data); err != nil {
		return nil, err
	}
	return data.Event, nil
}

// SubmitEdit diffs f against original and only calls the server when
// something changed. The returned bool reports whether a request was sent.
func (c *Client) SubmitEdit(ctx context.Context, original Event, f Form) (*Event, bool, error) {
	changes := f.Changes(original)
	if len(changes) == 0 {
		return &original, false, nil
	}
	ev, err := c.UpdateEvent(ctx, original.ID, changes)
	return ev, true, err
}

// DeleteEvent deletes an event and reports whether it existed.
func (c *Client) DeleteEvent(ctx context.Context, id string) (bool, error) {
	var data struct {
		Event *struct {
			ID string `json:"_id"`
		} `json:"deleteEvent"`
	}
	if err := c.Do(ctx, DeleteEvent, map[string]any{"id": id}, &data); err != nil {
		return false, err
	}
	return data.Event != nil, nil
}
