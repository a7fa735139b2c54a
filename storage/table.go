package storage

import (
	"context"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"event-scheduler/domain"
)

const eventsPartition = "events"

// Tables stores events as entities of one Azure table partition. Row keys
// are ObjectID hex strings so ids look the same on every backend.
type Tables struct {
	table *aztables.Client
}

// NewTables creates a table backed store from the given connection string.
func NewTables(connStr, tableName string) (*Tables, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Tables{table: svc.NewClient(tableName)}, nil
}

// EnsureTable creates the events table, tolerating an existing one.
func (t *Tables) EnsureTable(ctx context.Context) error {
	_, err := t.table.CreateTable(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
			return errors.Wrap(err, "create events table")
		}
	}
	return nil
}

func (t *Tables) ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error) {
	query := "PartitionKey eq '" + eventsPartition + "'"
	pager := t.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &query})
	events := []domain.Event{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "list events")
		}
		for _, raw := range resp.Entities {
			ev, err := decodeEventEntity(raw)
			if err != nil {
				return nil, err
			}
			if filter.Matches(ev) {
				events = append(events, ev)
			}
		}
	}
	domain.SortByStart(events)
	return events, nil
}

func (t *Tables) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	if err := domain.ValidateID(id); err != nil {
		return nil, err
	}
	resp, err := t.table.GetEntity(ctx, eventsPartition, id, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get event")
	}
	ev, err := decodeEventEntity(resp.Value)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (t *Tables) InsertEvent(ctx context.Context, ev domain.Event) (string, error) {
	ev.ID = domain.NewID()
	data, err := encodeEventEntity(ev)
	if err != nil {
		return "", err
	}
	if _, err := t.table.AddEntity(ctx, data, nil); err != nil {
		return "", errors.Wrap(err, "insert event")
	}
	return ev.ID, nil
}

// UpdateEvent merges upd into the stored entity and replaces it. Concurrent
// writers race; the last replace wins.
func (t *Tables) UpdateEvent(ctx context.Context, id string, upd domain.EventUpdate) (*domain.Event, error) {
	current, err := t.GetEvent(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}
	merged := upd.Apply(*current)
	data, err := encodeEventEntity(merged)
	if err != nil {
		return nil, err
	}
	_, err = t.table.UpdateEntity(ctx, data, &aztables.UpdateEntityOptions{
		UpdateMode: aztables.UpdateModeReplace,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "update event")
	}
	return &merged, nil
}

func (t *Tables) DeleteEvent(ctx context.Context, id string) (*domain.Event, error) {
	current, err := t.GetEvent(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}
	if _, err := t.table.DeleteEntity(ctx, eventsPartition, id, nil); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "delete event")
	}
	return current, nil
}

func (t *Tables) Ping(ctx context.Context) error {
	top := int32(1)
	pager := t.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Top: &top})
	_, err := pager.NextPage(ctx)
	return err
}

func encodeEventEntity(ev domain.Event) ([]byte, error) {
	props := map[string]any{
		"Title":       ev.Title,
		"Description": ev.Description,
		"StartTime":   aztables.EDMDateTime(ev.StartTime.UTC()),
		"EndTime":     aztables.EDMDateTime(ev.EndTime.UTC()),
		"Location":    ev.Location,
		"IsRecurring": ev.IsRecurring,
	}
	if ev.RecurrenceRule != nil {
		props["RecurrenceRule"] = string(*ev.RecurrenceRule)
	}
	ent := aztables.EDMEntity{
		Entity: aztables.Entity{
			PartitionKey: eventsPartition,
			RowKey:       ev.ID,
		},
		Properties: props,
	}
	data, err := sonic.Marshal(&ent)
	return data, errors.Wrap(err, "encode event entity")
}

func decodeEventEntity(data []byte) (domain.Event, error) {
	var ent aztables.EDMEntity
	if err := ent.UnmarshalJSON(data); err != nil {
		return domain.Event{}, errors.Wrap(err, "decode event entity")
	}
	ev := domain.Event{ID: ent.RowKey}
	ev.Title, _ = ent.Properties["Title"].(string)
	ev.Description, _ = ent.Properties["Description"].(string)
	ev.Location, _ = ent.Properties["Location"].(string)
	ev.IsRecurring, _ = ent.Properties["IsRecurring"].(bool)
	if v, ok := ent.Properties["StartTime"].(aztables.EDMDateTime); ok {
		ev.StartTime = time.Time(v).UTC()
	}
	if v, ok := ent.Properties["EndTime"].(aztables.EDMDateTime); ok {
		ev.EndTime = time.Time(v).UTC()
	}
	if v, ok := ent.Properties["RecurrenceRule"].(string); ok && v != "" {
		ev.RecurrenceRule = domain.RulePtr(domain.RecurrenceRule(v))
	}
	return ev, nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
