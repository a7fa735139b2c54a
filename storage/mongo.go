package storage

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"event-scheduler/domain"
)

const startTimeIndex = "startTime_1"

// Connector opens a single MongoDB client and hands out the same database
// handle to every caller.
type Connector struct {
	uri      string
	database string

	mu     sync.Mutex
	client *mongo.Client
}

func NewConnector(uri, database string) *Connector {
	return &Connector{uri: uri, database: database}
}

// Database connects on first use and pings the primary before returning.
func (c *Connector) Database(ctx context.Context) (*mongo.Database, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client.Database(c.database), nil
	}
	if c.uri == "" {
		return nil, errors.New("mongo uri is empty")
	}

	serverAPI := options.ServerAPI(options.ServerAPIVersion1).
		SetStrict(true).
		SetDeprecationErrors(true)
	opts := options.Client().
		ApplyURI(c.uri).
		SetServerAPIOptions(serverAPI).
		SetRetryWrites(true).
		SetServerSelectionTimeout(15 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connect mongo")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "ping mongo")
	}
	c.client = client
	return client.Database(c.database), nil
}

// Disconnect closes the client if one was opened.
func (c *Connector) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect(ctx)
	c.client = nil
	return err
}

type eventDocument struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Title          string             `bson:"title"`
	Description    string             `bson:"description"`
	StartTime      time.Time          `bson:"startTime"`
	EndTime        time.Time          `bson:"endTime"`
	Location       string             `bson:"location"`
	IsRecurring    bool               `bson:"isRecurring"`
	RecurrenceRule *string            `bson:"recurrenceRule"`
}

func newEventDocument(ev domain.Event) eventDocument {
	doc := eventDocument{
		Title:       ev.Title,
		Description: ev.Description,
		StartTime:   ev.StartTime,
		EndTime:     ev.EndTime,
		Location:    ev.Location,
		IsRecurring: ev.IsRecurring,
	}
	if ev.RecurrenceRule != nil {
		s := string(*ev.RecurrenceRule)
		doc.RecurrenceRule = &s
	}
	return doc
}

func (d eventDocument) toDomain() domain.Event {
	ev := domain.Event{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		StartTime:   d.StartTime.UTC(),
		EndTime:     d.EndTime.UTC(),
		Location:    d.Location,
		IsRecurring: d.IsRecurring,
	}
	if d.RecurrenceRule != nil {
		ev.RecurrenceRule = domain.RulePtr(domain.RecurrenceRule(*d.RecurrenceRule))
	}
	return ev
}

// Mongo stores events as documents of a single collection.
type Mongo struct {
	coll *mongo.Collection
}

func NewMongo(coll *mongo.Collection) *Mongo {
	if coll == nil {
		panic("storage.NewMongo: collection is nil")
	}
	return &Mongo{coll: coll}
}

// EnsureIndexes creates the ascending startTime index used by listings.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "startTime", Value: 1}},
		Options: options.Index().SetName(startTimeIndex),
	})
	return errors.Wrap(err, "create startTime index")
}

func (m *Mongo) ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error) {
	query := bson.D{}
	bounds := bson.D{}
	if filter.From != nil {
		bounds = append(bounds, bson.E{Key: "$gte", Value: *filter.From})
	}
	if filter.To != nil {
		bounds = append(bounds, bson.E{Key: "$lte", Value: *filter.To})
	}
	if len(bounds) > 0 {
		query = append(query, bson.E{Key: "startTime", Value: bounds})
	}

	cur, err := m.coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "startTime", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find events")
	}
	defer cur.Close(ctx)

	var docs []eventDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode events")
	}
	events := make([]domain.Event, 0, len(docs))
	for _, d := range docs {
		events = append(events, d.toDomain())
	}
	return events, nil
}

func (m *Mongo) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return decodeSingle(m.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}), "find event")
}

func (m *Mongo) InsertEvent(ctx context.Context, ev domain.Event) (string, error) {
	res, err := m.coll.InsertOne(ctx, newEventDocument(ev))
	if err != nil {
		return "", errors.Wrap(err, "insert event")
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errors.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (m *Mongo) UpdateEvent(ctx context.Context, id string, upd domain.EventUpdate) (*domain.Event, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	set := updateDocument(upd)
	if len(set) == 0 {
		return m.GetEvent(ctx, id)
	}
	res := m.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	return decodeSingle(res, "update event")
}

func (m *Mongo) DeleteEvent(ctx context.Context, id string) (*domain.Event, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return decodeSingle(m.coll.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: oid}}), "delete event")
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.coll.Database().Client().Ping(ctx, readpref.Primary())
}

// updateDocument lists only the fields present in upd. An explicit nil
// recurrence rule is written as null.
func updateDocument(upd domain.EventUpdate) bson.D {
	set := bson.D{}
	if v, ok := upd.Title.Get(); ok {
		set = append(set, bson.E{Key: "title", Value: v})
	}
	if v, ok := upd.Description.Get(); ok {
		set = append(set, bson.E{Key: "description", Value: v})
	}
	if v, ok := upd.StartTime.Get(); ok {
		set = append(set, bson.E{Key: "startTime", Value: v})
	}
	if v, ok := upd.EndTime.Get(); ok {
		set = append(set, bson.E{Key: "endTime", Value: v})
	}
	if v, ok := upd.Location.Get(); ok {
		set = append(set, bson.E{Key: "location", Value: v})
	}
	if v, ok := upd.IsRecurring.Get(); ok {
		set = append(set, bson.E{Key: "isRecurring", Value: v})
	}
	if v, ok := upd.RecurrenceRule.Get(); ok {
		if v == nil {
			set = append(set, bson.E{Key: "recurrenceRule", Value: nil})
		} else {
			set = append(set, bson.E{Key: "recurrenceRule", Value: string(*v)})
		}
	}
	return set
}

func objectID(id string) (primitive.ObjectID, error) {
	if err := domain.ValidateID(id); err != nil {
		return primitive.NilObjectID, err
	}
	return primitive.ObjectIDFromHex(id)
}

func decodeSingle(res *mongo.SingleResult, op string) (*domain.Event, error) {
	var doc eventDocument
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, errors.Wrap(err, op)
	}
	ev := doc.toDomain()
	return &ev, nil
}
