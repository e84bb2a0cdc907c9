package journal

import (
	"context"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/flowco/flowsync/pkg/flow"
)

// Default MongoDB names.
const (
	DefaultMongoDatabase   = "flowsync"
	DefaultMongoCollection = "envelopes"
)

// MongoConfig configures a [MongoJournal].
type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// MongoJournal stores envelopes as documents, indexed by session and
// timestamp.
type MongoJournal struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoJournal connects to MongoDB, verifies the connection and ensures
// the (session, timestamp) index exists.
func NewMongoJournal(ctx context.Context, cfg MongoConfig) (*MongoJournal, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo journal: no uri configured")
	}
	if cfg.Database == "" {
		cfg.Database = DefaultMongoDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultMongoCollection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "session", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create mongo index: %w", err)
	}
	return &MongoJournal{client: client, coll: coll}, nil
}

func (j *MongoJournal) Append(ctx context.Context, env flow.Envelope) error {
	if _, err := j.coll.InsertOne(ctx, env); err != nil {
		return fmt.Errorf("insert envelope: %w", err)
	}
	return nil
}

func (j *MongoJournal) List(ctx context.Context, q Query) ([]flow.Envelope, error) {
	cur, err := j.coll.Find(ctx, mongoFilter(q), mongoFindOptions(q))
	if err != nil {
		return nil, fmt.Errorf("find envelopes: %w", err)
	}
	out := []flow.Envelope{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode envelopes: %w", err)
	}
	// Fetched newest first so that Limit keeps the most recent.
	slices.Reverse(out)
	return out, nil
}

func (j *MongoJournal) Sessions(ctx context.Context) ([]string, error) {
	vals, err := j.coll.Distinct(ctx, "session", bson.D{})
	if err != nil {
		return nil, fmt.Errorf("distinct sessions: %w", err)
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (j *MongoJournal) Close() error {
	return j.client.Disconnect(context.Background())
}

func mongoFilter(q Query) bson.D {
	f := bson.D{}
	if q.Session != "" {
		f = append(f, bson.E{Key: "session", Value: q.Session})
	}
	if q.Since > 0 {
		f = append(f, bson.E{Key: "timestamp", Value: bson.D{{Key: "$gt", Value: q.Since}}})
	}
	return f
}

func mongoFindOptions(q Query) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return opts
}

var _ Journal = (*MongoJournal)(nil)
