package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ChangeStreamFeed observes every write to the database through a MongoDB
// change stream, including writes made by other API instances or tools.
// It requires a replica set.
type ChangeStreamFeed struct {
	db  *mongo.Database
	log zerolog.Logger
}

func NewChangeStreamFeed(db *mongo.Database, log zerolog.Logger) *ChangeStreamFeed {
	return &ChangeStreamFeed{db: db, log: log.With().Str("component", "store.changestream").Logger()}
}

// Publish is a no-op: the stream already sees local writes.
func (f *ChangeStreamFeed) Publish(context.Context, string) error { return nil }

func (f *ChangeStreamFeed) Run(ctx context.Context, notify func(path string)) error {
	cs, err := f.db.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return fmt.Errorf("watch %s: %w", f.db.Name(), err)
	}
	defer cs.Close(context.Background())

	f.log.Info().Str("database", f.db.Name()).Msg("change stream started")
	for cs.Next(ctx) {
		var ev struct {
			OperationType string `bson:"operationType"`
			NS            struct {
				Coll string `bson:"coll"`
			} `bson:"ns"`
			DocumentKey bson.M `bson:"documentKey"`
		}
		if err := cs.Decode(&ev); err != nil {
			f.log.Warn().Err(err).Msg("undecodable change event")
			continue
		}
		if ev.NS.Coll == "" || strings.HasPrefix(ev.NS.Coll, "_") {
			continue
		}
		path := ev.NS.Coll
		if id := idString(ev.DocumentKey["_id"]); id != "" {
			path = Join(path, id)
		}
		notify(path)
	}
	if ctx.Err() != nil {
		return nil
	}
	return cs.Err()
}

func (f *ChangeStreamFeed) Close() error { return nil }

const redisChangeChannel = "tabib:changes"

// RedisFeed broadcasts mutated paths over Redis pub/sub so that instances
// sharing a backend wake each other's listeners. Messages from this instance
// are ignored on receipt because the local hub was already notified.
type RedisFeed struct {
	rdb    *redis.Client
	origin string
	log    zerolog.Logger
}

func NewRedisFeed(rdb *redis.Client, log zerolog.Logger) *RedisFeed {
	return &RedisFeed{
		rdb:    rdb,
		origin: uuid.NewString(),
		log:    log.With().Str("component", "store.redisfeed").Logger(),
	}
}

func (f *RedisFeed) Publish(ctx context.Context, path string) error {
	return f.rdb.Publish(ctx, redisChangeChannel, f.origin+" "+path).Err()
}

func (f *RedisFeed) Run(ctx context.Context, notify func(path string)) error {
	sub := f.rdb.Subscribe(ctx, redisChangeChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", redisChangeChannel, err)
	}

	f.log.Info().Str("channel", redisChangeChannel).Msg("change feed subscribed")
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			origin, path, found := strings.Cut(msg.Payload, " ")
			if !found || origin == f.origin {
				continue
			}
			notify(path)
		}
	}
}

// Close leaves the client open; it is shared with the session store.
func (f *RedisFeed) Close() error { return nil }
