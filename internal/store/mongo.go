package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo maps the tree onto a MongoDB database: the first path segment is a
// collection, the second a document _id and anything deeper a dotted field
// inside that document. Collections whose name starts with "_" are private
// to other packages and never exposed through paths.
type Mongo struct {
	db *mongo.Database
	*notifier
}

var _ Gateway = (*Mongo)(nil)

func NewMongo(db *mongo.Database, log zerolog.Logger, opts ...Option) *Mongo {
	return &Mongo{
		db:       db,
		notifier: newNotifier("mongo", log, opts),
	}
}

func (m *Mongo) Read(ctx context.Context, path string) (v any, err error) {
	defer func() { observe("mongo", "read", err) }()
	_, segs, err := clean(path)
	if err != nil {
		return nil, err
	}
	if err := checkCollection(segs); err != nil {
		return nil, err
	}
	switch len(segs) {
	case 0:
		return m.readRoot(ctx)
	case 1:
		return m.readCollection(ctx, segs[0])
	}

	opts := options.FindOne()
	if len(segs) > 2 {
		opts.SetProjection(bson.M{strings.Join(segs[2:], "."): 1})
	}
	var doc bson.M
	err = m.db.Collection(segs[0]).FindOne(ctx, bson.M{"_id": segs[1]}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", path, err)
	}
	delete(doc, "_id")
	return prune(child(plain(doc), segs[2:])), nil
}

func (m *Mongo) readRoot(ctx context.Context) (any, error) {
	names, err := m.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	out := make(map[string]any)
	for _, name := range names {
		if strings.HasPrefix(name, "_") {
			continue
		}
		v, err := m.readCollection(ctx, name)
		if err != nil {
			return nil, err
		}
		if v != nil {
			out[name] = v
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (m *Mongo) readCollection(ctx context.Context, name string) (any, error) {
	cur, err := m.db.Collection(name).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", name, err)
	}
	defer cur.Close(ctx)

	out := make(map[string]any)
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		id := idString(doc["_id"])
		delete(doc, "_id")
		if v := prune(plain(doc)); v != nil {
			out[id] = v
		}
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", name, err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (m *Mongo) Write(ctx context.Context, path string, value any) (err error) {
	defer func() { observe("mongo", "write", err) }()
	p, segs, err := clean(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return ErrRootWrite
	}
	if err := checkCollection(segs); err != nil {
		return err
	}
	v, err := normalize(value)
	if err != nil {
		return err
	}
	if err := m.write(ctx, segs, v); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	m.changed(ctx, p)
	return nil
}

func (m *Mongo) write(ctx context.Context, segs []string, v any) error {
	coll := m.db.Collection(segs[0])
	switch len(segs) {
	case 1:
		children, ok := v.(map[string]any)
		if v != nil && !ok {
			return ErrNotObject
		}
		docs := make([]any, 0, len(children))
		for id, c := range children {
			doc, ok := c.(map[string]any)
			if !ok {
				return ErrNotObject
			}
			docs = append(docs, withID(id, doc))
		}
		if _, err := coll.DeleteMany(ctx, bson.M{}); err != nil {
			return err
		}
		if len(docs) == 0 {
			return nil
		}
		_, err := coll.InsertMany(ctx, docs)
		return err
	case 2:
		if v == nil {
			_, err := coll.DeleteOne(ctx, bson.M{"_id": segs[1]})
			return err
		}
		doc, ok := v.(map[string]any)
		if !ok {
			return ErrNotObject
		}
		_, err := coll.ReplaceOne(ctx, bson.M{"_id": segs[1]}, withID(segs[1], doc), options.Replace().SetUpsert(true))
		return err
	}

	field := strings.Join(segs[2:], ".")
	if v == nil {
		return m.unset(ctx, coll, segs[1], field)
	}
	_, err := coll.UpdateOne(ctx, bson.M{"_id": segs[1]}, bson.M{"$set": bson.M{field: v}}, options.Update().SetUpsert(true))
	return err
}

// unset removes fields and deletes the document if nothing else is left.
func (m *Mongo) unset(ctx context.Context, coll *mongo.Collection, id string, fields ...string) error {
	u := bson.M{}
	for _, f := range fields {
		u[f] = ""
	}
	if _, err := coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$unset": u}); err != nil {
		return err
	}
	var doc bson.M
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	if err != nil {
		return err
	}
	delete(doc, "_id")
	if prune(plain(doc)) == nil {
		_, err = coll.DeleteOne(ctx, bson.M{"_id": id})
	}
	return err
}

func (m *Mongo) Update(ctx context.Context, path string, fields map[string]any) (err error) {
	defer func() { observe("mongo", "update", err) }()
	p, segs, err := clean(path)
	if err != nil {
		return err
	}
	if err := checkCollection(segs); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	if len(segs) < 2 {
		// Collection level updates address whole documents; apply each
		// child as its own write.
		for k, raw := range fields {
			ks, err := Split(k)
			if err != nil {
				return err
			}
			full := append(append([]string{}, segs...), ks...)
			if len(full) < 2 {
				return ErrInvalidPath
			}
			v, err := normalize(raw)
			if err != nil {
				return err
			}
			if err := m.write(ctx, full, v); err != nil {
				return fmt.Errorf("update %s: %w", p, err)
			}
		}
		m.changed(ctx, p)
		return nil
	}

	set, unset := bson.M{}, []string{}
	for k, raw := range fields {
		ks, err := Split(k)
		if err != nil {
			return err
		}
		if len(ks) == 0 {
			return ErrInvalidPath
		}
		field := strings.Join(append(append([]string{}, segs[2:]...), ks...), ".")
		v, err := normalize(raw)
		if err != nil {
			return err
		}
		if v == nil {
			unset = append(unset, field)
			continue
		}
		set[field] = v
	}

	coll := m.db.Collection(segs[0])
	if len(set) > 0 {
		_, err = coll.UpdateOne(ctx, bson.M{"_id": segs[1]}, bson.M{"$set": set}, options.Update().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("update %s: %w", p, err)
		}
	}
	if len(unset) > 0 {
		if err := m.unset(ctx, coll, segs[1], unset...); err != nil {
			return fmt.Errorf("update %s: %w", p, err)
		}
	}
	m.changed(ctx, p)
	return nil
}

func (m *Mongo) Delete(ctx context.Context, path string) (err error) {
	defer func() { observe("mongo", "delete", err) }()
	p, segs, err := clean(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return ErrRootWrite
	}
	if err := checkCollection(segs); err != nil {
		return err
	}
	coll := m.db.Collection(segs[0])
	switch len(segs) {
	case 1:
		_, err = coll.DeleteMany(ctx, bson.M{})
	case 2:
		_, err = coll.DeleteOne(ctx, bson.M{"_id": segs[1]})
	default:
		err = m.unset(ctx, coll, segs[1], strings.Join(segs[2:], "."))
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	m.changed(ctx, p)
	return nil
}

func (m *Mongo) Push(ctx context.Context, path string, value any) (string, error) {
	key := NewPushID()
	if err := m.Write(ctx, Join(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

// Query runs server side for whole collections; deeper paths are read and
// filtered in process.
func (m *Mongo) Query(ctx context.Context, path string, q Query) (es []Entry, err error) {
	defer func() { observe("mongo", "query", err) }()
	_, segs, err := clean(path)
	if err != nil {
		return nil, err
	}
	if len(segs) != 1 {
		v, err := m.Read(ctx, path)
		if err != nil {
			return nil, err
		}
		return evalQuery(v, q)
	}
	if err := checkCollection(segs); err != nil {
		return nil, err
	}

	filter := bson.M{}
	sort := bson.D{{Key: "_id", Value: 1}}
	if q.OrderBy != "" {
		field := strings.ReplaceAll(strings.Trim(q.OrderBy, "/"), "/", ".")
		if q.EqualTo != nil {
			eq, err := normalize(q.EqualTo)
			if err != nil {
				return nil, err
			}
			filter[field] = eq
		}
		sort = bson.D{{Key: field, Value: 1}, {Key: "_id", Value: 1}}
	}
	opts := options.Find().SetSort(sort)
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := m.db.Collection(segs[0]).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", path, err)
	}
	defer cur.Close(ctx)

	es = []Entry{}
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		id := idString(doc["_id"])
		delete(doc, "_id")
		if v := prune(plain(doc)); v != nil {
			es = append(es, Entry{Key: id, Value: v})
		}
	}
	return es, cur.Err()
}

func (m *Mongo) Listen(path string, fn func(any)) Unsubscribe {
	p, _, err := clean(path)
	if err != nil {
		m.log.Error().Err(err).Str("path", path).Msg("listen rejected")
		fn(nil)
		return func() {}
	}
	return m.hub.add(p, func(ctx context.Context) (any, error) {
		return m.Read(ctx, p)
	}, fn)
}

func (m *Mongo) ListenQuery(path string, q Query, fn func([]Entry)) Unsubscribe {
	p, _, err := clean(path)
	if err != nil {
		m.log.Error().Err(err).Str("path", path).Msg("listen rejected")
		fn([]Entry{})
		return func() {}
	}
	return m.hub.add(p, func(ctx context.Context) (any, error) {
		return m.Query(ctx, p, q)
	}, entriesCallback(fn))
}

func (m *Mongo) Close() error {
	return m.close()
}

func checkCollection(segs []string) error {
	if len(segs) > 0 && strings.HasPrefix(segs[0], "_") {
		return fmt.Errorf("%w: reserved collection %q", ErrInvalidPath, segs[0])
	}
	return nil
}

func withID(id string, doc map[string]any) bson.M {
	out := make(bson.M, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out["_id"] = id
	return out
}

func idString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case primitive.ObjectID:
		return t.Hex()
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// plain converts decoded BSON into the JSON tree representation.
func plain(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, c := range t {
			out[k] = plain(c)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, c := range t {
			out[k] = plain(c)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, c := range t {
			out[i] = plain(c)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, c := range t {
			out[i] = plain(c)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case primitive.DateTime:
		return float64(t)
	case primitive.ObjectID:
		return t.Hex()
	default:
		return v
	}
}
