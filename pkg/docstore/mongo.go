package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// insertedField carries the insertion stamp used for Newest ordering. It is
// stripped from documents before they leave the adapter.
const insertedField = "_inserted"

var lastStamp atomic.Int64

// insertStamp is wall-clock nanoseconds, bumped so that two inserts from this
// process never share a stamp. BSON datetimes only keep milliseconds.
func insertStamp() int64 {
	for {
		prev := lastStamp.Load()
		next := max(time.Now().UnixNano(), prev+1)
		if lastStamp.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// Mongo maps each logical collection onto a MongoDB collection.
type Mongo struct {
	log    *slog.Logger
	client *mongo.Client
	db     *mongo.Database
}

var _ Store = (*Mongo)(nil)

func NewMongo(ctx context.Context, log *slog.Logger, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return &Mongo{log: log, client: client, db: client.Database(database)}, nil
}

func (s *Mongo) FindByID(ctx context.Context, collection, id string) ([]byte, error) {
	var doc bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromBSON(doc)
}

func (s *Mongo) FindMany(ctx context.Context, collection string, f Filter, skip, limit int) ([][]byte, error) {
	if err := validate(f, nil, Mutation{}); err != nil {
		return nil, err
	}
	filter, err := mongoFilter(f)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSkip(int64(max(skip, 0))).SetSort(mongoSort(f.Order))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out [][]byte
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		b, err := fromBSON(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, cur.Err()
}

func (s *Mongo) Insert(ctx context.Context, collection, id string, doc []byte) (string, error) {
	if id == "" {
		id = NewID()
	}
	var m bson.M
	if err := bson.UnmarshalExtJSON(doc, false, &m); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	m["_id"] = id
	m["id"] = id
	m[insertedField] = insertStamp()

	_, err := s.db.Collection(collection).InsertOne(ctx, m)
	if mongo.IsDuplicateKeyError(err) {
		return "", ErrDuplicate
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Mongo) UpdateOne(ctx context.Context, collection string, f Filter, m Mutation) (bool, error) {
	if err := validate(f, nil, m); err != nil {
		return false, err
	}
	filter, err := mongoFilter(f)
	if err != nil {
		return false, err
	}
	if m.empty() {
		n, err := s.db.Collection(collection).CountDocuments(ctx, filter, options.Count().SetLimit(1))
		return n > 0, err
	}
	update, err := mongoUpdate(m)
	if err != nil {
		return false, err
	}
	res, err := s.db.Collection(collection).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *Mongo) DeleteOne(ctx context.Context, collection, id string) (bool, error) {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *Mongo) DeleteMany(ctx context.Context, collection string, f Filter) (int64, error) {
	if err := validate(f, nil, Mutation{}); err != nil {
		return 0, err
	}
	filter, err := mongoFilter(f)
	if err != nil {
		return 0, err
	}
	res, err := s.db.Collection(collection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Mongo) Count(ctx context.Context, collection string, f Filter) (int64, error) {
	if err := validate(f, nil, Mutation{}); err != nil {
		return 0, err
	}
	filter, err := mongoFilter(f)
	if err != nil {
		return 0, err
	}
	return s.db.Collection(collection).CountDocuments(ctx, filter)
}

func (s *Mongo) ConditionalUpdate(ctx context.Context, collection, id string, conds []Condition, m Mutation) ([]byte, error) {
	if err := validate(Filter{}, conds, m); err != nil {
		return nil, err
	}
	filter := bson.M{"_id": id}
	for _, c := range conds {
		v, err := toBSONValue(c.Value)
		if err != nil {
			return nil, err
		}
		switch c.Op {
		case OpEq:
			filter[c.Field] = v
		case OpGte:
			filter[c.Field] = bson.M{"$gte": v}
		}
	}
	update, err := mongoUpdate(m)
	if err != nil {
		return nil, err
	}

	var doc bson.M
	err = s.db.Collection(collection).
		FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After)).
		Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fromBSON(doc)
}

func (s *Mongo) Ping(ctx context.Context) error { return s.client.Ping(ctx, nil) }

func (s *Mongo) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

func mongoFilter(f Filter) (bson.M, error) {
	filter := bson.M{}
	for k, v := range f.Equals {
		bv, err := toBSONValue(v)
		if err != nil {
			return nil, err
		}
		filter[k] = bv
	}
	if f.Match != nil && f.Match.Term != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(f.Match.Term), "$options": "i"}
		or := make(bson.A, 0, len(f.Match.Fields))
		for _, field := range f.Match.Fields {
			or = append(or, bson.M{field: pattern})
		}
		filter["$or"] = or
	}
	return filter, nil
}

func mongoSort(o Order) bson.D {
	if o == Newest {
		return bson.D{{Key: insertedField, Value: -1}, {Key: "_id", Value: 1}}
	}
	return bson.D{{Key: "_id", Value: 1}}
}

func mongoUpdate(m Mutation) (bson.M, error) {
	update := bson.M{}
	if len(m.Set) > 0 {
		set := bson.M{}
		for k, v := range m.Set {
			bv, err := toBSONValue(v)
			if err != nil {
				return nil, err
			}
			set[k] = bv
		}
		update["$set"] = set
	}
	if len(m.Inc) > 0 {
		inc := bson.M{}
		for k, v := range m.Inc {
			inc[k] = v
		}
		update["$inc"] = inc
	}
	return update, nil
}

// toBSONValue converts v through its JSON form so values compare and store
// the same way they do in documents written by Insert.
func toBSONValue(v any) (any, error) {
	raw, err := json.Marshal(map[string]any{"v": v})
	if err != nil {
		return nil, err
	}
	var wrapped bson.M
	if err := bson.UnmarshalExtJSON(raw, false, &wrapped); err != nil {
		return nil, err
	}
	return wrapped["v"], nil
}

func fromBSON(doc bson.M) ([]byte, error) {
	delete(doc, "_id")
	delete(doc, insertedField)
	return bson.MarshalExtJSON(doc, false, false)
}
