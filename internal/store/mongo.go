package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements DocumentStore on a MongoDB database. Documents are keyed
// by "_id" = id; the key is stripped from returned documents.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

// EnsureIndexes creates the lookup indexes used by engagement counters and
// the operation log.
func (m *MongoStore) EnsureIndexes(ctx context.Context) error {
	models := map[string][]mongo.IndexModel{
		"engagements": {
			{Keys: bson.D{{Key: "index", Value: 1}, {Key: "objectID", Value: 1}, {Key: "kind", Value: 1}}},
			{Keys: bson.D{{Key: "uid", Value: 1}, {Key: "kind", Value: 1}}},
		},
		"logs": {
			{Keys: bson.D{{Key: "resolved", Value: 1}, {Key: "at", Value: 1}}},
		},
		"matters":   {{Keys: bson.D{{Key: "uid", Value: 1}}}},
		"resources": {{Keys: bson.D{{Key: "uid", Value: 1}}}},
	}
	for col, idx := range models {
		if _, err := m.db.Collection(col).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", col, err)
		}
	}
	return nil
}

func (m *MongoStore) Get(ctx context.Context, collection, id string) (Doc, error) {
	var raw bson.M
	if err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return fromRaw(raw), nil
}

func (m *MongoStore) Set(ctx context.Context, collection, id string, doc Doc, opts SetOptions) error {
	col := m.db.Collection(collection)
	if !opts.Merge {
		repl := bson.M{}
		for k, v := range doc {
			repl[k] = v
		}
		repl["_id"] = id
		_, err := col.ReplaceOne(ctx, bson.M{"_id": id}, repl, options.Replace().SetUpsert(true))
		return err
	}
	set := bson.M{}
	flatten("", doc, set)
	if len(set) == 0 {
		return nil
	}
	_, err := col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}, options.Update().SetUpsert(true))
	return err
}

func (m *MongoStore) Delete(ctx context.Context, collection, id string) error {
	_, err := m.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (m *MongoStore) Query(ctx context.Context, collection string, q Query) ([]Doc, error) {
	filter := bson.M{}
	for _, w := range q.Where {
		cond, err := mongoCond(w)
		if err != nil {
			return nil, err
		}
		// several clauses on one field are combined under $and
		if _, dup := filter[w.Field]; dup {
			and, _ := filter["$and"].(bson.A)
			filter["$and"] = append(and, bson.M{w.Field: cond})
			continue
		}
		filter[w.Field] = cond
	}
	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := m.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []Doc{}
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, err
		}
		out = append(out, fromRaw(raw))
	}
	return out, cur.Err()
}

func mongoCond(w Where) (any, error) {
	switch w.Op {
	case OpEq, OpArrayContains:
		return w.Value, nil
	case OpNe:
		return bson.M{"$ne": w.Value}, nil
	case OpLt:
		return bson.M{"$lt": w.Value}, nil
	case OpLte:
		return bson.M{"$lte": w.Value}, nil
	case OpGt:
		return bson.M{"$gt": w.Value}, nil
	case OpGte:
		return bson.M{"$gte": w.Value}, nil
	case OpIn:
		return bson.M{"$in": w.Value}, nil
	}
	return nil, fmt.Errorf("unsupported operator %q", w.Op)
}

// flatten turns nested documents into dotted $set paths so merges do not
// clobber sibling fields.
func flatten(prefix string, doc Doc, out bson.M) {
	for k, v := range doc {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch nested := v.(type) {
		case Doc:
			if len(nested) == 0 {
				out[key] = bson.M{}
				continue
			}
			flatten(key, nested, out)
		case map[string]any:
			flatten(key, Doc(nested), out)
		default:
			out[key] = v
		}
	}
}

func fromRaw(raw bson.M) Doc {
	delete(raw, "_id")
	return normalize(map[string]any(raw)).(Doc)
}
