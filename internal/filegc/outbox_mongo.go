package filegc

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mind-engage/mindengage-classroom/internal/db"
)

const collection = "file_deletions"

type MongoOutbox struct{ coll *mongo.Collection }

func NewMongoOutbox(ctx context.Context, d *mongo.Database) (*MongoOutbox, error) {
	coll := d.Collection(collection)
	err := db.EnsureIndexes(ctx, coll, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	if err != nil {
		return nil, err
	}
	return &MongoOutbox{coll: coll}, nil
}

func (o *MongoOutbox) Enqueue(ctx context.Context, reason string, keys ...string) error {
	now := nowUnix()
	docs := make([]any, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		docs = append(docs, Job{ID: uuid.NewString(), Key: k, Reason: reason, Status: StatusPending, CreatedAt: now, UpdatedAt: now})
	}
	if len(docs) == 0 {
		return nil
	}
	_, err := o.coll.InsertMany(ctx, docs)
	return err
}

func (o *MongoOutbox) Pending(ctx context.Context, limit int) ([]Job, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetLimit(int64(limit))
	cur, err := o.coll.Find(ctx, bson.M{"status": StatusPending}, opts)
	if err != nil {
		return nil, err
	}
	var out []Job
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *MongoOutbox) MarkDone(ctx context.Context, id string) error {
	_, err := o.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"status": StatusDone, "updatedAt": nowUnix()}})
	return err
}

func (o *MongoOutbox) MarkFailed(ctx context.Context, id string, cause error, giveUp bool) error {
	st := StatusPending
	if giveUp {
		st = StatusFailed
	}
	_, err := o.coll.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"status": st, "lastError": cause.Error(), "updatedAt": nowUnix()},
		"$inc": bson.M{"attempts": 1},
	})
	return err
}
