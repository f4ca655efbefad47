package material

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/db"
	"github.com/mind-engage/mindengage-classroom/internal/filegc"
)

type MongoStore struct {
	coll   *mongo.Collection
	outbox filegc.Outbox
}

func NewMongoStore(ctx context.Context, d *mongo.Database, outbox filegc.Outbox) (*MongoStore, error) {
	coll := d.Collection("materials")
	err := db.EnsureIndexes(ctx, coll, mongo.IndexModel{
		Keys: bson.D{{Key: "kind", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return nil, err
	}
	return &MongoStore{coll: coll, outbox: outbox}, nil
}

func (s *MongoStore) Create(ctx context.Context, m Material) error {
	_, err := s.coll.InsertOne(ctx, m)
	return err
}

func (s *MongoStore) Get(ctx context.Context, kind Kind, id string) (Material, error) {
	var m Material
	err := s.coll.FindOne(ctx, bson.M{"_id": id, "kind": kind}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Material{}, common.ErrNotFound
	}
	return m, err
}

func (s *MongoStore) List(ctx context.Context, kind Kind, courseID string) ([]Material, error) {
	filter := bson.M{"kind": kind}
	if courseID != "" {
		filter["courseId"] = courseID
	}
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var out []Material
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) Update(ctx context.Context, m Material, orphanURLs []string) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": m.ID, "kind": m.Kind}, m)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return common.ErrNotFound
	}
	return s.outbox.Enqueue(ctx, string(m.Kind)+" "+m.ID+" updated", filegc.Keys(orphanURLs...)...)
}

func (s *MongoStore) Delete(ctx context.Context, kind Kind, id string) (Material, error) {
	var m Material
	err := s.coll.FindOneAndDelete(ctx, bson.M{"_id": id, "kind": kind}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Material{}, common.ErrNotFound
	}
	if err != nil {
		return Material{}, err
	}
	return m, s.outbox.Enqueue(ctx, string(kind)+" "+id+" deleted", filegc.Keys(m.FileURLs()...)...)
}
