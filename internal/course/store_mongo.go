package course

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
	coll := d.Collection("courses")
	err := db.EnsureIndexes(ctx, coll,
		mongo.IndexModel{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		mongo.IndexModel{Keys: bson.D{{Key: "teacherId", Value: 1}}},
	)
	if err != nil {
		return nil, err
	}
	return &MongoStore{coll: coll, outbox: outbox}, nil
}

func (s *MongoStore) Create(ctx context.Context, c Course) error {
	_, err := s.coll.InsertOne(ctx, c)
	if mongo.IsDuplicateKeyError(err) {
		return ErrSlugTaken
	}
	return err
}

func (s *MongoStore) Get(ctx context.Context, id string) (Course, error) {
	var c Course
	err := s.coll.FindOne(ctx, bson.M{"$or": bson.A{bson.M{"_id": id}, bson.M{"slug": id}}}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Course{}, common.ErrNotFound
	}
	return c, err
}

func (s *MongoStore) List(ctx context.Context, teacherID string) ([]Course, error) {
	filter := bson.M{}
	if teacherID != "" {
		filter["teacherId"] = teacherID
	}
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var out []Course
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) Update(ctx context.Context, c Course, orphanURLs []string) error {
	res, err := s.coll.UpdateByID(ctx, c.ID, bson.M{"$set": bson.M{
		"title": c.Title, "description": c.Description, "price": c.Price,
		"thumbnailUrl": c.ThumbnailURL, "updatedAt": c.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return common.ErrNotFound
	}
	return s.outbox.Enqueue(ctx, "course "+c.ID+" updated", filegc.Keys(orphanURLs...)...)
}

func (s *MongoStore) Delete(ctx context.Context, id string) (Course, error) {
	var c Course
	err := s.coll.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Course{}, common.ErrNotFound
	}
	if err != nil {
		return Course{}, err
	}
	return c, s.outbox.Enqueue(ctx, "course "+id+" deleted", filegc.Keys(c.ThumbnailURL)...)
}
