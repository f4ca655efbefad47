package payment

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/db"
)

type MongoStore struct{ coll *mongo.Collection }

func NewMongoStore(ctx context.Context, d *mongo.Database) (*MongoStore, error) {
	coll := d.Collection("payments")
	err := db.EnsureIndexes(ctx, coll,
		mongo.IndexModel{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: options.Index().SetUnique(true)},
		mongo.IndexModel{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "itemId", Value: 1}, {Key: "status", Value: 1}}},
	)
	if err != nil {
		return nil, err
	}
	return &MongoStore{coll: coll}, nil
}

func (s *MongoStore) Create(ctx context.Context, p Payment) error {
	_, err := s.coll.InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		return common.NewError(common.ErrConflict, "order id already exists")
	}
	return err
}

func (s *MongoStore) GetByOrderID(ctx context.Context, orderID string) (Payment, error) {
	var p Payment
	err := s.coll.FindOne(ctx, bson.M{"orderId": orderID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Payment{}, common.ErrNotFound
	}
	return p, err
}

func (s *MongoStore) HasPaid(ctx context.Context, userID, itemID string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"userId": userID, "itemId": itemID, "status": StatusPaid},
		options.Count().SetLimit(1))
	return n > 0, err
}

func (s *MongoStore) ListByUser(ctx context.Context, userID string) ([]Payment, error) {
	cur, err := s.coll.Find(ctx, bson.M{"userId": userID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var out []Payment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Transition is a single conditional update on (orderId, status).
func (s *MongoStore) Transition(ctx context.Context, orderID string, from, to Status, meta map[string]string, at time.Time) error {
	set := bson.M{"status": to, "updatedAt": at}
	for k, v := range meta {
		set["metadata."+k] = v
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"orderId": orderID, "status": from}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := s.GetByOrderID(ctx, orderID); err != nil {
		return err
	}
	return ErrStale
}
