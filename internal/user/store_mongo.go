package user

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/db"
	"github.com/mind-engage/mindengage-classroom/internal/rbac"
)

type MongoStore struct{ coll *mongo.Collection }

func NewMongoStore(ctx context.Context, d *mongo.Database) (*MongoStore, error) {
	coll := d.Collection("users")
	err := db.EnsureIndexes(ctx, coll,
		mongo.IndexModel{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		mongo.IndexModel{Keys: bson.D{{Key: "role", Value: 1}}},
	)
	if err != nil {
		return nil, err
	}
	return &MongoStore{coll: coll}, nil
}

func (s *MongoStore) one(ctx context.Context, filter bson.M) (User, error) {
	var u User
	err := s.coll.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, common.ErrNotFound
	}
	return u, err
}

func (s *MongoStore) many(ctx context.Context, filter bson.M) ([]User, error) {
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var out []User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) Create(ctx context.Context, u User) error {
	_, err := s.coll.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (s *MongoStore) Get(ctx context.Context, id string) (User, error) {
	return s.one(ctx, bson.M{"_id": id})
}

func (s *MongoStore) GetByLogin(ctx context.Context, login string) (User, error) {
	return s.one(ctx, bson.M{"$or": bson.A{
		bson.M{"username": login},
		bson.M{"email": strings.ToLower(login)},
	}})
}

func (s *MongoStore) GetMany(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.many(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *MongoStore) List(ctx context.Context, role rbac.Role) ([]User, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = role
	}
	return s.many(ctx, filter)
}

func (s *MongoStore) CountByRole(ctx context.Context, role rbac.Role) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"role": role})
	return int(n), err
}

// SetRole checks the admin count before writing; two concurrent demotions
// of the last two admins can both pass.
func (s *MongoStore) SetRole(ctx context.Context, id string, role rbac.Role) error {
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if u.Role == rbac.RoleAdmin && role != rbac.RoleAdmin {
		n, err := s.CountByRole(ctx, rbac.RoleAdmin)
		if err != nil {
			return err
		}
		if n <= 1 {
			return ErrLastAdmin
		}
	}
	return s.set(ctx, id, bson.M{"role": role})
}

func (s *MongoStore) set(ctx context.Context, id string, fields bson.M) error {
	res, err := s.coll.UpdateByID(ctx, id, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *MongoStore) SetStudentType(ctx context.Context, id string, t StudentType) error {
	return s.set(ctx, id, bson.M{"studentType": t})
}

func (s *MongoStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	return s.set(ctx, id, bson.M{"passwordHash": hash})
}
