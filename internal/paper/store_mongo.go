package paper

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

// MongoStore keeps papers and attempts in two collections. Without
// multi-document transactions, orphaned files are queued right after the
// owning write succeeds.
type MongoStore struct {
	papers   *mongo.Collection
	attempts *mongo.Collection
	outbox   filegc.Outbox
}

func NewMongoStore(ctx context.Context, d *mongo.Database, outbox filegc.Outbox) (*MongoStore, error) {
	s := &MongoStore{papers: d.Collection("papers"), attempts: d.Collection("attempts"), outbox: outbox}
	if err := db.EnsureIndexes(ctx, s.papers,
		mongo.IndexModel{Keys: bson.D{{Key: "teacherId", Value: 1}, {Key: "createdAt", Value: -1}}},
	); err != nil {
		return nil, err
	}
	if err := db.EnsureIndexes(ctx, s.attempts,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "paperId", Value: 1}, {Key: "studentId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		mongo.IndexModel{Keys: bson.D{{Key: "studentId", Value: 1}}},
	); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) CreatePaper(ctx context.Context, p Paper) error {
	_, err := s.papers.InsertOne(ctx, p)
	return err
}

func (s *MongoStore) UpdatePaper(ctx context.Context, p Paper, orphanURLs []string) error {
	n, err := s.CountAttempts(ctx, p.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return &LockedError{Submissions: n}
	}
	res, err := s.papers.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return common.ErrNotFound
	}
	return s.outbox.Enqueue(ctx, "paper "+p.ID+" updated", filegc.Keys(orphanURLs...)...)
}

func (s *MongoStore) DeletePaper(ctx context.Context, id string) (Paper, []Attempt, error) {
	p, err := s.GetPaper(ctx, id)
	if err != nil {
		return Paper{}, nil, err
	}
	attempts, err := s.ListAttempts(ctx, AttemptFilter{PaperID: id})
	if err != nil {
		return Paper{}, nil, err
	}
	if _, err := s.attempts.DeleteMany(ctx, bson.M{"paperId": id}); err != nil {
		return Paper{}, nil, err
	}
	if _, err := s.papers.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return Paper{}, nil, err
	}
	urls := p.FileURLs()
	for _, a := range attempts {
		urls = append(urls, a.FileURLs()...)
	}
	if err := s.outbox.Enqueue(ctx, "paper "+id+" deleted", filegc.Keys(urls...)...); err != nil {
		return Paper{}, nil, err
	}
	return p, attempts, nil
}

func (s *MongoStore) GetPaper(ctx context.Context, id string) (Paper, error) {
	var p Paper
	err := s.papers.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Paper{}, common.ErrNotFound
	}
	return p, err
}

func (s *MongoStore) ListPapers(ctx context.Context, opts ListOpts) ([]Paper, error) {
	filter := bson.M{}
	if opts.TeacherID != "" {
		filter["teacherId"] = opts.TeacherID
	}
	if opts.CourseID != "" {
		filter["courseId"] = opts.CourseID
	}
	cur, err := s.papers.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []Paper
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) CreateAttempt(ctx context.Context, a Attempt) error {
	if a.Answers == nil {
		a.Answers = []Answer{}
	}
	_, err := s.attempts.InsertOne(ctx, a)
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadySubmitted
	}
	return err
}

func (s *MongoStore) findAttempt(ctx context.Context, filter bson.M) (Attempt, error) {
	var a Attempt
	err := s.attempts.FindOne(ctx, filter).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Attempt{}, common.ErrNotFound
	}
	return a, err
}

func (s *MongoStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	return s.findAttempt(ctx, bson.M{"_id": id})
}

func (s *MongoStore) FindAttempt(ctx context.Context, paperID, studentID string) (Attempt, error) {
	return s.findAttempt(ctx, bson.M{"paperId": paperID, "studentId": studentID})
}

func (s *MongoStore) CountAttempts(ctx context.Context, paperID string) (int, error) {
	n, err := s.attempts.CountDocuments(ctx, bson.M{"paperId": paperID})
	return int(n), err
}

func (s *MongoStore) ListAttempts(ctx context.Context, f AttemptFilter) ([]Attempt, error) {
	filter := bson.M{}
	if f.PaperID != "" {
		filter["paperId"] = f.PaperID
	}
	if f.StudentID != "" {
		filter["studentId"] = f.StudentID
	}
	cur, err := s.attempts.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "submittedAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var out []Attempt
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) UpdateMarks(ctx context.Context, attemptID string, score float64, percentage int) error {
	res, err := s.attempts.UpdateByID(ctx, attemptID, bson.M{"$set": bson.M{
		"score": score, "percentage": percentage, "graded": true,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *MongoStore) SetReviewFile(ctx context.Context, attemptID, url string) error {
	var before Attempt
	err := s.attempts.FindOneAndUpdate(ctx, bson.M{"_id": attemptID},
		bson.M{"$set": bson.M{"teacherReviewFileUrl": url}}).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return common.ErrNotFound
	}
	if err != nil {
		return err
	}
	if before.TeacherReviewFileURL == "" || before.TeacherReviewFileURL == url {
		return nil
	}
	return s.outbox.Enqueue(ctx, "review of attempt "+attemptID+" replaced", filegc.Keys(before.TeacherReviewFileURL)...)
}
