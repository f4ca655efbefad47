package course

import (
	"context"
	"time"

	"github.com/mind-engage/mindengage-classroom/internal/common"
)

type Course struct {
	ID           string    `json:"id" bson:"_id"`
	Title        string    `json:"title" bson:"title"`
	Slug         string    `json:"slug" bson:"slug"`
	Description  string    `json:"description" bson:"description"`
	TeacherID    string    `json:"teacherId" bson:"teacherId"`
	Price        float64   `json:"price" bson:"price"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty" bson:"thumbnailUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// ErrSlugTaken is returned by Store.Create when the slug exists.
var ErrSlugTaken = common.NewError(common.ErrConflict, "a course with this slug already exists")

// Store persists courses. Update and Delete queue orphaned files.
type Store interface {
	Create(ctx context.Context, c Course) error
	Get(ctx context.Context, id string) (Course, error)
	List(ctx context.Context, teacherID string) ([]Course, error)
	Update(ctx context.Context, c Course, orphanURLs []string) error
	Delete(ctx context.Context, id string) (Course, error)
}
