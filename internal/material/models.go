package material

import (
	"context"
	"time"
)

// Kind separates tutes (downloadable decks) from video lectures.
type Kind string

const (
	KindTute  Kind = "tute"
	KindVideo Kind = "video"
)

type Availability string

const (
	AvailableAll      Availability = "all"
	AvailablePhysical Availability = "physical"
	AvailablePaid     Availability = "paid"
)

type Material struct {
	ID           string       `json:"id" bson:"_id"`
	Kind         Kind         `json:"kind" bson:"kind"`
	Title        string       `json:"title" bson:"title"`
	Description  string       `json:"description" bson:"description"`
	CourseID     string       `json:"courseId,omitempty" bson:"courseId,omitempty"`
	FileURL      string       `json:"fileUrl,omitempty" bson:"fileUrl,omitempty"`
	VideoURL     string       `json:"videoUrl,omitempty" bson:"videoUrl,omitempty"`
	ThumbnailURL string       `json:"thumbnailUrl,omitempty" bson:"thumbnailUrl,omitempty"`
	Availability Availability `json:"availability" bson:"availability"`
	Price        float64      `json:"price" bson:"price"`
	CreatedBy    string       `json:"createdBy" bson:"createdBy"`
	CreatedAt    time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// FileURLs lists the stored files; video links are external.
func (m *Material) FileURLs() []string {
	var out []string
	for _, u := range []string{m.FileURL, m.ThumbnailURL} {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

type Store interface {
	Create(ctx context.Context, m Material) error
	Get(ctx context.Context, kind Kind, id string) (Material, error)
	List(ctx context.Context, kind Kind, courseID string) ([]Material, error)
	Update(ctx context.Context, m Material, orphanURLs []string) error
	Delete(ctx context.Context, kind Kind, id string) (Material, error)
}
