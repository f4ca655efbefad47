package course

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/filegc"
	"github.com/mind-engage/mindengage-classroom/internal/rbac"
	"github.com/mind-engage/mindengage-classroom/internal/storage"
	"github.com/mind-engage/mindengage-classroom/internal/validation"
)

type Service struct {
	store Store
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewService(store Store, log logrus.FieldLogger) *Service {
	return &Service{store: store, log: log.WithField("component", "course"), now: time.Now}
}

type Input struct {
	Title        string  `json:"title" validate:"notblank,max=200"`
	Description  string  `json:"description" validate:"max=5000"`
	Price        float64 `json:"price" validate:"gte=0"`
	ThumbnailURL string  `json:"thumbnailUrl"`
	// RemoveThumbnail drops the stored thumbnail when ThumbnailURL is empty.
	RemoveThumbnail bool `json:"removeThumbnail"`
}

func thumbnailError() error {
	return common.NewValidationError("thumbnailUrl must be a course-thumbnail uploaded by you or the course owner")
}

// slugAttempts bounds retries when a title's slug is taken.
const slugAttempts = 3

func (s *Service) Create(ctx context.Context, actorID string, in Input) (Course, error) {
	if err := validation.Struct(in); err != nil {
		return Course{}, err
	}
	if !storage.Attachable(in.ThumbnailURL, storage.UploadCourseThumbnail, actorID) {
		return Course{}, thumbnailError()
	}
	now := s.now().UTC().Truncate(time.Second)
	c := Course{
		ID:           uuid.NewString(),
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		TeacherID:    actorID,
		Price:        in.Price,
		ThumbnailURL: in.ThumbnailURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	base := slug.Make(c.Title)
	if base == "" {
		base = "course"
	}
	c.Slug = base
	for i := 0; ; i++ {
		err := s.store.Create(ctx, c)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrSlugTaken) || i == slugAttempts-1 {
			return Course{}, err
		}
		c.Slug = base + "-" + uuid.NewString()[:8]
	}
	s.log.WithFields(logrus.Fields{"course_id": c.ID, "slug": c.Slug}).Info("course created")
	return c, nil
}

func (s *Service) Get(ctx context.Context, idOrSlug string) (Course, error) {
	c, err := s.store.Get(ctx, idOrSlug)
	if errors.Is(err, common.ErrNotFound) {
		return Course{}, common.NewError(common.ErrNotFound, "course not found")
	}
	return c, err
}

func (s *Service) List(ctx context.Context, teacherID string) ([]Course, error) {
	return s.store.List(ctx, teacherID)
}

func canManage(actorID string, role rbac.Role, c Course) bool {
	return role == rbac.RoleAdmin || (c.TeacherID == actorID && rbac.Can(role, "course:update"))
}

var errNotOwner = common.NewError(common.ErrForbidden, "you can only manage your own courses")

func (s *Service) Update(ctx context.Context, actorID string, role rbac.Role, id string, in Input) (Course, error) {
	if err := validation.Struct(in); err != nil {
		return Course{}, err
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !canManage(actorID, role, c) {
		return Course{}, errNotOwner
	}
	old := c.ThumbnailURL
	c.Title = strings.TrimSpace(in.Title)
	c.Description = in.Description
	c.Price = in.Price
	switch {
	case in.ThumbnailURL == old:
	case in.ThumbnailURL != "":
		if !storage.Attachable(in.ThumbnailURL, storage.UploadCourseThumbnail, actorID, c.TeacherID) {
			return Course{}, thumbnailError()
		}
		c.ThumbnailURL = in.ThumbnailURL
	case in.RemoveThumbnail:
		c.ThumbnailURL = ""
	}
	c.UpdatedAt = s.now().UTC().Truncate(time.Second)
	if err := s.store.Update(ctx, c, filegc.Orphans([]string{old}, []string{c.ThumbnailURL})); err != nil {
		return Course{}, err
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, actorID string, role rbac.Role, id string) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !canManage(actorID, role, c) {
		return errNotOwner
	}
	if _, err := s.store.Delete(ctx, c.ID); err != nil {
		return err
	}
	s.log.WithField("course_id", c.ID).Info("course deleted")
	return nil
}
