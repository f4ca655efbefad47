package material

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/filegc"
	"github.com/mind-engage/mindengage-classroom/internal/rbac"
	"github.com/mind-engage/mindengage-classroom/internal/storage"
	"github.com/mind-engage/mindengage-classroom/internal/validation"
)

type Viewer struct {
	ID       string
	Role     rbac.Role
	Physical bool
}

// Purchases answers whether a user holds a PAID payment for an item.
type Purchases interface {
	HasPaid(ctx context.Context, userID, itemID string) (bool, error)
}

type Service struct {
	store     Store
	purchases Purchases
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewService(store Store, purchases Purchases, log logrus.FieldLogger) *Service {
	return &Service{store: store, purchases: purchases, log: log.WithField("component", "material"), now: time.Now}
}

type Input struct {
	Title        string `json:"title" validate:"notblank,max=200"`
	Description  string `json:"description" validate:"max=5000"`
	CourseID     string `json:"courseId"`
	FileURL      string `json:"fileUrl"`
	VideoURL     string `json:"videoUrl" validate:"omitempty,url"`
	ThumbnailURL string `json:"thumbnailUrl"`
	// RemoveThumbnail drops the stored thumbnail when ThumbnailURL is empty.
	RemoveThumbnail bool         `json:"removeThumbnail"`
	Availability    Availability `json:"availability" validate:"omitempty,oneof=all physical paid"`
	Price           float64      `json:"price" validate:"gte=0"`
}

func validate(kind Kind, m Material) error {
	if err := validation.Struct(Input{
		Title: m.Title, Description: m.Description, VideoURL: m.VideoURL,
		Availability: m.Availability, Price: m.Price,
	}); err != nil {
		return err
	}
	v := &common.ValidationError{}
	switch kind {
	case KindTute:
		if m.FileURL == "" {
			v.Add("tute file is required")
		}
	case KindVideo:
		if m.VideoURL == "" {
			v.Add("videoUrl is required")
		}
	}
	if m.Availability == AvailablePaid && m.Price <= 0 {
		v.Add("paid %s needs a price above 0", kind)
	}
	return v.OrNil()
}

// checkUploads accepts files the material already held and otherwise only
// uploads of the matching type stored by one of owners.
func checkUploads(m Material, held []string, owners ...string) error {
	known := make(map[string]bool, len(held))
	for _, u := range held {
		known[u] = true
	}
	thumb := storage.UploadTuteThumbnail
	if m.Kind == KindVideo {
		thumb = storage.UploadVideoThumbnail
	}
	v := &common.ValidationError{}
	if !known[m.FileURL] && !storage.Attachable(m.FileURL, storage.UploadTuteFile, owners...) {
		v.Add("fileUrl must be a %s uploaded by you or the %s owner", storage.UploadTuteFile, m.Kind)
	}
	if !known[m.ThumbnailURL] && !storage.Attachable(m.ThumbnailURL, thumb, owners...) {
		v.Add("thumbnailUrl must be a %s uploaded by you or the %s owner", thumb, m.Kind)
	}
	return v.OrNil()
}

func perm(kind Kind, action string) string { return string(kind) + ":" + action }

func canManage(v Viewer, m Material) bool {
	if !rbac.Can(v.Role, perm(m.Kind, "update")) {
		return false
	}
	switch {
	case v.Role == rbac.RoleAdmin, m.CreatedBy == v.ID:
		return true
	case m.Kind == KindVideo && v.Role == rbac.RoleVideoManager:
		return true
	}
	return false
}

func notFound(kind Kind) error {
	return common.NewError(common.ErrNotFound, "%s not found", kind)
}

func (s *Service) Create(ctx context.Context, v Viewer, kind Kind, in Input) (Material, error) {
	if !rbac.Can(v.Role, perm(kind, "create")) {
		return Material{}, common.NewError(common.ErrForbidden, "you are not allowed to create %ss", kind)
	}
	now := s.now().UTC().Truncate(time.Second)
	m := Material{ID: uuid.NewString(), Kind: kind, CreatedBy: v.ID, CreatedAt: now, UpdatedAt: now}
	apply(&m, in)
	if err := validate(kind, m); err != nil {
		return Material{}, err
	}
	if err := checkUploads(m, nil, v.ID); err != nil {
		return Material{}, err
	}
	if err := s.store.Create(ctx, m); err != nil {
		return Material{}, err
	}
	s.log.WithFields(logrus.Fields{"kind": kind, "id": m.ID}).Info("material created")
	return m, nil
}

func apply(m *Material, in Input) {
	m.Title = strings.TrimSpace(in.Title)
	m.Description = in.Description
	m.CourseID = in.CourseID
	m.VideoURL = in.VideoURL
	m.Availability = in.Availability
	if m.Availability == "" {
		m.Availability = AvailableAll
	}
	m.Price = in.Price
	if in.FileURL != "" {
		m.FileURL = in.FileURL
	}
	switch {
	case in.ThumbnailURL != "":
		m.ThumbnailURL = in.ThumbnailURL
	case in.RemoveThumbnail:
		m.ThumbnailURL = ""
	}
}

func (s *Service) Update(ctx context.Context, v Viewer, kind Kind, id string, in Input) (Material, error) {
	old, err := s.store.Get(ctx, kind, id)
	if errors.Is(err, common.ErrNotFound) {
		return Material{}, notFound(kind)
	}
	if err != nil {
		return Material{}, err
	}
	if !canManage(v, old) {
		return Material{}, common.NewError(common.ErrForbidden, "you can only manage your own %ss", kind)
	}
	m := old
	apply(&m, in)
	m.UpdatedAt = s.now().UTC().Truncate(time.Second)
	if err := validate(kind, m); err != nil {
		return Material{}, err
	}
	if err := checkUploads(m, old.FileURLs(), v.ID, old.CreatedBy); err != nil {
		return Material{}, err
	}
	if err := s.store.Update(ctx, m, filegc.Orphans(old.FileURLs(), m.FileURLs())); err != nil {
		return Material{}, err
	}
	return m, nil
}

func (s *Service) Delete(ctx context.Context, v Viewer, kind Kind, id string) error {
	m, err := s.store.Get(ctx, kind, id)
	if errors.Is(err, common.ErrNotFound) {
		return notFound(kind)
	}
	if err != nil {
		return err
	}
	if !canManage(v, m) {
		return common.NewError(common.ErrForbidden, "you can only manage your own %ss", kind)
	}
	_, err = s.store.Delete(ctx, kind, id)
	return err
}

// access reports nil when v may open m.
func (s *Service) access(ctx context.Context, v Viewer, m Material) error {
	if v.Role != rbac.RoleStudent {
		return nil
	}
	switch m.Availability {
	case AvailableAll, "":
		return nil
	case AvailablePhysical:
		if v.Physical {
			return nil
		}
		return common.NewError(common.ErrForbidden, "this %s is only available to physical class students", m.Kind)
	case AvailablePaid:
		paid, err := s.purchases.HasPaid(ctx, v.ID, m.ID)
		if err != nil {
			return err
		}
		if paid {
			return nil
		}
		return common.NewError(common.ErrForbidden, "purchase this %s to access it", m.Kind)
	}
	return common.NewError(common.ErrForbidden, "this %s is not available", m.Kind)
}

// Entry is a list item; locked entries carry no file or video link.
type Entry struct {
	Material
	Locked bool `json:"locked"`
}

func (s *Service) List(ctx context.Context, v Viewer, kind Kind, courseID string) ([]Entry, error) {
	ms, err := s.store.List(ctx, kind, courseID)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(ms))
	for _, m := range ms {
		err := s.access(ctx, v, m)
		if err != nil && !errors.Is(err, common.ErrForbidden) {
			return nil, err
		}
		e := Entry{Material: m, Locked: err != nil}
		if e.Locked {
			e.FileURL, e.VideoURL = "", ""
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, v Viewer, kind Kind, id string) (Material, error) {
	m, err := s.store.Get(ctx, kind, id)
	if errors.Is(err, common.ErrNotFound) {
		return Material{}, notFound(kind)
	}
	if err != nil {
		return Material{}, err
	}
	if err := s.access(ctx, v, m); err != nil {
		return Material{}, err
	}
	return m, nil
}

// Price backs payment initiation for tutes and videos.
func (s *Service) Price(ctx context.Context, kind Kind, id string) (float64, string, error) {
	m, err := s.store.Get(ctx, kind, id)
	if errors.Is(err, common.ErrNotFound) {
		return 0, "", notFound(kind)
	}
	return m.Price, m.Title, err
}
