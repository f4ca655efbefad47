package course

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/db/dbtest"
	"github.com/mind-engage/mindengage-classroom/internal/filegc"
	"github.com/mind-engage/mindengage-classroom/internal/logging"
	"github.com/mind-engage/mindengage-classroom/internal/rbac"
)

func TestCourseLifecycle(t *testing.T) {
	d := dbtest.OpenSQLite(t)
	s := NewService(NewSQLStore(d), logging.Discard())
	ctx := context.Background()

	c, err := s.Create(ctx, "t-1", Input{Title: "Combined Maths 2025!", Price: 1500, ThumbnailURL: "/api/uploads/courses/thumbnails/t-1/a.png"})
	require.NoError(t, err)
	assert.Equal(t, "combined-maths-2025", c.Slug)

	again, err := s.Create(ctx, "t-2", Input{Title: "Combined Maths 2025"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(again.Slug, "combined-maths-2025-"), again.Slug)

	bySlug, err := s.Get(ctx, "combined-maths-2025")
	require.NoError(t, err)
	assert.Equal(t, c.ID, bySlug.ID)

	_, err = s.Update(ctx, "t-2", rbac.RoleTeacher, c.ID, Input{Title: "Hijack"})
	assert.True(t, errors.Is(err, common.ErrForbidden))

	upd, err := s.Update(ctx, "t-1", rbac.RoleTeacher, c.ID, Input{Title: "Combined Maths", Price: 2000, ThumbnailURL: "/api/uploads/courses/thumbnails/t-1/b.png"})
	require.NoError(t, err)
	assert.Equal(t, 2000.0, upd.Price)
	assert.Equal(t, "combined-maths-2025", upd.Slug)

	mine, err := s.List(ctx, "t-1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	require.NoError(t, s.Delete(ctx, "admin", rbac.RoleAdmin, c.ID))
	_, err = s.Get(ctx, c.ID)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	jobs, err := filegc.NewSQLOutbox(d).Pending(ctx, 10)
	require.NoError(t, err)
	var keys []string
	for _, j := range jobs {
		keys = append(keys, j.Key)
	}
	assert.ElementsMatch(t, []string{"courses/thumbnails/t-1/a.png", "courses/thumbnails/t-1/b.png"}, keys)

	_, err = s.Create(ctx, "t-1", Input{Title: " ", Price: -1})
	var verr *common.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 2)
}

func TestCourseThumbnailOwnership(t *testing.T) {
	d := dbtest.OpenSQLite(t)
	s := NewService(NewSQLStore(d), logging.Discard())
	ctx := context.Background()

	_, err := s.Create(ctx, "t-2", Input{Title: "Physics", ThumbnailURL: "/api/uploads/courses/thumbnails/t-1/a.png"})
	assert.True(t, errors.Is(err, common.ErrValidation))

	c, err := s.Create(ctx, "t-2", Input{Title: "Physics", ThumbnailURL: "/api/uploads/courses/thumbnails/t-2/p.png"})
	require.NoError(t, err)
	_, err = s.Update(ctx, "t-2", rbac.RoleTeacher, c.ID, Input{Title: "Physics", ThumbnailURL: "/api/uploads/papers/pdfs/t-2/x.pdf"})
	assert.True(t, errors.Is(err, common.ErrValidation))

	kept, err := s.Update(ctx, "admin", rbac.RoleAdmin, c.ID, Input{Title: "Physics", ThumbnailURL: c.ThumbnailURL})
	require.NoError(t, err)
	assert.Equal(t, c.ThumbnailURL, kept.ThumbnailURL)

	cleared, err := s.Update(ctx, "t-2", rbac.RoleTeacher, c.ID, Input{Title: "Physics", RemoveThumbnail: true})
	require.NoError(t, err)
	assert.Empty(t, cleared.ThumbnailURL)

	jobs, err := filegc.NewSQLOutbox(d).Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "courses/thumbnails/t-2/p.png", jobs[0].Key)
}
