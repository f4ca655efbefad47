package material

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/db/dbtest"
	"github.com/mind-engage/mindengage-classroom/internal/filegc"
	"github.com/mind-engage/mindengage-classroom/internal/logging"
	"github.com/mind-engage/mindengage-classroom/internal/rbac"
)

type paidSet map[string]bool

func (p paidSet) HasPaid(_ context.Context, userID, itemID string) (bool, error) {
	return p[userID+"/"+itemID], nil
}

var (
	teacher = Viewer{ID: "t-1", Role: rbac.RoleTeacher}
	vm      = Viewer{ID: "vm-1", Role: rbac.RoleVideoManager}
	buyer   = Viewer{ID: "s-buyer", Role: rbac.RoleStudent}
	other   = Viewer{ID: "s-other", Role: rbac.RoleStudent}
)

func TestPaidVideoNeedsPayment(t *testing.T) {
	paid := paidSet{}
	s := NewService(NewSQLStore(dbtest.OpenSQLite(t)), paid, logging.Discard())
	ctx := context.Background()

	_, err := s.Create(ctx, vm, KindVideo, Input{Title: "Free", VideoURL: "https://videos.example.com/free"})
	require.NoError(t, err)
	premium, err := s.Create(ctx, vm, KindVideo, Input{
		Title: "Premium", VideoURL: "https://videos.example.com/premium", Availability: AvailablePaid, Price: 750,
	})
	require.NoError(t, err)
	paid[buyer.ID+"/"+premium.ID] = true

	got, err := s.Get(ctx, buyer, KindVideo, premium.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://videos.example.com/premium", got.VideoURL)

	_, err = s.Get(ctx, other, KindVideo, premium.ID)
	assert.True(t, errors.Is(err, common.ErrForbidden))

	list, err := s.List(ctx, other, KindVideo, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, e := range list {
		if e.ID == premium.ID {
			assert.True(t, e.Locked)
			assert.Empty(t, e.VideoURL)
		} else {
			assert.False(t, e.Locked)
			assert.NotEmpty(t, e.VideoURL)
		}
	}

	price, title, err := s.Price(ctx, KindVideo, premium.ID)
	require.NoError(t, err)
	assert.Equal(t, 750.0, price)
	assert.Equal(t, "Premium", title)

	_, err = s.Get(ctx, buyer, KindTute, premium.ID)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestTuteRulesAndCleanup(t *testing.T) {
	d := dbtest.OpenSQLite(t)
	s := NewService(NewSQLStore(d), paidSet{}, logging.Discard())
	ctx := context.Background()

	_, err := s.Create(ctx, vm, KindTute, Input{Title: "Nope", FileURL: "/api/uploads/tutes/files/t-1/x.pdf"})
	assert.True(t, errors.Is(err, common.ErrForbidden))

	_, err = s.Create(ctx, teacher, KindTute, Input{Title: "Missing file"})
	assert.True(t, errors.Is(err, common.ErrValidation))

	_, err = s.Create(ctx, teacher, KindTute, Input{Title: "Paid free", FileURL: "/api/uploads/tutes/files/t-1/x.pdf", Availability: AvailablePaid})
	assert.True(t, errors.Is(err, common.ErrValidation))

	tute, err := s.Create(ctx, teacher, KindTute, Input{
		Title: "Organic chemistry", FileURL: "/api/uploads/tutes/files/t-1/v1.pdf", Availability: AvailablePhysical,
	})
	require.NoError(t, err)

	_, err = s.Get(ctx, other, KindTute, tute.ID)
	assert.True(t, errors.Is(err, common.ErrForbidden))
	_, err = s.Get(ctx, Viewer{ID: "s-p", Role: rbac.RoleStudent, Physical: true}, KindTute, tute.ID)
	assert.NoError(t, err)

	_, err = s.Update(ctx, Viewer{ID: "t-2", Role: rbac.RoleTeacher}, KindTute, tute.ID, Input{Title: "x"})
	assert.True(t, errors.Is(err, common.ErrForbidden))

	_, err = s.Update(ctx, teacher, KindTute, tute.ID, Input{
		Title: "Organic chemistry II", FileURL: "/api/uploads/tutes/files/t-1/v2.pdf", Availability: AvailablePhysical,
	})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, teacher, KindTute, tute.ID))

	jobs, err := filegc.NewSQLOutbox(d).Pending(ctx, 10)
	require.NoError(t, err)
	var keys []string
	for _, j := range jobs {
		keys = append(keys, j.Key)
	}
	assert.ElementsMatch(t, []string{"tutes/files/t-1/v1.pdf", "tutes/files/t-1/v2.pdf"}, keys)
}

func TestMaterialUploadsMustBelongToEditor(t *testing.T) {
	d := dbtest.OpenSQLite(t)
	s := NewService(NewSQLStore(d), paidSet{}, logging.Discard())
	ctx := context.Background()
	t2 := Viewer{ID: "t-2", Role: rbac.RoleTeacher}

	_, err := s.Create(ctx, t2, KindTute, Input{Title: "Stolen", FileURL: "/api/uploads/tutes/files/t-1/notes.pdf"})
	assert.True(t, errors.Is(err, common.ErrValidation))
	_, err = s.Create(ctx, t2, KindTute, Input{Title: "Wrong bucket", FileURL: "/api/uploads/papers/pdfs/t-2/p.pdf"})
	assert.True(t, errors.Is(err, common.ErrValidation))

	video, err := s.Create(ctx, vm, KindVideo, Input{
		Title: "Waves", VideoURL: "https://videos.example.com/waves", ThumbnailURL: "/api/uploads/videos/thumbnails/vm-1/w.png",
	})
	require.NoError(t, err)
	_, err = s.Update(ctx, vm, KindVideo, video.ID, Input{
		Title: "Waves", VideoURL: video.VideoURL, ThumbnailURL: "/api/uploads/tutes/thumbnails/vm-1/w.png",
	})
	assert.True(t, errors.Is(err, common.ErrValidation))

	got, err := s.Update(ctx, vm, KindVideo, video.ID, Input{Title: "Waves", VideoURL: video.VideoURL, RemoveThumbnail: true})
	require.NoError(t, err)
	assert.Empty(t, got.ThumbnailURL)

	jobs, err := filegc.NewSQLOutbox(d).Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "videos/thumbnails/vm-1/w.png", jobs[0].Key)
}
