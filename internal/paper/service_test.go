package paper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/db/dbtest"
	"github.com/mind-engage/mindengage-classroom/internal/filegc"
	"github.com/mind-engage/mindengage-classroom/internal/grading"
	"github.com/mind-engage/mindengage-classroom/internal/logging"
	"github.com/mind-engage/mindengage-classroom/internal/rbac"
)

var (
	teacher  = Viewer{ID: "t-1", Role: rbac.RoleTeacher}
	teacher2 = Viewer{ID: "t-2", Role: rbac.RoleTeacher}
	manager  = Viewer{ID: "pm-1", Role: rbac.RolePaperManager}
	online   = Viewer{ID: "s-online", Role: rbac.RoleStudent}
	physical = Viewer{ID: "s-physical", Role: rbac.RoleStudent, Physical: true}
)

type directory map[string]StudentInfo

func (d directory) Students(_ context.Context, ids []string) (map[string]StudentInfo, error) {
	out := map[string]StudentInfo{}
	for _, id := range ids {
		if s, ok := d[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

type fixture struct {
	svc    *Service
	outbox *filegc.SQLOutbox
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	d := dbtest.OpenSQLite(t)
	dir := directory{
		online.ID:   {ID: online.ID, Name: "Online Olly", Username: "olly"},
		physical.ID: {ID: physical.ID, Name: "Physical Pam", Username: "pam"},
	}
	return fixture{
		svc:    NewService(NewSQLStore(d), grading.NewDefaultGrader(), dir, logging.Discard()),
		outbox: filegc.NewSQLOutbox(d),
	}
}

func quiz1() Input {
	return Input{
		Title:     "Quiz 1",
		PaperType: TypeMCQ,
		Questions: []Question{{
			QuestionText: "Pick B",
			Options: []Option{
				{OptionText: "A"},
				{OptionText: "B", IsCorrect: true},
			},
			Explanation: "B is right",
		}},
	}
}

func answer(p Paper, optionText string) SubmitInput {
	q := p.Questions[0]
	for _, o := range q.Options {
		if o.OptionText == optionText {
			return SubmitInput{Answers: []AnswerInput{{QuestionID: q.ID, SelectedOptionID: o.ID}}}
		}
	}
	return SubmitInput{}
}

func TestQuiz1Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, teacher, quiz1())
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalQuestions)
	assert.Equal(t, AvailableAll, p.Availability)

	att, err := f.svc.Submit(ctx, online, p.ID, answer(p, "B"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, att.Score)
	assert.Equal(t, 100, att.Percentage)
	assert.Equal(t, StatusSubmitted, att.Status)
	assert.True(t, att.Graded)

	_, err = f.svc.Submit(ctx, online, p.ID, answer(p, "A"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrConflict))
	assert.Equal(t, "you have already submitted this paper", err.Error())
}

func TestUpdateBlockedAfterSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, teacher, quiz1())
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, online, p.ID, answer(p, "A"))
	require.NoError(t, err)

	in := quiz1()
	in.Title = "Quiz 1 (fixed)"
	_, err = f.svc.Update(ctx, teacher, p.ID, in)
	require.Error(t, err)
	assert.Equal(t, 403, common.HTTPStatusFromError(err))
	assert.Equal(t, "cannot edit paper: 1 student(s) have already submitted", err.Error())
}

func TestUpdateOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, teacher, quiz1())
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, teacher2, p.ID, quiz1())
	assert.True(t, errors.Is(err, common.ErrForbidden))

	in := quiz1()
	in.Title = "Managed"
	got, err := f.svc.Update(ctx, manager, p.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Managed", got.Title)
	assert.Equal(t, teacher.ID, got.TeacherID)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	none := quiz1()
	none.Questions[0].Options[1].IsCorrect = false
	_, err := f.svc.Create(ctx, teacher, none)
	var verr *common.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Problems, "question 1: exactly one correct option is required (found 0)")

	two := quiz1()
	two.Questions[0].Options[0].IsCorrect = true
	_, err = f.svc.Create(ctx, teacher, two)
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Problems, "question 1: exactly one correct option is required (found 2)")

	_, err = f.svc.Create(ctx, teacher, Input{PaperType: TypeMCQ, Questions: []Question{{QuestionText: "x", Options: []Option{{OptionText: "only", IsCorrect: true}}}}})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Problems, "title is required")
	assert.Contains(t, verr.Problems, "question 1: at least 2 options are required")

	_, err = f.svc.Create(ctx, teacher, Input{Title: "Essay", PaperType: TypeStructureEssay})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Problems, "Structure-Essay paper requires an uploaded file")

	_, err = f.svc.Create(ctx, online, quiz1())
	assert.True(t, errors.Is(err, common.ErrForbidden))
}

func TestPhysicalTierDeniesOnlineStudents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, deadline := range []*time.Time{nil, ptr(time.Now().Add(-time.Hour)), ptr(time.Now().Add(time.Hour))} {
		in := quiz1()
		in.Availability = AvailablePhysical
		in.Deadline = deadline
		p, err := f.svc.Create(ctx, teacher, in)
		require.NoError(t, err)

		_, err = f.svc.Get(ctx, online, p.ID, false)
		assert.True(t, errors.Is(err, common.ErrForbidden))
		_, err = f.svc.Get(ctx, physical, p.ID, false)
		assert.NoError(t, err)
	}

	paid := quiz1()
	paid.Availability = AvailablePaid
	paid.Price = 500
	p, err := f.svc.Create(ctx, teacher, paid)
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, physical, p.ID, false)
	assert.True(t, errors.Is(err, common.ErrForbidden))

	list, err := f.svc.List(ctx, online, "")
	require.NoError(t, err)
	require.Len(t, list, 4)
	for _, s := range list {
		assert.True(t, s.Locked, s.ID)
		assert.Nil(t, s.Questions)
	}
}

func ptr[T any](v T) *T { return &v }

func TestAnswerReveal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := quiz1()
	in.Deadline = ptr(time.Now().Add(24 * time.Hour))
	p, err := f.svc.Create(ctx, teacher, in)
	require.NoError(t, err)

	hidden := func(v View) bool {
		for _, o := range v.Paper.Questions[0].Options {
			if o.IsCorrect {
				return false
			}
		}
		return v.Paper.Questions[0].Explanation == ""
	}

	v, err := f.svc.Get(ctx, online, p.ID, true)
	require.NoError(t, err)
	assert.False(t, v.Attempted)
	assert.True(t, hidden(v), "no attempt yet")

	_, err = f.svc.Submit(ctx, online, p.ID, answer(p, "B"))
	require.NoError(t, err)

	v, err = f.svc.Get(ctx, online, p.ID, false)
	require.NoError(t, err)
	assert.True(t, v.Attempted)
	assert.True(t, hidden(v), "deadline ahead and not requested")

	v, err = f.svc.Get(ctx, online, p.ID, true)
	require.NoError(t, err)
	assert.True(t, v.AnswersRevealed)
	assert.False(t, hidden(v))

	f.svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	v, err = f.svc.Get(ctx, online, p.ID, false)
	require.NoError(t, err)
	assert.True(t, v.DeadlinePassed)
	assert.True(t, v.AnswersRevealed)

	owner, err := f.svc.Get(ctx, teacher, p.ID, false)
	require.NoError(t, err)
	assert.False(t, hidden(owner))
}

func TestShouldRevealAnswers(t *testing.T) {
	cases := []struct {
		attempted, show, passed, hasDeadline, want bool
	}{
		{false, true, true, true, false},
		{false, false, false, false, false},
		{true, false, false, true, false},
		{true, true, false, true, true},
		{true, false, true, true, true},
		{true, false, false, false, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ShouldRevealAnswers(tc.attempted, tc.show, tc.passed, tc.hasDeadline), "%+v", tc)
	}
}

func TestSubmitPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, teacher, quiz1())
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, teacher, p.ID, answer(p, "B"))
	assert.True(t, errors.Is(err, common.ErrForbidden))

	_, err = f.svc.Submit(ctx, online, "not-a-uuid", answer(p, "B"))
	assert.True(t, errors.Is(err, common.ErrBadRequest))

	_, err = f.svc.Submit(ctx, online, uuid.NewString(), answer(p, "B"))
	assert.True(t, errors.Is(err, common.ErrNotFound))

	bogus := SubmitInput{Answers: []AnswerInput{{QuestionID: p.Questions[0].ID, SelectedOptionID: "nope"}}}
	_, err = f.svc.Submit(ctx, online, p.ID, bogus)
	assert.True(t, errors.Is(err, grading.ErrUnresolved))

	// a rejected submission leaves no attempt behind
	att, err := f.svc.Submit(ctx, online, p.ID, answer(p, "B"))
	require.NoError(t, err)
	assert.Equal(t, 100, att.Percentage)

	late := quiz1()
	late.Deadline = ptr(time.Now().Add(-time.Minute))
	lp, err := f.svc.Create(ctx, teacher, late)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, online, lp.ID, answer(lp, "B"))
	require.Error(t, err)
	assert.Equal(t, "the deadline for this paper has passed", err.Error())
}

func TestConcurrentSubmissionsKeepOneAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, teacher, quiz1())
	require.NoError(t, err)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, dupes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Submit(ctx, online, p.ID, answer(p, "B"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrAlreadySubmitted):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dupes)

	res, err := f.svc.Results(ctx, teacher, p.ID)
	require.NoError(t, err)
	assert.Len(t, res.Attempts, 1)
}

func TestUpdateQueuesOrphanedImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := quiz1()
	in.Questions[0].ImageURL = "/api/uploads/papers/questions/t-1/old.png"
	in.Questions[0].Options[0].ImageURL = "/api/uploads/papers/options/t-1/keep.png"
	in.ThumbnailURL = "/api/uploads/papers/thumbnails/mcq/t-1/old.png"
	p, err := f.svc.Create(ctx, teacher, in)
	require.NoError(t, err)

	upd := quiz1()
	upd.Questions = p.Questions
	upd.Questions[0].ImageURL = "/api/uploads/papers/questions/t-1/new.png"
	upd.ThumbnailURL = "/api/uploads/papers/thumbnails/mcq/t-1/new.png"
	_, err = f.svc.Update(ctx, teacher, p.ID, upd)
	require.NoError(t, err)

	jobs, err := f.outbox.Pending(ctx, 10)
	require.NoError(t, err)
	var keys []string
	for _, j := range jobs {
		keys = append(keys, j.Key)
	}
	assert.ElementsMatch(t, []string{"papers/questions/t-1/old.png", "papers/thumbnails/mcq/t-1/old.png"}, keys)
}

func TestDeleteQueuesEveryFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, teacher, Input{
		Title:        "Essay 1",
		PaperType:    TypeStructureEssay,
		FileURL:      "/api/uploads/papers/pdfs/t-1/e.pdf",
		ThumbnailURL: "/api/uploads/papers/thumbnails/structure-essay/t-1/e.png",
	})
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, physical, p.ID, SubmitInput{})
	assert.True(t, errors.Is(err, common.ErrValidation))

	att, err := f.svc.Submit(ctx, physical, p.ID, SubmitInput{AnswerFileURL: "/api/uploads/answers/submissions/s-physical/a.pdf"})
	require.NoError(t, err)
	assert.False(t, att.Graded)
	assert.Equal(t, 0, att.Percentage)

	_, err = f.svc.SetReview(ctx, teacher, p.ID, att.ID, "/api/uploads/answers/reviews/t-1/r1.pdf")
	require.NoError(t, err)
	_, err = f.svc.SetReview(ctx, teacher, p.ID, att.ID, "/api/uploads/answers/reviews/t-1/r2.pdf")
	require.NoError(t, err)

	graded, err := f.svc.UpdateMarks(ctx, teacher, p.ID, att.ID, MarksInput{Score: 72.5})
	require.NoError(t, err)
	assert.Equal(t, 73, graded.Percentage)
	assert.True(t, graded.Graded)

	_, err = f.svc.UpdateMarks(ctx, teacher, p.ID, att.ID, MarksInput{Score: 101})
	assert.True(t, errors.Is(err, common.ErrValidation))

	require.NoError(t, f.svc.Delete(ctx, teacher, p.ID))
	_, err = f.svc.Get(ctx, teacher, p.ID, false)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	jobs, err := f.outbox.Pending(ctx, 20)
	require.NoError(t, err)
	var keys []string
	for _, j := range jobs {
		keys = append(keys, j.Key)
	}
	assert.ElementsMatch(t, []string{
		"answers/reviews/t-1/r1.pdf",
		"papers/pdfs/t-1/e.pdf",
		"papers/thumbnails/structure-essay/t-1/e.png",
		"answers/submissions/s-physical/a.pdf",
		"answers/reviews/t-1/r2.pdf",
	}, keys)

	mine, err := f.svc.MyAttempts(ctx, physical)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestResultsAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := quiz1()
	in.Questions = append(in.Questions, Question{
		QuestionText: "Pick D",
		Options:      []Option{{OptionText: "C"}, {OptionText: "D", IsCorrect: true}},
	})
	p, err := f.svc.Create(ctx, teacher, in)
	require.NoError(t, err)
	q1, q2 := p.Questions[0], p.Questions[1]

	_, err = f.svc.Submit(ctx, online, p.ID, SubmitInput{Answers: []AnswerInput{
		{QuestionID: q1.ID, SelectedOptionID: q1.Options[1].ID},
		{QuestionID: q2.ID, SelectedOptionID: q2.Options[1].ID},
	}})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, physical, p.ID, SubmitInput{Answers: []AnswerInput{
		{QuestionID: q1.ID, SelectedOptionID: q1.Options[1].ID},
	}})
	require.NoError(t, err)

	res, err := f.svc.Results(ctx, teacher, p.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Stats)
	assert.Equal(t, 2, res.Stats.Count)
	assert.Equal(t, 100, res.Stats.Highest)
	assert.Equal(t, 50, res.Stats.Lowest)
	assert.Equal(t, 75.0, res.Stats.Average)
	names := map[string]string{}
	for _, a := range res.Attempts {
		names[a.StudentID] = a.StudentUsername
	}
	assert.Equal(t, map[string]string{online.ID: "olly", physical.ID: "pam"}, names)

	_, err = f.svc.Results(ctx, teacher2, p.ID)
	assert.True(t, errors.Is(err, common.ErrForbidden))

	own, err := f.svc.Results(ctx, online, p.ID)
	require.NoError(t, err)
	require.Len(t, own.Attempts, 1)
	assert.Nil(t, own.Stats)
	assert.Equal(t, 100, own.Attempts[0].Percentage)

	mine, err := f.svc.MyAttempts(ctx, physical)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Quiz 1", mine[0].PaperTitle)

	staffList, err := f.svc.List(ctx, teacher, "")
	require.NoError(t, err)
	require.Len(t, staffList, 1)
	require.NotNil(t, staffList[0].Submissions)
	assert.Equal(t, 2, *staffList[0].Submissions)
}

func TestPercentageGuardsZeroTotal(t *testing.T) {
	assert.Equal(t, 0, computeStats(nil).Count)
	assert.Equal(t, 0, grading.Percentage(0, 0))
}

func pendingKeys(t *testing.T, f fixture) []string {
	t.Helper()
	jobs, err := f.outbox.Pending(context.Background(), 50)
	require.NoError(t, err)
	keys := []string{}
	for _, j := range jobs {
		keys = append(keys, j.Key)
	}
	return keys
}

func TestForeignUploadsCannotBeAttached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	essay := Input{Title: "Essay", PaperType: TypeStructureEssay, FileURL: "/api/uploads/papers/pdfs/t-1/victim.pdf"}
	victim, err := f.svc.Create(ctx, teacher, essay)
	require.NoError(t, err)

	in := quiz1()
	in.Questions[0].ImageURL = victim.FileURL
	_, err = f.svc.Create(ctx, teacher2, in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.Contains(t, err.Error(), "question 1 imageUrl")

	in = quiz1()
	in.Questions[0].ImageURL = "/api/uploads/papers/questions/t-1/q.png"
	_, err = f.svc.Create(ctx, teacher2, in)
	assert.True(t, errors.Is(err, common.ErrValidation))

	essay.FileURL = "/api/uploads/tutes/files/t-2/notes.pdf"
	_, err = f.svc.Create(ctx, teacher2, essay)
	assert.True(t, errors.Is(err, common.ErrValidation))

	in = quiz1()
	in.Questions[0].ImageURL = "https://cdn.example.com/q.png"
	own, err := f.svc.Create(ctx, teacher2, in)
	require.NoError(t, err)
	upd := quiz1()
	upd.Questions = own.Questions
	upd.Questions[0].ImageURL = ""
	_, err = f.svc.Update(ctx, teacher2, own.ID, upd)
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, physical, victim.ID, SubmitInput{AnswerFileURL: "/api/uploads/answers/submissions/s-online/a.pdf"})
	assert.True(t, errors.Is(err, common.ErrValidation))
	_, err = f.svc.Submit(ctx, physical, victim.ID, SubmitInput{AnswerFileURL: "/api/uploads/tutes/files/t-1/notes.pdf"})
	assert.True(t, errors.Is(err, common.ErrValidation))
	att, err := f.svc.Submit(ctx, physical, victim.ID, SubmitInput{AnswerFileURL: "/api/uploads/answers/submissions/s-physical/a.pdf"})
	require.NoError(t, err)

	_, err = f.svc.SetReview(ctx, teacher, victim.ID, att.ID, "/api/uploads/answers/reviews/t-2/r.pdf")
	assert.True(t, errors.Is(err, common.ErrValidation))

	assert.Empty(t, pendingKeys(t, f))
}

func TestManagerKeepsOwnerFilesOnUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := quiz1()
	in.Questions[0].ImageURL = "/api/uploads/papers/questions/t-1/q.png"
	p, err := f.svc.Create(ctx, teacher, in)
	require.NoError(t, err)

	upd := quiz1()
	upd.Questions = p.Questions
	upd.Questions[0].Options[0].ImageURL = "/api/uploads/papers/options/pm-1/o.png"
	upd.ThumbnailURL = "/api/uploads/papers/thumbnails/mcq/t-1/c.png"
	_, err = f.svc.Update(ctx, manager, p.ID, upd)
	require.NoError(t, err)
}

func TestUpdateSwitchesEssayToMCQ(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, teacher, Input{
		Title:        "Essay",
		PaperType:    TypeStructureEssay,
		FileURL:      "/api/uploads/papers/pdfs/t-1/e.pdf",
		ThumbnailURL: "/api/uploads/papers/thumbnails/structure-essay/t-1/e.png",
	})
	require.NoError(t, err)

	withFile := quiz1()
	withFile.FileURL = p.FileURL
	_, err = f.svc.Update(ctx, teacher, p.ID, withFile)
	assert.True(t, errors.Is(err, common.ErrValidation))

	got, err := f.svc.Update(ctx, teacher, p.ID, quiz1())
	require.NoError(t, err)
	assert.Equal(t, TypeMCQ, got.PaperType)
	assert.Empty(t, got.FileURL)
	assert.Equal(t, p.ThumbnailURL, got.ThumbnailURL)

	in := quiz1()
	in.Questions = got.Questions
	in.RemoveThumbnail = true
	got, err = f.svc.Update(ctx, teacher, p.ID, in)
	require.NoError(t, err)
	assert.Empty(t, got.ThumbnailURL)

	assert.ElementsMatch(t, []string{
		"papers/pdfs/t-1/e.pdf",
		"papers/thumbnails/structure-essay/t-1/e.png",
	}, pendingKeys(t, f))
}

func TestMarksValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, teacher, quiz1())
	require.NoError(t, err)
	att, err := f.svc.Submit(ctx, online, p.ID, SubmitInput{Answers: []AnswerInput{
		{QuestionID: p.Questions[0].ID, SelectedOptionID: p.Questions[0].Options[1].ID},
	}})
	require.NoError(t, err)

	for _, in := range []MarksInput{{Score: -1}, {Score: 1, MaxScore: -5}, {Score: 2}} {
		_, err = f.svc.UpdateMarks(ctx, teacher, p.ID, att.ID, in)
		assert.True(t, errors.Is(err, common.ErrValidation), "%+v", in)
	}
	got, err := f.svc.UpdateMarks(ctx, teacher, p.ID, att.ID, MarksInput{Score: 7, MaxScore: 10})
	require.NoError(t, err)
	assert.Equal(t, 70, got.Percentage)
}

func TestPriceRefusesPaidPapers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	paid := quiz1()
	paid.Availability = AvailablePaid
	paid.Price = 500
	p, err := f.svc.Create(ctx, teacher, paid)
	require.NoError(t, err)
	_, _, err = f.svc.Price(ctx, p.ID)
	assert.True(t, errors.Is(err, common.ErrBadRequest))
	assert.EqualError(t, err, "paid papers are not available yet")

	open := quiz1()
	open.Price = 500
	p, err = f.svc.Create(ctx, teacher, open)
	require.NoError(t, err)
	price, title, err := f.svc.Price(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, price)
	assert.Equal(t, "Quiz 1", title)
}
