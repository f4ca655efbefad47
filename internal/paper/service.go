package paper

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/filegc"
	"github.com/mind-engage/mindengage-classroom/internal/grading"
	"github.com/mind-engage/mindengage-classroom/internal/rbac"
	"github.com/mind-engage/mindengage-classroom/internal/storage"
	"github.com/mind-engage/mindengage-classroom/internal/validation"
)

// Viewer is the caller of a paper operation.
type Viewer struct {
	ID       string
	Role     rbac.Role
	Physical bool // student attends physical classes
}

type StudentInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// StudentDirectory resolves student names for result listings.
type StudentDirectory interface {
	Students(ctx context.Context, ids []string) (map[string]StudentInfo, error)
}

type Service struct {
	store  Store
	grader grading.Grader
	dir    StudentDirectory
	log    logrus.FieldLogger
	now    func() time.Time
	newID  func() string
}

func NewService(store Store, grader grading.Grader, dir StudentDirectory, log logrus.FieldLogger) *Service {
	return &Service{
		store:  store,
		grader: grader,
		dir:    dir,
		log:    log.WithField("component", "paper"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Input is the writable part of a paper.
type Input struct {
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	CourseID     string       `json:"courseId"`
	Questions    []Question   `json:"questions"`
	Deadline     *time.Time   `json:"deadline"`
	TimeLimit    int          `json:"timeLimit"`
	Availability Availability `json:"availability"`
	Price        float64      `json:"price"`
	PaperType    PaperType    `json:"paperType"`
	FileURL      string       `json:"fileUrl"`
	ThumbnailURL string       `json:"thumbnailUrl"`
	// RemoveThumbnail drops the stored thumbnail when ThumbnailURL is empty.
	RemoveThumbnail bool `json:"removeThumbnail"`
}

func (s *Service) apply(p *Paper, in Input) {
	p.Title = in.Title
	p.Description = in.Description
	p.CourseID = in.CourseID
	p.Deadline = in.Deadline
	p.TimeLimit = in.TimeLimit
	p.Availability = in.Availability
	p.Price = in.Price
	p.PaperType = in.PaperType
	// empty URLs keep the stored files, except that a paper turned MCQ
	// drops its paper file
	switch {
	case in.FileURL != "":
		p.FileURL = in.FileURL
	case p.PaperType == TypeMCQ:
		p.FileURL = ""
	}
	switch {
	case in.ThumbnailURL != "":
		p.ThumbnailURL = in.ThumbnailURL
	case in.RemoveThumbnail:
		p.ThumbnailURL = ""
	}
	p.Questions = make([]Question, len(in.Questions))
	for i, q := range in.Questions {
		if q.ID == "" {
			q.ID = s.newID()
		}
		opts := make([]Option, len(q.Options))
		for j, o := range q.Options {
			if o.ID == "" {
				o.ID = s.newID()
			}
			opts[j] = o
		}
		q.Options = opts
		p.Questions[i] = q
	}
	p.Normalize()
}

// checkUploads rejects upload URLs the paper did not already hold unless
// they are files of the matching upload type stored by one of owners.
func checkUploads(p Paper, held []string, owners ...string) error {
	known := make(map[string]bool, len(held))
	for _, u := range held {
		known[u] = true
	}
	v := &common.ValidationError{}
	check := func(u string, t storage.UploadType, field string) {
		if !known[u] && !storage.Attachable(u, t, owners...) {
			v.Add("%s must be a %s uploaded by you or the paper owner", field, t)
		}
	}
	check(p.FileURL, storage.UploadPaperFile, "fileUrl")
	check(p.ThumbnailURL, storage.UploadPaperThumbnail, "thumbnailUrl")
	for i, q := range p.Questions {
		check(q.ImageURL, storage.UploadQuestionImage, fmt.Sprintf("question %d imageUrl", i+1))
		for j, o := range q.Options {
			check(o.ImageURL, storage.UploadOptionImage, fmt.Sprintf("question %d option %d imageUrl", i+1, j+1))
		}
	}
	return v.OrNil()
}

func canManage(v Viewer, p Paper) bool {
	if rbac.Can(v.Role, "paper:manage-any") {
		return true
	}
	return p.TeacherID == v.ID && rbac.Can(v.Role, "paper:update")
}

var errNotOwner = common.NewError(common.ErrForbidden, "you can only manage your own papers")

func (s *Service) Create(ctx context.Context, v Viewer, in Input) (Paper, error) {
	if !rbac.Can(v.Role, "paper:create") {
		return Paper{}, common.NewError(common.ErrForbidden, "you are not allowed to create papers")
	}
	now := s.now().UTC().Truncate(time.Second)
	p := Paper{ID: s.newID(), TeacherID: v.ID, CreatedAt: now, UpdatedAt: now}
	s.apply(&p, in)
	if err := p.Validate(); err != nil {
		return Paper{}, err
	}
	if err := checkUploads(p, nil, v.ID); err != nil {
		return Paper{}, err
	}
	if err := s.store.CreatePaper(ctx, p); err != nil {
		return Paper{}, err
	}
	s.log.WithFields(logrus.Fields{"paper_id": p.ID, "type": p.PaperType, "teacher_id": v.ID}).Info("paper created")
	return p, nil
}

func (s *Service) Update(ctx context.Context, v Viewer, id string, in Input) (Paper, error) {
	old, err := s.getPaper(ctx, id)
	if err != nil {
		return Paper{}, err
	}
	if !canManage(v, old) {
		return Paper{}, errNotOwner
	}
	n, err := s.store.CountAttempts(ctx, id)
	if err != nil {
		return Paper{}, err
	}
	if n > 0 {
		return Paper{}, &LockedError{Submissions: n}
	}
	p := old
	p.UpdatedAt = s.now().UTC().Truncate(time.Second)
	s.apply(&p, in)
	if err := p.Validate(); err != nil {
		return Paper{}, err
	}
	if err := checkUploads(p, old.FileURLs(), v.ID, old.TeacherID); err != nil {
		return Paper{}, err
	}
	orphans := filegc.Orphans(old.FileURLs(), p.FileURLs())
	if err := s.store.UpdatePaper(ctx, p, orphans); err != nil {
		return Paper{}, err
	}
	s.log.WithFields(logrus.Fields{"paper_id": id, "orphaned_files": len(orphans)}).Info("paper updated")
	return p, nil
}

func (s *Service) Delete(ctx context.Context, v Viewer, id string) error {
	p, err := s.getPaper(ctx, id)
	if err != nil {
		return err
	}
	if !canManage(v, p) {
		return errNotOwner
	}
	_, attempts, err := s.store.DeletePaper(ctx, id)
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"paper_id": id, "attempts": len(attempts)}).Info("paper deleted")
	return nil
}

func (s *Service) getPaper(ctx context.Context, id string) (Paper, error) {
	p, err := s.store.GetPaper(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return Paper{}, common.NewError(common.ErrNotFound, "paper not found")
	}
	return p, err
}

// ---- access ----

// checkAccess applies the availability tier to a student.
func checkAccess(v Viewer, p Paper) error {
	switch p.Availability {
	case AvailableAll, "":
		return nil
	case AvailablePhysical:
		if v.Physical {
			return nil
		}
		return common.NewError(common.ErrForbidden, "this paper is only available to physical class students")
	case AvailablePaid:
		return common.NewError(common.ErrForbidden, "paid papers are not available yet")
	}
	return common.NewError(common.ErrForbidden, "this paper is not available")
}

// ShouldRevealAnswers decides whether a student sees correct options and
// explanations.
func ShouldRevealAnswers(attempted, showAnswers, deadlinePassed, hasDeadline bool) bool {
	return attempted && (showAnswers || deadlinePassed || !hasDeadline)
}

// Summary is a list entry.
type Summary struct {
	Paper
	Questions   []Question `json:"questions,omitempty"`
	Attempted   bool       `json:"attempted"`
	Locked      bool       `json:"locked"`
	Submissions *int       `json:"submissions,omitempty"`
}

func (s *Service) List(ctx context.Context, v Viewer, courseID string) ([]Summary, error) {
	opts := ListOpts{CourseID: courseID}
	student := v.Role == rbac.RoleStudent
	if !student && !rbac.Can(v.Role, "paper:manage-any") {
		opts.TeacherID = v.ID
	}
	papers, err := s.store.ListPapers(ctx, opts)
	if err != nil {
		return nil, err
	}
	attempted := map[string]bool{}
	if student {
		mine, err := s.store.ListAttempts(ctx, AttemptFilter{StudentID: v.ID})
		if err != nil {
			return nil, err
		}
		for _, a := range mine {
			attempted[a.PaperID] = true
		}
	}
	out := make([]Summary, 0, len(papers))
	for _, p := range papers {
		sum := Summary{Paper: p}
		if student {
			sum.Attempted = attempted[p.ID]
			sum.Locked = checkAccess(v, p) != nil
		} else {
			n, err := s.store.CountAttempts(ctx, p.ID)
			if err != nil {
				return nil, err
			}
			sum.Submissions = &n
		}
		out = append(out, sum)
	}
	return out, nil
}

// View is a single paper as seen by its reader.
type View struct {
	Paper           Paper    `json:"paper"`
	Attempted       bool     `json:"attempted"`
	Attempt         *Attempt `json:"attempt,omitempty"`
	AnswersRevealed bool     `json:"answersRevealed"`
	DeadlinePassed  bool     `json:"deadlinePassed"`
}

func (s *Service) Get(ctx context.Context, v Viewer, id string, showAnswers bool) (View, error) {
	p, err := s.getPaper(ctx, id)
	if err != nil {
		return View{}, err
	}
	passed := p.DeadlinePassed(s.now())
	if canManage(v, p) {
		return View{Paper: p, AnswersRevealed: true, DeadlinePassed: passed}, nil
	}
	if v.Role != rbac.RoleStudent {
		p.StripAnswers()
		return View{Paper: p, DeadlinePassed: passed}, nil
	}
	if err := checkAccess(v, p); err != nil {
		return View{}, err
	}
	view := View{DeadlinePassed: passed}
	a, err := s.store.FindAttempt(ctx, p.ID, v.ID)
	switch {
	case err == nil:
		view.Attempted = true
		view.Attempt = &a
	case !errors.Is(err, common.ErrNotFound):
		return View{}, err
	}
	view.AnswersRevealed = ShouldRevealAnswers(view.Attempted, showAnswers, passed, p.Deadline != nil)
	if !view.AnswersRevealed {
		p.StripAnswers()
	}
	view.Paper = p
	return view, nil
}

// ---- submission ----

type AnswerInput struct {
	QuestionID       string `json:"questionId"`
	SelectedOptionID string `json:"selectedOptionId"`
}

type SubmitInput struct {
	Answers       []AnswerInput `json:"answers"`
	AnswerFileURL string        `json:"answerFileUrl"`
	TimeSpent     int           `json:"timeSpent"`
}

// Submit records the caller's single attempt at a paper.
func (s *Service) Submit(ctx context.Context, v Viewer, id string, in SubmitInput) (Attempt, error) {
	if v.Role != rbac.RoleStudent {
		return Attempt{}, common.NewError(common.ErrForbidden, "only students can submit papers")
	}
	if _, err := uuid.Parse(id); err != nil {
		return Attempt{}, common.NewError(common.ErrBadRequest, "invalid paper id")
	}
	p, err := s.getPaper(ctx, id)
	if err != nil {
		return Attempt{}, err
	}
	if err := checkAccess(v, p); err != nil {
		return Attempt{}, err
	}
	now := s.now()
	if p.DeadlinePassed(now) {
		return Attempt{}, common.NewError(common.ErrForbidden, "the deadline for this paper has passed")
	}
	if !storage.Attachable(in.AnswerFileURL, storage.UploadAnswerFile, v.ID) {
		return Attempt{}, common.NewValidationError("answerFileUrl must be an answer file you uploaded")
	}
	switch _, err := s.store.FindAttempt(ctx, id, v.ID); {
	case err == nil:
		return Attempt{}, ErrAlreadySubmitted
	case !errors.Is(err, common.ErrNotFound):
		return Attempt{}, err
	}

	sub := grading.Submission{AnswerFileURL: in.AnswerFileURL}
	for _, a := range in.Answers {
		sub.Answers = append(sub.Answers, grading.Answer{QuestionID: a.QuestionID, OptionID: a.SelectedOptionID})
	}
	res, err := s.grader.Grade(ctx, string(p.PaperType), p.gradingQuestions(), sub)
	if err != nil {
		return Attempt{}, err
	}

	att := Attempt{
		ID:             s.newID(),
		PaperID:        p.ID,
		StudentID:      v.ID,
		Answers:        make([]Answer, 0, len(res.Answers)),
		Score:          res.Score,
		TotalQuestions: p.TotalQuestions,
		Percentage:     grading.Percentage(res.Score, p.TotalQuestions),
		Status:         StatusSubmitted,
		TimeSpent:      in.TimeSpent,
		Graded:         !res.NeedsManual,
		SubmittedAt:    now.UTC().Truncate(time.Second),
	}
	if p.PaperType == TypeStructureEssay {
		att.AnswerFileURL = in.AnswerFileURL
	}
	for _, g := range res.Answers {
		att.Answers = append(att.Answers, Answer{QuestionID: g.QuestionID, SelectedOptionID: g.OptionID, IsCorrect: g.Correct})
	}
	if err := s.store.CreateAttempt(ctx, att); err != nil {
		return Attempt{}, err
	}
	s.log.WithFields(logrus.Fields{
		"paper_id": p.ID, "student_id": v.ID, "score": att.Score, "percentage": att.Percentage,
	}).Info("attempt submitted")
	return att, nil
}

// ---- results ----

type AttemptResult struct {
	Attempt
	StudentName     string `json:"studentName,omitempty"`
	StudentUsername string `json:"studentUsername,omitempty"`
}

type Stats struct {
	Count   int     `json:"count"`
	Average float64 `json:"averagePercentage"`
	Highest int     `json:"highestPercentage"`
	Lowest  int     `json:"lowestPercentage"`
}

type Results struct {
	PaperID        string          `json:"paperId"`
	Title          string          `json:"title"`
	PaperType      PaperType       `json:"paperType"`
	TotalQuestions int             `json:"totalQuestions"`
	Attempts       []AttemptResult `json:"attempts"`
	Stats          *Stats          `json:"stats,omitempty"`
}

func computeStats(as []Attempt) Stats {
	st := Stats{Count: len(as)}
	if len(as) == 0 {
		return st
	}
	sum := 0
	st.Lowest = math.MaxInt
	for _, a := range as {
		sum += a.Percentage
		st.Highest = max(st.Highest, a.Percentage)
		st.Lowest = min(st.Lowest, a.Percentage)
	}
	st.Average = math.Round(float64(sum)/float64(len(as))*100) / 100
	return st
}

func (s *Service) Results(ctx context.Context, v Viewer, id string) (Results, error) {
	p, err := s.getPaper(ctx, id)
	if err != nil {
		return Results{}, err
	}
	out := Results{PaperID: p.ID, Title: p.Title, PaperType: p.PaperType, TotalQuestions: p.TotalQuestions}

	if v.Role == rbac.RoleStudent {
		a, err := s.store.FindAttempt(ctx, id, v.ID)
		if errors.Is(err, common.ErrNotFound) {
			return Results{}, common.NewError(common.ErrNotFound, "you have not attempted this paper")
		}
		if err != nil {
			return Results{}, err
		}
		out.Attempts = []AttemptResult{{Attempt: a}}
		return out, nil
	}
	if !rbac.Can(v.Role, "attempt:view-all") || !canManage(v, p) {
		return Results{}, errNotOwner
	}
	attempts, err := s.store.ListAttempts(ctx, AttemptFilter{PaperID: id})
	if err != nil {
		return Results{}, err
	}
	names := map[string]StudentInfo{}
	if s.dir != nil && len(attempts) > 0 {
		ids := make([]string, len(attempts))
		for i, a := range attempts {
			ids[i] = a.StudentID
		}
		if names, err = s.dir.Students(ctx, ids); err != nil {
			return Results{}, err
		}
	}
	out.Attempts = make([]AttemptResult, len(attempts))
	for i, a := range attempts {
		info := names[a.StudentID]
		out.Attempts[i] = AttemptResult{Attempt: a, StudentName: info.Name, StudentUsername: info.Username}
	}
	st := computeStats(attempts)
	out.Stats = &st
	return out, nil
}

// ---- grading by staff ----

type MarksInput struct {
	Score float64 `json:"score" validate:"gte=0"`
	// MaxScore defaults to the question count, or 100 for papers without
	// questions.
	MaxScore int `json:"maxScore" validate:"gte=0"`
}

func (s *Service) staffAttempt(ctx context.Context, v Viewer, paperID, attemptID string) (Paper, Attempt, error) {
	if !rbac.Can(v.Role, "attempt:grade") {
		return Paper{}, Attempt{}, common.NewError(common.ErrForbidden, "you are not allowed to grade attempts")
	}
	p, err := s.getPaper(ctx, paperID)
	if err != nil {
		return Paper{}, Attempt{}, err
	}
	if !canManage(v, p) {
		return Paper{}, Attempt{}, errNotOwner
	}
	a, err := s.store.GetAttempt(ctx, attemptID)
	if errors.Is(err, common.ErrNotFound) || (err == nil && a.PaperID != paperID) {
		return Paper{}, Attempt{}, common.NewError(common.ErrNotFound, "attempt not found")
	}
	return p, a, err
}

func (s *Service) UpdateMarks(ctx context.Context, v Viewer, paperID, attemptID string, in MarksInput) (Attempt, error) {
	if err := validation.Struct(in); err != nil {
		return Attempt{}, err
	}
	_, a, err := s.staffAttempt(ctx, v, paperID, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	maxScore := in.MaxScore
	if maxScore <= 0 {
		maxScore = a.TotalQuestions
	}
	if maxScore <= 0 {
		maxScore = 100
	}
	if in.Score > float64(maxScore) {
		return Attempt{}, common.NewValidationError(fmt.Sprintf("score must be at most %d", maxScore))
	}
	pct := grading.Percentage(in.Score, maxScore)
	if err := s.store.UpdateMarks(ctx, attemptID, in.Score, pct); err != nil {
		return Attempt{}, err
	}
	a.Score, a.Percentage, a.Graded = in.Score, pct, true
	s.log.WithFields(logrus.Fields{"attempt_id": attemptID, "score": in.Score, "by": v.ID}).Info("marks updated")
	return a, nil
}

func (s *Service) SetReview(ctx context.Context, v Viewer, paperID, attemptID, fileURL string) (Attempt, error) {
	if fileURL == "" {
		return Attempt{}, common.NewValidationError("review file is required")
	}
	if !storage.Attachable(fileURL, storage.UploadReviewFile, v.ID) {
		return Attempt{}, common.NewValidationError("review file must be a review file you uploaded")
	}
	_, a, err := s.staffAttempt(ctx, v, paperID, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if err := s.store.SetReviewFile(ctx, attemptID, fileURL); err != nil {
		return Attempt{}, err
	}
	a.TeacherReviewFileURL = fileURL
	return a, nil
}

// ---- student history ----

type MyAttempt struct {
	Attempt
	PaperTitle string    `json:"paperTitle"`
	PaperType  PaperType `json:"paperType"`
}

func (s *Service) MyAttempts(ctx context.Context, v Viewer) ([]MyAttempt, error) {
	attempts, err := s.store.ListAttempts(ctx, AttemptFilter{StudentID: v.ID})
	if err != nil {
		return nil, err
	}
	papers := map[string]Paper{}
	out := make([]MyAttempt, 0, len(attempts))
	for _, a := range attempts {
		p, ok := papers[a.PaperID]
		if !ok {
			p, err = s.store.GetPaper(ctx, a.PaperID)
			if err != nil && !errors.Is(err, common.ErrNotFound) {
				return nil, err
			}
			papers[a.PaperID] = p
		}
		out = append(out, MyAttempt{Attempt: a, PaperTitle: p.Title, PaperType: p.PaperType})
	}
	return out, nil
}

// Price backs payment initiation for papers. No paper access depends on a
// payment yet, so open papers quote 0 and paid papers are refused.
func (s *Service) Price(ctx context.Context, id string) (float64, string, error) {
	p, err := s.getPaper(ctx, id)
	if err != nil {
		return 0, "", err
	}
	if p.Availability == AvailablePaid {
		return 0, "", common.NewError(common.ErrBadRequest, "paid papers are not available yet")
	}
	return 0, p.Title, nil
}
