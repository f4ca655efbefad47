package paper

import (
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/grading"
)

type PaperType string

const (
	TypeMCQ            PaperType = grading.TypeMCQ
	TypeStructureEssay PaperType = grading.TypeStructureEssay
)

func (t PaperType) Valid() bool { return t == TypeMCQ || t == TypeStructureEssay }

// Availability is the access tier of a paper.
type Availability string

const (
	AvailableAll      Availability = "all"
	AvailablePhysical Availability = "physical"
	AvailablePaid     Availability = "paid"
)

func (a Availability) Valid() bool {
	return a == AvailableAll || a == AvailablePhysical || a == AvailablePaid
}

type Option struct {
	ID         string `json:"id" bson:"id"`
	OptionText string `json:"optionText" bson:"optionText"`
	IsCorrect  bool   `json:"isCorrect,omitempty" bson:"isCorrect"`
	ImageURL   string `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
}

type Question struct {
	ID           string   `json:"id" bson:"id"`
	QuestionText string   `json:"questionText" bson:"questionText"`
	ImageURL     string   `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	Options      []Option `json:"options" bson:"options"`
	Order        int      `json:"order" bson:"order"`
	Explanation  string   `json:"explanation,omitempty" bson:"explanation,omitempty"`
}

type Paper struct {
	ID             string       `json:"id" bson:"_id"`
	Title          string       `json:"title" bson:"title"`
	Description    string       `json:"description" bson:"description"`
	TeacherID      string       `json:"teacherId" bson:"teacherId"`
	CourseID       string       `json:"courseId,omitempty" bson:"courseId,omitempty"`
	Questions      []Question   `json:"questions" bson:"questions"`
	Deadline       *time.Time   `json:"deadline,omitempty" bson:"deadline,omitempty"`
	TimeLimit      int          `json:"timeLimit" bson:"timeLimit"` // minutes
	Availability   Availability `json:"availability" bson:"availability"`
	Price          float64      `json:"price" bson:"price"`
	PaperType      PaperType    `json:"paperType" bson:"paperType"`
	FileURL        string       `json:"fileUrl,omitempty" bson:"fileUrl,omitempty"`
	ThumbnailURL   string       `json:"thumbnailUrl,omitempty" bson:"thumbnailUrl,omitempty"`
	TotalQuestions int          `json:"totalQuestions" bson:"totalQuestions"`
	CreatedAt      time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// Normalize fills derived fields. Call before every save.
func (p *Paper) Normalize() {
	p.Title = strings.TrimSpace(p.Title)
	if p.Availability == "" {
		p.Availability = AvailableAll
	}
	if p.PaperType == "" {
		p.PaperType = TypeMCQ
	}
	for i := range p.Questions {
		if p.Questions[i].Order == 0 {
			p.Questions[i].Order = i + 1
		}
	}
	p.TotalQuestions = len(p.Questions)
}

// Validate returns a *common.ValidationError listing every problem.
func (p *Paper) Validate() error {
	v := &common.ValidationError{}
	if p.Title == "" {
		v.Add("title is required")
	}
	if !p.Availability.Valid() {
		v.Add("availability must be one of all, physical, paid")
	}
	if p.Price < 0 {
		v.Add("price cannot be negative")
	}
	if p.TimeLimit < 0 {
		v.Add("timeLimit cannot be negative")
	}
	switch p.PaperType {
	case TypeMCQ:
		if len(p.Questions) == 0 {
			v.Add("MCQ paper needs at least one question")
		}
		for i, q := range p.Questions {
			n := i + 1
			if strings.TrimSpace(q.QuestionText) == "" && q.ImageURL == "" {
				v.Add("question %d: text or image is required", n)
			}
			if len(q.Options) < 2 {
				v.Add("question %d: at least 2 options are required", n)
			}
			correct := 0
			for j, o := range q.Options {
				if strings.TrimSpace(o.OptionText) == "" && o.ImageURL == "" {
					v.Add("question %d option %d: text or image is required", n, j+1)
				}
				if o.IsCorrect {
					correct++
				}
			}
			if correct != 1 {
				v.Add("question %d: exactly one correct option is required (found %d)", n, correct)
			}
		}
		if p.FileURL != "" {
			v.Add("MCQ paper cannot have a paper file")
		}
	case TypeStructureEssay:
		if p.FileURL == "" {
			v.Add("Structure-Essay paper requires an uploaded file")
		}
		if len(p.Questions) > 0 {
			v.Add("Structure-Essay paper cannot have questions")
		}
	default:
		v.Add("paperType must be MCQ or Structure-Essay")
	}
	return v.OrNil()
}

// ImageURLs lists every question and option image.
func (p *Paper) ImageURLs() []string {
	var out []string
	for _, q := range p.Questions {
		if q.ImageURL != "" {
			out = append(out, q.ImageURL)
		}
		for _, o := range q.Options {
			if o.ImageURL != "" {
				out = append(out, o.ImageURL)
			}
		}
	}
	return out
}

// FileURLs lists every file the paper references.
func (p *Paper) FileURLs() []string {
	out := p.ImageURLs()
	if p.FileURL != "" {
		out = append(out, p.FileURL)
	}
	if p.ThumbnailURL != "" {
		out = append(out, p.ThumbnailURL)
	}
	return out
}

func (p *Paper) DeadlinePassed(now time.Time) bool {
	return p.Deadline != nil && now.After(*p.Deadline)
}

// StripAnswers hides correct options and explanations.
func (p *Paper) StripAnswers() {
	qs := make([]Question, len(p.Questions))
	for i, q := range p.Questions {
		q.Explanation = ""
		opts := make([]Option, len(q.Options))
		for j, o := range q.Options {
			o.IsCorrect = false
			opts[j] = o
		}
		q.Options = opts
		qs[i] = q
	}
	p.Questions = qs
}

func (p *Paper) gradingQuestions() []grading.Question {
	out := make([]grading.Question, len(p.Questions))
	for i, q := range p.Questions {
		opts := make([]grading.Option, len(q.Options))
		for j, o := range q.Options {
			opts[j] = grading.Option{ID: o.ID, Correct: o.IsCorrect}
		}
		out[i] = grading.Question{ID: q.ID, Options: opts}
	}
	return out
}

type AttemptStatus string

const (
	StatusStarted   AttemptStatus = "started"
	StatusSubmitted AttemptStatus = "submitted"
)

type Answer struct {
	QuestionID       string `json:"questionId" bson:"questionId"`
	SelectedOptionID string `json:"selectedOptionId" bson:"selectedOptionId"`
	IsCorrect        bool   `json:"isCorrect" bson:"isCorrect"`
}

type Attempt struct {
	ID                   string        `json:"id" bson:"_id"`
	PaperID              string        `json:"paperId" bson:"paperId"`
	StudentID            string        `json:"studentId" bson:"studentId"`
	Answers              []Answer      `json:"answers" bson:"answers"`
	AnswerFileURL        string        `json:"answerFileUrl,omitempty" bson:"answerFileUrl,omitempty"`
	Score                float64       `json:"score" bson:"score"`
	TotalQuestions       int           `json:"totalQuestions" bson:"totalQuestions"`
	Percentage           int           `json:"percentage" bson:"percentage"`
	Status               AttemptStatus `json:"status" bson:"status"`
	TimeSpent            int           `json:"timeSpent" bson:"timeSpent"` // seconds
	TeacherReviewFileURL string        `json:"teacherReviewFileUrl,omitempty" bson:"teacherReviewFileUrl,omitempty"`
	Graded               bool          `json:"graded" bson:"graded"`
	SubmittedAt          time.Time     `json:"submittedAt" bson:"submittedAt"`
}

// FileURLs lists the attempt's stored files.
func (a *Attempt) FileURLs() []string {
	var out []string
	if a.AnswerFileURL != "" {
		out = append(out, a.AnswerFileURL)
	}
	if a.TeacherReviewFileURL != "" {
		out = append(out, a.TeacherReviewFileURL)
	}
	return out
}

// LockedError is returned when a paper cannot change because students
// already submitted.
type LockedError struct{ Submissions int }

func (e *LockedError) Error() string {
	return fmt.Sprintf("cannot edit paper: %d student(s) have already submitted", e.Submissions)
}

func (e *LockedError) Unwrap() error { return common.ErrForbidden }

// ErrAlreadySubmitted is the single-attempt conflict.
var ErrAlreadySubmitted = common.NewError(common.ErrConflict, "you have already submitted this paper")
