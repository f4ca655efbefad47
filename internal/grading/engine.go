package grading

import (
	"context"
	"errors"
	"math"

	"github.com/mind-engage/mindengage-classroom/internal/common"
)

// Paper types a Grader knows about.
const (
	TypeMCQ            = "MCQ"
	TypeStructureEssay = "Structure-Essay"
)

// ErrUnresolved means a submitted answer names a question or option the
// paper does not have. The whole submission is rejected.
var ErrUnresolved = errors.New("answer does not match the paper")

// Option and Question are the minimal view of a paper needed for grading.
type Option struct {
	ID      string
	Correct bool
}

type Question struct {
	ID      string
	Options []Option
}

type Answer struct {
	QuestionID string
	OptionID   string
}

type Submission struct {
	Answers       []Answer
	AnswerFileURL string
}

// GradedAnswer is one answer with its verdict.
type GradedAnswer struct {
	QuestionID string
	OptionID   string
	Correct    bool
}

// Result is the outcome of grading a submission.
type Result struct {
	Score       float64
	Total       int
	Percentage  int
	NeedsManual bool // set for papers a teacher marks by hand
	Answers     []GradedAnswer
}

// Strategy grades a whole submission for one paper type.
type Strategy interface {
	Grade(ctx context.Context, qs []Question, sub Submission) (Result, error)
}

// Grader routes by paper type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, paperType string, qs []Question, sub Submission) (Result, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, paperType string, qs []Question, sub Submission) (Result, error) {
	s, ok := g.strategies[paperType]
	if !ok {
		return Result{}, common.NewError(common.ErrBadRequest, "no grading strategy for paper type %q", paperType)
	}
	return s.Grade(ctx, qs, sub)
}

// NewDefaultGrader installs the built-in strategies.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[string]Strategy{
			TypeMCQ:            mcqStrategy{},
			TypeStructureEssay: essayStrategy{},
		},
	}
}

// Percentage is round(score/total*100), 0 when total is 0.
func Percentage(score float64, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(score / float64(total) * 100))
}

// --- Strategies ---

type mcqStrategy struct{}

func (mcqStrategy) Grade(_ context.Context, qs []Question, sub Submission) (Result, error) {
	byID := make(map[string]Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}
	res := Result{Total: len(qs), Answers: make([]GradedAnswer, 0, len(sub.Answers))}
	seen := make(map[string]struct{}, len(sub.Answers))
	for _, a := range sub.Answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			return Result{}, unresolved("question %q not found", a.QuestionID)
		}
		if _, dup := seen[a.QuestionID]; dup {
			return Result{}, unresolved("question %q answered twice", a.QuestionID)
		}
		seen[a.QuestionID] = struct{}{}

		opt, ok := findOption(q, a.OptionID)
		if !ok {
			return Result{}, unresolved("option %q not found in question %q", a.OptionID, a.QuestionID)
		}
		if opt.Correct {
			res.Score++
		}
		res.Answers = append(res.Answers, GradedAnswer{QuestionID: q.ID, OptionID: opt.ID, Correct: opt.Correct})
	}
	res.Percentage = Percentage(res.Score, res.Total)
	return res, nil
}

func findOption(q Question, id string) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

func unresolved(format string, args ...any) error {
	e := common.NewError(common.ErrBadRequest, format, args...)
	e.Cause = ErrUnresolved
	return e
}

type essayStrategy struct{}

func (essayStrategy) Grade(_ context.Context, _ []Question, sub Submission) (Result, error) {
	if sub.AnswerFileURL == "" {
		return Result{}, common.NewValidationError("answer file is required")
	}
	return Result{NeedsManual: true}, nil
}
