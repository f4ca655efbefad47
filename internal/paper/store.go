package paper

import "context"

type ListOpts struct {
	TeacherID string // empty: all papers
	CourseID  string
}

type AttemptFilter struct {
	PaperID   string
	StudentID string
}

// Store persists papers and attempts. Implementations enforce one attempt
// per (paper, student) with a unique index and queue files orphaned by
// UpdatePaper, DeletePaper and SetReviewFile for deletion.
type Store interface {
	CreatePaper(ctx context.Context, p Paper) error
	// UpdatePaper returns *LockedError when attempts exist.
	UpdatePaper(ctx context.Context, p Paper, orphanURLs []string) error
	// DeletePaper removes the paper and its attempts and returns what was
	// removed.
	DeletePaper(ctx context.Context, id string) (Paper, []Attempt, error)
	GetPaper(ctx context.Context, id string) (Paper, error)
	ListPapers(ctx context.Context, opts ListOpts) ([]Paper, error)

	// CreateAttempt returns ErrAlreadySubmitted on a duplicate.
	CreateAttempt(ctx context.Context, a Attempt) error
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	FindAttempt(ctx context.Context, paperID, studentID string) (Attempt, error)
	CountAttempts(ctx context.Context, paperID string) (int, error)
	ListAttempts(ctx context.Context, f AttemptFilter) ([]Attempt, error)
	UpdateMarks(ctx context.Context, attemptID string, score float64, percentage int) error
	// SetReviewFile stores url and queues the replaced file.
	SetReviewFile(ctx context.Context, attemptID, url string) error
}
