package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/paper"
	"github.com/mind-engage/mindengage-classroom/internal/storage"
	"github.com/mind-engage/mindengage-classroom/internal/user"
)

// readPaperInput accepts JSON, or multipart with either a JSON "data"
// field or individual form values ("questions" as JSON), plus optional
// "file" and "thumbnail" uploads.
func readPaperInput(w http.ResponseWriter, r *http.Request, up *storage.Uploader) (paper.Input, []storage.Saved, error) {
	var in paper.Input
	if !isMultipart(r) {
		return in, nil, decodeJSON(w, r, &in)
	}
	if err := parseMultipart(r); err != nil {
		return in, nil, err
	}
	ok, err := formJSON(r, "data", &in)
	if err != nil {
		return in, nil, err
	}
	if !ok {
		if err := paperFromForm(r, &in); err != nil {
			return in, nil, err
		}
	}

	var saved []storage.Saved
	s, ok, err := up.SaveField(r.Context(), r.MultipartForm, "file", storage.UploadPaperFile, string(in.PaperType))
	if err != nil {
		return in, saved, err
	}
	if ok {
		saved = append(saved, s)
		in.FileURL = s.URL
	}
	s, ok, err = up.SaveField(r.Context(), r.MultipartForm, "thumbnail", storage.UploadPaperThumbnail, string(in.PaperType))
	if err != nil {
		return in, saved, err
	}
	if ok {
		saved = append(saved, s)
		in.ThumbnailURL = s.URL
	}
	return in, saved, nil
}

func paperFromForm(r *http.Request, in *paper.Input) error {
	in.Title = r.FormValue("title")
	in.Description = r.FormValue("description")
	in.CourseID = r.FormValue("courseId")
	in.PaperType = paper.PaperType(r.FormValue("paperType"))
	in.Availability = paper.Availability(r.FormValue("availability"))
	in.FileURL = r.FormValue("fileUrl")
	in.ThumbnailURL = r.FormValue("thumbnailUrl")
	in.RemoveThumbnail = r.FormValue("removeThumbnail") == "true"
	var err error
	if in.Price, err = formFloat(r, "price"); err != nil {
		return err
	}
	if in.TimeLimit, err = formInt(r, "timeLimit"); err != nil {
		return err
	}
	if raw := strings.TrimSpace(r.FormValue("deadline")); raw != "" {
		d, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return common.NewValidationError("deadline must be an RFC 3339 timestamp")
		}
		in.Deadline = &d
	}
	_, err = formJSON(r, "questions", &in.Questions)
	return err
}

// GET /api/papers?courseId=
func ListPapersHandler(papers *paper.Service, users *user.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := resolveCaller(r, users)
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		list, err := papers.List(r.Context(), c.paper(), strings.TrimSpace(r.URL.Query().Get("courseId")))
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusOK, list)
	}
}

// GET /api/papers/{paperID}?showAnswers=true
func GetPaperHandler(papers *paper.Service, users *user.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := resolveCaller(r, users)
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		show, _ := strconv.ParseBool(r.URL.Query().Get("showAnswers"))
		v, err := papers.Get(r.Context(), c.paper(), chi.URLParam(r, "paperID"), show)
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusOK, v)
	}
}

// POST /api/papers
func CreatePaperHandler(papers *paper.Service, up *storage.Uploader, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, saved, err := readPaperInput(w, r, up)
		if err != nil {
			up.Discard(saved...)
			rs.Error(w, r, err)
			return
		}
		p, err := papers.Create(r.Context(), tokenCaller(r).paper(), in)
		if err != nil {
			up.Discard(saved...)
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusCreated, p)
	}
}

// PUT /api/papers/{paperID}
func UpdatePaperHandler(papers *paper.Service, up *storage.Uploader, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, saved, err := readPaperInput(w, r, up)
		if err != nil {
			up.Discard(saved...)
			rs.Error(w, r, err)
			return
		}
		p, err := papers.Update(r.Context(), tokenCaller(r).paper(), chi.URLParam(r, "paperID"), in)
		if err != nil {
			up.Discard(saved...)
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusOK, p)
	}
}

// DELETE /api/papers/{paperID}
func DeletePaperHandler(papers *paper.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := papers.Delete(r.Context(), tokenCaller(r).paper(), chi.URLParam(r, "paperID")); err != nil {
			rs.Error(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func readSubmitInput(w http.ResponseWriter, r *http.Request, up *storage.Uploader) (paper.SubmitInput, []storage.Saved, error) {
	var in paper.SubmitInput
	if !isMultipart(r) {
		return in, nil, decodeJSON(w, r, &in)
	}
	if err := parseMultipart(r); err != nil {
		return in, nil, err
	}
	if _, err := formJSON(r, "answers", &in.Answers); err != nil {
		return in, nil, err
	}
	var err error
	if in.TimeSpent, err = formInt(r, "timeSpent"); err != nil {
		return in, nil, err
	}
	in.AnswerFileURL = r.FormValue("answerFileUrl")
	s, ok, err := up.SaveField(r.Context(), r.MultipartForm, "answerFile", storage.UploadAnswerFile, "")
	if err != nil {
		return in, nil, err
	}
	if !ok {
		return in, nil, nil
	}
	in.AnswerFileURL = s.URL
	return in, []storage.Saved{s}, nil
}

// POST /api/papers/{paperID}/submit
func SubmitPaperHandler(papers *paper.Service, users *user.Service, up *storage.Uploader, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := resolveCaller(r, users)
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		in, saved, err := readSubmitInput(w, r, up)
		if err != nil {
			up.Discard(saved...)
			rs.Error(w, r, err)
			return
		}
		a, err := papers.Submit(r.Context(), c.paper(), chi.URLParam(r, "paperID"), in)
		if err != nil {
			up.Discard(saved...)
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusCreated, a)
	}
}

// GET /api/papers/{paperID}/results
func PaperResultsHandler(papers *paper.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := papers.Results(r.Context(), tokenCaller(r).paper(), chi.URLParam(r, "paperID"))
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusOK, res)
	}
}

// PUT /api/papers/{paperID}/attempts/{attemptID}/marks
func UpdateMarksHandler(papers *paper.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in paper.MarksInput
		if err := decodeJSON(w, r, &in); err != nil {
			rs.Error(w, r, err)
			return
		}
		a, err := papers.UpdateMarks(r.Context(), tokenCaller(r).paper(),
			chi.URLParam(r, "paperID"), chi.URLParam(r, "attemptID"), in)
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusOK, a)
	}
}

type reviewReq struct {
	ReviewFileURL string `json:"reviewFileUrl"`
}

// POST /api/papers/{paperID}/attempts/{attemptID}/review
// Accepts a multipart "reviewFile" or JSON with a previously uploaded URL.
func ReviewAttemptHandler(papers *paper.Service, up *storage.Uploader, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			req   reviewReq
			saved []storage.Saved
		)
		if isMultipart(r) {
			if err := parseMultipart(r); err != nil {
				rs.Error(w, r, err)
				return
			}
			s, ok, err := up.SaveField(r.Context(), r.MultipartForm, "reviewFile", storage.UploadReviewFile, "")
			if err != nil {
				rs.Error(w, r, err)
				return
			}
			if ok {
				saved = append(saved, s)
				req.ReviewFileURL = s.URL
			}
		} else if err := decodeJSON(w, r, &req); err != nil {
			rs.Error(w, r, err)
			return
		}
		a, err := papers.SetReview(r.Context(), tokenCaller(r).paper(),
			chi.URLParam(r, "paperID"), chi.URLParam(r, "attemptID"), req.ReviewFileURL)
		if err != nil {
			up.Discard(saved...)
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusOK, a)
	}
}

// GET /api/attempts/mine
func MyAttemptsHandler(papers *paper.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := papers.MyAttempts(r.Context(), tokenCaller(r).paper())
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusOK, list)
	}
}
