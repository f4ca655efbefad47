package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-classroom/internal/course"
)

// GET /api/courses?teacherId=
func ListCoursesHandler(courses *course.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := courses.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("teacherId")))
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		if list == nil {
			list = []course.Course{}
		}
		rs.JSON(w, http.StatusOK, list)
	}
}

// GET /api/courses/{courseID} (id or slug)
func GetCourseHandler(courses *course.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := courses.Get(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusOK, c)
	}
}

// POST /api/courses
func CreateCourseHandler(courses *course.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in course.Input
		if err := decodeJSON(w, r, &in); err != nil {
			rs.Error(w, r, err)
			return
		}
		c, err := courses.Create(r.Context(), tokenCaller(r).id, in)
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusCreated, c)
	}
}

// PUT /api/courses/{courseID}
func UpdateCourseHandler(courses *course.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in course.Input
		if err := decodeJSON(w, r, &in); err != nil {
			rs.Error(w, r, err)
			return
		}
		c := tokenCaller(r)
		out, err := courses.Update(r.Context(), c.id, c.role, chi.URLParam(r, "courseID"), in)
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusOK, out)
	}
}

// DELETE /api/courses/{courseID}
func DeleteCourseHandler(courses *course.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := tokenCaller(r)
		if err := courses.Delete(r.Context(), c.id, c.role, chi.URLParam(r, "courseID")); err != nil {
			rs.Error(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
