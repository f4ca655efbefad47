package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-classroom/internal/material"
	"github.com/mind-engage/mindengage-classroom/internal/storage"
	"github.com/mind-engage/mindengage-classroom/internal/user"
)

// readMaterialInput accepts JSON, or multipart with the fields as form
// values (or a JSON "data" field) plus optional "file" and "thumbnail"
// uploads. Uploaded files are returned so a failed request can discard them.
func readMaterialInput(w http.ResponseWriter, r *http.Request, kind material.Kind, up *storage.Uploader) (material.Input, []storage.Saved, error) {
	var in material.Input
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
		in.Title = r.FormValue("title")
		in.Description = r.FormValue("description")
		in.CourseID = r.FormValue("courseId")
		in.VideoURL = strings.TrimSpace(r.FormValue("videoUrl"))
		in.Availability = material.Availability(r.FormValue("availability"))
		in.RemoveThumbnail = r.FormValue("removeThumbnail") == "true"
		if in.Price, err = formFloat(r, "price"); err != nil {
			return in, nil, err
		}
	}

	var saved []storage.Saved
	thumbType := storage.UploadTuteThumbnail
	if kind == material.KindVideo {
		thumbType = storage.UploadVideoThumbnail
	} else {
		s, ok, err := up.SaveField(r.Context(), r.MultipartForm, "file", storage.UploadTuteFile, "")
		if err != nil {
			return in, saved, err
		}
		if ok {
			saved = append(saved, s)
			in.FileURL = s.URL
		}
	}
	s, ok, err := up.SaveField(r.Context(), r.MultipartForm, "thumbnail", thumbType, "")
	if err != nil {
		return in, saved, err
	}
	if ok {
		saved = append(saved, s)
		in.ThumbnailURL = s.URL
	}
	return in, saved, nil
}

// GET /api/{tutes|videos}?courseId=
func ListMaterialsHandler(kind material.Kind, materials *material.Service, users *user.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := resolveCaller(r, users)
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		list, err := materials.List(r.Context(), c.material(), kind, strings.TrimSpace(r.URL.Query().Get("courseId")))
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusOK, list)
	}
}

// GET /api/{tutes|videos}/{id}
func GetMaterialHandler(kind material.Kind, materials *material.Service, users *user.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := resolveCaller(r, users)
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		m, err := materials.Get(r.Context(), c.material(), kind, chi.URLParam(r, "id"))
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusOK, m)
	}
}

// POST /api/{tutes|videos}
func CreateMaterialHandler(kind material.Kind, materials *material.Service, up *storage.Uploader, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, saved, err := readMaterialInput(w, r, kind, up)
		if err != nil {
			up.Discard(saved...)
			rs.Error(w, r, err)
			return
		}
		m, err := materials.Create(r.Context(), tokenCaller(r).material(), kind, in)
		if err != nil {
			up.Discard(saved...)
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusCreated, m)
	}
}

// PUT /api/{tutes|videos}/{id}
func UpdateMaterialHandler(kind material.Kind, materials *material.Service, up *storage.Uploader, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, saved, err := readMaterialInput(w, r, kind, up)
		if err != nil {
			up.Discard(saved...)
			rs.Error(w, r, err)
			return
		}
		m, err := materials.Update(r.Context(), tokenCaller(r).material(), kind, chi.URLParam(r, "id"), in)
		if err != nil {
			up.Discard(saved...)
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusOK, m)
	}
}

// DELETE /api/{tutes|videos}/{id}
func DeleteMaterialHandler(kind material.Kind, materials *material.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := materials.Delete(r.Context(), tokenCaller(r).material(), kind, chi.URLParam(r, "id")); err != nil {
			rs.Error(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
