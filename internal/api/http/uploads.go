package http

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/storage"
)

func firstFile(form *multipart.Form, preferred string) *multipart.FileHeader {
	if fs := form.File[preferred]; len(fs) > 0 {
		return fs[0]
	}
	for _, fs := range form.File {
		if len(fs) > 0 {
			return fs[0]
		}
	}
	return nil
}

// POST /api/uploads/{type}
// The route's storage.Tag middleware has put the upload type in context.
func UploadHandler(up *storage.Uploader, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !isMultipart(r) {
			rs.Error(w, r, common.NewError(common.ErrBadRequest, "multipart/form-data body required"))
			return
		}
		if err := parseMultipart(r); err != nil {
			rs.Error(w, r, err)
			return
		}
		fh := firstFile(r.MultipartForm, "file")
		if fh == nil {
			rs.Error(w, r, common.NewValidationError("file is required"))
			return
		}
		saved, err := up.Save(r.Context(), fh, r.FormValue("paperType"))
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusCreated, saved)
	}
}

// GET /api/uploads/*
func ServeUploadsHandler(bs storage.BlobStore, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		rc, err := bs.Get(key)
		if err != nil {
			if key == "" || errors.Is(err, storage.ErrNotExist) {
				err = common.NewError(common.ErrNotFound, "file not found")
			}
			rs.Error(w, r, err)
			return
		}
		defer rc.Close()
		ct := mime.TypeByExtension(path.Ext(key))
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		_, _ = io.Copy(w, rc)
	}
}
