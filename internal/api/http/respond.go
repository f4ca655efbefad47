package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/db"
)

const maxJSONBody = 1 << 20

// Responder writes JSON bodies and maps errors to status codes.
type Responder struct {
	Log        logrus.FieldLogger
	Production bool
}

func (rs *Responder) JSON(w http.ResponseWriter, code int, v any) {
	common.RespondWithJSON(w, code, v)
}

// Error renders err as {"error": ..., "details": [...]}. Messages of
// unexpected errors are hidden in production.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	code := common.HTTPStatusFromError(err)
	if code == http.StatusInternalServerError && db.IsUniqueViolation(err) {
		code = http.StatusConflict
	}

	var verr *common.ValidationError
	if errors.As(err, &verr) {
		common.RespondWithError(w, http.StatusBadRequest, "validation failed", verr.Problems...)
		return
	}
	var cerr *common.Error
	switch {
	case errors.As(err, &cerr):
		common.RespondWithError(w, code, cerr.Msg)
		if code >= 500 {
			rs.entry(r).WithError(err).Warn("request failed")
		}
	case code == http.StatusConflict:
		common.RespondWithError(w, code, "resource already exists")
	case code == http.StatusInternalServerError:
		rs.entry(r).WithError(err).Error("internal error")
		msg := "internal server error"
		if !rs.Production {
			msg = err.Error()
		}
		common.RespondWithError(w, code, msg)
	default:
		common.RespondWithError(w, code, err.Error())
	}
}

func (rs *Responder) entry(r *http.Request) *logrus.Entry {
	return rs.Log.WithFields(logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return common.NewError(common.ErrBadRequest, "request body is required")
		}
		return common.NewError(common.ErrBadRequest, "invalid JSON body: %v", err)
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

const maxMultipartMemory = 32 << 20

func parseMultipart(r *http.Request) error {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return common.NewError(common.ErrBadRequest, "invalid multipart body: %v", err)
	}
	return nil
}

// formJSON decodes a JSON-valued form field into v when it is present.
func formJSON(r *http.Request, field string, v any) (bool, error) {
	raw := r.FormValue(field)
	if raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, common.NewError(common.ErrBadRequest, "field %s: invalid JSON: %v", field, err)
	}
	return true, nil
}

func formFloat(r *http.Request, field string) (float64, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, common.NewValidationError(field + " must be a number")
	}
	return f, nil
}

func formInt(r *http.Request, field string) (int, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, common.NewValidationError(field + " must be a whole number")
	}
	return n, nil
}
