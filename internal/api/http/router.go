package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	auth "github.com/mind-engage/mindengage-classroom/internal/auth/middleware"
	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/course"
	"github.com/mind-engage/mindengage-classroom/internal/logging"
	"github.com/mind-engage/mindengage-classroom/internal/material"
	"github.com/mind-engage/mindengage-classroom/internal/paper"
	"github.com/mind-engage/mindengage-classroom/internal/payment"
	"github.com/mind-engage/mindengage-classroom/internal/rbac"
	"github.com/mind-engage/mindengage-classroom/internal/storage"
	"github.com/mind-engage/mindengage-classroom/internal/user"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Log           logrus.FieldLogger
	Production    bool
	ClientOrigins []string

	Auth      *auth.AuthService
	Users     *user.Service
	Courses   *course.Service
	Materials *material.Service
	Papers    *paper.Service
	Payments  *payment.Service
	Uploader  *storage.Uploader

	// Ready reports whether backing stores answer; nil means always ready.
	Ready func(ctx context.Context) error
}

func NewRouter(d Deps) http.Handler {
	rs := &Responder{Log: d.Log, Production: d.Production}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.RequestLogger(d.Log), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.ClientOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", ReadyHandler(d.Ready, rs))

	r.Route("/api", func(api chi.Router) {
		// Public
		api.Group(func(pub chi.Router) {
			pub.Use(middleware.Timeout(30 * time.Second))
			pub.Post("/auth/register", RegisterHandler(d.Users, d.Auth, rs))
			pub.Post("/auth/login", LoginHandler(d.Users, d.Auth, rs))
			pub.Post("/payments/notify", PaymentNotifyHandler(d.Payments, rs))
		})
		api.Get("/uploads/*", ServeUploadsHandler(d.Uploader.Store(), rs))

		// Protected API (JWT -> stored role in context -> RBAC)
		api.Group(func(pr chi.Router) {
			pr.Use(auth.JWTMiddleware(d.Auth), auth.AttachRoleFromDB(d.Users))

			pr.Get("/auth/me", MeHandler(d.Users, rs))

			pr.With(rbac.Require("users:list")).Get("/users", ListUsersHandler(d.Users, rs))
			pr.With(rbac.Require("users:create")).Post("/users", CreateStaffHandler(d.Users, rs))
			pr.With(rbac.Require("users:update_role")).Put("/users/{userID}/role", UpdateUserRoleHandler(d.Users, rs))
			pr.With(rbac.Require("user:set_student_type")).
				Put("/users/{userID}/student-type", SetStudentTypeHandler(d.Users, rs))
			pr.With(rbac.Require("user:change_password")).
				Post("/users/change-password", ChangePasswordHandler(d.Users, rs))

			pr.With(rbac.Require("course:view")).Get("/courses", ListCoursesHandler(d.Courses, rs))
			pr.With(rbac.Require("course:view")).Get("/courses/{courseID}", GetCourseHandler(d.Courses, rs))
			pr.With(rbac.Require("course:create")).Post("/courses", CreateCourseHandler(d.Courses, rs))
			pr.With(rbac.Require("course:update")).Put("/courses/{courseID}", UpdateCourseHandler(d.Courses, rs))
			pr.With(rbac.Require("course:delete")).Delete("/courses/{courseID}", DeleteCourseHandler(d.Courses, rs))

			for _, kind := range []material.Kind{material.KindTute, material.KindVideo} {
				base := "/" + string(kind) + "s"
				perm := string(kind) + ":"
				pr.With(rbac.Require("material:view")).
					Get(base, ListMaterialsHandler(kind, d.Materials, d.Users, rs))
				pr.With(rbac.Require("material:view")).
					Get(base+"/{id}", GetMaterialHandler(kind, d.Materials, d.Users, rs))
				pr.With(rbac.Require(perm+"create")).
					Post(base, CreateMaterialHandler(kind, d.Materials, d.Uploader, rs))
				pr.With(rbac.Require(perm+"update")).
					Put(base+"/{id}", UpdateMaterialHandler(kind, d.Materials, d.Uploader, rs))
				pr.With(rbac.Require(perm+"delete")).
					Delete(base+"/{id}", DeleteMaterialHandler(kind, d.Materials, rs))
			}

			upload := UploadHandler(d.Uploader, rs)
			for _, t := range storage.UploadTypes() {
				pr.With(rbac.Require("upload:"+string(t)), storage.Tag(t)).Post("/uploads/"+string(t), upload)
			}

			pr.With(rbac.Require("paper:view")).Get("/papers", ListPapersHandler(d.Papers, d.Users, rs))
			pr.With(rbac.Require("paper:view")).Get("/papers/{paperID}", GetPaperHandler(d.Papers, d.Users, rs))
			pr.With(rbac.Require("paper:create")).Post("/papers", CreatePaperHandler(d.Papers, d.Uploader, rs))
			pr.With(rbac.Require("paper:update")).Put("/papers/{paperID}", UpdatePaperHandler(d.Papers, d.Uploader, rs))
			pr.With(rbac.Require("paper:delete")).Delete("/papers/{paperID}", DeletePaperHandler(d.Papers, rs))
			pr.With(rbac.Require("paper:submit")).
				Post("/papers/{paperID}/submit", SubmitPaperHandler(d.Papers, d.Users, d.Uploader, rs))
			pr.With(rbac.RequireAny("attempt:view-all", "attempt:view-own")).
				Get("/papers/{paperID}/results", PaperResultsHandler(d.Papers, rs))
			pr.With(rbac.Require("attempt:grade")).
				Put("/papers/{paperID}/attempts/{attemptID}/marks", UpdateMarksHandler(d.Papers, rs))
			pr.With(rbac.Require("attempt:grade")).
				Post("/papers/{paperID}/attempts/{attemptID}/review", ReviewAttemptHandler(d.Papers, d.Uploader, rs))
			pr.With(rbac.Require("attempt:view-own")).Get("/attempts/mine", MyAttemptsHandler(d.Papers, rs))

			pr.With(rbac.Require("payment:create")).Post("/payments/initiate", InitiatePaymentHandler(d.Payments, rs))
			pr.With(rbac.Require("payment:create")).Post("/payments/verify-sandbox", VerifySandboxHandler(d.Payments, rs))
			pr.With(rbac.Require("payment:view-own")).Get("/payments/status", PaymentStatusHandler(d.Payments, rs))
			pr.With(rbac.Require("payment:view-own")).Get("/payments/mine", MyPaymentsHandler(d.Payments, rs))
		})
	})
	return r
}

// GET /readyz
func ReadyHandler(ready func(ctx context.Context) error, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				rs.Log.WithError(err).Warn("not ready")
				common.RespondWithError(w, http.StatusServiceUnavailable, "not ready")
				return
			}
		}
		rs.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
