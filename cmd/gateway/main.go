package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	api "github.com/mind-engage/mindengage-classroom/internal/api/http"
	auth "github.com/mind-engage/mindengage-classroom/internal/auth/middleware"
	"github.com/mind-engage/mindengage-classroom/internal/config"
	"github.com/mind-engage/mindengage-classroom/internal/course"
	"github.com/mind-engage/mindengage-classroom/internal/filegc"
	"github.com/mind-engage/mindengage-classroom/internal/grading"
	"github.com/mind-engage/mindengage-classroom/internal/logging"
	"github.com/mind-engage/mindengage-classroom/internal/mail"
	"github.com/mind-engage/mindengage-classroom/internal/material"
	"github.com/mind-engage/mindengage-classroom/internal/paper"
	"github.com/mind-engage/mindengage-classroom/internal/payment"
	"github.com/mind-engage/mindengage-classroom/internal/storage"
	"github.com/mind-engage/mindengage-classroom/internal/user"
)

func main() {
	cfg := config.FromEnv()
	log := logging.New(cfg)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Error("invalid configuration")
		os.Exit(1)
	}
	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("server stopped")
		os.Exit(1)
	}
}

func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	st, err := openStores(openCtx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.close(cctx); err != nil {
			log.WithError(err).Warn("closing database")
		}
	}()

	// --- Payment lock ---
	var locker payment.Locker = payment.NewLocalLocker()
	ready := st.ping
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		locker = payment.NewRedisLocker(rdb)
		ready = func(ctx context.Context) error {
			if err := st.ping(ctx); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		}
	}

	// --- Blobs ---
	blobs, err := storage.NewFSStore(cfg.UploadDir)
	if err != nil {
		return err
	}

	// --- Services ---
	users := user.NewService(st.users, log)
	courses := course.NewService(st.courses, log)
	materials := material.NewService(st.materials, st.payments, log)
	papers := paper.NewService(st.papers, grading.NewDefaultGrader(), api.StudentDirectory{Users: users}, log)
	payments := payment.NewService(st.payments,
		api.Catalog{Courses: courses, Materials: materials, Papers: papers},
		locker,
		mail.New(cfg.SendGridAPIKey, cfg.AppName, cfg.MailFrom, log),
		api.Contacts{Users: users},
		cfg.PayHere, log)
	switch {
	case cfg.PayHere.MerchantID == "":
		log.Warn("PAYHERE_MERCHANT_ID not set, payments are disabled")
	case cfg.PayHere.Sandbox:
		log.Warn("PayHere sandbox is on, students can mark their own orders paid")
	}

	if err := users.BootstrapAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return err
	}

	// --- File GC ---
	var wg sync.WaitGroup
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer func() {
		stopSweep()
		wg.Wait()
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		filegc.NewSweeper(st.outbox, blobs, log, cfg.FileGCEvery).Start(sweepCtx)
	}()

	// --- HTTP ---
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Deps{
			Log:           log,
			Production:    cfg.Production(),
			ClientOrigins: cfg.ClientOrigins,
			Auth:          auth.NewAuthService(cfg.JWTSecret, cfg.JWTTTL),
			Users:         users,
			Courses:       courses,
			Materials:     materials,
			Papers:        papers,
			Payments:      payments,
			Uploader:      storage.NewUploader(blobs),
			Ready:         ready,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "env": cfg.Env, "db": cfg.DBDriver}).Info("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
