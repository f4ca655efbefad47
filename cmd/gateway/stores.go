package main

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mind-engage/mindengage-classroom/internal/config"
	"github.com/mind-engage/mindengage-classroom/internal/course"
	"github.com/mind-engage/mindengage-classroom/internal/db"
	"github.com/mind-engage/mindengage-classroom/internal/filegc"
	"github.com/mind-engage/mindengage-classroom/internal/material"
	"github.com/mind-engage/mindengage-classroom/internal/paper"
	"github.com/mind-engage/mindengage-classroom/internal/payment"
	"github.com/mind-engage/mindengage-classroom/internal/user"
)

// stores is one backend's implementation of every store.
type stores struct {
	users     user.Store
	courses   course.Store
	materials material.Store
	papers    paper.Store
	payments  payment.Store
	outbox    filegc.Outbox

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	if cfg.DBDriver == "mongo" {
		return openMongo(ctx, cfg)
	}
	return openSQL(ctx, cfg)
}

func openSQL(ctx context.Context, cfg config.Config) (*stores, error) {
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	return &stores{
		users:     user.NewSQLStore(dbh),
		courses:   course.NewSQLStore(dbh),
		materials: material.NewSQLStore(dbh),
		papers:    paper.NewSQLStore(dbh),
		payments:  payment.NewSQLStore(dbh),
		outbox:    filegc.NewSQLOutbox(dbh),
		ping:      dbh.PingContext,
		close:     func(context.Context) error { return dbh.Close() },
	}, nil
}

func openMongo(ctx context.Context, cfg config.Config) (s *stores, err error) {
	client, mdb, err := db.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = client.Disconnect(context.Background())
		}
	}()

	s = &stores{
		ping:  func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) },
		close: client.Disconnect,
	}
	outbox, err := filegc.NewMongoOutbox(ctx, mdb)
	if err != nil {
		return nil, err
	}
	s.outbox = outbox
	if s.users, err = user.NewMongoStore(ctx, mdb); err != nil {
		return nil, err
	}
	if s.courses, err = course.NewMongoStore(ctx, mdb, outbox); err != nil {
		return nil, err
	}
	if s.materials, err = material.NewMongoStore(ctx, mdb, outbox); err != nil {
		return nil, err
	}
	if s.papers, err = paper.NewMongoStore(ctx, mdb, outbox); err != nil {
		return nil, err
	}
	if s.payments, err = payment.NewMongoStore(ctx, mdb); err != nil {
		return nil, err
	}
	return s, nil
}
