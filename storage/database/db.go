package database

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mwalefaith2021/jjschool/core"
	"github.com/mwalefaith2021/jjschool/core/admission"
	"github.com/mwalefaith2021/jjschool/core/fee"
	"github.com/mwalefaith2021/jjschool/core/payment"
	"github.com/mwalefaith2021/jjschool/core/signup"
	"github.com/mwalefaith2021/jjschool/core/user"
	inmemdb "github.com/mwalefaith2021/jjschool/storage/database/inmem"
	mongodb "github.com/mwalefaith2021/jjschool/storage/database/mongo"
	sqlxrepos "github.com/mwalefaith2021/jjschool/storage/database/sqlx"
)

// Engines
const (
	EngineMongo    = "mongodb"
	EnginePostgres = "postgres"
	EngineMemory   = "memory"
)

// Store bundles the repositories of one storage engine.
type Store struct {
	Engine     string
	Users      user.Repository
	Admissions admission.Repository
	Signups    signup.Repository
	Payments   payment.Repository
	Fees       fee.Repository

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
	setup func(ctx context.Context) error
}

func (s *Store) Ping(ctx context.Context) error  { return s.ping(ctx) }
func (s *Store) Close(ctx context.Context) error { return s.close(ctx) }

// Setup creates what the engine needs before serving: indexes on MongoDB, migrations on PostgreSQL.
func (s *Store) Setup(ctx context.Context) error { return s.setup(ctx) }

func noop(context.Context) error { return nil }

// NewMemoryStore returns a store that keeps everything in process memory.
func NewMemoryStore() *Store {
	db := inmemdb.Open()
	return &Store{
		Engine:     EngineMemory,
		Users:      inmemdb.NewUserRepository(db),
		Admissions: inmemdb.NewAdmissionRepository(db),
		Signups:    inmemdb.NewSignupRepository(db),
		Payments:   inmemdb.NewPaymentRepository(db),
		Fees:       inmemdb.NewFeeRepository(db),
		ping:       db.Ping,
		close:      db.Close,
		setup:      noop,
	}
}

// Open connects to the engine selected by conf.Database.Engine.
// With conf.Database.MigrateOnBoot set, the store is also set up.
func Open(ctx context.Context, conf *core.Config, logger core.Logger) (*Store, error) {
	var (
		store *Store
		err   error
	)
	switch conf.Database.Engine {
	case EngineMemory:
		store = NewMemoryStore()
	case EngineMongo, "":
		store, err = openMongo(ctx, conf)
	case EnginePostgres:
		store, err = openPostgres(ctx, conf)
	default:
		return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("database opened", map[string]interface{}{"engine": store.Engine, "name": conf.Database.Name})

	if conf.Database.MigrateOnBoot {
		if err = store.Setup(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, errors.Wrap(err, "setting up database")
		}
	}
	return store, nil
}

func openMongo(ctx context.Context, conf *core.Config) (*Store, error) {
	db, err := mongodb.Open(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &Store{
		Engine:     EngineMongo,
		Users:      mongodb.NewUserRepository(db),
		Admissions: mongodb.NewAdmissionRepository(db),
		Signups:    mongodb.NewSignupRepository(db),
		Payments:   mongodb.NewPaymentRepository(db),
		Fees:       mongodb.NewFeeRepository(db),
		ping:       db.Ping,
		close:      db.Close,
		setup:      db.EnsureIndexes,
	}, nil
}

func openPostgres(ctx context.Context, conf *core.Config) (*Store, error) {
	db, err := sqlxrepos.Open(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &Store{
		Engine:     EnginePostgres,
		Users:      sqlxrepos.NewUserRepository(db),
		Admissions: sqlxrepos.NewAdmissionRepository(db),
		Signups:    sqlxrepos.NewSignupRepository(db),
		Payments:   sqlxrepos.NewPaymentRepository(db),
		Fees:       sqlxrepos.NewFeeRepository(db),
		ping:       db.PingContext,
		close:      func(context.Context) error { return db.Close() },
		setup:      func(ctx context.Context) error { return sqlxrepos.Migrate(ctx, db) },
	}, nil
}

// Migrate runs a migration command on the configured engine.
// PostgreSQL accepts any goose command; MongoDB and memory only know "up".
func Migrate(ctx context.Context, conf *core.Config, command string, args ...string) error {
	switch conf.Database.Engine {
	case EnginePostgres:
		db, err := sqlxrepos.Open(ctx, conf)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		return sqlxrepos.RunMigrations(ctx, db, command, args...)
	case EngineMongo, "":
		if command != "up" {
			return errors.Errorf("mongodb only supports the \"up\" migration, got %q", command)
		}
		db, err := mongodb.Open(ctx, conf)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close(ctx) }()
		return db.EnsureIndexes(ctx)
	case EngineMemory:
		return nil
	}
	return errors.Errorf("unknown database engine %q", conf.Database.Engine)
}
