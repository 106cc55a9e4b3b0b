package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/elimu/core"
	appfs "github.com/trezcool/elimu/fs"
)

const (
	migrationsDir = "migrations"

	readyTimeout    = 30 * time.Second
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
)

// DB is the pooled database handle shared by the sqlx repositories.
type DB struct {
	*sqlx.DB
}

var _ core.Transactor = (*DB)(nil)

// BeginTx opens a transaction. The returned core.Tx is a *sqlx.Tx.
func (db *DB) BeginTx(ctx context.Context) (core.Tx, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func dsn(dbName string, admin bool, conf *core.Config) string {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Database.Engine,
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func connect(dbName string, admin bool, conf *core.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open(conf.Database.Engine, dsn(dbName, admin, conf))
	if err != nil {
		return nil, errors.Wrapf(err, "opening database %q", dbName)
	}
	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()
	if err = waitReady(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Open connects to the app database and waits for it to accept connections.
func Open(conf *core.Config) (*DB, error) {
	db, err := connect(conf.Database.Name, false, conf)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	return &DB{DB: db}, nil
}

// Wrap adapts an already open connection, e.g. one opened by a test container.
func Wrap(db *sqlx.DB) *DB {
	return &DB{DB: db}
}

// waitReady pings db with a linear backoff until it answers or ctx is done.
func waitReady(ctx context.Context, db *sqlx.DB) error {
	for delay := 100 * time.Millisecond; ; delay += 100 * time.Millisecond {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(err, "database not ready")
		case <-time.After(delay):
		}
	}
}

type provisionStep struct {
	what   string
	check  string
	arg    string
	create string
}

// provision runs the create statement of every step whose check query finds nothing.
func provision(db *sqlx.DB, steps ...provisionStep) error {
	for _, step := range steps {
		var found bool
		err := db.Get(&found, step.check, step.arg)
		if err != nil && errors.Cause(err) != sql.ErrNoRows {
			return errors.Wrapf(err, "looking up %s", step.what)
		}
		if found {
			continue
		}
		if _, err = db.Exec(step.create); err != nil {
			return errors.Wrapf(err, "creating %s", step.what)
		}
	}
	return nil
}

// CreateIfNotExist creates the app role with the admin credentials,
// then the app database owned by that role.
func CreateIfNotExist(conf *core.Config) error {
	dbc := conf.Database

	if dbc.User != "" {
		adminDB, err := connect("postgres", true, conf)
		if err != nil {
			return err
		}
		err = provision(adminDB, provisionStep{
			what:   "app role",
			check:  "SELECT true FROM pg_roles WHERE rolname = $1",
			arg:    dbc.User,
			create: fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD %s", pq.QuoteIdentifier(dbc.User), pq.QuoteLiteral(dbc.Password)),
		})
		_ = adminDB.Close()
		if err != nil {
			return err
		}
	}

	appDB, err := connect("postgres", false, conf)
	if err != nil {
		return err
	}
	defer func() { _ = appDB.Close() }()
	return provision(appDB, provisionStep{
		what:   "app database",
		check:  "SELECT true FROM pg_database WHERE datname = $1",
		arg:    dbc.Name,
		create: "CREATE DATABASE " + pq.QuoteIdentifier(dbc.Name),
	})
}

func init() {
	goose.SetBaseFS(appfs.FS)
}

// RunMigrations runs a goose command (up, down, status, redo, version...) against the embedded migrations.
func RunMigrations(db *DB, command string, args ...string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting migration dialect")
	}
	if err := goose.Run(command, db.DB.DB, migrationsDir, args...); err != nil {
		return errors.Wrapf(err, "running migrations %q", command)
	}
	return nil
}

// Migrate applies every pending migration.
func Migrate(db *DB) error {
	return RunMigrations(db, "up")
}
