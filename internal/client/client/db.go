package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/edumarket/internal/client/migrations"
	"github.com/dmitrijs2005/edumarket/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/edumarket/internal/filex"
)

// Database is the opened local store with its repositories.
type Database struct {
	DB *sql.DB
	// Durable backs the session snapshot and evictable caches.
	Durable metadata.Repository
	// Local backs cart identifiers.
	Local metadata.Repository
}

func (d *Database) Close() error { return d.DB.Close() }

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// InitDatabase opens the SQLite file at dsn and brings its schema up to date.
func InitDatabase(ctx context.Context, dsn string) (*Database, error) {
	if err := filex.EnsureParentDir(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}
	// One writer at a time; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Database{
		DB:      db,
		Durable: metadata.NewSQLiteRepository(db, metadata.TableDurable),
		Local:   metadata.NewSQLiteRepository(db, metadata.TableLocal),
	}, nil
}
