package cookies

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/edumarket/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, name string) (*Cookie, error) {
	var (
		c       Cookie
		expires int64
		secure  int
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT name, value, expires_at, secure FROM cookies WHERE name = ?`, name).
		Scan(&c.Name, &c.Value, &expires, &secure)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cookie %s: %w", name, err)
	}
	c.ExpiresAt = time.Unix(expires, 0)
	c.Secure = secure != 0
	return &c, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, c Cookie) error {
	secure := 0
	if c.Secure {
		secure = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cookies (name, value, expires_at, secure) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value,
			expires_at = excluded.expires_at,
			secure = excluded.secure
	`, c.Name, c.Value, c.ExpiresAt.Unix(), secure)
	if err != nil {
		return fmt.Errorf("failed to put cookie %s: %w", c.Name, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, names ...string) error {
	for _, name := range names {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM cookies WHERE name = ?`, name); err != nil {
			return fmt.Errorf("failed to delete cookie %s: %w", name, err)
		}
	}
	return nil
}
