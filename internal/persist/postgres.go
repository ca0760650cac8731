package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"
)

// PgConn is the part of *pgxpool.Pool the repository uses.
type PgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores one JSONB row per store.
type PostgresRepository struct {
	conn  PgConn
	table string
}

func NewPostgresRepository(conn PgConn, table string) *PostgresRepository {
	return &PostgresRepository{conn: conn, table: pgx.Identifier{table}.Sanitize()}
}

// NewPostgresPool connects to dsn and checks the connection.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, reductoerrors.NewConfigError("invalid postgres dsn", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the snapshot table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.conn.Exec(ctx, `
CREATE TABLE IF NOT EXISTS `+r.table+` (
  store_name text PRIMARY KEY,
  state jsonb NOT NULL,
  updated_at timestamptz NOT NULL DEFAULT now()
);`)
	if err != nil {
		return reductoerrors.NewPersistenceError("schema", r.table, err)
	}
	return nil
}

func (r *PostgresRepository) Save(ctx context.Context, store string, snapshot []byte) error {
	_, err := r.conn.Exec(ctx, `INSERT INTO `+r.table+`(store_name, state, updated_at) VALUES($1, $2, now())
        ON CONFLICT (store_name) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`, store, string(snapshot))
	if err != nil {
		return reductoerrors.NewPersistenceError("save", store, err)
	}
	return nil
}

func (r *PostgresRepository) Load(ctx context.Context, store string) ([]byte, error) {
	var raw []byte
	err := r.conn.QueryRow(ctx, `SELECT state FROM `+r.table+` WHERE store_name = $1`, store).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, reductoerrors.NewPersistenceError("load", store, ErrNoSnapshot)
	}
	if err != nil {
		return nil, reductoerrors.NewPersistenceError("load", store, err)
	}
	return raw, nil
}

var _ Repository = (*PostgresRepository)(nil)
