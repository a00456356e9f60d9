package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maltedev/marketplace-harvester/internal/models"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS catalog_records (
	marketplace TEXT        NOT NULL,
	id          BIGINT      NOT NULL,
	namespace   TEXT        NOT NULL,
	doc         JSONB       NOT NULL,
	processed   BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (marketplace, id)
);
CREATE INDEX IF NOT EXISTS catalog_records_namespace_idx ON catalog_records (namespace, created_at);
`

type PostgresConfig struct {
	DSN         string
	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MinConns = cfg.MinConns
	if cfg.MaxConnLife > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLife
	}
	if cfg.MaxConnIdle > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdle
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Insert(ctx context.Context, rec *models.CanonicalRecord) (InsertResult, error) {
	doc, err := json.Marshal(rec)
	if err != nil {
		return Inserted, fmt.Errorf("failed to encode record: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO catalog_records (marketplace, id, namespace, doc, processed) VALUES ($1, $2, $3, $4, $5)`,
		rec.Marketplace, rec.ID, rec.Namespace, doc, rec.Processed)

	return ResultOf(translateError(err))
}

func (s *PostgresStore) Scan(ctx context.Context, namespace string, fn func(*models.CanonicalRecord) error) error {
	rows, err := s.pool.Query(ctx,
		`SELECT doc FROM catalog_records WHERE ($1 = '' OR namespace = $1) ORDER BY created_at, id`,
		namespace)
	if err != nil {
		return fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return fmt.Errorf("failed to scan record: %w", err)
		}

		var rec models.CanonicalRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			return fmt.Errorf("failed to decode record: %w", err)
		}

		if err := fn(&rec); err != nil {
			return err
		}
	}

	return rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// translateError maps a unique violation onto ErrDuplicateKey.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, pgErr.ConstraintName)
	}
	return err
}
