package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultTimeout = 10 * time.Second

// Postgres error codes mapped to domain errors.
const (
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
)

type Config struct {
	URL     string
	Timeout time.Duration
}

// Connect opens a pool and pings it.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// schema is applied in order by Migrate; every statement is idempotent.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`CREATE TABLE IF NOT EXISTS users (
		id                   BIGSERIAL PRIMARY KEY,
		name                 TEXT        NOT NULL,
		email                TEXT        NOT NULL UNIQUE,
		password_hash        TEXT        NOT NULL,
		role                 TEXT        NOT NULL CHECK (role IN ('ADMIN', 'CLINIC', 'PATIENT')),
		clinic_id            BIGINT      REFERENCES users (id) ON DELETE SET NULL,
		must_change_password BOOLEAN     NOT NULL DEFAULT FALSE,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (role = 'PATIENT' OR clinic_id IS NULL)
	)`,
	`CREATE INDEX IF NOT EXISTS users_clinic_idx ON users (clinic_id) WHERE clinic_id IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS visits (
		id         BIGSERIAL PRIMARY KEY,
		title      TEXT        NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time   TIMESTAMPTZ NOT NULL,
		type       TEXT        NOT NULL,
		status     TEXT        NOT NULL,
		notes      TEXT,
		patient_id BIGINT      NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		clinic_id  BIGINT      NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (start_time < end_time),
		CONSTRAINT visits_no_overlap EXCLUDE USING gist (
			clinic_id WITH =,
			tstzrange(start_time, end_time, '[)') WITH &&
		)
	)`,
	`CREATE INDEX IF NOT EXISTS visits_patient_idx ON visits (patient_id, start_time)`,
}

// Store bundles the Postgres-backed directory repositories.
type Store struct {
	Pool   *pgxpool.Pool
	Users  *UserRepository
	Visits *VisitRepository
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool, Users: NewUserRepository(pool), Visits: NewVisitRepository(pool)}
}

func (s *Store) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for i, stmt := range schema {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) Close(context.Context) error {
	s.Pool.Close()
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
