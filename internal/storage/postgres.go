package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mispesos/engine/internal/record"
)

// PostgresConfig mirrors the pool settings the daemon exposes.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// PostgresStore persists records in Postgres via pgx.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS records (
	id             UUID PRIMARY KEY,
	amount         NUMERIC(14,2) NOT NULL,
	description    TEXT NOT NULL,
	category       TEXT NOT NULL,
	payment_method TEXT NOT NULL,
	location       TEXT NOT NULL DEFAULT '',
	tx_date        DATE NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL,
	origin         TEXT NOT NULL,
	source_text    TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// OpenPostgres creates a pgx pool and ensures the records table exists.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database")

	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "expensed"

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	logger.Info("successfully connected to database")
	return &PostgresStore{pool: pool, logger: logger, now: time.Now}, nil
}

// HealthCheck pings the pool to catch DSN issues early.
func (s *PostgresStore) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) CreateRecord(ctx context.Context, rec record.Record, sourceText string) (uuid.UUID, error) {
	if !rec.Successful() {
		return uuid.Nil, errors.New("record has no amount")
	}

	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO records (id, amount, description, category, payment_method, location, tx_date, confidence, origin, source_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, *rec.Amount, rec.Description, string(rec.Category), string(rec.PaymentMethod),
		rec.Location, txDate(rec, s.now()), rec.Confidence, string(rec.Origin), sourceText, s.now().UTC(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert record: %w", err)
	}

	s.logger.Info("storage.record.created", "record_id", id, "amount", *rec.Amount)
	return id, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, from, to *time.Time) ([]StoredRecord, error) {
	query := `SELECT id, amount, description, category, payment_method, location, tx_date, confidence, origin, source_text, created_at
		FROM records WHERE 1=1`
	args := []any{}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND tx_date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND tx_date <= $%d", len(args))
	}
	query += " ORDER BY tx_date, created_at"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []StoredRecord
	for rows.Next() {
		var r StoredRecord
		if err := rows.Scan(&r.ID, &r.Amount, &r.Description, &r.Category, &r.PaymentMethod,
			&r.Location, &r.TxDate, &r.Confidence, &r.Origin, &r.SourceText, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
