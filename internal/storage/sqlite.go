package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mispesos/engine/internal/record"
)

// SQLiteStore persists records in a local SQLite database. Used for
// development and tests; the interface matches the Postgres store.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	id             TEXT PRIMARY KEY,
	amount         REAL NOT NULL,
	description    TEXT NOT NULL,
	category       TEXT NOT NULL,
	payment_method TEXT NOT NULL,
	location       TEXT NOT NULL DEFAULT '',
	tx_date        TEXT NOT NULL,
	confidence     REAL NOT NULL,
	origin         TEXT NOT NULL,
	source_text    TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL
)`

// OpenSQLite opens (or creates) a SQLite database at dsn, e.g.
// "file:records.db" or "file::memory:?cache=shared".
func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	logger.Info("sqlite store ready", "dsn", dsn)
	return &SQLiteStore{db: db, logger: logger, now: time.Now}, nil
}

func (s *SQLiteStore) CreateRecord(ctx context.Context, rec record.Record, sourceText string) (uuid.UUID, error) {
	if !rec.Successful() {
		return uuid.Nil, errors.New("record has no amount")
	}

	id := uuid.New()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (id, amount, description, category, payment_method, location, tx_date, confidence, origin, source_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), *rec.Amount, rec.Description, string(rec.Category), string(rec.PaymentMethod),
		rec.Location, txDate(rec, s.now()).Format(time.DateOnly), rec.Confidence, string(rec.Origin),
		sourceText, s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert record: %w", err)
	}

	s.logger.Info("storage.record.created", "record_id", id, "amount", *rec.Amount)
	return id, nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, from, to *time.Time) ([]StoredRecord, error) {
	query := `SELECT id, amount, description, category, payment_method, location, tx_date, confidence, origin, source_text, created_at
		FROM records WHERE 1=1`
	args := []any{}
	if from != nil {
		query += " AND tx_date >= ?"
		args = append(args, from.Format(time.DateOnly))
	}
	if to != nil {
		query += " AND tx_date <= ?"
		args = append(args, to.Format(time.DateOnly))
	}
	query += " ORDER BY tx_date, created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warn("rows close error", "error", err)
		}
	}()

	var out []StoredRecord
	for rows.Next() {
		var (
			r            StoredRecord
			idStr        string
			txDateStr    string
			createdAtStr string
		)
		if err := rows.Scan(&idStr, &r.Amount, &r.Description, &r.Category, &r.PaymentMethod,
			&r.Location, &txDateStr, &r.Confidence, &r.Origin, &r.SourceText, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if r.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("parse record id: %w", err)
		}
		if r.TxDate, err = time.Parse(time.DateOnly, txDateStr); err != nil {
			return nil, fmt.Errorf("parse tx_date: %w", err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
