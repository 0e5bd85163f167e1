// Package storage implements the record-persistence collaborator: it
// accepts finished structured records and returns identifiers. The
// interpretation core depends only on the RecordStore interface.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mispesos/engine/internal/record"
)

// StoredRecord is a persisted structured record.
type StoredRecord struct {
	ID            uuid.UUID
	Amount        float64
	Description   string
	Category      string
	PaymentMethod string
	Location      string
	TxDate        time.Time
	Confidence    float64
	Origin        string
	SourceText    string
	CreatedAt     time.Time
}

// RecordStore is the storage collaborator interface.
type RecordStore interface {
	// CreateRecord persists a successful record and returns its id.
	CreateRecord(ctx context.Context, rec record.Record, sourceText string) (uuid.UUID, error)
	// ListRecords returns records with TxDate inside the optional window.
	ListRecords(ctx context.Context, from, to *time.Time) ([]StoredRecord, error)
	Close() error
}

// txDate resolves a record's date offset against now, date-only UTC.
func txDate(rec record.Record, now time.Time) time.Time {
	d := now.UTC().AddDate(0, 0, rec.DateOffset)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
