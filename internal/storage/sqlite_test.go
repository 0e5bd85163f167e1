package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mispesos/engine/constants"
	"github.com/mispesos/engine/internal/record"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "records.db")
	s, err := OpenSQLite(context.Background(), dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(amount float64) record.Record {
	return record.Record{
		Amount:        record.Amt(amount),
		Description:   "almuerzo ejecutivo",
		Category:      constants.Food,
		PaymentMethod: constants.Card,
		Confidence:    0.9,
		Origin:        record.OriginInference,
	}
}

func TestCreateAndListRecords(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreateRecord(ctx, sampleRecord(50000), "almuerzo 50k tarjeta")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	recs, err := s.ListRecords(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	got := recs[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, 50000.0, got.Amount)
	assert.Equal(t, "almuerzo ejecutivo", got.Description)
	assert.Equal(t, "food", got.Category)
	assert.Equal(t, "card", got.PaymentMethod)
	assert.Equal(t, "almuerzo 50k tarjeta", got.SourceText)
	assert.Equal(t, "inference", got.Origin)
}

func TestCreateRecordRejectsNoAmount(t *testing.T) {
	s := openTestStore(t)

	_, err := s.CreateRecord(context.Background(), record.Record{Confidence: 0.9}, "texto")
	assert.Error(t, err)
}

func TestDateOffsetResolution(t *testing.T) {
	s := openTestStore(t)
	fixed := time.Date(2026, 3, 15, 18, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	rec := sampleRecord(25000)
	rec.DateOffset = -1
	_, err := s.CreateRecord(context.Background(), rec, "ayer")
	require.NoError(t, err)

	recs, err := s.ListRecords(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), recs[0].TxDate)
}

func TestListRecordsWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	days := []int{-3, -1, 0}
	base := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	for _, d := range days {
		rec := sampleRecord(float64(1000 * (d + 4)))
		rec.DateOffset = d
		_, err := s.CreateRecord(ctx, rec, "")
		require.NoError(t, err)
	}

	from := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	recs, err := s.ListRecords(ctx, &from, &to)
	require.NoError(t, err)
	assert.Len(t, recs, 2, "record three days back falls outside the window")

	recs, err = s.ListRecords(ctx, &from, nil)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = s.ListRecords(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestListRecordsOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	for _, d := range []int{0, -2, -1} {
		rec := sampleRecord(1000)
		rec.DateOffset = d
		_, err := s.CreateRecord(ctx, rec, "")
		require.NoError(t, err)
	}

	recs, err := s.ListRecords(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.True(t, recs[0].TxDate.Before(recs[1].TxDate))
	assert.True(t, recs[1].TxDate.Before(recs[2].TxDate))
}
