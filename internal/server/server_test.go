package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mispesos/engine/constants"
	"github.com/mispesos/engine/internal/export"
	"github.com/mispesos/engine/internal/interpret"
	"github.com/mispesos/engine/internal/metrics"
	"github.com/mispesos/engine/internal/recognize"
	"github.com/mispesos/engine/internal/record"
	"github.com/mispesos/engine/internal/storage"
	"github.com/mispesos/engine/internal/taskqueue"
)

type cannedClient struct {
	rec record.Record
	err error
}

func (c *cannedClient) Infer(context.Context, string) (record.Record, error) {
	return c.rec, c.err
}

type cannedRecognizer struct {
	text string
}

func (c *cannedRecognizer) Recognize(context.Context, string) (recognize.Result, error) {
	return recognize.Result{Text: c.text, Confidence: 0.8, Method: "image-ocr"}, nil
}

func newTestServer(t *testing.T, client interpret.InferenceClient, recText string) (*Server, *taskqueue.Queue, *storage.SQLiteStore) {
	t.Helper()

	store, err := storage.OpenSQLite(context.Background(), "file:"+filepath.Join(t.TempDir(), "s.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	retrier := interpret.NewRetryingInterpreter(client, interpret.NewPatternExtractor(interpret.PatternConfig{}), interpret.RetryConfig{},
		nil, interpret.WithSleep(func(context.Context, time.Duration) error { return nil }))
	agg := metrics.NewAggregator(nil)
	interp := interpret.NewInterpreter(interpret.NewResponseCache(), retrier, agg, nil)

	q := taskqueue.New(&cannedRecognizer{text: recText}, interp, store, nil, taskqueue.WithWorkers(1))
	t.Cleanup(func() { q.Shutdown(context.Background()) })

	srv := New(interp, q, export.NewService(store, nil), agg, nil, Config{UploadDir: t.TempDir()})
	return srv, q, store
}

func acceptingClient(amount float64) *cannedClient {
	return &cannedClient{rec: record.Record{
		Amount:        record.Amt(amount),
		Description:   "almuerzo",
		Category:      constants.Food,
		PaymentMethod: constants.Card,
		Confidence:    0.9,
	}}
}

func TestHandleHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, acceptingClient(50000), "TOTAL 50000")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var h metrics.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "healthy", h.Status)
}

func TestHandleMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, acceptingClient(50000), "TOTAL 50000")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mispesos_")
}

func TestHandleInterpret(t *testing.T) {
	srv, _, _ := newTestServer(t, acceptingClient(50000), "TOTAL 50000")

	body := strings.NewReader(`{"message": "almuerzo 50k tarjeta"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/interpret", body)
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp RecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Amount)
	assert.Equal(t, 50000.0, *resp.Amount)
	assert.Equal(t, "food", resp.Category)
	assert.Equal(t, "inference", resp.Origin)
	assert.True(t, resp.Successful)
}

func TestHandleInterpretFallback(t *testing.T) {
	srv, _, _ := newTestServer(t, &cannedClient{err: errors.New("down")}, "TOTAL 50000")

	body := strings.NewReader(`{"message": "pagué 25000 de uber efectivo ayer"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/interpret", body)
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp RecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Amount)
	assert.Equal(t, 25000.0, *resp.Amount)
	assert.Equal(t, "transport", resp.Category)
	assert.Equal(t, "cash", resp.PaymentMethod)
	assert.Equal(t, -1, resp.DateOffset)
	assert.Equal(t, "pattern-fallback", resp.Origin)
}

func TestHandleInterpretBadRequest(t *testing.T) {
	srv, _, _ := newTestServer(t, acceptingClient(50000), "TOTAL 50000")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/interpret", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartImage(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "receipt.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHandleSubmitAndPollTask(t *testing.T) {
	srv, q, _ := newTestServer(t, acceptingClient(50000), "SUPERMERCADO TOTAL 50000")

	body, contentType := multipartImage(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var submitted TaskSubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	require.NotEmpty(t, submitted.TaskID)

	require.Eventually(t, func() bool {
		task, ok := q.Status(submitted.TaskID)
		return ok && task.State.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+submitted.TaskID, nil)
	rec = httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status TaskStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "SUCCESS", status.State)
	assert.Equal(t, 100, status.ProgressPercent)
	require.NotNil(t, status.Record)
	assert.Equal(t, 50000.0, *status.Record.Amount)
	assert.NotEmpty(t, status.RecordID, "persisted by default")
}

func TestHandleTaskStatusNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t, acceptingClient(50000), "TOTAL 50000")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/missing", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCancelTaskConflict(t *testing.T) {
	srv, _, _ := newTestServer(t, acceptingClient(50000), "TOTAL 50000")

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/tasks/missing", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleExport(t *testing.T) {
	srv, _, store := newTestServer(t, acceptingClient(50000), "TOTAL 50000")

	_, err := store.CreateRecord(context.Background(), record.Record{
		Amount:        record.Amt(50000),
		Description:   "almuerzo",
		Category:      constants.Food,
		PaymentMethod: constants.Card,
		Confidence:    0.9,
		Origin:        record.OriginInference,
	}, "texto")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/export", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "records.xlsx")
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestHandleExportBadDate(t *testing.T) {
	srv, _, _ := newTestServer(t, acceptingClient(50000), "TOTAL 50000")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/export?from=not-a-date", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
