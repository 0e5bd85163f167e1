// Package server exposes the interpretation engine over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mispesos/engine/internal/common"
	"github.com/mispesos/engine/internal/export"
	"github.com/mispesos/engine/internal/interpret"
	"github.com/mispesos/engine/internal/metrics"
	"github.com/mispesos/engine/internal/record"
	"github.com/mispesos/engine/internal/taskqueue"
)

// Server provides the HTTP endpoints for message interpretation,
// image-extraction tasks and record export.
type Server struct {
	echo     *echo.Echo
	interp   *interpret.Interpreter
	queue    *taskqueue.Queue
	exporter *export.Service
	agg      *metrics.Aggregator
	logger   *slog.Logger

	maxImageBytes int64
	uploadDir     string
}

// Config holds the HTTP surface settings.
type Config struct {
	MaxImageBytes int64
	UploadDir     string // defaults to os.TempDir()
}

func New(interp *interpret.Interpreter, queue *taskqueue.Queue, exporter *export.Service, agg *metrics.Aggregator, logger *slog.Logger, cfg Config) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 10 << 20
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = os.TempDir()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http.request",
				"method", c.Request().Method,
				"uri", c.Request().RequestURI,
				"status", c.Response().Status,
				"elapsed_ms", time.Since(start).Milliseconds(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
			return err
		}
	})

	s := &Server{
		echo:          e,
		interp:        interp,
		queue:         queue,
		exporter:      exporter,
		agg:           agg,
		logger:        logger,
		maxImageBytes: cfg.MaxImageBytes,
		uploadDir:     cfg.UploadDir,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/interpret", s.handleInterpret)
	v1.POST("/tasks", s.handleSubmitTask)
	v1.GET("/tasks/:id", s.handleTaskStatus)
	v1.DELETE("/tasks/:id", s.handleCancelTask)
	v1.GET("/export", s.handleExport)
}

// InterpretRequest is the body for POST /api/v1/interpret.
type InterpretRequest struct {
	Message string `json:"message"`
}

// RecordResponse is the JSON shape of an extracted record.
type RecordResponse struct {
	Amount        *float64 `json:"amount"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	PaymentMethod string   `json:"payment_method"`
	Location      string   `json:"location,omitempty"`
	DateOffset    int      `json:"date_offset"`
	Confidence    float64  `json:"confidence"`
	Origin        string   `json:"origin"`
	Successful    bool     `json:"successful"`
}

func toRecordResponse(r record.Record) RecordResponse {
	return RecordResponse{
		Amount:        r.Amount,
		Description:   r.Description,
		Category:      string(r.Category),
		PaymentMethod: string(r.PaymentMethod),
		Location:      r.Location,
		DateOffset:    r.DateOffset,
		Confidence:    r.Confidence,
		Origin:        string(r.Origin),
		Successful:    r.Successful(),
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	h := s.agg.Health()
	code := http.StatusOK
	if h.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, h)
}

func (s *Server) handleInterpret(c echo.Context) error {
	var req InterpretRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	rec := s.interp.Interpret(c.Request().Context(), req.Message)
	return c.JSON(http.StatusOK, toRecordResponse(rec))
}

// TaskSubmitResponse is the body returned by POST /api/v1/tasks.
type TaskSubmitResponse struct {
	TaskID string `json:"task_id"`
	State  string `json:"state"`
}

func (s *Server) handleSubmitTask(c echo.Context) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "image file is required")
	}
	if fh.Size > s.maxImageBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image exceeds size limit")
	}

	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read upload")
	}
	defer src.Close()

	ext := filepath.Ext(fh.Filename)
	dst, err := os.CreateTemp(s.uploadDir, "upload-*"+ext)
	if err != nil {
		s.logger.Error("task.upload.tempfile", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot store upload")
	}
	path := dst.Name()
	if _, err := io.Copy(dst, io.LimitReader(src, s.maxImageBytes+1)); err != nil {
		dst.Close()
		os.Remove(path)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot store upload")
	}
	dst.Close()

	createRecord := c.QueryParam("persist") != "false"
	id, err := s.queue.Submit(c.Request().Context(), path, taskqueue.Params{CreateRecord: createRecord})
	if err != nil {
		os.Remove(path)
		if errors.Is(err, common.ErrShutdown) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "queue is shutting down")
		}
		return echo.NewHTTPError(http.StatusTooManyRequests, "queue is full")
	}
	return c.JSON(http.StatusAccepted, TaskSubmitResponse{TaskID: id, State: "PENDING"})
}

// TaskStatusResponse is the body returned by GET /api/v1/tasks/:id.
type TaskStatusResponse struct {
	TaskID          string          `json:"task_id"`
	State           string          `json:"state"`
	ProgressStep    string          `json:"progress_step,omitempty"`
	ProgressPercent int             `json:"progress_percent"`
	Error           string          `json:"error,omitempty"`
	Record          *RecordResponse `json:"record,omitempty"`
	RecognizedText  string          `json:"recognized_text,omitempty"`
	RecordID        string          `json:"record_id,omitempty"`
}

func (s *Server) handleTaskStatus(c echo.Context) error {
	t, ok := s.queue.Status(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown task")
	}
	resp := TaskStatusResponse{
		TaskID:          t.ID,
		State:           string(t.State),
		ProgressStep:    t.ProgressStep,
		ProgressPercent: t.ProgressPercent,
		Error:           t.Err,
	}
	if t.Result != nil {
		rec := toRecordResponse(t.Result.Record)
		resp.Record = &rec
		resp.RecognizedText = t.Result.RecognizedText
		if t.Result.RecordID != nil {
			resp.RecordID = t.Result.RecordID.String()
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCancelTask(c echo.Context) error {
	id := c.Param("id")
	if !s.queue.Cancel(id) {
		return echo.NewHTTPError(http.StatusConflict, "task not found or already finished")
	}
	return c.JSON(http.StatusOK, map[string]string{"task_id": id, "state": "REVOKED"})
}

func (s *Server) handleExport(c echo.Context) error {
	if s.exporter == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "export requires a record store")
	}
	from, err := parseDateParam(c.QueryParam("from"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "from must be YYYY-MM-DD")
	}
	to, err := parseDateParam(c.QueryParam("to"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "to must be YYYY-MM-DD")
	}
	data, err := s.exporter.ExportRecordsXLSX(c.Request().Context(), from, to)
	if err != nil {
		s.logger.Error("export.failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "export failed")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="records.xlsx"`)
	return c.Blob(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func parseDateParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Start blocks serving on addr until Shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
