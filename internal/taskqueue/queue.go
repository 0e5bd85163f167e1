// Package taskqueue runs image-based extraction jobs out-of-band on a
// worker pool, with progress-tracked, cancellable tasks polled by id.
package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mispesos/engine/constants"
	"github.com/mispesos/engine/internal/common"
	"github.com/mispesos/engine/internal/interpret"
	"github.com/mispesos/engine/internal/metrics"
	"github.com/mispesos/engine/internal/recognize"
	"github.com/mispesos/engine/internal/storage"
)

// ErrDuplicateTask rejects a caller-assigned id that is already known.
var ErrDuplicateTask = errors.New("task id already exists")

// Queue executes extraction tasks: recognition → interpretation →
// optional persistence. It exclusively owns all task state; callers
// interact through Submit/Status/Cancel.
type Queue struct {
	recognizer recognize.TextRecognizer
	interp     *interpret.Interpreter
	store      storage.RecordStore // nil disables persistence
	logger     *slog.Logger

	workers int
	timeout time.Duration

	ch      chan string
	wg      sync.WaitGroup
	sending sync.WaitGroup
	once    sync.Once

	mu     sync.Mutex
	tasks  map[string]*taskEntry
	closed bool
}

// Option configures a Queue.
type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan string, n)
		}
	}
}

func WithTaskTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func New(recognizer recognize.TextRecognizer, interp *interpret.Interpreter, store storage.RecordStore, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		recognizer: recognizer,
		interp:     interp,
		store:      store,
		logger:     logger,
		workers:    4,
		timeout:    3 * time.Minute,
		ch:         make(chan string, 256),
		tasks:      make(map[string]*taskEntry),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for id := range q.ch {
					q.run(workerID, id)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Submit enqueues an extraction job for the image at imagePath and
// returns the task id. It never blocks beyond enqueue latency; a full
// channel applies backpressure.
func (q *Queue) Submit(_ context.Context, imagePath string, params Params) (string, error) {
	id := params.TaskID
	if id == "" {
		id = uuid.New().String()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", common.ErrShutdown
	}
	if _, exists := q.tasks[id]; exists {
		q.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateTask, id)
	}
	q.tasks[id] = &taskEntry{
		task: Task{
			ID:        id,
			State:     constants.TaskPending,
			CreatedAt: time.Now(),
		},
		imagePath: imagePath,
		params:    params,
	}
	// Registered under the lock so Shutdown waits for this send before
	// closing the channel.
	q.sending.Add(1)
	q.mu.Unlock()
	defer q.sending.Done()

	select {
	case q.ch <- id:
		q.logger.Info("task queued", "task_id", id, "image", imagePath)
	default:
		q.logger.Warn("queue full, applying backpressure", "task_id", id)
		q.ch <- id
	}
	return id, nil
}

// Status returns a snapshot for a task id.
func (q *Queue) Status(taskID string) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.tasks[taskID]
	if !ok {
		return Task{}, false
	}
	return e.task, true
}

// Cancel attempts to terminate queued or in-flight work. Queued tasks
// abort reliably; running tasks are cancelled cooperatively and may do
// more work before stopping. A terminal task returns false.
func (q *Queue) Cancel(taskID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.tasks[taskID]
	if !ok || e.task.State.Terminal() {
		return false
	}

	e.cancelled = true
	if e.task.State == constants.TaskPending {
		e.task.State = constants.TaskRevoked
		metrics.TasksTotal.WithLabelValues(string(constants.TaskRevoked)).Inc()
		q.logger.Info("task revoked before start", "task_id", taskID)
		return true
	}
	if e.cancel != nil {
		e.cancel()
	}
	q.logger.Info("task cancellation requested", "task_id", taskID)
	return true
}

// Shutdown stops intake and drains workers, bounded by ctx.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	// Submits already past the closed check may still be blocked in the
	// channel send; workers keep draining until those complete.
	q.sending.Wait()
	close(q.ch)

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}

// run executes one task through its progress steps. The temporary image
// artifact is removed on every exit path.
func (q *Queue) run(workerID int, taskID string) {
	q.mu.Lock()
	e, ok := q.tasks[taskID]
	if !ok {
		q.mu.Unlock()
		return
	}
	imagePath := e.imagePath

	// Cleanup is mandatory on every exit, including tasks revoked while
	// still queued; never leave orphaned input artifacts behind.
	defer func() {
		if err := os.Remove(imagePath); err != nil && !os.IsNotExist(err) {
			q.logger.Warn("failed to remove image artifact", "task_id", taskID, "path", imagePath, "error", err)
		} else {
			q.logger.Debug("image artifact removed", "task_id", taskID, "path", imagePath)
		}
	}()

	if e.task.State.Terminal() {
		q.mu.Unlock()
		return
	}
	if e.cancelled {
		e.task.State = constants.TaskRevoked
		q.mu.Unlock()
		metrics.TasksTotal.WithLabelValues(string(constants.TaskRevoked)).Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	e.cancel = cancel
	e.task.State = constants.TaskProgress
	e.task.ProgressStep = StepPreprocessing
	e.task.ProgressPercent = 10
	params := e.params
	q.mu.Unlock()
	defer cancel()

	ctx = common.WithTaskID(ctx, taskID)
	q.logger.Info("task started", "worker_id", workerID, "task_id", taskID)

	if _, err := os.Stat(imagePath); err != nil {
		q.fail(taskID, fmt.Errorf("image file not found: %w", err))
		return
	}

	if !q.progress(taskID, StepRecognition, 30) {
		return
	}
	res, err := q.recognizer.Recognize(ctx, imagePath)
	if err != nil {
		q.fail(taskID, fmt.Errorf("text recognition: %w", err))
		return
	}
	if res.Text == "" {
		q.fail(taskID, errors.New("no text recognized in image"))
		return
	}
	md := recognize.ScanMetadata(res.Text)

	if !q.progress(taskID, StepInterpretation, 70) {
		return
	}
	rec := q.interp.Interpret(ctx, res.Text)
	if !rec.Successful() {
		q.fail(taskID, errors.New("no amount found in recognized text"))
		return
	}

	result := &Result{
		Record:         rec,
		RecognizedText: res.Text,
		Metadata:       md,
	}

	if params.CreateRecord && q.store != nil {
		if !q.progress(taskID, StepPersistence, 90) {
			return
		}
		recordID, err := q.store.CreateRecord(ctx, rec, res.Text)
		if err != nil {
			q.fail(taskID, fmt.Errorf("create record: %w", err))
			return
		}
		result.RecordID = &recordID
	}

	q.succeed(taskID, result)
	q.logger.Info("task completed", "worker_id", workerID, "task_id", taskID,
		"amount", *rec.Amount, "category", rec.Category, "confidence", rec.Confidence)
}

// progress advances a non-terminal task; returns false when the task was
// cancelled in the meantime (the task is then marked revoked).
func (q *Queue) progress(taskID, step string, percent int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.tasks[taskID]
	if !ok || e.task.State.Terminal() {
		return false
	}
	if e.cancelled {
		e.task.State = constants.TaskRevoked
		metrics.TasksTotal.WithLabelValues(string(constants.TaskRevoked)).Inc()
		q.logger.Info("task revoked", "task_id", taskID, "at_step", step)
		return false
	}
	e.task.State = constants.TaskProgress
	e.task.ProgressStep = step
	e.task.ProgressPercent = percent
	return true
}

func (q *Queue) fail(taskID string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.tasks[taskID]
	if !ok || e.task.State.Terminal() {
		return
	}
	if e.cancelled {
		e.task.State = constants.TaskRevoked
		metrics.TasksTotal.WithLabelValues(string(constants.TaskRevoked)).Inc()
		return
	}
	e.task.State = constants.TaskFailure
	e.task.Err = err.Error()
	metrics.TasksTotal.WithLabelValues(string(constants.TaskFailure)).Inc()
	q.logger.Error("task failed", "task_id", taskID, "error", err)
}

func (q *Queue) succeed(taskID string, result *Result) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.tasks[taskID]
	if !ok || e.task.State.Terminal() {
		return
	}
	e.task.State = constants.TaskSuccess
	e.task.ProgressStep = StepDone
	e.task.ProgressPercent = 100
	e.task.Result = result
	metrics.TasksTotal.WithLabelValues(string(constants.TaskSuccess)).Inc()
}
