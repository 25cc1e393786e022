package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"clothingrental/internal/domain"
	"clothingrental/internal/events"
	"clothingrental/internal/metrics"
	"clothingrental/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskUpsert       = "upsert"
	TaskUpdateStatus = "update_status"
)

var ErrQueueFull = errors.New("sync queue is full")

// SyncWorker переносит брони в таблицу Google Sheets. Задачи идут через
// Redis-список, если он настроен, иначе через локальный канал.
type SyncWorker struct {
	sheets        domain.SheetsWriter
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	logger        *zerolog.Logger

	mu          sync.Mutex
	deadLetters []models.SyncTask
	timers      sync.WaitGroup
}

// NewSyncWorker builds a worker with sane defaults.
func NewSyncWorker(sheets domain.SheetsWriter, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SyncWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &SyncWorker{
		sheets:        sheets,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.SyncTask, models.WorkerQueueSize),
		redisQueueKey: "sheets:queue",
		deadLetterKey: "sheets:deadletter",
		pollInterval:  2 * time.Second,
		logger:        logger,
	}
}

// HandleEvent turns booking events into sync tasks. Meant for EventBus.Subscribe.
func (w *SyncWorker) HandleEvent(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := event.Decode(&payload); err != nil {
		return fmt.Errorf("decode %s: %w", event.Type, err)
	}

	task := models.SyncTask{BookingID: payload.BookingID}
	switch event.Type {
	case events.EventBookingCreated:
		task.TaskType = TaskUpsert
		task.Booking = &models.Booking{
			ID:            payload.BookingID,
			ProductID:     payload.ItemID,
			CustomerName:  payload.CustomerName,
			CustomerEmail: payload.CustomerEmail,
			CustomerPhone: payload.CustomerPhone,
			FromDate:      payload.FromDate,
			ToDate:        payload.ToDate,
			Status:        models.BookingStatus(payload.Status),
			CreatedAt:     payload.ChangedAt,
		}
	case events.EventBookingStatusChanged:
		task.TaskType = TaskUpdateStatus
		task.Status = payload.Status
	default:
		return nil
	}

	if err := w.EnqueueTask(context.Background(), task); err != nil {
		w.logger.Error().Err(err).Str("booking_id", payload.BookingID).Str("task", task.TaskType).Msg("sheets enqueue error")
		return err
	}
	return nil
}

// EnqueueTask schedules task via redis or the in-memory queue.
func (w *SyncWorker) EnqueueTask(ctx context.Context, task models.SyncTask) error {
	if task.TaskType == "" {
		return errors.New("task type is required")
	}
	if task.BookingID == "" && task.Booking != nil {
		task.BookingID = task.Booking.ID
	}
	if task.BookingID == "" {
		return errors.New("booking id is required")
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	return w.push(ctx, task)
}

func (w *SyncWorker) push(ctx context.Context, task models.SyncTask) error {
	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Msg("redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
		return nil
	default:
		w.logger.Error().Str("task_id", task.ID).Msg("in-memory queue full, task dropped")
		return ErrQueueFull
	}
}

// Start launches main loop; stops when ctx is done.
func (w *SyncWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("sync worker started")
	defer w.logger.Info().Msg("sync worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case t := <-w.queue:
			w.processTask(ctx, &t)
		case <-time.After(w.pollInterval):
		}
	}
}

// Wait blocks until pending retry timers have fired.
func (w *SyncWorker) Wait() {
	w.timers.Wait()
}

// DeadLetters returns tasks that exhausted their retries in this process.
func (w *SyncWorker) DeadLetters() []models.SyncTask {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.SyncTask(nil), w.deadLetters...)
}

func (w *SyncWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *SyncWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, redis.Nil) {
			return models.SyncTask{}, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP error")
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *SyncWorker) processTask(ctx context.Context, task *models.SyncTask) {
	if err := w.handleTask(ctx, task); err != nil {
		w.retryOrFail(task, err)
		return
	}
	metrics.IncSync("done")
	w.logger.Debug().Str("task_id", task.ID).Str("booking_id", task.BookingID).Msg("sync task completed")
}

func (w *SyncWorker) handleTask(ctx context.Context, task *models.SyncTask) error {
	if w.sheets == nil {
		return errors.New("sheets client is not configured")
	}
	switch task.TaskType {
	case TaskUpsert:
		if task.Booking == nil {
			return errors.New("booking payload missing")
		}
		return w.sheets.UpsertBooking(ctx, task.Booking)
	case TaskUpdateStatus:
		if task.BookingID == "" || task.Status == "" {
			return errors.New("booking id or status missing")
		}
		return w.sheets.UpdateBookingStatus(ctx, task.BookingID, task.Status)
	default:
		return fmt.Errorf("unknown task type: %s", task.TaskType)
	}
}

func (w *SyncWorker) retryOrFail(task *models.SyncTask, cause error) {
	task.RetryCount++
	task.LastError = cause.Error()

	if task.RetryCount >= w.retryPolicy.MaxRetries {
		metrics.IncSync("dead")
		w.logger.Error().Err(cause).Str("task_id", task.ID).Int("attempts", task.RetryCount).Msg("sync task failed permanently")
		w.pushDeadLetter(*task)
		return
	}

	metrics.IncSync("retry")
	delay := w.retryPolicy.NextDelay(task.RetryCount)
	next := time.Now().Add(delay)
	task.NextRetryAt = &next
	w.logger.Warn().Err(cause).Str("task_id", task.ID).Dur("delay", delay).Msg("sync task scheduled for retry")

	retry := *task
	w.timers.Add(1)
	time.AfterFunc(delay, func() {
		defer w.timers.Done()
		if err := w.push(context.Background(), retry); err != nil {
			w.pushDeadLetter(retry)
		}
	})
}

func (w *SyncWorker) pushRedis(ctx context.Context, task models.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *SyncWorker) pushDeadLetter(task models.SyncTask) {
	w.mu.Lock()
	w.deadLetters = append(w.deadLetters, task)
	w.mu.Unlock()

	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Str("task_id", task.ID).Msg("encode deadletter")
		return
	}
	if err := w.redis.LPush(context.Background(), w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Str("task_id", task.ID).Msg("deadletter push")
	}
}
