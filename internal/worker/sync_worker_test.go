package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clothingrental/internal/events"
	"clothingrental/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSheets struct {
	mu          sync.Mutex
	err         error
	failures    int
	upserts     []string
	statusCalls map[string]string
}

func (f *fakeSheets) fail() error {
	if f.failures > 0 {
		f.failures--
		return errors.New("sheets unavailable")
	}
	return f.err
}

func (f *fakeSheets) UpsertBooking(_ context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	f.upserts = append(f.upserts, b.ID)
	return nil
}

func (f *fakeSheets) UpdateBookingStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	if f.statusCalls == nil {
		f.statusCalls = make(map[string]string)
	}
	f.statusCalls[id] = status
	return nil
}

func sampleBooking() *models.Booking {
	return &models.Booking{
		ID:            "booking-1",
		ProductID:     "product-1",
		CustomerName:  "Jane Roe",
		CustomerEmail: "jane@example.com",
		CustomerPhone: "+1 555 0100",
		FromDate:      "2024-03-01",
		ToDate:        "2024-03-03",
		Status:        models.BookingActive,
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	sheets := &fakeSheets{}
	w := NewSyncWorker(sheets, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	require.NoError(t, w.EnqueueTask(ctx, models.SyncTask{TaskType: TaskUpsert, Booking: sampleBooking()}))

	task, ok := w.tryLocalQueue()
	require.True(t, ok, "expected task in local queue")
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "booking-1", task.BookingID)

	w.processTask(ctx, &task)
	assert.Equal(t, []string{"booking-1"}, sheets.upserts)
	assert.Empty(t, w.DeadLetters())
}

func TestEnqueueValidation(t *testing.T) {
	w := NewSyncWorker(&fakeSheets{}, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	assert.Error(t, w.EnqueueTask(ctx, models.SyncTask{BookingID: "booking-1"}))
	assert.Error(t, w.EnqueueTask(ctx, models.SyncTask{TaskType: TaskUpsert}))
}

func TestProcessTaskRetry(t *testing.T) {
	sheets := &fakeSheets{failures: 1}
	w := NewSyncWorker(sheets, nil, RetryPolicy{MaxRetries: 3, InitialDelay: 5 * time.Millisecond}, nil)
	ctx := context.Background()

	require.NoError(t, w.EnqueueTask(ctx, models.SyncTask{TaskType: TaskUpdateStatus, BookingID: "booking-9", Status: "cancelled"}))
	task, ok := w.tryLocalQueue()
	require.True(t, ok)

	w.processTask(ctx, &task)
	w.Wait()

	retried, ok := w.tryLocalQueue()
	require.True(t, ok, "expected task to be requeued")
	assert.Equal(t, 1, retried.RetryCount)
	assert.Equal(t, "sheets unavailable", retried.LastError)
	require.NotNil(t, retried.NextRetryAt)

	w.processTask(ctx, &retried)
	assert.Equal(t, "cancelled", sheets.statusCalls["booking-9"])
}

func TestProcessTaskDeadLetter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	sheets := &fakeSheets{err: errors.New("quota exceeded")}
	w := NewSyncWorker(sheets, client, RetryPolicy{MaxRetries: 1}, nil)
	ctx := context.Background()

	task := models.SyncTask{ID: "t-1", TaskType: TaskUpsert, BookingID: "booking-1", Booking: sampleBooking()}
	w.processTask(ctx, &task)

	dead := w.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "quota exceeded", dead[0].LastError)

	n, err := client.LLen(ctx, w.deadLetterKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	sheets := &fakeSheets{}
	w := NewSyncWorker(sheets, client, RetryPolicy{}, nil)
	ctx := context.Background()

	require.NoError(t, w.EnqueueTask(ctx, models.SyncTask{TaskType: TaskUpsert, Booking: sampleBooking()}))
	n, err := client.LLen(ctx, w.redisQueueKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok := w.tryLocalQueue()
	assert.False(t, ok)

	task, ok := w.tryRedis(ctx)
	require.True(t, ok)
	assert.Equal(t, "booking-1", task.Booking.ID)
}

func TestStartProcessesEvents(t *testing.T) {
	sheets := &fakeSheets{}
	w := NewSyncWorker(sheets, nil, RetryPolicy{}, nil)
	w.pollInterval = 10 * time.Millisecond

	bus := events.NewEventBus()
	bus.Subscribe(events.EventBookingCreated, w.HandleEvent)
	bus.Subscribe(events.EventBookingStatusChanged, w.HandleEvent)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.NoError(t, bus.PublishJSON(events.EventBookingCreated, events.BookingEventPayload{
		BookingID: "booking-7", ItemID: "product-1", FromDate: "2024-03-01", ToDate: "2024-03-02", Status: "active",
	}))
	require.NoError(t, bus.PublishJSON(events.EventBookingStatusChanged, events.BookingEventPayload{
		BookingID: "booking-7", Status: "completed",
	}))

	assert.Eventually(t, func() bool {
		sheets.mu.Lock()
		defer sheets.mu.Unlock()
		return len(sheets.upserts) == 1 && sheets.statusCalls["booking-7"] == "completed"
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestHandleEventIgnoresOtherTypes(t *testing.T) {
	w := NewSyncWorker(&fakeSheets{}, nil, RetryPolicy{}, nil)
	event, err := events.NewJSONEvent(events.EventItemCreated, events.ItemEventPayload{ItemID: "product-1"})
	require.NoError(t, err)

	require.NoError(t, w.HandleEvent(&event))
	_, ok := w.tryLocalQueue()
	assert.False(t, ok)
}
