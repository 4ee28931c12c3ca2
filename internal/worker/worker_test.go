package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletnotify/internal/model"
	"walletnotify/internal/queue"
	"walletnotify/internal/webhook"
	"walletnotify/internal/worker"
)

// =============================================================================
// Mock Implementations
// =============================================================================

// MockProcessor records every event it sees.
type MockProcessor struct {
	mu      sync.Mutex
	events  []string
	delay   time.Duration
	err     error
	panics  bool
	ctxErrs []error
}

func (m *MockProcessor) Process(ctx context.Context, event *model.WebhookEvent) (*webhook.Outcome, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
		}
	}

	m.mu.Lock()
	m.events = append(m.events, event.ID)
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	m.mu.Unlock()

	if m.panics {
		panic("boom")
	}
	if m.err != nil {
		return nil, m.err
	}
	return &webhook.Outcome{Result: webhook.OutcomeDispatched}, nil
}

func (m *MockProcessor) Seen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

// MockPublisher fails when err is set and waits on block when it is non-nil.
type MockPublisher struct {
	mu        sync.Mutex
	published []string
	err       error
	block     chan struct{}
}

func (m *MockPublisher) Publish(ctx context.Context, stream string, event *model.WebhookEvent) (string, error) {
	if m.block != nil {
		<-m.block
	}
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, stream+"/"+event.ID)
	return "1-0", nil
}

// MockSubmitter collects fallback submissions.
type MockSubmitter struct {
	events []string
}

func (m *MockSubmitter) Submit(ctx context.Context, event *model.WebhookEvent) {
	m.events = append(m.events, event.ID)
}

// blockingProcessor holds the first event until release is closed.
type blockingProcessor struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once

	mu      sync.Mutex
	events  []string
	ctxErrs []error
}

func newBlockingProcessor() *blockingProcessor {
	return &blockingProcessor{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingProcessor) Process(ctx context.Context, event *model.WebhookEvent) (*webhook.Outcome, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release

	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event.ID)
	b.ctxErrs = append(b.ctxErrs, ctx.Err())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &webhook.Outcome{Result: webhook.OutcomeDispatched}, nil
}

// MockConsumer hands out one batch, then blocks until its context ends.
type MockConsumer struct {
	mu      sync.Mutex
	batch   []queue.Message
	readCtx context.Context
	acked   []string
}

func (m *MockConsumer) EnsureGroup(ctx context.Context, stream, group string) error { return nil }

func (m *MockConsumer) Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]queue.Message, error) {
	m.mu.Lock()
	m.readCtx = ctx
	batch := m.batch
	m.batch = nil
	m.mu.Unlock()

	if batch != nil {
		return batch, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (m *MockConsumer) ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]queue.Message, error) {
	return nil, nil
}

func (m *MockConsumer) Ack(ctx context.Context, stream, group string, ids ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, ids...)
	return nil
}

func (m *MockConsumer) Pending(ctx context.Context, stream, group string) (int64, error) {
	return 0, nil
}

func (m *MockConsumer) stopping() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readCtx != nil && m.readCtx.Err() != nil
}

func (m *MockConsumer) Acked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acked...)
}

func newEvent(id string) *model.WebhookEvent {
	return &model.WebhookEvent{
		ID:         id,
		EventType:  "transaction.status.updated",
		ResourceID: "tx-" + id,
		CreatedAt:  time.Now().UnixMilli(),
		Data:       json.RawMessage(`{"id":"tx-` + id + `","status":"COMPLETED"}`),
	}
}

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestRedis(t *testing.T) *redis.Client {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("Failed to parse Redis URL: %v", err)
	}

	// Use DB 1 for testing to avoid conflicts with dev data
	opts.DB = 1

	client := redis.NewClient(opts)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}

	client.FlushDB(ctx)
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

// =============================================================================
// Detached runner
// =============================================================================

func TestDetached_OutlivesRequestContext(t *testing.T) {
	proc := &MockProcessor{delay: 20 * time.Millisecond}
	runner := worker.NewDetached("test", proc, 0)

	reqCtx, cancel := context.WithCancel(context.Background())
	runner.Submit(reqCtx, newEvent("evt-1"))
	cancel()

	waitCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	require.NoError(t, runner.Wait(waitCtx))

	assert.Equal(t, []string{"evt-1"}, proc.Seen())
	assert.NoError(t, proc.ctxErrs[0], "task context must not inherit request cancellation")
}

func TestDetached_SwallowsErrorsAndPanics(t *testing.T) {
	failing := worker.NewDetached("fail", &MockProcessor{err: errors.New("db down")}, time.Second)
	panicking := worker.NewDetached("panic", &MockProcessor{panics: true}, time.Second)

	failing.Submit(context.Background(), newEvent("a"))
	panicking.Submit(context.Background(), newEvent("b"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, failing.Wait(ctx))
	assert.NoError(t, panicking.Wait(ctx))
}

func TestDetached_TimeoutBoundsTask(t *testing.T) {
	proc := &MockProcessor{delay: time.Minute}
	runner := worker.NewDetached("slow", proc, 10*time.Millisecond)

	runner.Submit(context.Background(), newEvent("slow"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, runner.Wait(ctx))
	assert.ErrorIs(t, proc.ctxErrs[0], context.DeadlineExceeded)
}

func TestDetached_WaitHonoursContext(t *testing.T) {
	runner := worker.NewDetached("slow", &MockProcessor{delay: 200 * time.Millisecond}, 0)
	runner.Submit(context.Background(), newEvent("x"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, runner.Wait(ctx), context.DeadlineExceeded)

	require.NoError(t, runner.Wait(context.Background()))
}

// =============================================================================
// Stream submitter
// =============================================================================

func TestStreamSubmitter_Publishes(t *testing.T) {
	pub := &MockPublisher{}
	fallback := &MockSubmitter{}
	s := worker.NewStreamSubmitter(pub, "", fallback)

	s.Submit(context.Background(), newEvent("evt-1"))
	require.NoError(t, s.Wait(context.Background()))

	assert.Equal(t, []string{queue.StreamWebhooks + "/evt-1"}, pub.published)
	assert.Empty(t, fallback.events)
}

func TestStreamSubmitter_FallsBackWhenPublishFails(t *testing.T) {
	pub := &MockPublisher{err: errors.New("connection refused")}
	fallback := &MockSubmitter{}
	s := worker.NewStreamSubmitter(pub, "custom", fallback)

	s.Submit(context.Background(), newEvent("evt-2"))
	require.NoError(t, s.Wait(context.Background()))

	assert.Equal(t, []string{"evt-2"}, fallback.events)
}

func TestStreamSubmitter_DoesNotWaitForPublish(t *testing.T) {
	pub := &MockPublisher{block: make(chan struct{})}
	s := worker.NewStreamSubmitter(pub, "", &MockSubmitter{})

	returned := make(chan struct{})
	go func() {
		s.Submit(context.Background(), newEvent("evt-3"))
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a slow publish")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)

	close(pub.block)
	require.NoError(t, s.Wait(context.Background()))
	assert.Equal(t, []string{queue.StreamWebhooks + "/evt-3"}, pub.published)
}

// =============================================================================
// Manager
// =============================================================================

func TestManager_StopMidBatchFinishesRunningTaskOnly(t *testing.T) {
	consumer := &MockConsumer{batch: []queue.Message{
		{ID: "1-0", Event: *newEvent("a")},
		{ID: "2-0", Event: *newEvent("b")},
		{ID: "3-0", Event: *newEvent("c")},
	}}
	proc := newBlockingProcessor()

	cfg := worker.DefaultManagerConfig()
	cfg.WorkerCount = 1
	cfg.TaskTimeout = time.Minute
	manager := worker.NewManager(consumer, proc, cfg)
	require.NoError(t, manager.Start(context.Background()))

	select {
	case <-proc.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first event never reached the processor")
	}

	stopped := make(chan struct{})
	go func() {
		manager.Stop()
		close(stopped)
	}()
	require.Eventually(t, consumer.stopping, 2*time.Second, 5*time.Millisecond)
	close(proc.release)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.Equal(t, []string{"a"}, proc.events)
	assert.NoError(t, proc.ctxErrs[0], "running task must not see the shutdown")
	assert.Equal(t, []string{"1-0"}, consumer.Acked(), "unstarted messages stay pending")
}

// =============================================================================
// Integration Tests
// =============================================================================

// TestStreamToWorkerIntegration publishes through Redis and lets the
// Manager consume and ack the event.
func TestStreamToWorkerIntegration(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	publisher := queue.NewPublisher(client)
	consumer := queue.NewConsumer(client)
	proc := &MockProcessor{}

	cfg := worker.DefaultManagerConfig()
	cfg.WorkerCount = 1
	cfg.BlockTimeout = 100 * time.Millisecond
	manager := worker.NewManager(consumer, proc, cfg)

	require.NoError(t, manager.Start(ctx))
	defer manager.Stop()

	_, err := publisher.Publish(ctx, queue.StreamWebhooks, newEvent("evt-stream"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(proc.Seen()) == 1
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, "evt-stream", proc.Seen()[0])

	require.Eventually(t, func() bool {
		pending, err := consumer.Pending(ctx, queue.StreamWebhooks, queue.ConsumerGroupNotify)
		return err == nil && pending == 0
	}, 3*time.Second, 20*time.Millisecond)
}

// TestManager_RecoversPending simulates a crash between delivery and ack.
func TestManager_RecoversPending(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	publisher := queue.NewPublisher(client)
	consumer := queue.NewConsumer(client)

	require.NoError(t, consumer.EnsureGroup(ctx, queue.StreamWebhooks, queue.ConsumerGroupNotify))
	_, err := publisher.Publish(ctx, queue.StreamWebhooks, newEvent("evt-crash"))
	require.NoError(t, err)

	// Delivered to worker-1 but never acked.
	msgs, err := consumer.Read(ctx, queue.StreamWebhooks, queue.ConsumerGroupNotify, "worker-1", 10, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	proc := &MockProcessor{}
	cfg := worker.DefaultManagerConfig()
	cfg.WorkerCount = 1
	cfg.BlockTimeout = 100 * time.Millisecond
	manager := worker.NewManager(consumer, proc, cfg)
	require.NoError(t, manager.Start(ctx))
	defer manager.Stop()

	require.Eventually(t, func() bool {
		return len(proc.Seen()) == 1
	}, 3*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		pending, err := consumer.Pending(ctx, queue.StreamWebhooks, queue.ConsumerGroupNotify)
		return err == nil && pending == 0
	}, 3*time.Second, 20*time.Millisecond)
}
