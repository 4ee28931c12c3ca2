package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"walletnotify/internal/queue"
)

const (
	// DefaultWorkerCount is the default number of worker goroutines
	DefaultWorkerCount = 2

	// DefaultBatchSize is the number of messages to read per batch
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for new messages
	DefaultBlockTimeout = 5 * time.Second
)

// Manager orchestrates worker goroutines that consume webhook events from Redis Streams.
type Manager struct {
	consumer    queue.Consumer
	processor   EventProcessor
	stream      string
	group       string
	workerCount int
	batchSize   int64
	blockTime   time.Duration
	taskTimeout time.Duration
	log         *slog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// ManagerConfig holds configuration for the worker manager.
type ManagerConfig struct {
	Stream       string
	Group        string
	WorkerCount  int           // Number of worker goroutines
	BatchSize    int64         // Messages per read
	BlockTimeout time.Duration // Block time for XREADGROUP
	TaskTimeout  time.Duration // Per-event pipeline timeout, 0 = none
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Stream:       queue.StreamWebhooks,
		Group:        queue.ConsumerGroupNotify,
		WorkerCount:  DefaultWorkerCount,
		BatchSize:    DefaultBatchSize,
		BlockTimeout: DefaultBlockTimeout,
	}
}

// NewManager creates a new worker manager.
func NewManager(consumer queue.Consumer, processor EventProcessor, cfg ManagerConfig) *Manager {
	if cfg.Stream == "" {
		cfg.Stream = queue.StreamWebhooks
	}
	if cfg.Group == "" {
		cfg.Group = queue.ConsumerGroupNotify
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}

	return &Manager{
		consumer:    consumer,
		processor:   processor,
		stream:      cfg.Stream,
		group:       cfg.Group,
		workerCount: cfg.WorkerCount,
		batchSize:   cfg.BatchSize,
		blockTime:   cfg.BlockTimeout,
		taskTimeout: cfg.TaskTimeout,
		log:         slog.Default().With("component", "manager"),
	}
}

// Start ensures the consumer group exists and launches the workers.
// Call Stop() to shut down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, m.stream, m.group); err != nil {
		m.cancel()
		return err
	}

	for i := 0; i < m.workerCount; i++ {
		workerID := i + 1

		m.wg.Add(1)
		go m.runWorker(workerID, consumerNameForWorker(workerID))
	}

	m.log.Info("Workers started", "count", m.workerCount, "stream", m.stream, "group", m.group)
	return nil
}

// Stop cancels the workers and blocks until they have finished.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	m.log.Info("All workers stopped")
}

// runWorker is the main loop for a single worker goroutine.
func (m *Manager) runWorker(workerID int, consumerName string) {
	defer m.wg.Done()
	log := m.log.With("worker", workerID, "consumer", consumerName)

	// First, process any pending messages from previous runs (crash recovery)
	m.processPending(log, consumerName)

	for {
		select {
		case <-m.ctx.Done():
			log.Debug("Worker shutting down")
			return
		default:
			m.processMessages(log, consumerName)
		}
	}
}

// processPending handles messages that were delivered but not acknowledged.
func (m *Manager) processPending(log *slog.Logger, consumerName string) {
	for {
		messages, err := m.consumer.ReadPending(m.ctx, m.stream, m.group, consumerName, m.batchSize)
		if err != nil {
			log.Error("Reading pending FAILED", "error", err)
			return
		}
		if len(messages) == 0 {
			return
		}

		log.Info("Recovering pending messages", "count", len(messages))
		m.handleMessages(log, messages)
	}
}

// processMessages reads and handles a batch of messages.
func (m *Manager) processMessages(log *slog.Logger, consumerName string) {
	messages, err := m.consumer.Read(m.ctx, m.stream, m.group, consumerName, m.batchSize, m.blockTime)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		log.Error("Read FAILED", "error", err)
		select {
		case <-time.After(time.Second): // Back off on error
		case <-m.ctx.Done():
		}
		return
	}

	m.handleMessages(log, messages)
}

// handleMessages runs the pipeline for each message and acknowledges it.
// Failed events are acked too: the pipeline has no retries. Tasks do not
// inherit the manager's cancellation; once Stop is called the running task
// finishes and the rest of the batch stays pending for the next start.
func (m *Manager) handleMessages(log *slog.Logger, messages []queue.Message) {
	base := context.WithoutCancel(m.ctx)

	for i, msg := range messages {
		if m.ctx.Err() != nil {
			log.Info("Stopping mid-batch, leaving messages pending", "remaining", len(messages)-i)
			return
		}
		event := msg.Event

		ctx, cancel := base, context.CancelFunc(func() {})
		if m.taskTimeout > 0 {
			ctx, cancel = context.WithTimeout(base, m.taskTimeout)
		}
		runTask(ctx, "stream-consumer", m.processor, &event)
		cancel()

		if err := m.consumer.Ack(base, m.stream, m.group, msg.ID); err != nil {
			log.Error("ACK FAILED", "msg_id", msg.ID, "error", err)
		}
	}
}

// consumerNameForWorker generates a unique consumer name for each worker.
func consumerNameForWorker(workerID int) string {
	return fmt.Sprintf("worker-%d", workerID)
}
