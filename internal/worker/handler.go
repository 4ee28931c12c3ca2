package worker

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"walletnotify/internal/metrics"
	"walletnotify/internal/model"
	"walletnotify/internal/webhook"
)

// EventProcessor runs the notification pipeline for one event.
type EventProcessor interface {
	Process(ctx context.Context, event *model.WebhookEvent) (*webhook.Outcome, error)
}

// Submitter hands a verified event to background processing.
// Submit never blocks on the pipeline and never reports its errors.
type Submitter interface {
	Submit(ctx context.Context, event *model.WebhookEvent)
}

// runTask executes one pipeline run inside an error boundary. Errors and
// panics are logged and counted, never returned.
func runTask(ctx context.Context, name string, processor EventProcessor, event *model.WebhookEvent) (ok bool) {
	start := time.Now()
	log := slog.Default().With(
		"component", "worker",
		"task", name,
		"event_id", event.ID,
		"event_type", event.EventType,
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Background task panicked", "panic", r, "stack", string(debug.Stack()))
			metrics.BackgroundTasks.WithLabelValues(name, "panic").Inc()
			ok = false
		}
	}()

	out, err := processor.Process(ctx, event)
	if err != nil {
		log.Error("Background task FAILED", "error", err, "duration", time.Since(start))
		metrics.BackgroundTasks.WithLabelValues(name, "error").Inc()
		return false
	}

	result := ""
	if out != nil {
		result = out.Result
	}
	log.Debug("Background task OK", "outcome", result, "duration", time.Since(start))
	metrics.BackgroundTasks.WithLabelValues(name, "ok").Inc()
	return true
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
