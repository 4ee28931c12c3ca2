package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"walletnotify/internal/model"
	"walletnotify/internal/queue"
)

// DefaultPublishTimeout bounds the XADD issued for one webhook.
const DefaultPublishTimeout = 5 * time.Second

// StreamSubmitter queues events on a Redis stream for the worker Manager.
// If Redis is unreachable the event is processed in-process instead.
type StreamSubmitter struct {
	publisher queue.Publisher
	stream    string
	fallback  Submitter

	wg sync.WaitGroup
}

func NewStreamSubmitter(publisher queue.Publisher, stream string, fallback Submitter) *StreamSubmitter {
	if stream == "" {
		stream = queue.StreamWebhooks
	}
	return &StreamSubmitter{publisher: publisher, stream: stream, fallback: fallback}
}

// Submit publishes in the background so a slow Redis never delays the
// webhook acknowledgement.
func (s *StreamSubmitter) Submit(ctx context.Context, event *model.WebhookEvent) {
	ctx = context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.publish(ctx, event)
	}()
}

func (s *StreamSubmitter) publish(ctx context.Context, event *model.WebhookEvent) {
	pubCtx, cancel := context.WithTimeout(ctx, DefaultPublishTimeout)
	defer cancel()

	if _, err := s.publisher.Publish(pubCtx, s.stream, event); err != nil {
		slog.Warn("Queue publish FAILED, processing in-process",
			"component", "worker", "event_id", event.ID, "error", err)
		s.fallback.Submit(ctx, event)
	}
}

// Wait blocks until every pending publish has finished or ctx is done.
// Call it before waiting on the fallback so late fallbacks are drained too.
func (s *StreamSubmitter) Wait(ctx context.Context) error {
	return waitGroup(ctx, &s.wg)
}
