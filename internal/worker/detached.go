package worker

import (
	"context"
	"sync"
	"time"

	"walletnotify/internal/model"
)

// Detached runs each submitted event in its own goroutine, outside the
// lifetime of the HTTP request that accepted it.
type Detached struct {
	name      string
	processor EventProcessor
	timeout   time.Duration

	wg sync.WaitGroup
}

// NewDetached creates a runner. timeout <= 0 lets tasks run unbounded.
func NewDetached(name string, processor EventProcessor, timeout time.Duration) *Detached {
	return &Detached{
		name:      name,
		processor: processor,
		timeout:   timeout,
	}
}

// Submit starts the task and returns immediately. The task keeps the
// request's values (request id) but not its cancellation.
func (d *Detached) Submit(ctx context.Context, event *model.WebhookEvent) {
	taskCtx := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		if d.timeout > 0 {
			var cancel context.CancelFunc
			taskCtx, cancel = context.WithTimeout(taskCtx, d.timeout)
			defer cancel()
		}
		runTask(taskCtx, d.name, d.processor, event)
	}()
}

// Wait blocks until every submitted task has finished or ctx is done.
func (d *Detached) Wait(ctx context.Context) error {
	return waitGroup(ctx, &d.wg)
}
