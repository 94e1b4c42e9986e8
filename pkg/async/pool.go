package async

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"
)

// WorkerPool runs submitted tasks on a fixed set of workers. Each task gets
// its own timeout-bounded context and panic recovery, so one bad record in a
// bulk load cannot take down the whole run.
type WorkerPool struct {
	workers      int
	label        string
	timeout      time.Duration
	workCh       chan func(context.Context) error
	doneCh       chan struct{}
	errCh        chan error
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
}

// NewWorkerPool starts workers goroutines that process tasks submitted via
// Submit. label names the pool in log output.
//
//	pool := async.NewWorkerPool(ctx, 8, "organization import", 30*time.Second)
//	defer pool.Shutdown(5 * time.Second)
//
//	pool.Submit(func(ctx context.Context) error {
//	    return store.UpsertOrganization(ctx, org)
//	})
func NewWorkerPool(ctx context.Context, workers int, label string, timeout time.Duration) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		workers: workers,
		label:   label,
		timeout: timeout,
		workCh:  make(chan func(context.Context) error, workers*2),
		doneCh:  make(chan struct{}),
		errCh:   make(chan error, workers*10),
		ctx:     ctx,
		cancel:  cancel,
	}

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				pool.run(id)
			}(i)
		}
		wg.Wait()
		close(pool.doneCh)
	}()

	return pool
}

// Submit queues a task. Returns an error if the pool has shut down.
func (p *WorkerPool) Submit(fn func(context.Context) error) (err error) {
	select {
	case <-p.doneCh:
		return fmt.Errorf("worker pool %q shut down", p.label)
	default:
	}

	// Shutdown can close workCh between the check above and the send below;
	// the task was dropped, so the caller must see the shutdown error.
	defer func() {
		if recover() != nil {
			err = fmt.Errorf("worker pool %q shut down", p.label)
		}
	}()

	select {
	case p.workCh <- fn:
		return nil
	case <-p.doneCh:
		return fmt.Errorf("worker pool %q shut down", p.label)
	}
}

// Shutdown stops accepting tasks and waits up to timeout for workers to
// drain what was already queued.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var shutdownErr error

	p.shutdownOnce.Do(func() {
		func() {
			// Batch closes workCh itself; tolerate the double close.
			defer func() {
				recover()
			}()
			close(p.workCh)
		}()

		select {
		case <-p.doneCh:
			p.cancel()
		case <-time.After(timeout):
			p.cancel()
			shutdownErr = fmt.Errorf("worker pool %q shutdown timed out after %v", p.label, timeout)
		}
	})

	return shutdownErr
}

// Errors returns the channel task errors are reported on. The channel is
// buffered; overflow is logged and dropped rather than blocking workers.
func (p *WorkerPool) Errors() <-chan error {
	return p.errCh
}

func (p *WorkerPool) run(id int) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[async] panic in %s worker %d: %v\n%s",
				p.label, id, r, string(debug.Stack()))
		}
	}()

	for {
		select {
		case <-p.ctx.Done():
			return

		case fn, ok := <-p.workCh:
			if !ok {
				return
			}

			ctx, cancel := context.WithTimeout(p.ctx, p.timeout)

			func() {
				defer cancel()
				defer func() {
					if r := recover(); r != nil {
						p.report(fmt.Errorf("panic: %v", r))
					}
				}()

				if err := fn(ctx); err != nil {
					p.report(err)
				}
			}()
		}
	}
}

func (p *WorkerPool) report(err error) {
	select {
	case p.errCh <- err:
	default:
		log.Printf("[async] %s: error channel full, dropping: %v", p.label, err)
	}
}

// Batch runs fn over every item on a temporary worker pool and returns all
// errors collected. Items that fail do not stop the rest of the batch.
//
//	errs := async.Batch(ctx, records, 8, "organization import", 30*time.Second,
//	    func(ctx context.Context, org *orgs.Organization) error {
//	        return store.UpsertOrganization(ctx, org)
//	    })
func Batch[T any](ctx context.Context, items []T, workers int, label string, timeout time.Duration,
	fn func(context.Context, T) error) []error {

	pool := NewWorkerPool(ctx, workers, label, timeout)
	defer pool.Shutdown(5 * time.Second)

	for _, item := range items {
		item := item
		if err := pool.Submit(func(ctx context.Context) error {
			return fn(ctx, item)
		}); err != nil {
			return []error{err}
		}
	}

	// Close the work channel so workers drain the queue, then wait.
	close(pool.workCh)
	<-pool.doneCh
	pool.cancel()

	var errs []error
	for {
		select {
		case err := <-pool.errCh:
			errs = append(errs, err)
		default:
			return errs
		}
	}
}
