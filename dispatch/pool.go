// Package dispatch runs detached jobs on a bounded worker pool.
//
// Submit never blocks: a full queue rejects the job with ErrQueueFull. Jobs run
// under the pool's own context, not the submitter's, and are retried up to
// Options.Attempts times unless they return a Permanent error. Every job gets a
// *Task that tests can Wait on.
//
//	pool := dispatch.New(dispatch.Options{Workers: 2, Queue: 64, Attempts: 3})
//	defer pool.Close(ctx)
//
//	task, err := pool.Submit(dispatch.Job{Name: "populate 5:2000", Run: write})
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrQueueFull = errors.New("dispatch: queue full")
	ErrClosed    = errors.New("dispatch: pool closed")
)

// Job is one unit of detached work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
	// Done, if set, runs on the worker once after the final attempt, before the
	// task completes. Its context is never cancelled.
	Done func(ctx context.Context, attempts int, err error)
}

type Options struct {
	Workers  int           // 0 => 1
	Queue    int           // 0 => 1024
	Attempts int           // 0 => 1
	Backoff  time.Duration // delay before retry n is n*Backoff; 0 => none
}

type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc
	q      chan *Task
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	once   sync.Once

	attempts int
	backoff  time.Duration
}

func New(opts Options) *Pool {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	qlen := opts.Queue
	if qlen <= 0 {
		qlen = 1024
	}
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		ctx:      ctx,
		cancel:   cancel,
		q:        make(chan *Task, qlen),
		attempts: attempts,
		backoff:  opts.Backoff,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for t := range p.q {
				p.run(t)
			}
		}()
	}
	return p
}

// Submit enqueues job. On ErrQueueFull or ErrClosed the job never runs and the
// returned task is nil.
func (p *Pool) Submit(job Job) (*Task, error) {
	if job.Run == nil {
		return nil, errors.New("dispatch: nil job")
	}
	t := newTask(job)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}
	select {
	case p.q <- t:
		return t, nil
	default:
		return nil, ErrQueueFull
	}
}

func (p *Pool) run(t *Task) {
	var err error
	n := 0
	for n < p.attempts {
		n++
		err = t.job.Run(p.ctx)
		if err == nil || isPermanent(err) || p.ctx.Err() != nil || n == p.attempts {
			break
		}
		if !p.sleep(time.Duration(n) * p.backoff) {
			break
		}
	}
	err = unwrapPermanent(err)
	if t.job.Done != nil {
		// Done still runs its cleanup when Close gave up waiting and cancelled p.ctx
		t.job.Done(context.WithoutCancel(p.ctx), n, err)
	}
	t.finish(n, err)
}

func (p *Pool) sleep(d time.Duration) bool {
	if d <= 0 {
		return p.ctx.Err() == nil
	}
	tm := time.NewTimer(d)
	defer tm.Stop()
	select {
	case <-tm.C:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// Close stops accepting jobs and waits for queued ones to finish. When ctx ends
// first, running jobs see their context cancelled and Close returns ctx.Err()
// after the workers exit.
// Safe to call multiple times.
func (p *Pool) Close(ctx context.Context) error {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.q)
		p.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

func unwrapPermanent(err error) error {
	var pe *permanentError
	if errors.As(err, &pe) {
		return pe.err
	}
	return err
}
