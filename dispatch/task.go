package dispatch

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Task is the handle of one submitted job.
type Task struct {
	ID   uuid.UUID
	Name string

	job  Job
	done chan struct{}

	mu       sync.Mutex
	attempts int
	err      error
}

func newTask(job Job) *Task {
	return &Task{
		ID:   uuid.New(),
		Name: job.Name,
		job:  job,
		done: make(chan struct{}),
	}
}

// Failed returns an already completed task carrying err. Callers use it to hand
// out a uniform handle when Submit rejects a job.
func Failed(name string, err error) *Task {
	t := newTask(Job{Name: name})
	t.finish(0, err)
	return t
}

func (t *Task) finish(attempts int, err error) {
	t.mu.Lock()
	t.attempts = attempts
	t.err = err
	t.mu.Unlock()
	close(t.done)
}

// Done is closed once the job has finished, successfully or not.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err is the final job error, nil while running.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Attempts is how many times Run was called.
func (t *Task) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}
