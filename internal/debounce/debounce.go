// Package debounce turns a burst of input values into one trailing delivery.
package debounce

import (
	"context"
	"sync"
	"time"

	bep "github.com/bep/debounce"
)

// Debouncer delivers the last pushed value once window has passed without a new push.
// There is no leading-edge delivery.
type Debouncer[T any] struct {
	ctx      context.Context
	cancel   context.CancelFunc
	schedule func(func())
	onChange func(T)

	mu      sync.Mutex
	pending T
}

// New creates a Debouncer calling onChange from its own goroutine.
func New[T any](window time.Duration, onChange func(T)) *Debouncer[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer[T]{
		ctx:      ctx,
		cancel:   cancel,
		schedule: bep.New(window),
		onChange: onChange,
	}
}

// Push records v and restarts the quiet window. Pushes after Cancel are ignored.
func (d *Debouncer[T]) Push(v T) {
	if d.ctx.Err() != nil {
		return
	}
	d.mu.Lock()
	d.pending = v
	d.mu.Unlock()
	d.schedule(d.fire)
}

// Cancel drops any pending delivery. It is safe to call more than once.
func (d *Debouncer[T]) Cancel() {
	d.cancel()
}

func (d *Debouncer[T]) fire() {
	if d.ctx.Err() != nil {
		return
	}
	d.mu.Lock()
	v := d.pending
	d.mu.Unlock()
	d.onChange(v)
}
