// Package gate provides the mutual-exclusion guard that limits the process to
// a single long-running operation at a time.
package gate

import (
	"errors"
	"fmt"
	"sync"
)

// ErrBusy is returned when the gate is already held. Callers are expected to
// fail fast; the gate never queues waiters.
var ErrBusy = errors.New("another operation is in progress")

// Release frees the gate. Safe to call more than once; only the first call
// has an effect.
type Release func()

// Gate is a non-blocking single-holder lock. The zero value is ready to use.
type Gate struct {
	mu     sync.Mutex
	held   bool
	holder string
}

// Acquire attempts to take the gate for the named operation. It returns a
// release handle on success, or ErrBusy (annotated with the current holder)
// without blocking.
func (g *Gate) Acquire(holder string) (Release, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		return nil, fmt.Errorf("%w (held by %s)", ErrBusy, g.holder)
	}
	g.held = true
	g.holder = holder

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.held = false
			g.holder = ""
			g.mu.Unlock()
		})
	}, nil
}

// Holder returns the current holder name, or "" when the gate is free.
func (g *Gate) Holder() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder
}
