package providers

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// compensator accumulates undo actions as variant uploads succeed. If the
// overall operation later fails, Run deletes everything that was uploaded.
// Cleanup errors are logged, never propagated, so the caller sees the one
// original cause.
type compensator struct {
	mu      sync.Mutex
	actions []compensation
	log     *logrus.Logger
}

type compensation struct {
	label string
	fn    func(context.Context) error
}

func newCompensator(log *logrus.Logger) *compensator {
	return &compensator{log: log}
}

// Add registers an undo action. Safe to call from concurrent variant tasks.
func (c *compensator) Add(label string, fn func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = append(c.actions, compensation{label: label, fn: fn})
}

// Run executes every registered action. A fresh context is expected since
// the upload's own context is typically already canceled by the failure.
func (c *compensator) Run(ctx context.Context) {
	c.mu.Lock()
	actions := c.actions
	c.actions = nil
	c.mu.Unlock()

	for _, a := range actions {
		if err := a.fn(ctx); err != nil {
			c.log.Errorf("cleanup of %s failed: %v", a.label, err)
		} else {
			c.log.Debugf("cleaned up %s", a.label)
		}
	}
}

// Len reports how many undo actions are registered.
func (c *compensator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.actions)
}
