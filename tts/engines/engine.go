// Package engines holds helpers shared by the speech backends.
package engines

import (
	"context"
	"sync"
)

// Completion delivers an utterance's end signal at most once, and never
// after the utterance context has been cancelled.
type Completion struct {
	ctx   context.Context
	onEnd func(error)
	once  sync.Once
}

// NewCompletion wraps onEnd for the utterance bound to ctx.
func NewCompletion(ctx context.Context, onEnd func(error)) *Completion {
	return &Completion{ctx: ctx, onEnd: onEnd}
}

// Done reports the outcome of the utterance. It returns false when the
// signal was suppressed because the utterance was cancelled or already
// finished.
func (c *Completion) Done(err error) bool {
	delivered := false
	c.once.Do(func() {
		if c.ctx.Err() != nil {
			return
		}
		delivered = true
		if c.onEnd != nil {
			c.onEnd(err)
		}
	})
	return delivered
}

// Cancelled reports whether the utterance was cancelled.
func (c *Completion) Cancelled() bool {
	return c.ctx.Err() != nil
}
