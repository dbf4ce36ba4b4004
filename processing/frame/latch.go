package frame

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotReady = errors.New("frame: no frame captured before readiness timeout")

// Latch is a one-shot readiness signal. Open may be called any number of times.
type Latch struct {
	once sync.Once
	ch   chan struct{}
}

func NewLatch() *Latch {
	return &Latch{ch: make(chan struct{})}
}

func (l *Latch) Open() {
	l.once.Do(func() { close(l.ch) })
}

func (l *Latch) Done() <-chan struct{} {
	return l.ch
}

// Wait blocks until the latch opens, ctx ends, or timeout elapses.
// A non-positive timeout waits on ctx alone.
func (l *Latch) Wait(ctx context.Context, timeout time.Duration) error {
	var expire <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expire = t.C
	}

	select {
	case <-l.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-expire:
		return ErrNotReady
	}
}
