package registry

import (
	"context"

	"github.com/joeblew999/plat-overlay/pkg/logger"
)

// Subscription is a representation's handle on the registry. Changes made
// through it are not echoed back to its own listener.
type Subscription struct {
	id       string
	reg      *Registry
	fn       Listener
	onCommit Listener
}

// ID returns the origin tag carried by events this subscription causes.
func (s *Subscription) ID() string { return s.id }

// SetVisible changes visibility on behalf of this subscriber.
func (s *Subscription) SetVisible(ctx context.Context, name string, visible bool) error {
	return s.reg.setVisible(ctx, name, visible, s)
}

// Toggle flips visibility on behalf of this subscriber.
func (s *Subscription) Toggle(ctx context.Context, name string) (bool, error) {
	return s.reg.toggle(ctx, name, s)
}

// OnCommit sets a hook that receives this subscription's own changes,
// in order with every other event. Set it before the first change.
func (s *Subscription) OnCommit(fn Listener) {
	s.onCommit = fn
}

// Close stops delivery.
func (s *Subscription) Close() {
	s.reg.unsubscribe(s)
}

func (s *Subscription) deliver(ctx context.Context, ev Event) {
	s.call(ctx, s.fn, ev)
}

func (s *Subscription) commit(ctx context.Context, ev Event) {
	s.call(ctx, s.onCommit, ev)
}

func (s *Subscription) call(ctx context.Context, fn Listener, ev Event) {
	if fn == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			s.reg.log.Error(ctx, "subscriber panicked",
				logger.String("subscriber", s.id), logger.String("layer", ev.Name), logger.Any("panic", p))
		}
	}()
	fn(ev)
}
