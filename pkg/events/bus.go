package events

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Handler receives the arguments of an emitted event. A nil result is
// ignored; any other result is collected by Emit.
type Handler func(ctx context.Context, args ...any) (any, error)

// SubscriptionID identifies a handler registration. Go functions are not
// comparable, so the ID stands in for handler identity on Unsubscribe.
type SubscriptionID string

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Bus is a typed publish/subscribe primitive. Handlers for a kind run
// sequentially, in subscription order, on the caller's goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]subscription
	log      *logrus.Logger
}

// NewBus creates an empty bus. A nil logger gets a default logrus logger.
func NewBus(log *logrus.Logger) *Bus {
	if log == nil {
		log = logrus.New()
	}

	handlers := make(map[Kind][]subscription, len(kindNames))
	for _, k := range Kinds() {
		handlers[k] = nil
	}

	return &Bus{
		handlers: handlers,
		log:      log,
	}
}

// Subscribe registers h for kind and returns its subscription ID.
// An unknown kind is logged and yields an empty ID.
func (b *Bus) Subscribe(kind Kind, h Handler) SubscriptionID {
	if !kind.Valid() {
		b.log.Warnf("Unknown event kind: %s", kind)
		return ""
	}
	if h == nil {
		return ""
	}

	id := SubscriptionID(uuid.NewString())

	b.mu.Lock()
	b.handlers[kind] = append(b.handlers[kind], subscription{id: id, handler: h})
	b.mu.Unlock()

	b.log.Debugf("Subscribed handler %s to %s", id, kind)
	return id
}

// Unsubscribe removes the handler registered under id. It reports whether
// a handler was removed.
func (b *Bus) Unsubscribe(kind Kind, id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[kind]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		// Copy so in-flight Emit snapshots keep their view.
		next := make([]subscription, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		b.handlers[kind] = next
		b.log.Debugf("Unsubscribed handler %s from %s", id, kind)
		return true
	}
	return false
}

// Emit invokes every handler subscribed to kind and returns the non-nil
// results in call order. A failing or panicking handler is logged and
// skipped; the remaining handlers still run.
func (b *Bus) Emit(ctx context.Context, kind Kind, args ...any) []any {
	b.mu.RLock()
	subs := b.handlers[kind]
	b.mu.RUnlock()

	var results []any
	for _, s := range subs {
		result, err := b.call(ctx, kind, s, args)
		if err != nil {
			b.log.WithFields(logrus.Fields{
				"event":        kind.String(),
				"subscription": string(s.id),
			}).WithError(err).Error("Error in event handler")
			continue
		}
		if result != nil {
			results = append(results, result)
		}
	}

	return results
}

func (b *Bus) call(ctx context.Context, kind Kind, s subscription, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithField("stack", string(debug.Stack())).Debugf("Handler for %s panicked", kind)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return s.handler(ctx, args...)
}

// ClearHandlers drops the handlers of the given kinds, or of every kind
// when none are given.
func (b *Bus) ClearHandlers(kinds ...Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(kinds) == 0 {
		for k := range b.handlers {
			b.handlers[k] = nil
		}
		b.log.Debug("Cleared all event handlers")
		return
	}

	for _, k := range kinds {
		if _, ok := b.handlers[k]; ok {
			b.handlers[k] = nil
			b.log.Debugf("Cleared handlers for %s", k)
		}
	}
}

// HandlerCount returns the number of handlers subscribed to kind.
func (b *Bus) HandlerCount(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[kind])
}
