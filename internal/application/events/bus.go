// Package events broadcasts which document section changed after a
// successful save.
package events

import (
	"sync"

	"github.com/tofu-suite/tofu/internal/domain/entities"
	"github.com/tofu-suite/tofu/internal/infrastructure/logger"
)

// Handler receives the name of a changed section. Handlers re-read the store
// themselves; no payload is delivered.
type Handler func(section entities.Section)

// Bus is a synchronous observer registry. Publish calls every handler in
// subscription order on the caller's goroutine.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers []subscription
	logger   *logger.Logger
}

type subscription struct {
	id      int
	handler Handler
}

// NewBus creates an empty bus. A nil logger discards handler panics silently.
func NewBus(log *logger.Logger) *Bus {
	if log == nil {
		log = logger.NewNop()
	}
	return &Bus{logger: log.WithComponent("events")}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers = append(b.handlers, subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

// SubscribeChan delivers sections on a buffered channel. Sends never block the
// publisher: when the buffer is full the event is dropped. The channel is
// closed by unsubscribe.
func (b *Bus) SubscribeChan(buffer int) (<-chan entities.Section, func()) {
	ch := make(chan entities.Section, buffer)
	var mu sync.Mutex
	closed := false
	unsubscribe := b.Subscribe(func(section entities.Section) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- section:
		default:
			b.logger.Warnw("Dropping change notification, subscriber is full", "section", section)
		}
	})
	return ch, func() {
		unsubscribe()
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}
}

// Publish notifies every subscriber once per section, in order.
func (b *Bus) Publish(sections ...entities.Section) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	for i, sub := range b.handlers {
		handlers[i] = sub.handler
	}
	b.mu.RUnlock()

	for _, section := range sections {
		for _, h := range handlers {
			b.call(h, section)
		}
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

func (b *Bus) call(h Handler, section entities.Section) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorw("Change subscriber panicked", "section", section, "panic", r)
		}
	}()
	h(section)
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.handlers {
		if sub.id == id {
			b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
			return
		}
	}
}
