package registry

import (
	"sync"

	"github.com/GriffinCanCode/modhost/internal/domain/module"
)

// EventType classifies a catalog change
type EventType string

const (
	EventAdded     EventType = "added"
	EventRemoved   EventType = "removed"
	EventUpdated   EventType = "updated"
	EventActivated EventType = "activated"
)

// Event is delivered to subscribers after a catalog change is persisted
type Event struct {
	Type   EventType     `json:"type"`
	Record module.Record `json:"record"`
}

// observers fans events out to subscribers. Handlers run synchronously on
// the mutating goroutine and must not block.
type observers struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

func (o *observers) subscribe(fn func(Event)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.subs == nil {
		o.subs = make(map[int]func(Event))
	}
	key := o.next
	o.next++
	o.subs[key] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, key)
			o.mu.Unlock()
		})
	}
}

func (o *observers) publish(ev Event) {
	o.mu.RLock()
	handlers := make([]func(Event), 0, len(o.subs))
	for _, fn := range o.subs {
		handlers = append(handlers, fn)
	}
	o.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}
