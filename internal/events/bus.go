// Package events carries kernel notifications to observers after each committed mutation.
package events

import (
	"sort"
	"sync"
	"time"
)

// Type names a notification.
type Type string

const (
	SessionAdded          Type = "session:added"
	SessionUpdated        Type = "session:updated"
	SessionMoved          Type = "session:moved"
	SessionRemoved        Type = "session:removed"
	SubjectAdded          Type = "subject:added"
	SubjectRemoved        Type = "subject:removed"
	TeacherAdded          Type = "teacher:added"
	TeacherRemoved        Type = "teacher:removed"
	TermChanged           Type = "session(term):changed"
	ScheduleOptimized     Type = "schedule:optimized"
	ExamRoomConfigUpdated Type = "exam:room-config-updated"
)

// Event is one notification.
type Event struct {
	Type    Type        `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

// Handler observes events. It runs on the publisher's goroutine.
type Handler func(Event)

// Publisher is what mutating services depend on.
type Publisher interface {
	Publish(Event)
}

// Bus delivers events synchronously, in publish order, to every subscriber.
type Bus struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]Handler
	now      func() time.Time
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler), now: time.Now}
}

// Subscribe registers fn and returns a function removing it.
func (b *Bus) Subscribe(fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	b.handlers[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Publish stamps the event and calls subscribers in subscription order.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = b.now()
	}

	b.mu.RLock()
	ids := make([]int, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
}

// Recorder keeps every event it sees; handy for tests and audit endpoints.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish records the event.
func (r *Recorder) Publish(evt Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types lists recorded event types in order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
