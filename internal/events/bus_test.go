package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus()
	var seen []string
	bus.Subscribe(func(e Event) { seen = append(seen, "a:"+string(e.Type)) })
	unsubscribe := bus.Subscribe(func(e Event) { seen = append(seen, "b:"+string(e.Type)) })

	bus.Publish(Event{Type: SessionAdded})
	unsubscribe()
	bus.Publish(Event{Type: SessionRemoved})

	assert.Equal(t, []string{"a:session:added", "b:session:added", "a:session:removed"}, seen)
}

func TestBusStampsTime(t *testing.T) {
	bus := NewBus()
	rec := &Recorder{}
	bus.Subscribe(rec.Publish)

	bus.Publish(Event{Type: ScheduleOptimized})

	events := rec.Events()
	assert.Len(t, events, 1)
	assert.False(t, events[0].At.IsZero())
	assert.Equal(t, []Type{ScheduleOptimized}, rec.Types())
}

func TestNilBusIsSafe(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Publish(Event{Type: SessionMoved}) })
}
