package cdengine

import (
	"github.com/leonpard21/cdengine/actor"
)

const (
	COLLISION EventType = iota
	TRIGGER
	NO_SOLUTION
	SCHEDULER_CAP
)

type EventType uint8

func (t EventType) String() string {
	switch t {
	case COLLISION:
		return "collision"
	case TRIGGER:
		return "trigger"
	case NO_SOLUTION:
		return "no_solution"
	case SCHEDULER_CAP:
		return "scheduler_cap"
	}
	return "unknown"
}

// pairKey identifies an unordered collider pair
type pairKey struct {
	a, b actor.ColliderID
}

// makePairKey creates a normalized pair key with consistent ordering
func makePairKey(a, b actor.ColliderID) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// CollisionEvent is a contact between two solid colliders. Info is seen
// from A.
type CollisionEvent struct {
	A, B actor.ColliderID
	Info actor.CollisionInfo
}

func (e CollisionEvent) Type() EventType { return COLLISION }

// TriggerEvent is a contact where at least one collider is a trigger.
type TriggerEvent struct {
	A, B actor.ColliderID
	Info actor.CollisionInfo
}

func (e TriggerEvent) Type() EventType { return TRIGGER }

// NoSolutionEvent reports a body rolled back because its tick could not be
// resolved within the sub-step budget.
type NoSolutionEvent struct {
	Body     actor.BodyID
	Substeps int
	Contacts int
}

func (e NoSolutionEvent) Type() EventType { return NO_SOLUTION }

// SchedulerCapEvent reports a frame whose collision scheduler stopped on the
// iteration cap. Deferred is the window time left unsimulated.
type SchedulerCapEvent struct {
	Iterations int
	Deferred   float64
}

func (e SchedulerCapEvent) Type() EventType { return SCHEDULER_CAP }

// EventListener - callback for events
type EventListener func(event Event)

// Events buffers what happened during a step and hands it to the listeners
// once the step is over.
type Events struct {
	// Listeners by event type
	listeners map[EventType][]EventListener

	// Event buffer to send at flush
	buffer []Event
}

func NewEvents() Events {
	return Events{
		listeners: make(map[EventType][]EventListener),
		buffer:    make([]Event, 0, 256),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	if e.listeners == nil {
		e.listeners = make(map[EventType][]EventListener)
	}
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

func (e *Events) emit(event Event) {
	if e == nil {
		return
	}
	e.buffer = append(e.buffer, event)
}

// Pending is the number of buffered events.
func (e *Events) Pending() int {
	return len(e.buffer)
}

// flush sends all buffered events and clears the buffer
func (e *Events) flush() {
	for _, event := range e.buffer {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
	e.buffer = e.buffer[:0]
}

func (e *Events) reset() {
	clear(e.listeners)
	e.buffer = e.buffer[:0]
}
