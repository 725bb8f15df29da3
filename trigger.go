package feather2d

const (
	CONTACT_BEGIN EventType = iota
	CONTACT_END
	SENSOR_BEGIN
	SENSOR_END
	ON_SLEEP
	ON_WAKE
)

type EventType uint8

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// Contact events. The fixture ids may be stale by the time the event is
// delivered if a fixture was destroyed during the step.
type ContactBeginEvent struct {
	FixtureA FixtureID
	FixtureB FixtureID
	BodyA    BodyID
	BodyB    BodyID
}

func (e ContactBeginEvent) Type() EventType { return CONTACT_BEGIN }

type ContactEndEvent struct {
	FixtureA FixtureID
	FixtureB FixtureID
	BodyA    BodyID
	BodyB    BodyID
}

func (e ContactEndEvent) Type() EventType { return CONTACT_END }

// Sensor events, FixtureA being the sensor when only one is.
type SensorBeginEvent struct {
	Sensor  FixtureID
	Visitor FixtureID
}

func (e SensorBeginEvent) Type() EventType { return SENSOR_BEGIN }

type SensorEndEvent struct {
	Sensor  FixtureID
	Visitor FixtureID
}

func (e SensorEndEvent) Type() EventType { return SENSOR_END }

// Sleep/Wake events
type SleepEvent struct {
	Body BodyID
}

func (e SleepEvent) Type() EventType { return ON_SLEEP }

type WakeEvent struct {
	Body BodyID
}

func (e WakeEvent) Type() EventType { return ON_WAKE }

// EventListener - callback for events
type EventListener func(event Event)

// Events buffers what happened during a step and delivers it to the
// subscribed listeners once the step is over, with the world unlocked.
type Events struct {
	// Listeners by event type
	listeners map[EventType][]EventListener

	// Event buffer to send at flush
	buffer []Event
	// Delivered buffer, reused while listeners append to buffer
	spare []Event

	sleepStates map[BodyID]bool
}

func NewEvents() Events {
	return Events{
		listeners:   make(map[EventType][]EventListener),
		buffer:      make([]Event, 0, 256),
		spare:       make([]Event, 0, 256),
		sleepStates: make(map[BodyID]bool),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// emitContact records a touching transition of c.
func (e *Events) emitContact(c *Contact, begin bool) {
	fA, fB := c.fixtureA, c.fixtureB

	if c.isSensor() {
		sensor, visitor := fA, fB
		if !fA.sensor {
			sensor, visitor = fB, fA
		}
		if begin {
			e.buffer = append(e.buffer, SensorBeginEvent{Sensor: sensor.id, Visitor: visitor.id})
		} else {
			e.buffer = append(e.buffer, SensorEndEvent{Sensor: sensor.id, Visitor: visitor.id})
		}
		return
	}

	if begin {
		e.buffer = append(e.buffer, ContactBeginEvent{
			FixtureA: fA.id,
			FixtureB: fB.id,
			BodyA:    fA.body.id,
			BodyB:    fB.body.id,
		})
	} else {
		e.buffer = append(e.buffer, ContactEndEvent{
			FixtureA: fA.id,
			FixtureB: fB.id,
			BodyA:    fA.body.id,
			BodyB:    fB.body.id,
		})
	}
}

// processSleepEvent compares the awake flag of body with its tracked state.
// A body seen for the first time is tracked without an event.
func (e *Events) processSleepEvent(body *Body) {
	if body.kind == StaticBody {
		return
	}

	sleeping := !body.IsAwake()
	trackedState, exists := e.sleepStates[body.id]
	if !exists {
		e.sleepStates[body.id] = sleeping
		return
	}

	if !trackedState && sleeping {
		e.buffer = append(e.buffer, SleepEvent{Body: body.id})
		e.sleepStates[body.id] = true
	} else if trackedState && !sleeping {
		e.buffer = append(e.buffer, WakeEvent{Body: body.id})
		e.sleepStates[body.id] = false
	}
}

// forget stops tracking a destroyed body.
func (e *Events) forget(id BodyID) {
	delete(e.sleepStates, id)
}

// flush sends all buffered events and clears the buffer. Events raised by
// the listeners themselves, such as the end of a contact of a destroyed
// body, are delivered in the same flush.
func (e *Events) flush() {
	for len(e.buffer) > 0 {
		events := e.buffer
		e.buffer = e.spare[:0]

		for _, event := range events {
			if listeners, ok := e.listeners[event.Type()]; ok {
				for _, listener := range listeners {
					listener(event)
				}
			}
		}

		clear(events)
		e.spare = events[:0]
	}
}
