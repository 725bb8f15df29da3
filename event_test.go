package feather2d

import (
	"testing"

	"github.com/akmonengine/feather2d/shape"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

type eventCapture struct {
	events []Event
}

func (ec *eventCapture) capture(event Event) {
	ec.events = append(ec.events, event)
}

func (ec *eventCapture) reset() {
	ec.events = ec.events[:0]
}

func (ec *eventCapture) count() int {
	return len(ec.events)
}

func (ec *eventCapture) countType(eventType EventType) int {
	n := 0
	for _, e := range ec.events {
		if e.Type() == eventType {
			n++
		}
	}
	return n
}

func (ec *eventCapture) hasEventType(eventType EventType) bool {
	return ec.countType(eventType) > 0
}

// =============================================================================
// Subscribe and Listeners Tests
// =============================================================================

func TestEvents_Subscribe(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}

	events.Subscribe(CONTACT_BEGIN, capture.capture)

	// Verify listener is registered
	if len(events.listeners[CONTACT_BEGIN]) != 1 {
		t.Errorf("Expected 1 listener for CONTACT_BEGIN, got %d", len(events.listeners[CONTACT_BEGIN]))
	}
}

func TestEvents_MultipleListeners(t *testing.T) {
	events := NewEvents()
	capture1 := &eventCapture{}
	capture2 := &eventCapture{}

	events.Subscribe(ON_SLEEP, capture1.capture)
	events.Subscribe(ON_SLEEP, capture2.capture)

	events.buffer = append(events.buffer, SleepEvent{})
	events.flush()

	if capture1.count() != 1 {
		t.Errorf("Capture1 expected 1 event, got %d", capture1.count())
	}
	if capture2.count() != 1 {
		t.Errorf("Capture2 expected 1 event, got %d", capture2.count())
	}
}

func TestEvents_DifferentEventTypes(t *testing.T) {
	events := NewEvents()
	captureSleep := &eventCapture{}
	captureWake := &eventCapture{}

	events.Subscribe(ON_SLEEP, captureSleep.capture)
	events.Subscribe(ON_WAKE, captureWake.capture)

	events.buffer = append(events.buffer, WakeEvent{})
	events.flush()

	if captureSleep.count() != 0 {
		t.Errorf("Sleep capture expected 0 events, got %d", captureSleep.count())
	}
	if captureWake.count() != 1 {
		t.Errorf("Wake capture expected 1 event, got %d", captureWake.count())
	}
}

func TestEvents_Flush_ClearsBuffer(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	events.Subscribe(ON_WAKE, capture.capture)

	events.buffer = append(events.buffer, WakeEvent{})
	events.flush()
	events.flush()

	if capture.count() != 1 {
		t.Errorf("Expected 1 event after two flushes, got %d", capture.count())
	}
	if len(events.buffer) != 0 {
		t.Errorf("Expected empty buffer, got %d events", len(events.buffer))
	}
}

func TestEvents_Flush_DeliversEventsRaisedByListeners(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}

	events.Subscribe(ON_SLEEP, func(event Event) {
		capture.capture(event)
		events.buffer = append(events.buffer, WakeEvent{Body: event.(SleepEvent).Body})
	})
	events.Subscribe(ON_WAKE, capture.capture)

	body := BodyID{Index: 3, Generation: 1}
	events.buffer = append(events.buffer, SleepEvent{Body: body})
	events.flush()

	require.Equal(t, []Event{SleepEvent{Body: body}, WakeEvent{Body: body}}, capture.events)
	require.Empty(t, events.buffer)

	// Buffers are reused on the next flush.
	capture.reset()
	events.buffer = append(events.buffer, SleepEvent{Body: body})
	events.flush()
	require.Equal(t, 2, capture.count())
}

func TestEvents_NoListeners(t *testing.T) {
	events := NewEvents()
	events.buffer = append(events.buffer, SleepEvent{}, WakeEvent{})

	// Should not panic
	events.flush()
}

// =============================================================================
// Sleep/Wake Tests
// =============================================================================

func TestEvents_SleepStates(t *testing.T) {
	tests := []struct {
		name   string
		states []bool // awake flag seen at each processing
		want   []EventType
	}{
		{"first sight is silent", []bool{false}, nil},
		{"stays awake", []bool{true, true, true}, nil},
		{"falls asleep", []bool{true, false}, []EventType{ON_SLEEP}},
		{"wakes up", []bool{false, true}, []EventType{ON_WAKE}},
		{"sleep then wake", []bool{true, false, false, true}, []EventType{ON_SLEEP, ON_WAKE}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := NewEvents()
			body := &Body{kind: DynamicBody, id: BodyID{Index: 1, Generation: 1}}

			for _, awake := range tt.states {
				if awake {
					body.flags |= bodyAwake
				} else {
					body.flags &^= bodyAwake
				}
				events.processSleepEvent(body)
			}

			var got []EventType
			for _, e := range events.buffer {
				got = append(got, e.Type())
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestEvents_StaticBodiesAreNotTracked(t *testing.T) {
	events := NewEvents()
	body := &Body{kind: StaticBody, id: BodyID{Index: 1, Generation: 1}}

	events.processSleepEvent(body)

	if len(events.sleepStates) != 0 {
		t.Errorf("Expected no tracked static body, got %d", len(events.sleepStates))
	}
}

// =============================================================================
// World Workflow Tests
// =============================================================================

func TestEvents_ContactAndSleepWorkflow(t *testing.T) {
	w := newTestWorld(t)
	createGround(t, w)
	id := createBox(t, w, mgl64.Vec2{0, 1}, 0.5)

	capture := &eventCapture{}
	for _, eventType := range []EventType{CONTACT_BEGIN, CONTACT_END, ON_SLEEP, ON_WAKE} {
		w.Events.Subscribe(eventType, capture.capture)
	}

	stepN(t, w, 600)

	require.Equal(t, 1, capture.countType(CONTACT_BEGIN))
	require.Equal(t, 0, capture.countType(CONTACT_END))
	require.Equal(t, 1, capture.countType(ON_SLEEP))

	begin := capture.events[0].(ContactBeginEvent)
	if begin.BodyA != id && begin.BodyB != id {
		t.Errorf("contact begin bodies got %v and %v, want the box %v", begin.BodyA, begin.BodyB, id)
	}

	capture.reset()
	w.Body(id).SetAwake(true)
	stepN(t, w, 1)
	require.True(t, capture.hasEventType(ON_WAKE))

	capture.reset()
	require.NoError(t, w.DestroyBody(id))
	stepN(t, w, 1)
	require.Equal(t, 1, capture.countType(CONTACT_END))
	require.False(t, capture.hasEventType(ON_SLEEP))
}

func TestEvents_DestroyBodyFromListener(t *testing.T) {
	w := newTestWorld(t)
	createGround(t, w)
	box := createBox(t, w, mgl64.Vec2{0, 0.45}, 0.5)

	capture := &eventCapture{}
	w.Events.Subscribe(CONTACT_BEGIN, func(event Event) {
		capture.capture(event)
		require.NoError(t, w.DestroyBody(box))
	})
	w.Events.Subscribe(CONTACT_END, capture.capture)

	stepN(t, w, 3)

	require.Equal(t, 1, capture.countType(CONTACT_BEGIN))
	require.Equal(t, 1, capture.countType(CONTACT_END))
	require.Equal(t, 1, w.BodyCount())
	require.Equal(t, 0, w.ContactCount())
}

func TestEvents_SensorWorkflow(t *testing.T) {
	w := newTestWorld(t)

	sensorDef := DefaultBodyDef()
	sensorDef.Position = mgl64.Vec2{0, 5}
	sensorBody, err := w.CreateBody(sensorDef)
	require.NoError(t, err)
	fd := DefaultFixtureDef(shape.NewBox(1, 1))
	fd.IsSensor = true
	sensor, err := w.CreateFixture(sensorBody, fd)
	require.NoError(t, err)

	ball := createCircle(t, w, DynamicBody, mgl64.Vec2{0, 10}, 0.25)

	capture := &eventCapture{}
	for _, eventType := range []EventType{SENSOR_BEGIN, SENSOR_END, CONTACT_BEGIN} {
		w.Events.Subscribe(eventType, capture.capture)
	}

	stepN(t, w, 120)

	require.Equal(t, 1, capture.countType(SENSOR_BEGIN))
	require.Equal(t, 1, capture.countType(SENSOR_END))
	require.Equal(t, 0, capture.countType(CONTACT_BEGIN))

	begin := capture.events[0].(SensorBeginEvent)
	require.Equal(t, sensor, begin.Sensor)
	require.Equal(t, w.Body(ball).Fixtures()[0].ID(), begin.Visitor)

	// Sensors never push.
	require.Less(t, w.Body(ball).Position().Y(), 0.0)
}
