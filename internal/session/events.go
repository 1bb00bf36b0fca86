package session

import "github.com/nanashili/dap-client/internal/protocol"

// EventKind distinguishes the high-level session events of spec.md §6's
// session event stream.
type EventKind int

const (
	EventInitialized EventKind = iota
	EventStopped
	EventContinued
	EventTerminated
	EventOutput
)

// Event is one entry in the session event stream. Only the field(s)
// matching Kind are populated.
type Event struct {
	Kind       EventKind
	Stopped    protocol.StoppedEventBody
	Continued  protocol.ContinuedEventBody
	Terminated protocol.TerminatedEventBody
	Output     protocol.OutputEventBody
}

// Listener observes the session event stream in adapter-delivery order.
type Listener func(Event)

// Subscribe appends listener to the ordered listener list.
func (s *Session) Subscribe(listener Listener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// emit fans an event out to every subscriber in registration order. It
// is always called from the broker's single event-worker goroutine (via
// the runtime event handlers registered in reverse.go), so cross-event
// ordering matches adapter-delivery order without any extra locking
// here.
func (s *Session) emit(e Event) {
	s.listenersMu.Lock()
	listeners := append([]Listener(nil), s.listeners...)
	s.listenersMu.Unlock()
	for _, l := range listeners {
		l(e)
	}
}
