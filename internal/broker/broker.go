// Package broker implements the message broker of spec.md §4.2: it
// multiplexes a single framed transport into correlated request/response
// pairs, event fan-out, and reverse-request servicing. All broker state
// is owned by a single actor goroutine, matching spec.md §5's
// serialized-actor discipline.
package broker

import (
	"io"
	"log/slog"
	"sync"

	"github.com/nanashili/dap-client/internal/dapio"
	"github.com/nanashili/dap-client/internal/jsonvalue"
	"github.com/nanashili/dap-client/internal/protoerr"
)

// RequestHandler services a single adapter-initiated (reverse) request
// and returns the body of a successful response, or an error whose
// message becomes the failure response's message.
type RequestHandler func(arguments jsonvalue.Value) (jsonvalue.Value, error)

// EventHandler observes a single inbound Event.
type EventHandler func(body jsonvalue.Value)

// pendingSlot is the single-shot completion primitive of spec.md §9.
type pendingSlot struct {
	ch chan result
}

type result struct {
	msg dapio.Message
	err error
}

// Broker owns a Transport exclusively (spec.md §9 ownership) and
// correlates outbound requests with inbound responses over it.
type Broker struct {
	transport *dapio.Transport
	logger    *slog.Logger

	// actor state, touched only on the runActor goroutine
	nextSeq         int
	pending         map[int]*pendingSlot
	requestHandlers map[string]RequestHandler
	eventHandlers   map[string][]EventHandler

	cmds    chan func()
	events  chan dapio.Message
	closed  chan struct{}
	wg      sync.WaitGroup
}

// New constructs a Broker over transport and immediately launches its
// actor and event-worker goroutines, so RegisterRequestHandler and
// RegisterEventHandler may be called right away — registration must not
// depend on Start, since callers (e.g. internal/session) wire handlers
// at construction time, before a transport reader is available. Call
// Start once a reader is ready to begin servicing it.
func New(transport *dapio.Transport, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broker{
		transport:       transport,
		logger:          logger,
		nextSeq:         1,
		pending:         make(map[int]*pendingSlot),
		requestHandlers: make(map[string]RequestHandler),
		eventHandlers:   make(map[string][]EventHandler),
		cmds:            make(chan func()),
		events:          make(chan dapio.Message, 64),
		closed:          make(chan struct{}),
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.runActor()
	}()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.eventWorker()
	}()

	return b
}

// Start launches the transport receive loop, reading from r. It returns
// immediately; the broker closes itself once the receive loop ends,
// which only happens after Close or a fatal transport error.
func (b *Broker) Start(r io.Reader) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		err := b.transport.StartReceiving(r, b.onWireMessage)
		if err != nil {
			b.logger.Debug("transport receive loop ended", "err", err)
		}
		b.Close()
	}()
}

// eventWorker processes queued events one at a time, in the order they
// arrived from transport, so handler fan-out never blocks response
// correlation on the receive-loop goroutine.
func (b *Broker) eventWorker() {
	for {
		select {
		case msg := <-b.events:
			b.dispatchEvent(msg)
		case <-b.closed:
			// Drain whatever is already queued, then stop.
			for {
				select {
				case msg := <-b.events:
					b.dispatchEvent(msg)
				default:
					return
				}
			}
		}
	}
}

// Wait blocks until both the actor and receive loop have exited.
func (b *Broker) Wait() { b.wg.Wait() }

func (b *Broker) runActor() {
	for {
		select {
		case fn, ok := <-b.cmds:
			if !ok {
				return
			}
			fn()
		case <-b.closed:
			// Drain remaining queued commands so senders don't block
			// forever on a full unbuffered channel after close.
			for {
				select {
				case fn := <-b.cmds:
					fn()
				default:
					b.failAllPendingLocked()
					return
				}
			}
		}
	}
}

func (b *Broker) failAllPendingLocked() {
	for seq, slot := range b.pending {
		delete(b.pending, seq)
		slot.ch <- result{err: protoerr.New(protoerr.KindTransportFailure, "broker closed")}
	}
}

// exec runs fn on the actor goroutine and waits for it to finish. It
// returns false if the broker is already closed.
func (b *Broker) exec(fn func()) bool {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}
	select {
	case b.cmds <- wrapped:
		<-done
		return true
	case <-b.closed:
		return false
	}
}

// SendRequest allocates a sequence number, sends a Request, and blocks
// until the correlated Response arrives or the broker closes.
func (b *Broker) SendRequest(command string, arguments jsonvalue.Value) (dapio.Message, error) {
	slot := &pendingSlot{ch: make(chan result, 1)}
	var seq int
	var installed bool
	ok := b.exec(func() {
		seq = b.nextSeq
		b.nextSeq++
		b.pending[seq] = slot
		installed = true
	})
	if !ok {
		return dapio.Message{}, protoerr.New(protoerr.KindTransportFailure, "broker closed")
	}

	req := dapio.NewRequest(seq, command, arguments)
	if err := b.transport.Send(req); err != nil {
		if installed {
			b.exec(func() { delete(b.pending, seq) })
		}
		return dapio.Message{}, protoerr.Wrap(protoerr.KindTransportFailure, "send request", err)
	}

	select {
	case res := <-slot.ch:
		return res.msg, res.err
	case <-b.closed:
		return dapio.Message{}, protoerr.New(protoerr.KindTransportFailure, "broker closed")
	}
}

// SendEvent allocates a sequence number and sends an Event. No
// correlation is tracked.
func (b *Broker) SendEvent(event string, body jsonvalue.Value) error {
	var seq int
	ok := b.exec(func() {
		seq = b.nextSeq
		b.nextSeq++
	})
	if !ok {
		return protoerr.New(protoerr.KindTransportFailure, "broker closed")
	}
	if err := b.transport.Send(dapio.NewEvent(seq, event, body)); err != nil {
		return protoerr.Wrap(protoerr.KindTransportFailure, "send event", err)
	}
	return nil
}

// RegisterRequestHandler installs (or replaces) the handler for command.
func (b *Broker) RegisterRequestHandler(command string, handler RequestHandler) {
	b.exec(func() {
		b.requestHandlers[command] = handler
	})
}

// RegisterEventHandler appends handler to the ordered list for event.
func (b *Broker) RegisterEventHandler(event string, handler EventHandler) {
	b.exec(func() {
		b.eventHandlers[event] = append(b.eventHandlers[event], handler)
	})
}

// Close closes the transport and fails all outstanding pending requests.
// Idempotent.
func (b *Broker) Close() {
	select {
	case <-b.closed:
		return
	default:
	}
	close(b.closed)
	_ = b.transport.Close()
}

// onWireMessage is the transport Handler: it is invoked from the
// transport's own goroutine, so routing work is dispatched onto the
// actor via cmds rather than touching broker state directly.
func (b *Broker) onWireMessage(msg dapio.Message, err error) {
	if err != nil {
		b.logger.Warn("dropping unreadable wire message", "err", err)
		return
	}
	switch msg.Type {
	case dapio.TypeResponse:
		b.routeResponse(msg)
	case dapio.TypeRequest:
		// Reverse requests must not block other traffic; service each
		// in its own goroutine while still mutating handler state only
		// via the actor.
		go b.routeReverseRequest(msg)
	case dapio.TypeEvent:
		select {
		case b.events <- msg:
		case <-b.closed:
		}
	}
}

func (b *Broker) routeResponse(msg dapio.Message) {
	var slot *pendingSlot
	b.exec(func() {
		slot = b.pending[msg.RequestSeq]
		if slot != nil {
			delete(b.pending, msg.RequestSeq)
		}
	})
	if slot == nil {
		b.logger.Debug("dropping stale response", "request_seq", msg.RequestSeq)
		return
	}
	var resErr error
	if !msg.Success {
		reason := msg.Message
		if reason == "" {
			reason = "adapter reported failure"
		}
		resErr = protoerr.New(protoerr.KindAdapterUnavailable, reason)
	}
	slot.ch <- result{msg: msg, err: resErr}
}

// routeReverseRequest runs handler off the actor goroutine, since a
// handler (e.g. startDebugging) may block indefinitely, but defers
// sequence allocation and the wire send to a single b.exec call made
// after the handler returns. Two reverse requests serviced by handlers
// of different latency would otherwise race: allocating outSeq up front
// lets the faster handler's goroutine send its higher sequence number
// before the slower one sends its lower one. Allocating and sending in
// the same actor-serialized step ties send order to sequence order, so
// whichever response reaches the actor first gets both the lower
// number and the earlier wire send.
func (b *Broker) routeReverseRequest(msg dapio.Message) {
	var handler RequestHandler
	b.exec(func() {
		handler = b.requestHandlers[msg.Command]
	})

	var body jsonvalue.Value
	var herr error
	if handler != nil {
		body, herr = handler(msg.Arguments)
	}

	b.exec(func() {
		outSeq := b.nextSeq
		b.nextSeq++

		var resp dapio.Message
		switch {
		case handler == nil:
			resp = dapio.NewErrorResponse(outSeq, msg.Seq, msg.Command, "Unsupported request: "+msg.Command)
		case herr != nil:
			resp = dapio.NewErrorResponse(outSeq, msg.Seq, msg.Command, herr.Error())
		default:
			resp = dapio.NewResponse(outSeq, msg.Seq, msg.Command, body)
		}
		if err := b.transport.Send(resp); err != nil {
			b.logger.Warn("failed to send reverse-request response", "command", msg.Command, "err", err)
		}
	})
}

func (b *Broker) dispatchEvent(msg dapio.Message) {
	var handlers []EventHandler
	b.exec(func() {
		handlers = append(handlers, b.eventHandlers[msg.Event]...)
	})
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked", "event", msg.Event, "recover", r)
				}
			}()
			h(msg.Body)
		}()
	}
}
