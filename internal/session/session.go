// Package session implements the session state machine of spec.md §4.3:
// the DAP handshake, runtime debugger operations, reverse-request
// servicing, and the high-level session event stream. It sits directly
// on top of internal/broker, internal/protocol, and internal/reconcile,
// and is the only layer that knows about SessionState.
package session

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/nanashili/dap-client/internal/broker"
	"github.com/nanashili/dap-client/internal/dapio"
	"github.com/nanashili/dap-client/internal/jsonvalue"
	"github.com/nanashili/dap-client/internal/persistence"
	"github.com/nanashili/dap-client/internal/protocol"
	"github.com/nanashili/dap-client/internal/protoerr"
	"github.com/nanashili/dap-client/internal/reconcile"
)

// State is the lifecycle of spec.md §3: strictly monotone forward, no
// back-transitions.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// HostDelegate services the two DAP reverse-request capabilities the
// core does not implement itself (spec.md §3's HostDelegate capability
// set). A nil field on Config means that operation fails with
// UnsupportedFeature.
type HostDelegate interface {
	RunInTerminal(args protocol.RunInTerminalArguments) (protocol.RunInTerminalResult, error)
	StartDebugging(args protocol.StartDebuggingArguments) error
}

// Config configures a Session at construction time. LaunchConfiguration
// is the full configuration object including the optional "request" key
// (default "launch"); it is split into command + arguments at handshake
// per spec.md §4.3 step 2.
type Config struct {
	Identifier          string
	LaunchConfiguration jsonvalue.Value
	Delegate            HostDelegate
	Logger              *slog.Logger
	Store               persistence.Store
	SessionID           uuid.UUID
}

// Session orchestrates one debug adapter connection end to end.
type Session struct {
	cfg        Config
	broker     *broker.Broker
	logger     *slog.Logger
	reconciler *reconcile.State
	sessionID  uuid.UUID

	mu           sync.Mutex
	state        State
	capabilities map[string]struct{}

	listenersMu sync.Mutex
	listeners   []Listener
}

// New constructs a Session over transport. Reverse-request handlers and
// runtime event handlers are registered immediately so they are never
// racing against adapter traffic once Start is called.
func New(transport *dapio.Transport, cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := cfg.SessionID
	if id == uuid.Nil {
		id = uuid.New()
	}
	s := &Session{
		cfg:          cfg,
		broker:       broker.New(transport, logger),
		logger:       logger,
		reconciler:   reconcile.NewState(),
		sessionID:    id,
		state:        StateIdle,
		capabilities: make(map[string]struct{}),
	}
	s.registerReverseHandlers()
	s.registerRuntimeEventHandlers()
	return s
}

// SessionID returns the identity under which this session persists its
// record, if a Store is configured.
func (s *Session) SessionID() uuid.UUID { return s.sessionID }

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// hasCapability implements the lenient interpretation of spec.md §9's
// open question: presence of the key is sufficient evidence of support,
// regardless of its boolean value.
func (s *Session) hasCapability(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.capabilities[name]
	return ok
}

func (s *Session) requireRunning() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return protoerr.New(protoerr.KindSessionNotActive, "operation requires a running session, current state is "+s.state.String())
	}
	return nil
}

// Stop implements spec.md §4.3's stop(): send disconnect, close the
// broker, transition to Terminated. Errors during disconnect are logged
// but never block the transition.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return protoerr.New(protoerr.KindSessionNotActive, "stop requires a running session")
	}
	s.state = StateStopping
	s.mu.Unlock()

	_, err := s.broker.SendRequest("disconnect", jsonvalue.Object(map[string]jsonvalue.Value{
		"restart": jsonvalue.Bool(false),
	}))
	if err != nil {
		s.logger.Warn("disconnect request failed, tearing down anyway", "err", err)
	}
	s.broker.Close()
	s.setState(StateTerminated)

	if s.cfg.Store != nil {
		if err := s.cfg.Store.Remove(s.sessionID); err != nil {
			s.logger.Warn("failed to remove session record", "err", err)
		}
	}
	return nil
}

// Wait blocks until the underlying broker's goroutines have exited,
// which happens once Stop (or a fatal transport error) has closed it.
func (s *Session) Wait() { s.broker.Wait() }
